// Package clouddrive provides storage backends for consumer cloud drives:
// Dropbox, Microsoft OneDrive, and Google Drive.
//
// All three share the same folder layout:
//
//	{rootFolder}/spaces/{spaceKey}/_meta.json
//	{rootFolder}/spaces/{spaceKey}/resources/{encodedPath}.data
//	{rootFolder}/spaces/{spaceKey}/resources/{encodedPath}.meta
//
// Resource paths are percent-encoded into flat file names, and each content
// file carries a sidecar meta file holding its content type.
package clouddrive

import (
	"encoding/json"
	"fmt"

	"github.com/wallet-storage/was"
)

// DefaultRootFolder is used when a config leaves RootFolder empty.
const DefaultRootFolder = "was_data"

// spaceMeta is the _meta.json document for a space.
type spaceMeta struct {
	ID         string `json:"id"`
	Controller string `json:"controller"`
}

// resourceMeta is the sidecar document next to each resource's content.
type resourceMeta struct {
	ContentType string `json:"contentType"`
}

func parseSpaceMeta(data []byte) (spaceMeta, error) {
	var meta spaceMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return spaceMeta{}, fmt.Errorf("corrupt space metadata: %w", err)
	}
	return meta, nil
}

func parseResourceMeta(data []byte) (string, error) {
	var meta resourceMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("corrupt resource metadata: %w", err)
	}
	return meta.ContentType, nil
}

func encodeResourceName(path, suffix string) string {
	return was.EncodeResourcePath(path) + suffix
}
