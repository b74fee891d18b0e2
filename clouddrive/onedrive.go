package clouddrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/wallet-storage/was"
)

const graphBase = "https://graph.microsoft.com/v1.0"

// OneDriveConfig configures a OneDrive store using the client credentials
// flow. DriveID selects a specific drive; when empty the signed-in user's
// drive is used. HTTPClient and BaseURL exist for tests.
type OneDriveConfig struct {
	ClientID     string
	ClientSecret string
	TenantID     string
	DriveID      string
	RootFolder   string

	HTTPClient *http.Client
	BaseURL    string
}

// OneDrive is a storage backend over the Microsoft Graph API.
type OneDrive struct {
	client  *http.Client
	baseURL string
	driveID string
	root    string
}

// NewOneDrive creates a OneDrive store. Tokens are acquired and refreshed
// automatically via the client credentials flow.
func NewOneDrive(ctx context.Context, cfg OneDriveConfig) (*OneDrive, error) {
	client := cfg.HTTPClient
	if client == nil {
		if cfg.ClientID == "" || cfg.TenantID == "" {
			return nil, errors.New("onedrive: ClientID and TenantID must be set")
		}
		creds := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		client = creds.Client(ctx)
	}

	root := cfg.RootFolder
	if root == "" {
		root = DefaultRootFolder
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = graphBase
	}

	return &OneDrive{
		client:  client,
		baseURL: baseURL,
		driveID: cfg.DriveID,
		root:    root,
	}, nil
}

func (o *OneDrive) drivePath() string {
	if o.driveID != "" {
		return fmt.Sprintf("%s/drives/%s", o.baseURL, o.driveID)
	}
	return o.baseURL + "/me/drive"
}

// itemURL builds a Graph URL addressing a file or folder by path.
func (o *OneDrive) itemURL(path string) string {
	return fmt.Sprintf("%s/root:/%s:", o.drivePath(), path)
}

func (o *OneDrive) spacePath(spaceKey string) string {
	return fmt.Sprintf("%s/spaces/%s", o.root, spaceKey)
}

func (o *OneDrive) metaPath(spaceKey string) string {
	return o.spacePath(spaceKey) + "/_meta.json"
}

func (o *OneDrive) resourcePath(spaceKey, path, suffix string) string {
	return fmt.Sprintf("%s/resources/%s", o.spacePath(spaceKey), encodeResourceName(path, suffix))
}

// errGraphNotFound marks a 404 from the Graph API.
var errGraphNotFound = errors.New("onedrive: item not found")

func (o *OneDrive) do(ctx context.Context, method, url string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("onedrive: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("onedrive: %s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("onedrive: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errGraphNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("onedrive: %s: status %d: %s", url, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (o *OneDrive) getFile(ctx context.Context, path string) ([]byte, error) {
	return o.do(ctx, http.MethodGet, o.itemURL(path)+"/content", nil, "")
}

func (o *OneDrive) putFile(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := o.do(ctx, http.MethodPut, o.itemURL(path)+"/content", data, contentType)
	return err
}

func (o *OneDrive) deleteItem(ctx context.Context, path string) (bool, error) {
	_, err := o.do(ctx, http.MethodDelete, o.itemURL(path), nil, "")
	if err != nil {
		if errors.Is(err, errGraphNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (o *OneDrive) GetSpace(ctx context.Context, key string) (was.Space, error) {
	data, err := o.getFile(ctx, o.metaPath(key))
	if err != nil {
		if errors.Is(err, errGraphNotFound) {
			return was.Space{}, fmt.Errorf("get space %q: %w", key, was.ErrSpaceNotFound)
		}
		return was.Space{}, err
	}

	meta, err := parseSpaceMeta(data)
	if err != nil {
		return was.Space{}, err
	}
	return was.Space{Key: key, ID: meta.ID, Controller: meta.Controller}, nil
}

func (o *OneDrive) PutSpace(ctx context.Context, key, publicID, controller string) error {
	meta := spaceMeta{ID: publicID, Controller: controller}

	// Updates keep the existing public id; only the controller changes.
	if data, err := o.getFile(ctx, o.metaPath(key)); err == nil {
		existing, err := parseSpaceMeta(data)
		if err != nil {
			return err
		}
		meta.ID = existing.ID
	} else if !errors.Is(err, errGraphNotFound) {
		return err
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("onedrive: encode space metadata: %w", err)
	}
	return o.putFile(ctx, o.metaPath(key), payload, "application/json")
}

func (o *OneDrive) DeleteSpace(ctx context.Context, key string) (bool, error) {
	// Deleting the folder removes the metadata and all resources at once.
	return o.deleteItem(ctx, o.spacePath(key))
}

func (o *OneDrive) ListSpaces(ctx context.Context, controller string) ([]was.Space, error) {
	type childItem struct {
		Name   string          `json:"name"`
		Folder json.RawMessage `json:"folder"`
	}
	type childrenResponse struct {
		Value    []childItem `json:"value"`
		NextLink string      `json:"@odata.nextLink"`
	}

	result := []was.Space{}
	url := o.itemURL(o.root+"/spaces") + "/children"
	for url != "" {
		body, err := o.do(ctx, http.MethodGet, url, nil, "")
		if err != nil {
			if errors.Is(err, errGraphNotFound) {
				return []was.Space{}, nil
			}
			return nil, err
		}

		var page childrenResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("onedrive: decode children response: %w", err)
		}

		for _, child := range page.Value {
			if child.Folder == nil {
				continue
			}

			data, err := o.getFile(ctx, o.metaPath(child.Name))
			if err != nil {
				if errors.Is(err, errGraphNotFound) {
					continue
				}
				return nil, err
			}
			meta, err := parseSpaceMeta(data)
			if err != nil {
				return nil, err
			}

			if meta.Controller == controller {
				result = append(result, was.Space{Key: child.Name, ID: meta.ID, Controller: meta.Controller})
			}
		}
		url = page.NextLink
	}
	return result, nil
}

func (o *OneDrive) GetResource(ctx context.Context, spaceKey, path string) (was.Resource, error) {
	content, err := o.getFile(ctx, o.resourcePath(spaceKey, path, ".data"))
	if err != nil {
		if errors.Is(err, errGraphNotFound) {
			return was.Resource{}, fmt.Errorf("get resource %q: %w", path, was.ErrResourceNotFound)
		}
		return was.Resource{}, err
	}

	metaData, err := o.getFile(ctx, o.resourcePath(spaceKey, path, ".meta"))
	if err != nil {
		if errors.Is(err, errGraphNotFound) {
			return was.Resource{}, fmt.Errorf("get resource %q: %w", path, was.ErrResourceNotFound)
		}
		return was.Resource{}, err
	}

	contentType, err := parseResourceMeta(metaData)
	if err != nil {
		return was.Resource{}, err
	}
	return was.Resource{Content: content, ContentType: contentType}, nil
}

func (o *OneDrive) PutResource(ctx context.Context, spaceKey, path string, content []byte, contentType string) error {
	if _, err := o.getFile(ctx, o.metaPath(spaceKey)); err != nil {
		if errors.Is(err, errGraphNotFound) {
			return fmt.Errorf("put resource %q: space %q: %w", path, spaceKey, was.ErrSpaceNotFound)
		}
		return err
	}

	if err := o.putFile(ctx, o.resourcePath(spaceKey, path, ".data"), content, "application/octet-stream"); err != nil {
		return err
	}

	metaData, err := json.Marshal(resourceMeta{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("onedrive: encode resource metadata: %w", err)
	}
	return o.putFile(ctx, o.resourcePath(spaceKey, path, ".meta"), metaData, "application/json")
}

func (o *OneDrive) DeleteResource(ctx context.Context, spaceKey, path string) (bool, error) {
	found, err := o.deleteItem(ctx, o.resourcePath(spaceKey, path, ".data"))
	if err != nil || !found {
		return false, err
	}
	if _, err := o.deleteItem(ctx, o.resourcePath(spaceKey, path, ".meta")); err != nil {
		return false, err
	}
	return true, nil
}
