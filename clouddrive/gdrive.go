package clouddrive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"

	"github.com/wallet-storage/was"
)

const (
	gdriveAPIBase    = "https://www.googleapis.com/drive/v3"
	gdriveUploadBase = "https://www.googleapis.com/upload/drive/v3"
	gdriveFolderMime = "application/vnd.google-apps.folder"
	gdriveScope      = "https://www.googleapis.com/auth/drive"
)

// GoogleDriveConfig configures a Google Drive store. Credentials holds a
// service account key, either as raw JSON or as a path to a key file.
// HTTPClient and the base URLs exist for tests.
type GoogleDriveConfig struct {
	Credentials string
	RootFolder  string

	HTTPClient *http.Client
	APIBase    string
	UploadBase string
}

// GoogleDrive is a storage backend over the Google Drive v3 API. Drive
// addresses files by opaque ids rather than paths, so folder ids are
// resolved by name and cached.
type GoogleDrive struct {
	client     *http.Client
	apiBase    string
	uploadBase string

	mu          sync.Mutex
	folderCache map[[2]string]string

	spacesFolderID string
}

// NewGoogleDrive creates a Google Drive store, ensuring the root and spaces
// folders exist.
func NewGoogleDrive(ctx context.Context, cfg GoogleDriveConfig) (*GoogleDrive, error) {
	client := cfg.HTTPClient
	if client == nil {
		raw := []byte(cfg.Credentials)
		if !strings.Contains(cfg.Credentials, "{") {
			// Looks like a file path, load the key from disk.
			var err error
			raw, err = os.ReadFile(cfg.Credentials)
			if err != nil {
				return nil, fmt.Errorf("gdrive: read credentials file: %w", err)
			}
		}

		jwtCfg, err := google.JWTConfigFromJSON(raw, gdriveScope)
		if err != nil {
			return nil, fmt.Errorf("gdrive: parse credentials: %w", err)
		}
		client = jwtCfg.Client(ctx)
	}

	root := cfg.RootFolder
	if root == "" {
		root = DefaultRootFolder
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = gdriveAPIBase
	}
	uploadBase := cfg.UploadBase
	if uploadBase == "" {
		uploadBase = gdriveUploadBase
	}

	g := &GoogleDrive{
		client:      client,
		apiBase:     apiBase,
		uploadBase:  uploadBase,
		folderCache: make(map[[2]string]string),
	}

	rootID, err := g.findOrCreateFolder(ctx, "root", root)
	if err != nil {
		return nil, err
	}
	g.spacesFolderID, err = g.findOrCreateFolder(ctx, rootID, "spaces")
	if err != nil {
		return nil, err
	}
	return g, nil
}

type driveFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (g *GoogleDrive) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("gdrive: build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gdrive: %s %s: %w", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gdrive: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gdrive: %s: status %d: %s", rawURL, resp.StatusCode, respBody)
	}
	return respBody, nil
}

// escapeQueryValue escapes a value embedded in a Drive search query.
func escapeQueryValue(v string) string {
	return strings.ReplaceAll(v, "'", `\'`)
}

func (g *GoogleDrive) listFiles(ctx context.Context, query string) ([]driveFile, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id,name)")

	body, err := g.do(ctx, http.MethodGet, g.apiBase+"/files?"+params.Encode(), nil, "")
	if err != nil {
		return nil, err
	}

	var result struct {
		Files []driveFile `json:"files"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("gdrive: decode file list: %w", err)
	}
	return result.Files, nil
}

// findFile returns the id of a named child, or "" when absent.
func (g *GoogleDrive) findFile(ctx context.Context, parentID, name string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false",
		escapeQueryValue(name), escapeQueryValue(parentID))
	files, err := g.listFiles(ctx, query)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", nil
	}
	return files[0].ID, nil
}

func (g *GoogleDrive) findOrCreateFolder(ctx context.Context, parentID, name string) (string, error) {
	cacheKey := [2]string{parentID, name}
	g.mu.Lock()
	if id, ok := g.folderCache[cacheKey]; ok {
		g.mu.Unlock()
		return id, nil
	}
	g.mu.Unlock()

	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='%s' and trashed=false",
		escapeQueryValue(name), escapeQueryValue(parentID), gdriveFolderMime)
	files, err := g.listFiles(ctx, query)
	if err != nil {
		return "", err
	}

	var folderID string
	if len(files) > 0 {
		folderID = files[0].ID
	} else {
		payload, err := json.Marshal(map[string]any{
			"name":     name,
			"mimeType": gdriveFolderMime,
			"parents":  []string{parentID},
		})
		if err != nil {
			return "", fmt.Errorf("gdrive: encode folder metadata: %w", err)
		}

		body, err := g.do(ctx, http.MethodPost, g.apiBase+"/files?fields=id", bytes.NewReader(payload), "application/json")
		if err != nil {
			return "", err
		}
		var created driveFile
		if err := json.Unmarshal(body, &created); err != nil {
			return "", fmt.Errorf("gdrive: decode created folder: %w", err)
		}
		folderID = created.ID
	}

	g.mu.Lock()
	g.folderCache[cacheKey] = folderID
	g.mu.Unlock()
	return folderID, nil
}

func (g *GoogleDrive) readFile(ctx context.Context, fileID string) ([]byte, error) {
	return g.do(ctx, http.MethodGet, g.apiBase+"/files/"+fileID+"?alt=media", nil, "")
}

// uploadFile creates or overwrites a named file under a parent folder.
func (g *GoogleDrive) uploadFile(ctx context.Context, parentID, name string, content []byte, contentType string) error {
	existingID, err := g.findFile(ctx, parentID, name)
	if err != nil {
		return err
	}

	if existingID != "" {
		_, err = g.do(ctx, http.MethodPatch,
			g.uploadBase+"/files/"+existingID+"?uploadType=media", bytes.NewReader(content), contentType)
		return err
	}

	// New files need a multipart/related body carrying metadata and media.
	metadata, err := json.Marshal(map[string]any{
		"name":    name,
		"parents": []string{parentID},
	})
	if err != nil {
		return fmt.Errorf("gdrive: encode file metadata: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return fmt.Errorf("gdrive: build multipart body: %w", err)
	}
	if _, err := metaPart.Write(metadata); err != nil {
		return fmt.Errorf("gdrive: build multipart body: %w", err)
	}

	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return fmt.Errorf("gdrive: build multipart body: %w", err)
	}
	if _, err := mediaPart.Write(content); err != nil {
		return fmt.Errorf("gdrive: build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("gdrive: build multipart body: %w", err)
	}

	_, err = g.do(ctx, http.MethodPost,
		g.uploadBase+"/files?uploadType=multipart&fields=id", &buf,
		"multipart/related; boundary="+mw.Boundary())
	return err
}

func (g *GoogleDrive) deleteFile(ctx context.Context, fileID string) error {
	_, err := g.do(ctx, http.MethodDelete, g.apiBase+"/files/"+fileID, nil, "")
	return err
}

// spaceFolderID resolves a space's folder id, or "" when the space is
// absent.
func (g *GoogleDrive) spaceFolderID(ctx context.Context, spaceKey string) (string, error) {
	return g.findFile(ctx, g.spacesFolderID, spaceKey)
}

func (g *GoogleDrive) readSpaceMeta(ctx context.Context, spaceFolderID string) (spaceMeta, bool, error) {
	metaID, err := g.findFile(ctx, spaceFolderID, "_meta.json")
	if err != nil {
		return spaceMeta{}, false, err
	}
	if metaID == "" {
		return spaceMeta{}, false, nil
	}

	raw, err := g.readFile(ctx, metaID)
	if err != nil {
		return spaceMeta{}, false, err
	}
	meta, err := parseSpaceMeta(raw)
	if err != nil {
		return spaceMeta{}, false, err
	}
	return meta, true, nil
}

func (g *GoogleDrive) GetSpace(ctx context.Context, key string) (was.Space, error) {
	folderID, err := g.spaceFolderID(ctx, key)
	if err != nil {
		return was.Space{}, err
	}
	if folderID == "" {
		return was.Space{}, fmt.Errorf("get space %q: %w", key, was.ErrSpaceNotFound)
	}

	meta, found, err := g.readSpaceMeta(ctx, folderID)
	if err != nil {
		return was.Space{}, err
	}
	if !found {
		return was.Space{}, fmt.Errorf("get space %q: %w", key, was.ErrSpaceNotFound)
	}
	return was.Space{Key: key, ID: meta.ID, Controller: meta.Controller}, nil
}

func (g *GoogleDrive) PutSpace(ctx context.Context, key, publicID, controller string) error {
	folderID, err := g.findOrCreateFolder(ctx, g.spacesFolderID, key)
	if err != nil {
		return err
	}

	meta := spaceMeta{ID: publicID, Controller: controller}

	// Updates keep the existing public id; only the controller changes.
	existing, found, err := g.readSpaceMeta(ctx, folderID)
	if err != nil {
		return err
	}
	if found {
		meta.ID = existing.ID
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("gdrive: encode space metadata: %w", err)
	}
	return g.uploadFile(ctx, folderID, "_meta.json", payload, "application/json")
}

func (g *GoogleDrive) DeleteSpace(ctx context.Context, key string) (bool, error) {
	folderID, err := g.spaceFolderID(ctx, key)
	if err != nil {
		return false, err
	}
	if folderID == "" {
		return false, nil
	}

	if err := g.deleteFile(ctx, folderID); err != nil {
		return false, err
	}

	// Evict cache entries under the removed folder.
	g.mu.Lock()
	for cacheKey := range g.folderCache {
		if cacheKey[0] == folderID || cacheKey == [2]string{g.spacesFolderID, key} {
			delete(g.folderCache, cacheKey)
		}
	}
	g.mu.Unlock()
	return true, nil
}

func (g *GoogleDrive) ListSpaces(ctx context.Context, controller string) ([]was.Space, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false",
		escapeQueryValue(g.spacesFolderID), gdriveFolderMime)
	folders, err := g.listFiles(ctx, query)
	if err != nil {
		return nil, err
	}

	result := []was.Space{}
	for _, folder := range folders {
		meta, found, err := g.readSpaceMeta(ctx, folder.ID)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if meta.Controller == controller {
			result = append(result, was.Space{Key: folder.Name, ID: meta.ID, Controller: meta.Controller})
		}
	}
	return result, nil
}

// resourcesFolderID resolves the resources folder of a space, or "" when
// absent.
func (g *GoogleDrive) resourcesFolderID(ctx context.Context, spaceKey string) (string, error) {
	folderID, err := g.spaceFolderID(ctx, spaceKey)
	if err != nil || folderID == "" {
		return "", err
	}
	return g.findFile(ctx, folderID, "resources")
}

func (g *GoogleDrive) GetResource(ctx context.Context, spaceKey, path string) (was.Resource, error) {
	notFound := fmt.Errorf("get resource %q: %w", path, was.ErrResourceNotFound)

	resFolderID, err := g.resourcesFolderID(ctx, spaceKey)
	if err != nil {
		return was.Resource{}, err
	}
	if resFolderID == "" {
		return was.Resource{}, notFound
	}

	dataID, err := g.findFile(ctx, resFolderID, encodeResourceName(path, ".data"))
	if err != nil {
		return was.Resource{}, err
	}
	metaID, err := g.findFile(ctx, resFolderID, encodeResourceName(path, ".meta"))
	if err != nil {
		return was.Resource{}, err
	}
	if dataID == "" || metaID == "" {
		return was.Resource{}, notFound
	}

	content, err := g.readFile(ctx, dataID)
	if err != nil {
		return was.Resource{}, err
	}
	metaRaw, err := g.readFile(ctx, metaID)
	if err != nil {
		return was.Resource{}, err
	}
	contentType, err := parseResourceMeta(metaRaw)
	if err != nil {
		return was.Resource{}, err
	}
	return was.Resource{Content: content, ContentType: contentType}, nil
}

func (g *GoogleDrive) PutResource(ctx context.Context, spaceKey, path string, content []byte, contentType string) error {
	folderID, err := g.spaceFolderID(ctx, spaceKey)
	if err != nil {
		return err
	}
	if folderID == "" {
		return fmt.Errorf("put resource %q: space %q: %w", path, spaceKey, was.ErrSpaceNotFound)
	}

	resFolderID, err := g.findOrCreateFolder(ctx, folderID, "resources")
	if err != nil {
		return err
	}

	if err := g.uploadFile(ctx, resFolderID, encodeResourceName(path, ".data"), content, contentType); err != nil {
		return err
	}

	metaData, err := json.Marshal(resourceMeta{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("gdrive: encode resource metadata: %w", err)
	}
	return g.uploadFile(ctx, resFolderID, encodeResourceName(path, ".meta"), metaData, "application/json")
}

func (g *GoogleDrive) DeleteResource(ctx context.Context, spaceKey, path string) (bool, error) {
	resFolderID, err := g.resourcesFolderID(ctx, spaceKey)
	if err != nil || resFolderID == "" {
		return false, err
	}

	dataID, err := g.findFile(ctx, resFolderID, encodeResourceName(path, ".data"))
	if err != nil {
		return false, err
	}
	if dataID == "" {
		return false, nil
	}

	if err := g.deleteFile(ctx, dataID); err != nil {
		return false, err
	}

	metaID, err := g.findFile(ctx, resFolderID, encodeResourceName(path, ".meta"))
	if err != nil {
		return false, err
	}
	if metaID != "" {
		if err := g.deleteFile(ctx, metaID); err != nil {
			return false, err
		}
	}
	return true, nil
}
