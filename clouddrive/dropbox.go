package clouddrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/wallet-storage/was"
)

const (
	dropboxAPIBase     = "https://api.dropboxapi.com"
	dropboxContentBase = "https://content.dropboxapi.com"
	dropboxTokenURL    = "https://api.dropboxapi.com/oauth2/token"
)

// DropboxConfig configures a Dropbox store. Either AccessToken or
// RefreshToken plus AppKey must be set. HTTPClient and the base URLs exist
// for tests; leave them zero in production.
type DropboxConfig struct {
	AccessToken  string
	RefreshToken string
	AppKey       string
	AppSecret    string
	RootFolder   string

	HTTPClient  *http.Client
	APIBase     string
	ContentBase string
}

// Dropbox is a storage backend over the Dropbox HTTP API v2.
type Dropbox struct {
	client      *http.Client
	apiBase     string
	contentBase string
	root        string
}

// NewDropbox creates a Dropbox store. With a refresh token configured the
// access token renews automatically.
func NewDropbox(ctx context.Context, cfg DropboxConfig) (*Dropbox, error) {
	client := cfg.HTTPClient
	if client == nil {
		switch {
		case cfg.RefreshToken != "" && cfg.AppKey != "":
			oauthCfg := &oauth2.Config{
				ClientID:     cfg.AppKey,
				ClientSecret: cfg.AppSecret,
				Endpoint:     oauth2.Endpoint{TokenURL: dropboxTokenURL},
			}
			client = oauthCfg.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		case cfg.AccessToken != "":
			client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}))
		default:
			return nil, errors.New("dropbox: either AccessToken or RefreshToken+AppKey must be set")
		}
	}

	root := cfg.RootFolder
	if root == "" {
		root = DefaultRootFolder
	}
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = dropboxAPIBase
	}
	contentBase := cfg.ContentBase
	if contentBase == "" {
		contentBase = dropboxContentBase
	}

	return &Dropbox{
		client:      client,
		apiBase:     apiBase,
		contentBase: contentBase,
		root:        "/" + root,
	}, nil
}

func (d *Dropbox) spaceDir(spaceKey string) string {
	return fmt.Sprintf("%s/spaces/%s", d.root, spaceKey)
}

func (d *Dropbox) metaPath(spaceKey string) string {
	return d.spaceDir(spaceKey) + "/_meta.json"
}

func (d *Dropbox) resourcePath(spaceKey, path, suffix string) string {
	return fmt.Sprintf("%s/resources/%s", d.spaceDir(spaceKey), encodeResourceName(path, suffix))
}

// errDropboxNotFound marks a path lookup miss derived from an API error body.
var errDropboxNotFound = errors.New("dropbox: path not found")

// apiCall posts a JSON body to an RPC endpoint and returns the response
// body. A 409 whose error summary mentions not_found maps to
// errDropboxNotFound.
func (d *Dropbox) apiCall(ctx context.Context, endpoint string, request any) ([]byte, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("dropbox: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.apiBase+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("dropbox: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox: %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dropbox: read response: %w", err)
	}

	if resp.StatusCode == http.StatusConflict && strings.Contains(string(body), "not_found") {
		return nil, errDropboxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dropbox: %s: status %d: %s", endpoint, resp.StatusCode, body)
	}
	return body, nil
}

// download fetches file content, or errDropboxNotFound.
func (d *Dropbox) download(ctx context.Context, path string) ([]byte, error) {
	arg, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return nil, fmt.Errorf("dropbox: encode arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.contentBase+"/2/files/download", nil)
	if err != nil {
		return nil, fmt.Errorf("dropbox: build request: %w", err)
	}
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox: download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dropbox: read content: %w", err)
	}

	if resp.StatusCode == http.StatusConflict && strings.Contains(string(body), "not_found") {
		return nil, errDropboxNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("dropbox: download: status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

// upload writes file content, overwriting any existing file.
func (d *Dropbox) upload(ctx context.Context, path string, data []byte) error {
	arg, err := json.Marshal(map[string]any{"path": path, "mode": "overwrite"})
	if err != nil {
		return fmt.Errorf("dropbox: encode arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.contentBase+"/2/files/upload", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("dropbox: build request: %w", err)
	}
	req.Header.Set("Dropbox-API-Arg", string(arg))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dropbox: upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("dropbox: upload: status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// remove deletes a file or folder, reporting whether it existed.
func (d *Dropbox) remove(ctx context.Context, path string) (bool, error) {
	_, err := d.apiCall(ctx, "/2/files/delete_v2", map[string]string{"path": path})
	if err != nil {
		if errors.Is(err, errDropboxNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Dropbox) exists(ctx context.Context, path string) (bool, error) {
	_, err := d.apiCall(ctx, "/2/files/get_metadata", map[string]string{"path": path})
	if err != nil {
		if errors.Is(err, errDropboxNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Dropbox) GetSpace(ctx context.Context, key string) (was.Space, error) {
	data, err := d.download(ctx, d.metaPath(key))
	if err != nil {
		if errors.Is(err, errDropboxNotFound) {
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

func (d *Dropbox) PutSpace(ctx context.Context, key, publicID, controller string) error {
	meta := spaceMeta{ID: publicID, Controller: controller}

	// Updates keep the existing public id; only the controller changes.
	if data, err := d.download(ctx, d.metaPath(key)); err == nil {
		existing, err := parseSpaceMeta(data)
		if err != nil {
			return err
		}
		meta.ID = existing.ID
	} else if !errors.Is(err, errDropboxNotFound) {
		return err
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("dropbox: encode space metadata: %w", err)
	}
	return d.upload(ctx, d.metaPath(key), payload)
}

func (d *Dropbox) DeleteSpace(ctx context.Context, key string) (bool, error) {
	// Deleting the folder removes the metadata and all resources at once.
	return d.remove(ctx, d.spaceDir(key))
}

func (d *Dropbox) ListSpaces(ctx context.Context, controller string) ([]was.Space, error) {
	type listEntry struct {
		Tag  string `json:".tag"`
		Name string `json:"name"`
	}
	type listResponse struct {
		Entries []listEntry `json:"entries"`
		Cursor  string      `json:"cursor"`
		HasMore bool        `json:"has_more"`
	}

	body, err := d.apiCall(ctx, "/2/files/list_folder", map[string]string{"path": d.root + "/spaces"})
	if err != nil {
		if errors.Is(err, errDropboxNotFound) {
			return []was.Space{}, nil
		}
		return nil, err
	}

	var page listResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("dropbox: decode list response: %w", err)
	}

	entries := page.Entries
	for page.HasMore {
		body, err := d.apiCall(ctx, "/2/files/list_folder/continue", map[string]string{"cursor": page.Cursor})
		if err != nil {
			return nil, err
		}
		page = listResponse{}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("dropbox: decode list response: %w", err)
		}
		entries = append(entries, page.Entries...)
	}

	result := []was.Space{}
	for _, entry := range entries {
		if entry.Tag != "folder" {
			continue
		}

		data, err := d.download(ctx, d.metaPath(entry.Name))
		if err != nil {
			if errors.Is(err, errDropboxNotFound) {
				continue
			}
			return nil, err
		}
		meta, err := parseSpaceMeta(data)
		if err != nil {
			return nil, err
		}

		if meta.Controller == controller {
			result = append(result, was.Space{Key: entry.Name, ID: meta.ID, Controller: meta.Controller})
		}
	}
	return result, nil
}

func (d *Dropbox) GetResource(ctx context.Context, spaceKey, path string) (was.Resource, error) {
	content, err := d.download(ctx, d.resourcePath(spaceKey, path, ".data"))
	if err != nil {
		if errors.Is(err, errDropboxNotFound) {
			return was.Resource{}, fmt.Errorf("get resource %q: %w", path, was.ErrResourceNotFound)
		}
		return was.Resource{}, err
	}

	metaData, err := d.download(ctx, d.resourcePath(spaceKey, path, ".meta"))
	if err != nil {
		if errors.Is(err, errDropboxNotFound) {
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

func (d *Dropbox) PutResource(ctx context.Context, spaceKey, path string, content []byte, contentType string) error {
	ok, err := d.exists(ctx, d.metaPath(spaceKey))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("put resource %q: space %q: %w", path, spaceKey, was.ErrSpaceNotFound)
	}

	if err := d.upload(ctx, d.resourcePath(spaceKey, path, ".data"), content); err != nil {
		return err
	}

	metaData, err := json.Marshal(resourceMeta{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("dropbox: encode resource metadata: %w", err)
	}
	return d.upload(ctx, d.resourcePath(spaceKey, path, ".meta"), metaData)
}

func (d *Dropbox) DeleteResource(ctx context.Context, spaceKey, path string) (bool, error) {
	found, err := d.remove(ctx, d.resourcePath(spaceKey, path, ".data"))
	if err != nil || !found {
		return false, err
	}
	if _, err := d.remove(ctx, d.resourcePath(spaceKey, path, ".meta")); err != nil {
		return false, err
	}
	return true, nil
}
