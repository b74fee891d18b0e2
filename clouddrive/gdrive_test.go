package clouddrive_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wallet-storage/was"
	"github.com/wallet-storage/was/clouddrive"
	"github.com/wallet-storage/was/storetest"
)

type fakeDriveItem struct {
	name   string
	parent string
	mime   string
	data   []byte
}

// fakeDrive emulates the subset of the Google Drive v3 API the store uses:
// file search by query, folder and multipart file creation, media update and
// download, and recursive delete.
type fakeDrive struct {
	mu     sync.Mutex
	nextID int
	items  map[string]*fakeDriveItem
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{items: make(map[string]*fakeDriveItem)}
}

var (
	queryNameRe   = regexp.MustCompile(`name='((?:[^'\\]|\\.)*)'`)
	queryParentRe = regexp.MustCompile(`'((?:[^'\\]|\\.)*)' in parents`)
	queryMimeRe   = regexp.MustCompile(`mimeType='([^']*)'`)
)

func unescapeQuery(v string) string {
	return strings.ReplaceAll(v, `\'`, "'")
}

func (f *fakeDrive) newID() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeDrive) list(w http.ResponseWriter, query string) {
	var wantName, wantParent, wantMime string
	if m := queryNameRe.FindStringSubmatch(query); m != nil {
		wantName = unescapeQuery(m[1])
	}
	if m := queryParentRe.FindStringSubmatch(query); m != nil {
		wantParent = unescapeQuery(m[1])
	}
	if m := queryMimeRe.FindStringSubmatch(query); m != nil {
		wantMime = m[1]
	}

	type file struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	files := []file{}
	for id, item := range f.items {
		if wantName != "" && item.name != wantName {
			continue
		}
		if wantParent != "" && item.parent != wantParent {
			continue
		}
		if wantMime != "" && item.mime != wantMime {
			continue
		}
		files = append(files, file{ID: id, Name: item.name})
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"files": files})
}

func (f *fakeDrive) deleteRecursive(id string) {
	delete(f.items, id)
	for childID, item := range f.items {
		if item.parent == id {
			f.deleteRecursive(childID)
		}
	}
}

func (f *fakeDrive) createMultipart(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mr := multipart.NewReader(r.Body, params["boundary"])

	metaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var meta struct {
		Name    string   `json:"name"`
		Parents []string `json:"parents"`
	}
	if err := json.NewDecoder(metaPart).Decode(&meta); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mediaPart, err := mr.NextPart()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, _ := io.ReadAll(mediaPart)

	parent := ""
	if len(meta.Parents) > 0 {
		parent = meta.Parents[0]
	}
	id := f.newID()
	f.items[id] = &fakeDriveItem{
		name:   meta.Name,
		parent: parent,
		mime:   mediaPart.Header.Get("Content-Type"),
		data:   data,
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/files" && r.Method == http.MethodGet:
		f.list(w, r.URL.Query().Get("q"))

	case r.URL.Path == "/files" && r.Method == http.MethodPost:
		if r.URL.Query().Get("uploadType") == "multipart" {
			f.createMultipart(w, r)
			return
		}

		// Folder creation carries plain JSON metadata.
		var meta struct {
			Name     string   `json:"name"`
			MimeType string   `json:"mimeType"`
			Parents  []string `json:"parents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		parent := ""
		if len(meta.Parents) > 0 {
			parent = meta.Parents[0]
		}
		id := f.newID()
		f.items[id] = &fakeDriveItem{name: meta.Name, parent: parent, mime: meta.MimeType}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})

	case strings.HasPrefix(r.URL.Path, "/files/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		item, ok := f.items[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write(item.data)

	case strings.HasPrefix(r.URL.Path, "/files/") && r.Method == http.MethodPatch:
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		item, ok := f.items[id]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		data, _ := io.ReadAll(r.Body)
		item.data = data
		item.mime = r.Header.Get("Content-Type")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id})

	case strings.HasPrefix(r.URL.Path, "/files/") && r.Method == http.MethodDelete:
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		if _, ok := f.items[id]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		f.deleteRecursive(id)
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "unexpected request", http.StatusNotImplemented)
	}
}

func newGoogleDriveStore(t *testing.T) *clouddrive.GoogleDrive {
	t.Helper()

	srv := httptest.NewServer(newFakeDrive())
	t.Cleanup(srv.Close)

	store, err := clouddrive.NewGoogleDrive(context.Background(), clouddrive.GoogleDriveConfig{
		HTTPClient: srv.Client(),
		APIBase:    srv.URL,
		UploadBase: srv.URL,
	})
	require.NoError(t, err)
	return store
}

func TestGoogleDriveContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) was.Store {
		return newGoogleDriveStore(t)
	})
}

func TestGoogleDriveInvalidCredentials(t *testing.T) {
	_, err := clouddrive.NewGoogleDrive(context.Background(), clouddrive.GoogleDriveConfig{
		Credentials: `{"type": "not-a-service-account"}`,
	})
	require.Error(t, err)
}
