package clouddrive_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wallet-storage/was"
	"github.com/wallet-storage/was/clouddrive"
	"github.com/wallet-storage/was/storetest"
)

// fakeGraph emulates the subset of the Microsoft Graph drive API the store
// uses. Items are addressed as /me/drive/root:/{path}: with an optional
// /content or /children suffix.
type fakeGraph struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{files: make(map[string][]byte)}
}

func (f *fakeGraph) folderExists(path string) bool {
	for name := range f.files {
		if strings.HasPrefix(name, path+"/") {
			return true
		}
	}
	return false
}

// parseItem extracts the item path and trailing action ("content",
// "children", or "") from a request path.
func parseItem(requestPath string) (item, action string, ok bool) {
	rest, ok := strings.CutPrefix(requestPath, "/me/drive/root:/")
	if !ok {
		return "", "", false
	}
	switch {
	case strings.HasSuffix(rest, ":/content"):
		return strings.TrimSuffix(rest, ":/content"), "content", true
	case strings.HasSuffix(rest, ":/children"):
		return strings.TrimSuffix(rest, ":/children"), "children", true
	case strings.HasSuffix(rest, ":"):
		return strings.TrimSuffix(rest, ":"), "", true
	}
	return "", "", false
}

func (f *fakeGraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, action, ok := parseItem(r.URL.Path)
	if !ok {
		http.Error(w, "unexpected path "+r.URL.Path, http.StatusNotImplemented)
		return
	}

	switch {
	case action == "content" && r.Method == http.MethodGet:
		data, ok := f.files[item]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)

	case action == "content" && r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.files[item] = data
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))

	case action == "" && r.Method == http.MethodDelete:
		if _, ok := f.files[item]; ok {
			delete(f.files, item)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		deleted := false
		for name := range f.files {
			if strings.HasPrefix(name, item+"/") {
				delete(f.files, name)
				deleted = true
			}
		}
		if !deleted {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case action == "children" && r.Method == http.MethodGet:
		if !f.folderExists(item) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		type childItem struct {
			Name   string         `json:"name"`
			Folder map[string]any `json:"folder,omitempty"`
		}
		children := map[string]childItem{}
		for name := range f.files {
			rest, ok := strings.CutPrefix(name, item+"/")
			if !ok {
				continue
			}
			if i := strings.Index(rest, "/"); i >= 0 {
				children[rest[:i]] = childItem{Name: rest[:i], Folder: map[string]any{}}
			} else {
				children[rest] = childItem{Name: rest}
			}
		}

		value := make([]childItem, 0, len(children))
		for _, c := range children {
			value = append(value, c)
		}
		sort.Slice(value, func(i, j int) bool { return value[i].Name < value[j].Name })

		_ = json.NewEncoder(w).Encode(map[string]any{"value": value})

	default:
		http.Error(w, "unexpected request", http.StatusNotImplemented)
	}
}

func newOneDriveStore(t *testing.T) *clouddrive.OneDrive {
	t.Helper()

	srv := httptest.NewServer(newFakeGraph())
	t.Cleanup(srv.Close)

	store, err := clouddrive.NewOneDrive(context.Background(), clouddrive.OneDriveConfig{
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)
	return store
}

func TestOneDriveContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) was.Store {
		return newOneDriveStore(t)
	})
}

func TestOneDriveRequiresCredentials(t *testing.T) {
	_, err := clouddrive.NewOneDrive(context.Background(), clouddrive.OneDriveConfig{})
	require.Error(t, err)
}
