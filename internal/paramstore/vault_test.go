package paramstore_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws-solutions-library-samples/guidance-for-no-code-multi-agent-ai-orchestration-on-aws-sub000/internal/paramstore"
)

// fakeVault serves the slice of the KVv2 HTTP API the backend uses.
type fakeVault struct {
	mu      sync.Mutex
	secrets map[string]map[string]any
	token   string
}

func (f *fakeVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Vault-Token") != f.token {
		http.Error(w, `{"errors":["permission denied"]}`, http.StatusForbidden)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	rest := strings.TrimPrefix(r.URL.Path, "/v1/secret/")
	switch {
	case strings.HasPrefix(rest, "data/"):
		key := strings.TrimPrefix(rest, "data/")
		switch r.Method {
		case http.MethodPut, http.MethodPost:
			var body struct {
				Data map[string]any `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, `{"errors":["bad body"]}`, http.StatusBadRequest)
				return
			}
			f.secrets[key] = body.Data
			writeVaultJSON(w, map[string]any{"data": vaultMetadata()})
		case http.MethodGet:
			data, ok := f.secrets[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errors":[]}`))
				return
			}
			writeVaultJSON(w, map[string]any{"data": map[string]any{"data": data, "metadata": vaultMetadata()}})
		}
	case strings.HasPrefix(rest, "metadata"):
		dir := strings.Trim(strings.TrimPrefix(rest, "metadata"), "/")
		if r.Method == http.MethodDelete {
			delete(f.secrets, dir)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		keys := f.children(dir)
		if len(keys) == 0 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		writeVaultJSON(w, map[string]any{"data": map[string]any{"keys": keys}})
	default:
		http.NotFound(w, r)
	}
}

// children lists the immediate entries below dir, directories with a
// trailing slash.
func (f *fakeVault) children(dir string) []any {
	seen := map[string]bool{}
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	for key := range f.secrets {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.TrimPrefix(key, prefix)
		if i := strings.Index(name, "/"); i >= 0 {
			name = name[:i+1]
		}
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}

func vaultMetadata() map[string]any {
	return map[string]any{
		"created_time":  "2024-05-01T10:00:00Z",
		"deletion_time": "",
		"destroyed":     false,
		"version":       1,
	}
}

func writeVaultJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newVaultStore(t *testing.T) *paramstore.Store {
	t.Helper()
	fake := &fakeVault{secrets: map[string]map[string]any{}, token: "root"}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b, err := paramstore.NewVaultBackend(paramstore.VaultConfig{Address: srv.URL, Token: "root"})
	if err != nil {
		t.Fatalf("NewVaultBackend() error = %v", err)
	}
	return paramstore.New(b, paramstore.WithRetry(0, time.Millisecond))
}

func TestVaultBackend_PutGetDelete(t *testing.T) {
	s := newVaultStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "/agent/qa/config", `{"agent_name":"qa"}`); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, found, err := s.Get(ctx, "/agent/qa/config")
	if err != nil || !found {
		t.Fatalf("Get() = %q, %v, %v", got, found, err)
	}
	if got != `{"agent_name":"qa"}` {
		t.Errorf("Get() = %q", got)
	}

	_, found, err = s.Get(ctx, "/agent/qa/missing")
	if err != nil || found {
		t.Errorf("Get(missing) = %v, %v; want false, nil", found, err)
	}

	deleted, err := s.Delete(ctx, "/agent/qa/config")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v; want true, nil", deleted, err)
	}
	deleted, err = s.Delete(ctx, "/agent/qa/config")
	if err != nil || deleted {
		t.Errorf("second Delete() = %v, %v; want false, nil", deleted, err)
	}
}

func TestVaultBackend_ListWalksSubtree(t *testing.T) {
	s := newVaultStore(t)
	ctx := context.Background()

	for _, p := range []string{
		"/agent/qa/config",
		"/agent/qa/system-prompts/index",
		"/agent/qa/system-prompts/default",
		"/agent/qa_other/config",
		"/prompts/index",
	} {
		if err := s.Put(ctx, p, "v"); err != nil {
			t.Fatalf("Put(%s) error = %v", p, err)
		}
	}

	got, err := s.ListByPrefix(ctx, "/agent/qa/")
	if err != nil {
		t.Fatalf("ListByPrefix() error = %v", err)
	}
	var paths []string
	for _, md := range got {
		paths = append(paths, md.Path)
	}
	want := []string{
		"/agent/qa/config",
		"/agent/qa/system-prompts/default",
		"/agent/qa/system-prompts/index",
	}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("ListByPrefix() = %v, want %v", paths, want)
	}

	none, err := s.ListByPrefix(ctx, "/nothing/")
	if err != nil || len(none) != 0 {
		t.Errorf("ListByPrefix(empty) = %v, %v", none, err)
	}
}
