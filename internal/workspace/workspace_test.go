package workspace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/vaultfm/vaultfm/internal/config"
	"github.com/vaultfm/vaultfm/internal/events"
	"github.com/vaultfm/vaultfm/internal/logging"
)

func record(id, name string, parent *string, folder bool) map[string]interface{} {
	return map[string]interface{}{
		"id":         id,
		"filename":   name,
		"is_folder":  folder,
		"parent_id":  parent,
		"created_at": "2024-01-02T03:04:05Z",
	}
}

func newTestWorkspace(t *testing.T, h http.HandlerFunc) *Workspace {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.New()
	cfg.ServerURL = srv.URL
	cfg.Token = "test-token"

	w, err := New(cfg, Options{
		Logger:    logging.NewNopLogger(),
		EventBus:  events.NewEventBus(100),
		PrefsPath: filepath.Join(t.TempDir(), "prefs.json"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.Client.SetRetryPolicy(0, time.Millisecond, time.Millisecond)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestNewRejectsBadURL(t *testing.T) {
	cfg := config.New()
	cfg.ServerURL = "not a url"
	if _, err := New(cfg, Options{PrefsPath: filepath.Join(t.TempDir(), "p.json")}); err == nil {
		t.Error("expected error for invalid server url")
	}
}

func TestOpenSortsVisibleChildren(t *testing.T) {
	d1 := "d1"
	w := newTestWorkspace(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/d1/path":
			_ = json.NewEncoder(w).Encode([]interface{}{record("d1", "docs", nil, true)})
		case "/files":
			if r.URL.Query().Get("parent_id") != "d1" {
				t.Errorf("parent_id = %q, want d1", r.URL.Query().Get("parent_id"))
			}
			_ = json.NewEncoder(w).Encode([]interface{}{
				record("f2", "b.txt", &d1, false),
				record("f1", "A.txt", &d1, false),
				record("s1", "zeta", &d1, true),
			})
		default:
			http.NotFound(w, r)
		}
	})

	nodes, err := w.Open(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	want := []string{"zeta", "A.txt", "b.txt"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}

	if w.Selection.CurrentFolder() != "d1" {
		t.Errorf("CurrentFolder() = %q, want d1", w.Selection.CurrentFolder())
	}
	crumbs := w.Breadcrumbs()
	if len(crumbs) != 2 || crumbs[0].ID != "0" || crumbs[1].Name != "docs" {
		t.Errorf("Breadcrumbs() = %+v", crumbs)
	}
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	w := newTestWorkspace(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	ch := w.Events.Subscribe(events.EventSessionInvalidated)

	if _, err := w.Open(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}

	select {
	case ev := <-ch:
		if e, ok := ev.(*events.SessionInvalidatedEvent); !ok || e.Path != "/files" {
			t.Errorf("event = %#v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no session invalidated event")
	}
}

func TestShareListRefresh(t *testing.T) {
	w := newTestWorkspace(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shares" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[
			{"id":"s1","user_file_id":"f1","share_token":"tok","share_type":"public","permission":"view",
			 "expires_at":"2030-01-01T00:00:00Z","created_at":"2024-01-01T00:00:00Z"}
		]`))
	})

	if _, loaded := w.Shares.Shares(); loaded {
		t.Error("share list loaded before refresh")
	}
	if err := w.Shares.RefreshShares(context.Background()); err != nil {
		t.Fatalf("RefreshShares() error = %v", err)
	}
	if got := w.Shares.ForFile("f1"); len(got) != 1 || got[0].ShareToken != "tok" {
		t.Errorf("ForFile(f1) = %+v", got)
	}
	if got := w.Shares.ForFile("other"); len(got) != 0 {
		t.Errorf("ForFile(other) = %+v", got)
	}
}
