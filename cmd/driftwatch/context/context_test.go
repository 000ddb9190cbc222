package contextcmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"driftwatch/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
	"github.com/muesli/termenv"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestEditSavesOnlyOnSuccess(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := edit(func(c *config.Contexts) error {
		return c.Put("nas", config.Context{Server: "http://nas:8080"})
	}); err != nil {
		t.Fatalf("edit() error = %v", err)
	}
	boom := errors.New("boom")
	if _, err := edit(func(c *config.Contexts) error {
		_ = c.Put("pi", config.Context{Server: "http://pi:8080"})
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("edit() error = %v, want boom", err)
	}

	contexts, err := config.LoadContexts()
	if err != nil {
		t.Fatalf("LoadContexts() error = %v", err)
	}
	if diff := cmp.Diff([]string{"nas"}, contexts.Names()); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestProbe(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("OK\n"))
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()

	contexts := &config.Contexts{Daemons: map[string]config.Context{
		"down": {Server: down.URL},
		"up":   {Server: up.URL},
	}}
	got := probe(context.Background(), contexts, contexts.Names())
	if diff := cmp.Diff([]string{"unreachable", "ok"}, got); diff != "" {
		t.Fatalf("probe() mismatch (-want +got):\n%s", diff)
	}
}
