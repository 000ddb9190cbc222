package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"driftwatch/pkg/sdk/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "driftwatch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListRestarts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	err := store.RecordRestarts(ctx, "nas", []types.RestartTiming{
		{Unit: "web/docker-compose.yml", Pull: 1500 * time.Millisecond, Restart: 3 * time.Second},
		{Unit: "db/docker-compose.yml", Pull: time.Second, Error: "exit code 1"},
	}, at)
	if err != nil {
		t.Fatalf("RecordRestarts: %v", err)
	}

	got, err := store.ListRestarts(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListRestarts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRestarts returned %d records, want 2", len(got))
	}
	if got[0].Unit != "db/docker-compose.yml" {
		t.Errorf("newest Unit: got %q, want %q", got[0].Unit, "db/docker-compose.yml")
	}
	if got[0].Error != "exit code 1" {
		t.Errorf("Error: got %q, want %q", got[0].Error, "exit code 1")
	}
	web := got[1]
	if web.Pull != 1500*time.Millisecond || web.Restart != 3*time.Second {
		t.Errorf("durations: got pull=%s restart=%s", web.Pull, web.Restart)
	}
	if web.Host != "nas" {
		t.Errorf("Host: got %q, want nas", web.Host)
	}
	if !web.CreatedAt.Equal(at) {
		t.Errorf("CreatedAt: got %v, want %v", web.CreatedAt, at)
	}
}

func TestListRestartsFiltersByUnit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i := range 3 {
		if err := store.RecordRestarts(ctx, "nas", []types.RestartTiming{
			{Unit: "web/docker-compose.yml", Pull: time.Duration(i) * time.Second},
			{Unit: "db/docker-compose.yml"},
		}, time.Now()); err != nil {
			t.Fatalf("RecordRestarts: %v", err)
		}
	}

	got, err := store.ListRestarts(ctx, "web/docker-compose.yml", 2)
	if err != nil {
		t.Fatalf("ListRestarts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListRestarts returned %d records, want 2", len(got))
	}
	for _, rec := range got {
		if rec.Unit != "web/docker-compose.yml" {
			t.Errorf("Unit: got %q, want web/docker-compose.yml", rec.Unit)
		}
	}
	if got[0].Pull != 2*time.Second {
		t.Errorf("newest Pull: got %s, want 2s", got[0].Pull)
	}
}

func TestRecordRestartsEmptyBatch(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordRestarts(context.Background(), "nas", nil, time.Now()); err != nil {
		t.Fatalf("RecordRestarts: %v", err)
	}
	got, err := store.ListRestarts(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("ListRestarts: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListRestarts returned %d records, want 0", len(got))
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("Open(\" \") error = nil, want error")
	}
}
