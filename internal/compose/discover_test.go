package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "web", "docker-compose.yml"), "services: {}\n")
	writeFile(t, filepath.Join(root, "db", "docker-compose.yaml"), "services: {}\n")
	writeFile(t, filepath.Join(root, "nested", "deep", "docker-compose.yml"), "services: {}\n")
	writeFile(t, filepath.Join(root, "other", "compose.yml"), "services: {}\n")
	writeFile(t, filepath.Join(root, "README.md"), "hello\n")

	got, err := Discover(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	slices.Sort(got)
	want := []string{
		filepath.Join("db", "docker-compose.yaml"),
		filepath.Join("nested", "deep", "docker-compose.yml"),
		filepath.Join("web", "docker-compose.yml"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Discover() = %v, want %v", got, want)
	}
}

func TestDiscoverCustomFileNames(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "compose.yml"), "services: {}\n")
	writeFile(t, filepath.Join(root, "b", "docker-compose.yml"), "services: {}\n")

	got, err := Discover(context.Background(), root, []string{"compose.yml"})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	want := []string{filepath.Join("a", "compose.yml")}
	if !slices.Equal(got, want) {
		t.Fatalf("Discover() = %v, want %v", got, want)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")

	got, err := Discover(context.Background(), root, nil)
	if err == nil {
		t.Fatalf("Discover() error = nil, want DiscoveryError")
	}
	var discoveryErr *DiscoveryError
	if !errors.As(err, &discoveryErr) {
		t.Fatalf("Discover() error = %T, want *DiscoveryError", err)
	}
	if discoveryErr.Root != root {
		t.Fatalf("DiscoveryError.Root = %q, want %q", discoveryErr.Root, root)
	}
	if got != nil {
		t.Fatalf("Discover() = %v, want nil on error", got)
	}
}

func TestDiscoverUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok", "docker-compose.yml"), "services: {}\n")
	locked := filepath.Join(root, "locked")
	if err := os.Mkdir(locked, 0o000); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	got, err := Discover(context.Background(), root, nil)
	var discoveryErr *DiscoveryError
	if !errors.As(err, &discoveryErr) {
		t.Fatalf("Discover() error = %v, want *DiscoveryError", err)
	}
	if got != nil {
		t.Fatalf("Discover() = %v, want no partial list", got)
	}
}

func TestDiscoverCanceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "web", "docker-compose.yml"), "services: {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, root, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Discover() error = %v, want context.Canceled", err)
	}
}
