// Package compose discovers compose files in a repository checkout, decides
// which of them target the current host, and resolves them into service
// declarations.
package compose

import (
	"context"
	"io/fs"
	"path/filepath"
	"slices"
)

// DefaultFileNames are the compose file names treated as deployment units.
var DefaultFileNames = []string{"docker-compose.yml", "docker-compose.yaml"}

// Discover walks root recursively and returns the paths, relative to root, of
// every file whose name is one of fileNames. Any walk error fails the whole
// discovery.
func Discover(ctx context.Context, root string, fileNames []string) ([]string, error) {
	if len(fileNames) == 0 {
		fileNames = DefaultFileNames
	}

	var units []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !slices.Contains(fileNames, d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		units = append(units, rel)
		return nil
	})
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	return units, nil
}
