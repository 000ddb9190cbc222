package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"driftwatch/internal/shell"

	"github.com/compose-spec/compose-go/v2/loader"
	composetypes "github.com/compose-spec/compose-go/v2/types"
	"github.com/joho/godotenv"
)

// Resolver materializes the full configuration of one compose file.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*composetypes.Project, error)
}

// LoaderResolver resolves compose files in-process with compose-go. The
// unit directory's .env file and the process environment are used for
// interpolation, the process environment taking precedence.
type LoaderResolver struct {
	// Environ returns the process environment. Defaults to os.Environ.
	Environ func() []string
}

var _ Resolver = LoaderResolver{}

func (r LoaderResolver) Resolve(ctx context.Context, path string) (*composetypes.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ResolutionError{Path: path, Err: err}
	}
	dir := filepath.Dir(path)

	env, err := r.environment(dir)
	if err != nil {
		return nil, &ResolutionError{Path: path, Err: err}
	}
	project, err := load(ctx, dir, path, data, env, false)
	if err != nil {
		return nil, &ResolutionError{Path: path, Err: err}
	}
	return project, nil
}

func (r LoaderResolver) environment(dir string) (composetypes.Mapping, error) {
	env := composetypes.Mapping{}
	dotenv, err := godotenv.Read(filepath.Join(dir, ".env"))
	switch {
	case err == nil:
		for k, v := range dotenv {
			env[k] = v
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read .env: %w", err)
	}

	environ := r.Environ
	if environ == nil {
		environ = os.Environ
	}
	for k, v := range composetypes.NewMapping(environ()) {
		env[k] = v
	}
	return env, nil
}

// CLIResolver resolves compose files with `docker compose config`, so the
// result matches what the compose CLI would deploy, plugins and all.
type CLIResolver struct {
	Runner shell.Runner
}

var _ Resolver = CLIResolver{}

func (r CLIResolver) Resolve(ctx context.Context, path string) (*composetypes.Project, error) {
	dir := filepath.Dir(path)
	stdout, _, err := r.Runner.Run(ctx, dir, "docker", "compose", "-f", filepath.Base(path), "config", "--format", "json")
	if err != nil {
		return nil, &ResolutionError{Path: path, Err: err}
	}
	// The CLI output is already interpolated.
	project, err := load(ctx, dir, path, []byte(stdout), composetypes.Mapping{}, true)
	if err != nil {
		return nil, &ResolutionError{Path: path, Err: err}
	}
	return project, nil
}

func load(ctx context.Context, dir, filename string, data []byte, env composetypes.Mapping, interpolated bool) (*composetypes.Project, error) {
	details := composetypes.ConfigDetails{
		WorkingDir: dir,
		ConfigFiles: []composetypes.ConfigFile{
			{Filename: filename, Content: data},
		},
		Environment: env,
	}

	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SetProjectName(loader.NormalizeProjectName(filepath.Base(dir)), false)
		o.ResolvePaths = true
		o.SkipInterpolation = interpolated
	})
	if err != nil {
		return nil, fmt.Errorf("parse compose file: %w", err)
	}
	return project, nil
}
