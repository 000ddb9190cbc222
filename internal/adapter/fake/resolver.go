package fake

import (
	"context"
	"errors"
	"sync"

	composetypes "github.com/compose-spec/compose-go/v2/types"
)

// Resolver serves canned projects keyed by compose file path.
type Resolver struct {
	CallRecorder

	mu       sync.Mutex
	projects map[string]*composetypes.Project
	errs     map[string]error
}

func NewResolver() *Resolver {
	return &Resolver{
		projects: make(map[string]*composetypes.Project),
		errs:     make(map[string]error),
	}
}

// SetProject registers the project returned for path.
func (r *Resolver) SetProject(path string, project *composetypes.Project) {
	r.mu.Lock()
	r.projects[path] = project
	delete(r.errs, path)
	r.mu.Unlock()
}

// SetError makes Resolve fail for path.
func (r *Resolver) SetError(path string, err error) {
	r.mu.Lock()
	r.errs[path] = err
	r.mu.Unlock()
}

func (r *Resolver) Resolve(_ context.Context, path string) (*composetypes.Project, error) {
	r.record("Resolve", path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[path]; ok {
		return nil, err
	}
	project, ok := r.projects[path]
	if !ok {
		return nil, errors.New("fake resolver: no project for " + path)
	}
	return project, nil
}
