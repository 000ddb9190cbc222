package fake

import (
	"context"
	"sync"

	"driftwatch/internal/docker"
	"driftwatch/internal/drift"
)

// Inspector serves canned runtime descriptors keyed by container name.
// Unknown containers fail with a not-found *docker.InspectionError.
type Inspector struct {
	CallRecorder

	mu          sync.Mutex
	descriptors map[string]*drift.RuntimeDescriptor
	errs        map[string]error

	// InspectFunc, when set, runs before the canned lookup. A non-nil error
	// is returned as is.
	InspectFunc func(ctx context.Context, name string) error
}

func NewInspector() *Inspector {
	return &Inspector{
		descriptors: make(map[string]*drift.RuntimeDescriptor),
		errs:        make(map[string]error),
	}
}

// SetContainer registers the descriptor returned for name.
func (i *Inspector) SetContainer(name string, desc *drift.RuntimeDescriptor) {
	i.mu.Lock()
	i.descriptors[name] = desc
	delete(i.errs, name)
	i.mu.Unlock()
}

// SetError makes Inspect fail for name.
func (i *Inspector) SetError(name string, err error) {
	i.mu.Lock()
	i.errs[name] = err
	i.mu.Unlock()
}

func (i *Inspector) Inspect(ctx context.Context, name string) (*drift.RuntimeDescriptor, error) {
	i.record("Inspect", name)
	if i.InspectFunc != nil {
		if err := i.InspectFunc(ctx, name); err != nil {
			return nil, err
		}
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if err, ok := i.errs[name]; ok {
		return nil, &docker.InspectionError{Container: name, Err: err}
	}
	desc, ok := i.descriptors[name]
	if !ok {
		return nil, &docker.InspectionError{Container: name, NotFound: true}
	}
	return desc, nil
}
