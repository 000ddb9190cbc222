// Package docker reads live container state from the Docker Engine API.
package docker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"driftwatch/internal/drift"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DefaultInspectTimeout bounds a single inspect call when none is configured.
const DefaultInspectTimeout = 10 * time.Second

// InspectAPI is the part of the Docker client the inspector needs.
type InspectAPI interface {
	ContainerInspect(ctx context.Context, container string) (container.InspectResponse, error)
}

// InspectionError is returned when a container's runtime descriptor cannot
// be fetched. The container is then reported Down.
type InspectionError struct {
	Container string
	NotFound  bool
	Err       error
}

func (e *InspectionError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("inspect container %q: not found", e.Container)
	}
	return fmt.Sprintf("inspect container %q: %v", e.Container, e.Err)
}

func (e *InspectionError) Unwrap() error { return e.Err }

// Inspector fetches runtime descriptors, one API call per container.
type Inspector struct {
	api     InspectAPI
	timeout time.Duration
}

// NewClient creates a Docker client from the environment.
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return cli, nil
}

// NewInspector wraps api. Each call is bounded by timeout.
func NewInspector(api InspectAPI, timeout time.Duration) *Inspector {
	if timeout <= 0 {
		timeout = DefaultInspectTimeout
	}
	return &Inspector{api: api, timeout: timeout}
}

// Inspect returns the live descriptor of the container named name. Every
// failure, including not-found and timeout, is an *InspectionError.
func (i *Inspector) Inspect(ctx context.Context, name string) (*drift.RuntimeDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	info, err := i.api.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, &InspectionError{Container: name, NotFound: true, Err: err}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", i.timeout, err)
		}
		return nil, &InspectionError{Container: name, Err: err}
	}
	return Descriptor(info), nil
}
