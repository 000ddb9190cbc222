// Package scan runs one full drift detection pass over a repository checkout.
package scan

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"driftwatch/internal/compose"
	"driftwatch/internal/drift"
	"driftwatch/internal/telemetry"
	"driftwatch/pkg/sdk/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

// Inspector fetches the live runtime descriptor of one container.
type Inspector interface {
	Inspect(ctx context.Context, name string) (*drift.RuntimeDescriptor, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	// Root is the repository checkout searched for compose files.
	Root string
	// HostID selects the units whose runs-on marker lists this host.
	HostID    string
	FileNames []string
	// Concurrency bounds how many units are resolved and inspected at once.
	Concurrency int
}

// Scanner produces complete scan results. It holds no state between passes
// and is safe for concurrent use.
type Scanner struct {
	cfg       Config
	resolver  compose.Resolver
	inspector Inspector
	tracer    trace.Tracer
	clock     Clock
	newID     func() string
	log       *slog.Logger
}

type Option func(*Scanner)

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scanner) { s.tracer = tracer }
}

func WithClock(clock Clock) Option {
	return func(s *Scanner) { s.clock = clock }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Scanner) { s.newID = fn }
}

func New(cfg Config, resolver compose.Resolver, inspector Inspector, opts ...Option) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	s := &Scanner{
		cfg:       cfg,
		resolver:  resolver,
		inspector: inspector,
		tracer:    noop.NewTracerProvider().Tracer("scan"),
		clock:     realClock{},
		newID:     uuid.NewString,
		log:       slog.With("component", "scan"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Units returns the eligible unit paths, relative to the root, in discovery
// order.
func (s *Scanner) Units(ctx context.Context) ([]string, error) {
	paths, err := compose.Discover(ctx, s.cfg.Root, s.cfg.FileNames)
	if err != nil {
		return nil, fmt.Errorf("discover units: %w", err)
	}
	eligible := make([]string, 0, len(paths))
	for _, p := range paths {
		if compose.IsEligible(filepath.Join(s.cfg.Root, p), s.cfg.HostID) {
			eligible = append(eligible, p)
		}
	}
	return eligible, nil
}

// Run performs one pass. It returns an error only when discovery fails or ctx
// ends; units that cannot be resolved are skipped and containers that cannot
// be inspected are reported Down.
func (s *Scanner) Run(ctx context.Context) (*types.ScanResult, error) {
	start := s.clock.Now()

	units, err := s.Units(ctx)
	if err != nil {
		return nil, err
	}

	pass, err := telemetry.StartPass(ctx, s.tracer, "compose.scan", units,
		attribute.String("driftwatch.host", s.cfg.HostID),
		attribute.Int("driftwatch.unit_count", len(units)),
	)
	if err != nil {
		return nil, fmt.Errorf("start scan: %w", err)
	}

	results := make([]*types.UnitResult, len(units))
	g, gctx := errgroup.WithContext(pass.Context())
	g.SetLimit(s.cfg.Concurrency)
	for i, path := range units {
		g.Go(func() error {
			err := pass.Unit(gctx, path, func(ctx context.Context) error {
				unit, err := s.scanUnit(ctx, path)
				if err != nil {
					return err
				}
				results[i] = unit
				return nil
			})
			var resErr *compose.ResolutionError
			if errors.As(err, &resErr) {
				s.log.Warn("skip unit", "unit", path, "err", err)
				pass.Skipped(path, err)
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		pass.Finish("", err)
		return nil, fmt.Errorf("scan units: %w", err)
	}

	out := &types.ScanResult{Units: make([]types.UnitResult, 0, len(units))}
	for _, unit := range results {
		if unit != nil {
			out.Units = append(out.Units, *unit)
		}
	}
	done := s.clock.Now()
	out.Metadata = types.ScanMetadata{
		ID:          s.newID(),
		Datetime:    done.UTC(),
		TimeTakenMS: done.Sub(start).Milliseconds(),
	}
	pass.Finish(out.Metadata.ID, nil)

	s.log.Debug("scan complete", "id", out.Metadata.ID, "units", len(out.Units), "skipped", len(units)-len(out.Units), "took", out.Metadata.TimeTaken())
	return out, nil
}

func (s *Scanner) scanUnit(ctx context.Context, path string) (*types.UnitResult, error) {
	project, err := s.resolver.Resolve(ctx, filepath.Join(s.cfg.Root, path))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var resErr *compose.ResolutionError
		if !errors.As(err, &resErr) {
			err = &compose.ResolutionError{Path: path, Err: err}
		}
		return nil, err
	}

	decls := compose.Declarations(project)
	unit := &types.UnitResult{
		Path:       path,
		Containers: make([]types.ContainerResult, 0, len(decls)),
	}
	statuses := make([]types.Status, 0, len(decls))
	for _, decl := range decls {
		c, err := s.scanContainer(ctx, decl)
		if err != nil {
			return nil, err
		}
		unit.Containers = append(unit.Containers, c)
		statuses = append(statuses, c.Status)
	}
	unit.Status = drift.ClassifyUnit(statuses)
	return unit, nil
}

func (s *Scanner) scanContainer(ctx context.Context, decl drift.ServiceDeclaration) (types.ContainerResult, error) {
	runtime, err := s.inspector.Inspect(ctx, decl.ContainerName)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.ContainerResult{}, ctxErr
		}
		s.log.Debug("inspect failed", "container", decl.ContainerName, "err", err)
		runtime = nil
	}

	var findings []types.Finding
	if runtime != nil {
		findings = drift.Compare(decl, *runtime)
	}
	return types.ContainerResult{
		Name:     decl.ContainerName,
		Service:  decl.Service,
		Image:    decl.Image,
		Status:   drift.ClassifyContainer(findings, runtime, decl.RestartPolicy),
		Findings: findings,
		Ports:    containerPorts(decl, runtime),
		Volumes:  declaredVolumes(decl),
		Labels:   declaredLabels(decl),

		Environment: declaredEnvironment(decl),
	}, nil
}

// containerPorts lists the live published ports, or the declared ports when
// the container could not be inspected.
func containerPorts(decl drift.ServiceDeclaration, runtime *drift.RuntimeDescriptor) []types.Port {
	out := make([]types.Port, 0)
	if runtime == nil {
		for _, p := range decl.Ports {
			out = append(out, types.Port{Target: p.Target, Published: p.Published, Protocol: p.Protocol})
		}
		return out
	}

	keys := make([]string, 0, len(runtime.Ports))
	for key := range runtime.Ports {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, comparePortKeys)
	for _, key := range keys {
		target, protocol := splitPortKey(key)
		for _, b := range runtime.Ports[key] {
			out = append(out, types.Port{Target: target, Published: b.HostPort, HostIP: b.HostIP, Protocol: protocol})
		}
	}
	return out
}

func splitPortKey(key string) (uint32, string) {
	port, protocol, _ := strings.Cut(key, "/")
	n, _ := strconv.ParseUint(port, 10, 32)
	return uint32(n), protocol
}

func comparePortKeys(a, b string) int {
	pa, protoA := splitPortKey(a)
	pb, protoB := splitPortKey(b)
	if c := cmp.Compare(pa, pb); c != 0 {
		return c
	}
	return strings.Compare(protoA, protoB)
}

func declaredVolumes(decl drift.ServiceDeclaration) []types.Volume {
	out := make([]types.Volume, 0, len(decl.Volumes))
	for _, v := range decl.Volumes {
		out = append(out, types.Volume{Type: v.Type, Source: v.Source, Target: v.Target, ReadOnly: v.ReadOnly})
	}
	return out
}

func declaredEnvironment(decl drift.ServiceDeclaration) map[string]*string {
	out := make(map[string]*string, len(decl.Environment))
	for k, v := range decl.Environment {
		switch v.State {
		case drift.EnvSet:
			out[k] = &v.Value
		case drift.EnvEmpty:
			out[k] = nil
		}
	}
	return out
}

func declaredLabels(decl drift.ServiceDeclaration) map[string]string {
	out := make(map[string]string, len(decl.Labels))
	for k, v := range decl.Labels {
		out[k] = v
	}
	return out
}
