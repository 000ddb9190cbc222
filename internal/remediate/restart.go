// Package remediate restarts deployment units whose containers drifted.
package remediate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"driftwatch/internal/compose"
	"driftwatch/internal/shell"
	"driftwatch/pkg/sdk/types"
)

// ErrBusy is returned when a restart batch is already running.
var ErrBusy = errors.New("restart already in progress")

// Refresher schedules a fresh scan once a batch finishes.
type Refresher interface {
	TriggerAsync()
	Postpone()
}

type TimingStore interface {
	RecordRestarts(ctx context.Context, host string, timings []types.RestartTiming, at time.Time) error
}

type Observer interface {
	RestartFinished(timing types.RestartTiming)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	Root   string
	HostID string
	// ComposeFiles are the file names a unit may have. Defaults to
	// compose.DefaultFileNames.
	ComposeFiles []string
}

// Restarter pulls and recreates units one batch at a time.
type Restarter struct {
	cfg       Config
	runner    shell.Runner
	store     TimingStore
	refresher Refresher
	observer  Observer
	clock     Clock
	log       *slog.Logger

	mu sync.Mutex
}

type Option func(*Restarter)

func WithStore(store TimingStore) Option {
	return func(r *Restarter) { r.store = store }
}

func WithRefresher(refresher Refresher) Option {
	return func(r *Restarter) { r.refresher = refresher }
}

func WithObserver(observer Observer) Option {
	return func(r *Restarter) { r.observer = observer }
}

func WithClock(clock Clock) Option {
	return func(r *Restarter) { r.clock = clock }
}

func New(cfg Config, runner shell.Runner, opts ...Option) *Restarter {
	if len(cfg.ComposeFiles) == 0 {
		cfg.ComposeFiles = compose.DefaultFileNames
	}
	r := &Restarter{
		cfg:    cfg,
		runner: runner,
		clock:  realClock{},
		log:    slog.With("component", "remediate"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restart runs a batch synchronously. It fails with ErrBusy when another
// batch holds the lock.
func (r *Restarter) Restart(ctx context.Context, units []string) ([]types.RestartTiming, error) {
	if !r.mu.TryLock() {
		return nil, ErrBusy
	}
	defer r.mu.Unlock()
	return r.run(ctx, units)
}

// Go starts a batch in the background and returns once the lock is held.
func (r *Restarter) Go(ctx context.Context, units []string) error {
	if !r.mu.TryLock() {
		return ErrBusy
	}
	go func() {
		defer r.mu.Unlock()
		if _, err := r.run(ctx, units); err != nil {
			r.log.Error("restart batch failed", "err", err)
		}
	}()
	return nil
}

func (r *Restarter) run(ctx context.Context, units []string) ([]types.RestartTiming, error) {
	if len(units) == 0 {
		return nil, nil
	}
	r.log.Info("restart batch started", "units", units)

	timings := make([]types.RestartTiming, 0, len(units))
	var runErr error
	for _, unit := range units {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		timing, err := r.restartUnit(ctx, unit)
		if err != nil {
			timing.Error = err.Error()
			r.log.Warn("restart unit failed", "unit", unit, "err", err)
		}
		timings = append(timings, timing)
		if r.observer != nil && !timing.Skipped {
			r.observer.RestartFinished(timing)
		}
	}

	if r.store != nil {
		restarted := make([]types.RestartTiming, 0, len(timings))
		for _, t := range timings {
			if !t.Skipped {
				restarted = append(restarted, t)
			}
		}
		if err := r.store.RecordRestarts(context.WithoutCancel(ctx), r.cfg.HostID, restarted, r.clock.Now()); err != nil {
			r.log.Warn("record restart timings", "err", err)
		}
	}
	if r.refresher != nil {
		r.refresher.TriggerAsync()
		r.refresher.Postpone()
	}

	r.log.Info("restart batch finished", "units", len(timings))
	return timings, runErr
}

func (r *Restarter) restartUnit(ctx context.Context, unit string) (types.RestartTiming, error) {
	timing := types.RestartTiming{Unit: unit}
	path, err := r.unitPath(unit)
	if err != nil {
		return timing, err
	}
	dir, file := filepath.Dir(path), filepath.Base(path)
	log := r.log.With("unit", unit)

	hosts, err := compose.RunsOn(path)
	if err != nil {
		return timing, err
	}
	if len(hosts) == 0 {
		return timing, fmt.Errorf("%s has no runs-on marker", unit)
	}
	if !slices.Contains(hosts, r.cfg.HostID) {
		log.Info("unit designated for other hosts, bringing it down", "hosts", hosts)
		timing.Skipped = true
		if _, _, err := r.runner.Run(ctx, dir, "docker", "compose", "-f", file, "down"); err != nil {
			return timing, fmt.Errorf("compose down: %w", err)
		}
		return timing, nil
	}

	start := r.clock.Now()
	if _, _, err := r.runner.Run(ctx, dir, "docker", "compose", "-f", file, "pull"); err != nil {
		timing.Pull = r.clock.Now().Sub(start)
		return timing, fmt.Errorf("compose pull: %w", err)
	}
	pulled := r.clock.Now()
	timing.Pull = pulled.Sub(start)

	if _, _, err := r.runner.Run(ctx, dir, "docker", "compose", "-f", file, "up", "-d", "--force-recreate"); err != nil {
		timing.Restart = r.clock.Now().Sub(pulled)
		return timing, fmt.Errorf("compose up: %w", err)
	}
	timing.Restart = r.clock.Now().Sub(pulled)

	log.Info("unit restarted", "pull", timing.Pull, "restart", timing.Restart)
	return timing, nil
}

// unitPath resolves unit against the root. It rejects paths outside the root
// and files not named like a compose file.
func (r *Restarter) unitPath(unit string) (string, error) {
	clean := filepath.Clean(strings.TrimSpace(unit))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid unit path %q", unit)
	}
	if !slices.Contains(r.cfg.ComposeFiles, filepath.Base(clean)) {
		return "", fmt.Errorf("%q is not a compose file", unit)
	}
	return filepath.Join(r.cfg.Root, clean), nil
}
