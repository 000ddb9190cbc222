// Package daemon wires driftwatchd from its configuration and runs it until
// the context is canceled.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"driftwatch/config"
	"driftwatch/internal/adapter/sqlite"
	"driftwatch/internal/api"
	"driftwatch/internal/cache"
	"driftwatch/internal/compose"
	"driftwatch/internal/docker"
	"driftwatch/internal/metrics"
	"driftwatch/internal/remediate"
	"driftwatch/internal/scan"
	"driftwatch/internal/shell"
	"driftwatch/internal/support/buildinfo"
	"driftwatch/internal/telemetry"
	"driftwatch/internal/watch"

	"github.com/docker/docker/client"
	"golang.org/x/sync/errgroup"
)

const (
	dockerReadyTimeout  = 30 * time.Second
	dockerReadyInterval = time.Second
)

// Daemon owns every long-lived component of driftwatchd.
type Daemon struct {
	cfg     config.Daemon
	docker  *client.Client
	cache   *cache.Cache
	server  *api.Server
	watcher *watch.Watcher
	store   *sqlite.Store

	shutdownTracing func(context.Context) error
	log             *slog.Logger
}

// Run wires the daemon and serves until ctx is canceled.
func Run(ctx context.Context, cfg config.Daemon) error {
	d, err := Wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			d.log.Warn("Failed to close daemon resources.", "err", err)
		}
	}()
	return d.Run(ctx)
}

func Wire(ctx context.Context, cfg config.Daemon) (d *Daemon, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d = &Daemon{cfg: cfg, log: slog.With("component", "daemon")}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	_, shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		ServiceName:  "driftwatchd",
		Version:      buildinfo.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("set up tracing: %w", err)
	}
	d.shutdownTracing = shutdown

	d.docker, err = docker.NewClient()
	if err != nil {
		return nil, err
	}
	waitDocker(ctx, d.docker, d.log)

	scanner, err := NewScanner(cfg, docker.NewInspector(d.docker, cfg.InspectTimeout))
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	d.cache = cache.New(scanner, cfg.ScanInterval, cache.WithObserver(m))

	deps := api.Deps{Cache: d.cache, Metrics: m.Handler()}
	if cfg.Restart.Enabled {
		d.store, err = sqlite.Open(cfg.Restart.DBPath)
		if err != nil {
			return nil, err
		}
		deps.Restarter = remediate.New(
			remediate.Config{Root: cfg.RepoPath, HostID: cfg.DeviceName, ComposeFiles: cfg.ComposeFiles},
			shell.Host{},
			remediate.WithStore(d.store),
			remediate.WithRefresher(d.cache),
			remediate.WithObserver(m),
		)
		deps.History = d.store
	}
	d.server = api.New(deps)

	if cfg.Watch {
		d.watcher = watch.New(cfg.RepoPath, cfg.ComposeFiles, cfg.WatchDebounce, d.cache)
	}
	return d, nil
}

// NewScanner builds a scanner for cfg around inspector. The CLI uses it for
// one-shot local scans.
func NewScanner(cfg config.Daemon, inspector scan.Inspector) (*scan.Scanner, error) {
	resolver, err := newResolver(cfg.Resolver)
	if err != nil {
		return nil, err
	}
	return scan.New(scan.Config{
		Root:        cfg.RepoPath,
		HostID:      cfg.DeviceName,
		FileNames:   cfg.ComposeFiles,
		Concurrency: cfg.ScanConcurrency,
	}, resolver, inspector, scan.WithTracer(telemetry.Tracer())), nil
}

func newResolver(kind string) (compose.Resolver, error) {
	switch kind {
	case "", config.ResolverLoader:
		return compose.LoaderResolver{Environ: os.Environ}, nil
	case config.ResolverCLI:
		return compose.CLIResolver{Runner: shell.Host{}}, nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", kind)
	}
}

// waitDocker gives the engine a bounded window to come up. Scans still run if
// it never does; every container is then reported Down.
func waitDocker(ctx context.Context, cli docker.Pinger, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, dockerReadyTimeout)
	defer cancel()
	ping, err := docker.WaitReady(ctx, cli, dockerReadyInterval)
	if err != nil {
		log.Warn("Docker engine is not reachable, containers will report Down.", "err", err)
		return
	}
	log.Debug("Docker engine reachable.", "api_version", ping.APIVersion, "os", ping.OSType)
}

func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info("Starting driftwatchd.",
		"version", buildinfo.Version,
		"repo", d.cfg.RepoPath,
		"host", d.cfg.DeviceName,
		"listen", d.cfg.Listen,
		"interval", d.cfg.ScanInterval,
		"restart", d.cfg.Restart.Enabled,
		"watch", d.cfg.Watch,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.cache.Start(ctx)
		<-ctx.Done()
		d.cache.Stop()
		return nil
	})
	g.Go(func() error { return d.server.ListenAndServe(ctx, d.cfg.Listen) })
	if d.watcher != nil {
		g.Go(func() error { return d.watcher.Run(ctx) })
	}
	err := g.Wait()
	d.log.Info("Stopped driftwatchd.")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the resources Wire acquired. It is safe on a partially wired
// daemon.
func (d *Daemon) Close() error {
	var errs []error
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	if d.docker != nil {
		errs = append(errs, d.docker.Close())
	}
	if d.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, d.shutdownTracing(ctx))
	}
	return errors.Join(errs...)
}
