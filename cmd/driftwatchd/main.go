package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"driftwatch/config"
	"driftwatch/internal/daemon"
	"driftwatch/internal/logging"
	"driftwatch/internal/support/buildinfo"

	"github.com/spf13/cobra"
)

func main() {
	if _, err := logging.Configure(logging.Options{Level: logging.LevelInfo}); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
		overrides  config.Daemon
		restart    bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:          "driftwatchd",
		Short:        "Compose drift detection daemon",
		Version:      buildinfo.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDaemon(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, overrides, restart, watch)
			if debug {
				cfg.Log.Level = logging.LevelDebug
			}

			closeLog, err := logging.Configure(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			})
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return daemon.Run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "Config file (YAML)")
	f.BoolVar(&debug, "debug", false, "Enable debug logging")
	f.StringVar(&overrides.RepoPath, "repo", "", "Repository root searched for compose files")
	f.StringVar(&overrides.DeviceName, "device", "", "Host name matched against runs-on markers")
	f.StringVar(&overrides.Listen, "listen", "", "HTTP listen address")
	f.DurationVar(&overrides.ScanInterval, "interval", 0, "Time between scheduled scans")
	f.StringVar(&overrides.Resolver, "resolver", "", "Compose resolver: loader or cli")
	f.BoolVar(&restart, "restart", false, "Enable the restart endpoint")
	f.BoolVar(&watch, "watch", false, "Rescan when compose files change")
	return cmd
}

// applyFlags layers explicitly set flags over the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Daemon, o config.Daemon, restart, watch bool) {
	f := cmd.Flags()
	if f.Changed("repo") {
		cfg.RepoPath = o.RepoPath
	}
	if f.Changed("device") {
		cfg.DeviceName = o.DeviceName
	}
	if f.Changed("listen") {
		cfg.Listen = o.Listen
	}
	if f.Changed("interval") {
		cfg.ScanInterval = o.ScanInterval
	}
	if f.Changed("resolver") {
		cfg.Resolver = o.Resolver
	}
	if f.Changed("restart") {
		cfg.Restart.Enabled = restart
	}
	if f.Changed("watch") {
		cfg.Watch = watch
	}
}
