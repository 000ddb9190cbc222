package scancmd

import (
	"fmt"

	"driftwatch/cmd/driftwatch/cmdutil"
	"driftwatch/cmd/driftwatch/ui"
	"driftwatch/config"
	"driftwatch/internal/daemon"
	"driftwatch/internal/docker"
	"driftwatch/pkg/sdk/types"

	"github.com/spf13/cobra"
)

// Cmd returns "driftwatch scan", a one-shot scan of a local checkout that
// needs no daemon.
func Cmd(flags *cmdutil.Flags) *cobra.Command {
	var (
		configPath  string
		repo        string
		host        string
		resolver    string
		failOnDrift bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a local repository against the running containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadDaemon(configPath)
			if err != nil {
				return err
			}
			if repo != "" {
				cfg.RepoPath = repo
			}
			if host != "" {
				cfg.DeviceName = host
			}
			if resolver != "" {
				cfg.Resolver = resolver
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			cli, err := docker.NewClient()
			if err != nil {
				return err
			}
			defer cli.Close()

			scanner, err := daemon.NewScanner(cfg, docker.NewInspector(cli, cfg.InspectTimeout))
			if err != nil {
				return err
			}
			result, err := scanner.Run(cmd.Context())
			if err != nil {
				return err
			}

			if flags.JSON {
				err = cmdutil.PrintJSON(result)
			} else {
				fmt.Print(ui.ScanReport(result))
			}
			if err != nil {
				return err
			}
			if failOnDrift && hasDrift(result) {
				return fmt.Errorf("%d compose file(s) outdated or down", countDrift(result))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Daemon config file (YAML)")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository root (overrides REPO_PATH)")
	cmd.Flags().StringVar(&host, "device", "", "Host name matched against runs-on markers (overrides DEVICE_NAME)")
	cmd.Flags().StringVar(&resolver, "resolver", "", "Compose resolver: loader or cli")
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "Exit non-zero when any compose file is Outdated or Down")
	return cmd
}

func hasDrift(result *types.ScanResult) bool {
	return countDrift(result) > 0
}

func countDrift(result *types.ScanResult) int {
	n := 0
	for _, u := range result.Units {
		if u.Status == types.StatusOutdated || u.Status == types.StatusDown {
			n++
		}
	}
	return n
}
