package main

import (
	"fmt"
	"os"

	"driftwatch/cmd/driftwatch/cmdutil"
	contextcmd "driftwatch/cmd/driftwatch/context"
	restartcmd "driftwatch/cmd/driftwatch/restart"
	scancmd "driftwatch/cmd/driftwatch/scan"
	statuscmd "driftwatch/cmd/driftwatch/status"
	"driftwatch/cmd/driftwatch/ui"
	"driftwatch/internal/logging"
	"driftwatch/internal/support/buildinfo"

	"github.com/spf13/cobra"
)

func main() {
	var (
		flags cmdutil.Flags
		debug bool
		plain bool
	)

	root := &cobra.Command{
		Use:           "driftwatch",
		Short:         "Report drift between compose files and running containers",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelWarn
			if debug {
				level = logging.LevelDebug
			}
			if _, err := logging.Configure(logging.Options{Level: level}); err != nil {
				return err
			}
			ui.ConfigureOutput(plain || flags.JSON)
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&plain, "plain", false, "Plain output without colours")
	root.PersistentFlags().BoolVar(&flags.JSON, "json", false, "Print JSON instead of tables")
	root.PersistentFlags().StringVar(&flags.Server, "server", "", "Daemon URL (overrides the context)")
	root.PersistentFlags().StringVar(&flags.Context, "context", "", "Context name to use")

	root.AddCommand(scancmd.Cmd(&flags))
	root.AddCommand(statuscmd.Cmd(&flags))
	root.AddCommand(statuscmd.OutdatedCmd(&flags))
	root.AddCommand(statuscmd.TriggerCmd(&flags))
	root.AddCommand(restartcmd.Cmd(&flags))
	root.AddCommand(restartcmd.HistoryCmd(&flags))
	root.AddCommand(contextcmd.Cmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		os.Exit(1)
	}
}
