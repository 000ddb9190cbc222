package statuscmd

import (
	"errors"
	"fmt"

	"driftwatch/cmd/driftwatch/cmdutil"
	"driftwatch/cmd/driftwatch/ui"
	"driftwatch/pkg/sdk/client"

	"github.com/spf13/cobra"
)

// Cmd returns "driftwatch status". flags points at the root persistent flags.
func Cmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the daemon's latest scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := cmdutil.Connect(*flags)
			if err != nil {
				return err
			}
			result, err := c.Scan(cmd.Context())
			if errors.Is(err, client.ErrScanNotReady) {
				fmt.Println(ui.WarnMsg("The daemon has not finished its first scan yet."))
				return nil
			}
			if err != nil {
				return err
			}
			if flags.JSON {
				return cmdutil.PrintJSON(result)
			}
			fmt.Print(ui.ScanReport(result))
			return nil
		},
	}
}

// OutdatedCmd returns "driftwatch outdated".
func OutdatedCmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "outdated",
		Short: "List compose files with drifted containers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := cmdutil.Connect(*flags)
			if err != nil {
				return err
			}
			units, err := c.Outdated(cmd.Context())
			if err != nil {
				return err
			}
			if flags.JSON {
				return cmdutil.PrintJSON(units)
			}
			if len(units) == 0 {
				fmt.Println(ui.SuccessMsg("Everything is up to date."))
				return nil
			}
			for _, u := range units {
				fmt.Println(u)
			}
			return nil
		},
	}
}

// TriggerCmd returns "driftwatch trigger".
func TriggerCmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Ask the daemon to rescan now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := cmdutil.Connect(*flags)
			if err != nil {
				return err
			}
			if err := c.Trigger(cmd.Context()); err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Scan started."))
			return nil
		},
	}
}
