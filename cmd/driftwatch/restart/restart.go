package restartcmd

import (
	"errors"
	"fmt"

	"driftwatch/cmd/driftwatch/cmdutil"
	"driftwatch/cmd/driftwatch/ui"
	"driftwatch/pkg/sdk/client"

	"github.com/spf13/cobra"
)

// Cmd returns "driftwatch restart".
func Cmd(flags *cmdutil.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "restart [compose-file...]",
		Short: "Pull and recreate outdated compose files",
		Long: "Pull and recreate the given compose files, or every compose file the\n" +
			"daemon's last scan found outdated. Paths are relative to the repository root.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := cmdutil.Connect(*flags)
			if err != nil {
				return err
			}
			resp, err := c.Restart(cmd.Context(), args)
			switch {
			case errors.Is(err, client.ErrRestartInProgress):
				fmt.Println(ui.WarnMsg("A restart is already running, try again once it finishes."))
				return nil
			case err != nil:
				return err
			}
			if flags.JSON {
				return cmdutil.PrintJSON(resp)
			}
			if len(resp.Units) == 0 {
				fmt.Println(ui.SuccessMsg("Nothing to restart."))
				return nil
			}
			fmt.Println(ui.InfoMsg("Restarting %d compose file(s):", len(resp.Units)))
			for _, u := range resp.Units {
				fmt.Println("  " + u)
			}
			return nil
		},
	}
}

// HistoryCmd returns "driftwatch restarts".
func HistoryCmd(flags *cmdutil.Flags) *cobra.Command {
	var (
		path  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "restarts",
		Short: "Show recorded restart timings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := cmdutil.Connect(*flags)
			if err != nil {
				return err
			}
			records, err := c.Restarts(cmd.Context(), path, limit)
			if err != nil {
				return err
			}
			if flags.JSON {
				return cmdutil.PrintJSON(records)
			}
			fmt.Println(ui.RestartHistory(records))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Only show restarts of this compose file")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")
	return cmd
}
