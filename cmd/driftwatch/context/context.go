// Package contextcmd manages the named daemons the CLI can talk to.
package contextcmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"driftwatch/cmd/driftwatch/ui"
	"driftwatch/config"
	"driftwatch/pkg/sdk/client"

	"github.com/spf13/cobra"
)

const probeTimeout = 3 * time.Second

func Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage daemon contexts",
	}
	cmd.AddCommand(listCmd(), useCmd(), setCmd(), removeCmd())
	return cmd
}

// edit loads the contexts file, applies fn and saves the result.
func edit(fn func(*config.Contexts) error) (*config.Contexts, error) {
	contexts, err := config.LoadContexts()
	if err != nil {
		return nil, err
	}
	if err := fn(contexts); err != nil {
		return nil, err
	}
	if err := contexts.Save(); err != nil {
		return nil, err
	}
	return contexts, nil
}

func listCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured daemons",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			contexts, err := config.LoadContexts()
			if err != nil {
				return err
			}
			names := contexts.Names()
			if len(names) == 0 {
				fmt.Println(ui.InfoMsg("No contexts configured, using %s.", config.DefaultServer))
				return nil
			}

			headers := []string{"", "NAME", "SERVER", "DESCRIPTION"}
			var reach []string
			if check {
				headers = append(headers, "STATUS")
				reach = probe(cmd.Context(), contexts, names)
			}
			rows := make([][]string, 0, len(names))
			for i, name := range names {
				d := contexts.Daemons[name]
				mark := ""
				if name == contexts.Current {
					mark = ui.Accent("*")
				}
				row := []string{mark, name, d.Server, d.Description}
				if check {
					row = append(row, reach[i])
				}
				rows = append(rows, row)
			}
			fmt.Println(ui.Table(headers, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Probe each daemon's health endpoint")
	return cmd
}

// probe checks every daemon concurrently and returns one status per name.
func probe(ctx context.Context, contexts *config.Contexts, names []string) []string {
	out := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := client.New(contexts.Daemons[name].Server)
			if err != nil {
				out[i] = ui.Warn("invalid")
				return
			}
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			if err := c.Health(pctx); err != nil {
				out[i] = ui.Warn("unreachable")
				return
			}
			out[i] = ui.Success("ok")
		}()
	}
	wg.Wait()
	return out
}

func useCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Select the daemon later commands talk to",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			contexts, err := edit(func(c *config.Contexts) error { return c.Select(args[0]) })
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Switched to %s (%s).", ui.Bold(args[0]), contexts.Daemons[args[0]].Server))
			return nil
		},
	}
}

func setCmd() *cobra.Command {
	var (
		use         bool
		description string
	)
	cmd := &cobra.Command{
		Use:   "set <name> <server-url>",
		Short: "Add or update a daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			contexts, err := edit(func(c *config.Contexts) error {
				if err := c.Put(name, config.Context{Server: args[1], Description: description}); err != nil {
					return err
				}
				// The first daemon added becomes current.
				if use || c.Current == "" {
					return c.Select(name)
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Println(ui.SuccessMsg("Saved %s (%s).", ui.Bold(name), contexts.Daemons[name].Server))
			return nil
		},
	}
	cmd.Flags().BoolVar(&use, "use", false, "Switch to the context after saving it")
	cmd.Flags().StringVar(&description, "description", "", "Free-form note shown by list")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Forget a daemon",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			contexts, err := edit(func(c *config.Contexts) error { return c.Delete(args[0]) })
			if err != nil {
				return err
			}
			msg := ui.SuccessMsg("Removed %s.", ui.Bold(args[0]))
			if contexts.Current == "" {
				msg += " " + ui.Muted("No context selected, using "+config.DefaultServer+".")
			}
			fmt.Println(msg)
			return nil
		},
	}
}
