package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"callscribe/internal/config"
	"callscribe/internal/queue"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				fmt.Fprintln(out, renderStatusLine("Database", boolKind(health.DatabaseExists && health.DatabaseReadable), health.DBPath, colorize))
				fmt.Fprintln(out, renderStatusLine("Schema version", statusInfo, health.SchemaVersion, colorize))
				fmt.Fprintln(out, renderStatusLine("Tasks table", boolKind(health.TableExists), "", colorize))
				if len(health.MissingColumns) > 0 {
					fmt.Fprintln(out, renderStatusLine("Columns", statusError,
						"missing: "+strings.Join(health.MissingColumns, ", "), colorize))
				} else {
					fmt.Fprintln(out, renderStatusLine("Columns", statusOK,
						fmt.Sprintf("%d present", len(health.ColumnsPresent)), colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Integrity", boolKind(health.IntegrityCheck), "", colorize))
				fmt.Fprintln(out, renderStatusLine("Tasks", statusInfo, fmt.Sprintf("%d total", health.TotalTasks), colorize))
				if health.Error != "" {
					fmt.Fprintln(out, renderStatusLine("Last error", statusWarn, health.Error, colorize))
				}
				return nil
			})
		},
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}
