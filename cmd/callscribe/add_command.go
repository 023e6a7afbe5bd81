package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"callscribe/internal/config"
	"callscribe/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var nameFlag string
	var ownerFlag int64
	var archiveFlag bool

	cmd := &cobra.Command{
		Use:   "add <source>",
		Short: "Enqueue a recording or archive for processing",
		Long: "Enqueue a task. The source is a local file path, a staged https:// URL, " +
			"or a Telegram file ID. Zip sources fan out into one subtask per audio file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				name := nameFlag
				if name == "" {
					name = filepath.Base(source)
				}
				kind := queue.KindAudio
				if archiveFlag || strings.EqualFold(filepath.Ext(source), ".zip") {
					kind = queue.KindArchive
				}
				task, err := store.Enqueue(cmd.Context(), ownerFlag, kind, source, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued task #%d (%s, %s)\n", task.ID, task.DisplayName, task.Kind)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&nameFlag, "name", "", "Display name recorded for the task")
	cmd.Flags().Int64Var(&ownerFlag, "owner", 0, "Chat ID notified when the task completes")
	cmd.Flags().BoolVar(&archiveFlag, "archive", false, "Treat the source as a zip bundle")
	return cmd
}
