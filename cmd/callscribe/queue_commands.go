package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"callscribe/internal/config"
	"callscribe/internal/queue"
)

const summaryColumnRunes = 48

func newQueueCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the task queue",
	}
	cmd.AddCommand(newQueueListCommand(ctx))
	cmd.AddCommand(newQueueStatusCommand(ctx))
	cmd.AddCommand(newQueueClearCommand(ctx))
	cmd.AddCommand(newQueueResetStuckCommand(ctx))
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag, fromFlag, toFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var status queue.Status
				if statusFlag != "" {
					parsed, ok := queue.ParseStatus(statusFlag)
					if !ok {
						return fmt.Errorf("unknown status %q", statusFlag)
					}
					status = parsed
				}

				var tasks []*queue.Task
				var err error
				if fromFlag != "" || toFlag != "" {
					from, to, parseErr := parseDayRange(fromFlag, toFlag)
					if parseErr != nil {
						return parseErr
					}
					tasks, err = store.ListRange(cmd.Context(), from, to)
					if err == nil && status != "" {
						filtered := tasks[:0]
						for _, task := range tasks {
							if task.Status == status {
								filtered = append(filtered, task)
							}
						}
						tasks = filtered
					}
				} else if status != "" {
					tasks, err = store.List(cmd.Context(), status)
				} else {
					tasks, err = store.List(cmd.Context())
				}
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
					return nil
				}

				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					detail := task.Summary
					if task.Status == queue.StatusError {
						detail = task.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.FormatInt(task.ID, 10),
						string(task.Kind),
						string(task.Status),
						task.DisplayName,
						truncate(detail, summaryColumnRunes),
						task.UpdatedAt.Format("2006-01-02 15:04:05"),
					})
				}
				columns := []column{
					{title: "ID", right: true},
					{title: "KIND"},
					{title: "STATUS"},
					{title: "FILE"},
					{title: "DETAIL"},
					{title: "UPDATED"},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(columns, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only show tasks with this status (queued, processing, completed, error)")
	cmd.Flags().StringVar(&fromFlag, "from", "", "Only show tasks created on or after this day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toFlag, "to", "", "Only show tasks created before this day (YYYY-MM-DD, exclusive)")
	return cmd
}

// parseDayRange converts YYYY-MM-DD bounds into a half-open time range.
// Either side may be empty, leaving that bound open.
func parseDayRange(fromValue, toValue string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromValue != "" {
		from, err = time.ParseInLocation("2006-01-02", fromValue, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --from: %w", err)
		}
	}
	if toValue != "" {
		to, err = time.ParseInLocation("2006-01-02", toValue, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --to: %w", err)
		}
	}
	return from, to, nil
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:      %d\n", health.Total)
				fmt.Fprintf(out, "Queued:     %d\n", health.Queued)
				fmt.Fprintf(out, "Processing: %d\n", health.Processing)
				fmt.Fprintf(out, "Completed:  %d\n", health.Completed)
				fmt.Fprintf(out, "Errored:    %d\n", health.Errored)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completedFlag, failedFlag bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove tasks from the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if completedFlag && failedFlag {
				return fmt.Errorf("--completed and --failed are mutually exclusive")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var removed int64
				var err error
				var scope string
				switch {
				case completedFlag:
					removed, err = store.ClearCompleted(cmd.Context())
					scope = "completed "
				case failedFlag:
					removed, err = store.ClearFailed(cmd.Context())
					scope = "failed "
				default:
					removed, err = store.Clear(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d %stask(s).\n", removed, scope)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completedFlag, "completed", false, "Only remove completed tasks")
	cmd.Flags().BoolVar(&failedFlag, "failed", false, "Only remove errored tasks")
	return cmd
}

func newQueueResetStuckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Fail tasks stuck in processing",
		Long: "Mark every task stuck in processing as errored. Use after a crash when " +
			"the daemon is not running; affected recordings must be resubmitted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				failed, err := store.FailStuckProcessing(cmd.Context(), "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Failed %d stuck task(s).\n", failed)
				return nil
			})
		},
	}
}

func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
