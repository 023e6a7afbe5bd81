package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"callscribe/internal/cleanup"
	"callscribe/internal/logging"
	"callscribe/internal/services/objstore"
)

func newWipeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "wipe",
		Short: "Delete all staged objects and local scratch files",
		Long: "Delete every object under the queue/ and archives/ staging prefixes and " +
			"every pipeline scratch file in the staging directory. Task records are kept.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			objects, err := objstore.New(cfg.Storage)
			if err != nil {
				return err
			}
			cleaner := cleanup.NewManager(objects, cfg.Paths.StagingDir, logging.NewNop())
			report, err := cleaner.Wipe(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d staged object(s) and %d local file(s).\n",
				report.ObjectsRemoved, report.FilesRemoved)
			return nil
		},
	}
}
