package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"callscribe/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "staging_dir:        %s\n", cfg.Paths.StagingDir)
			fmt.Fprintf(out, "log_dir:            %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "database_path:      %s\n", cfg.Paths.DatabasePath)
			fmt.Fprintf(out, "storage.endpoint:   %s\n", cfg.Storage.Endpoint)
			fmt.Fprintf(out, "storage.bucket:     %s\n", cfg.Storage.Bucket)
			fmt.Fprintf(out, "storage.access_key: %s\n", maskSecret(cfg.Storage.AccessKeyID))
			fmt.Fprintf(out, "speechkit.api_key:  %s\n", maskSecret(cfg.SpeechKit.APIKey))
			fmt.Fprintf(out, "speechkit.language: %s\n", cfg.SpeechKit.Language)
			fmt.Fprintf(out, "analysis.api_key:   %s\n", maskSecret(cfg.Analysis.APIKey))
			fmt.Fprintf(out, "analysis.folder_id: %s\n", cfg.Analysis.FolderID)
			fmt.Fprintf(out, "analysis.model:     %s\n", cfg.Analysis.Model)
			fmt.Fprintf(out, "telegram.bot_token: %s\n", maskSecret(cfg.Telegram.BotToken))
			fmt.Fprintf(out, "telegram.report_chat_id: %d\n", cfg.Telegram.ReportChatID)
			fmt.Fprintf(out, "logging.format:     %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "logging.level:      %s\n", cfg.Logging.Level)
			return nil
		},
	}
}

// maskSecret keeps just enough of a credential to recognize it.
func maskSecret(value string) string {
	if value == "" {
		return "(not set)"
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:4] + strings.Repeat("*", len(value)-4)
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set the storage and Yandex Cloud credentials before running callscribe.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if ctx.configFlag != nil {
				configPath = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, path, exists, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
