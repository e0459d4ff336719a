package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Napageneral/smsexport/internal/config"
	"github.com/Napageneral/smsexport/internal/logging"
	"github.com/Napageneral/smsexport/internal/pipeline"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "smsexport",
		Short: "Export text-message history from an iPhone device backup",
	}

	var (
		flagBackup  string
		flagOut     string
		flagFormat  string
		flagConfig  string
		flagVerbose bool
	)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Extract messages from a backup and write one file per conversation",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flagConfig, flagBackup, flagOut, flagFormat, flagVerbose)
			if err != nil {
				return err
			}

			logger := logging.New(cfg.Verbose)
			defer logger.Sync()

			result, err := pipeline.Run(cfg, logger)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	exportCmd.Flags().StringVar(&flagBackup, "backup", "", "backup root directory")
	exportCmd.Flags().StringVar(&flagOut, "out", "", "base directory for the export")
	exportCmd.Flags().StringVar(&flagFormat, "format", "", "output format: text, csv or json")
	exportCmd.Flags().StringVar(&flagConfig, "config", "", "path to config file")
	exportCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print statistics about the stores inside a backup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flagConfig, flagBackup, "", "", false)
			if err != nil {
				return err
			}

			stats, err := pipeline.Inspect(cfg.BackupRoot)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
	inspectCmd.Flags().StringVar(&flagBackup, "backup", "", "backup root directory")
	inspectCmd.Flags().StringVar(&flagConfig, "config", "", "path to config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(map[string]interface{}{
				"version": version,
			})
		},
	}

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config file and environment, then applies CLI
// flags, which win over everything else.
func loadConfig(configPath, backup, out, format string, verbose bool) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if backup != "" {
		cfg.BackupRoot = backup
	}
	if out != "" {
		cfg.ExportBase = out
	}
	if format != "" {
		cfg.Format = format
	}
	if verbose {
		cfg.Verbose = true
	}
	if cfg.BackupRoot == "" {
		return nil, fmt.Errorf("no backup root: pass --backup or set backup_root in the config")
	}
	return cfg, nil
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
