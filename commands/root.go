// Package commands wires the cobra command line.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"neurallog/config"
	"neurallog/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "neurallog",
	Short: "Personal activity log server",
	Long: `Neural Log records daily activities with a duration and a progress score,
summarises them, snapshots milestone insights and exports them to Excel.

Running it without a subcommand starts the web server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a JSON or YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration and applies its logging settings.
func loadConfig() (config.Config, error) {
	if err := config.LoadConfig(configPath); err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg := config.AppConfig
	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return cfg, nil
}
