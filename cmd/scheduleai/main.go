// Package main implements the scheduleai CLI: the Telegram bot and a few
// offline helpers that share its configuration.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath points at an optional YAML config file
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scheduleai",
	Short: "Telegram client for the ScheduleAI weekly planner",
	Long: `scheduleai runs a Telegram bot on top of the ScheduleAI REST service.
Users sign in, manage their activities and build weekly routines from chat.

Configuration comes from an optional YAML file and SCHEDULEAI_* environment
variables. TELEGRAM_TOKEN and DATABASE_URL are also read without the prefix.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SCHEDULEAI_CONFIG"), "path to a YAML config file")
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(exportCmd)
}
