package main

import (
	"github.com/spf13/cobra"

	"staff-arabia/infrastructure"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "staff-arabia",
	Short: "Staff Arabia job board API",
	Long:  "Staff Arabia serves job postings and contact form submissions over HTTP.",
	// No subcommand runs the API server.
	RunE:         runServe,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file (default: CONFIG_FILE env var)")
}

func loadConfig() (*infrastructure.Config, error) {
	return infrastructure.LoadConfig(cfgPath)
}
