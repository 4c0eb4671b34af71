package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"staff-arabia/infrastructure"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version info",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("staff-arabia %s\n", infrastructure.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
