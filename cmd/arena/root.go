package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "arena",
	Short: "Arena: dual-variant upgrade runs with tournament winner selection",
	Long: `Arena executes configured upgrade modules step by step, racing a primary
and a refiner variant in isolated workspaces. Each step's results are ranked
by a weighted tournament and the winner's changes are merged back into the
repository.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}
