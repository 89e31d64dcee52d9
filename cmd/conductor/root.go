package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Multi-agent software change orchestrator",
	Long: `Conductor orchestrates specialized model-backed agents on software
change tasks. A planner selects an agent sequence for the task, the
handoff executor drives the agents until the work is approved, and
complex tasks are decomposed into subtasks that run concurrently in
isolated git worktrees before their branches are merged back.

Task state is persisted in SQLite so tasks can be inspected,
cancelled, and retried across process restarts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
