package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"conductor/internal/state"
	"conductor/pkg/models"
)

var (
	listStatus  string
	listProject string
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tasks",
	Long: `List tasks in the task store, newest first.

Filter with --status (pending, running, completed, failed, cancelled)
and --project.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by lifecycle status")
	listCmd.Flags().StringVar(&listProject, "project", "", "Filter by project name")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of tasks to show")
}

func runList(cmd *cobra.Command, args []string) error {
	filter := state.TaskFilter{Project: listProject}
	if listStatus != "" {
		status := models.TaskStatus(listStatus)
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", listStatus)
		}
		filter.Status = status
	}

	a, err := newStatusApp()
	if err != nil {
		return err
	}
	defer a.Close()

	records, err := a.store.ListTasks(filter)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}
	if listLimit > 0 && len(records) > listLimit {
		records = records[:listLimit]
	}

	for _, record := range records {
		desc := record.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		fmt.Printf("%s  %-10s  %-10s  %s ago  %s\n",
			record.ID,
			statusString(record.Status),
			record.Mode,
			formatDuration(time.Since(record.CreatedAt)),
			desc)
	}
	return nil
}
