package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"conductor/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the state of a task",
	Long: `Display the stored state of a task.

Shows:
  - Lifecycle status and execution mode
  - Current agent and completed agent turns
  - Progress estimate and accumulated cost
  - Per-subtask branches and merge dispositions`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newStatusApp()
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.store.GetTask(args[0])
	if err != nil {
		return fmt.Errorf("get task %s: %w", args[0], err)
	}

	displayTask(record)
	return nil
}

func displayTask(record *models.TaskRecord) {
	fmt.Printf("Task %s\n", color.CyanString(record.ID))
	fmt.Printf("  Description: %s\n", record.Description)
	fmt.Printf("  Mode:        %s\n", record.Mode)
	fmt.Printf("  Status:      %s\n", statusString(record.Status))
	fmt.Printf("  Created:     %s ago\n", formatDuration(time.Since(record.CreatedAt)))

	if record.StartedAt != nil {
		if record.CompletedAt != nil {
			fmt.Printf("  Duration:    %s\n", formatDuration(record.CompletedAt.Sub(*record.StartedAt)))
		} else {
			fmt.Printf("  Running:     %s\n", formatDuration(time.Since(*record.StartedAt)))
		}
	}
	if record.CurrentAgent != "" {
		fmt.Printf("  Agent:       %s\n", record.CurrentAgent)
	}
	if len(record.CompletedAgents) > 0 {
		fmt.Printf("  Completed:   %v\n", record.CompletedAgents)
	}
	if record.Progress.Percent > 0 {
		eta := ""
		if record.Progress.ETA > 0 {
			eta = fmt.Sprintf(" (~%s left)", formatDuration(record.Progress.ETA))
		}
		fmt.Printf("  Progress:    %.0f%%%s\n", record.Progress.Percent, eta)
	}
	if record.Cost > 0 {
		fmt.Printf("  Cost:        $%.4f\n", record.Cost)
	}
	if record.RetryOf != "" {
		fmt.Printf("  Retry of:    %s\n", record.RetryOf)
	}
	if record.Error != "" {
		fmt.Printf("  Error:       %s\n", color.RedString(record.Error))
	}

	if len(record.Subtasks) > 0 {
		fmt.Println("  Subtasks:")
		for _, sub := range record.Subtasks {
			detail := string(sub.State)
			if sub.Merge != "" {
				detail += ", " + string(sub.Merge)
			}
			if sub.Error != "" {
				detail += ": " + sub.Error
			}
			fmt.Printf("    %s %s (%s)\n", sub.SubtaskID, sub.Branch, detail)
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
