package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"conductor/internal/orchestrator"
	"conductor/pkg/models"
)

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Retry a finished task",
	Long: `Re-run a failed, cancelled, or completed task.

The retry is a new task record linked to the original; the original
record is left untouched. Only terminal tasks can be retried.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func runRetry(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go streamEvents(a.orchestrator.Events(), done)

	taskID, err := a.orchestrator.Retry(ctx, args[0], orchestrator.SubmitOptions{Background: true})
	if err != nil {
		return fmt.Errorf("retry task %s: %w", args[0], err)
	}
	fmt.Printf("Task %s retried as %s\n", args[0], color.CyanString(taskID))

	record, err := waitTerminal(ctx, a, taskID)
	if err != nil {
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.orchestrator.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: shutdown: %v\n", err)
	}
	close(done)

	printOutcome(record)
	if record.Status != models.TaskStatusCompleted {
		os.Exit(1)
	}
	return nil
}
