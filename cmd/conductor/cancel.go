package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"conductor/internal/state"
	"conductor/pkg/models"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task",
	Long: `Mark a task as cancelled.

Cancelling an already-finished task is a no-op. A running task owned
by a live supervisor observes the cancelled record on its next status
write; a task orphaned by a dead supervisor is finalized immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func runCancel(cmd *cobra.Command, args []string) error {
	id := args[0]

	a, err := newStatusApp()
	if err != nil {
		return err
	}
	defer a.Close()

	record, err := a.store.GetTask(id)
	if err != nil {
		return fmt.Errorf("get task %s: %w", id, err)
	}

	if record.Status.Terminal() {
		fmt.Printf("Task %s is already %s.\n", id, record.Status)
		return nil
	}

	status := models.TaskStatusCancelled
	reason := "cancelled by user"
	err = a.store.UpdateTask(id, state.TaskUpdate{Status: &status, Error: &reason})
	if err != nil && !errors.Is(err, state.ErrTaskFinal) {
		return fmt.Errorf("cancel task %s: %w", id, err)
	}

	fmt.Printf("%s task %s cancelled\n", color.YellowString("⊘"), id)
	return nil
}
