package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"conductor/internal/orchestrator"
	"conductor/pkg/models"
)

var (
	runMode          string
	runMaxIterations int
)

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Run a software change task",
	Long: `Submit a task and drive it to completion.

Execution modes (--mode):
  auto        Decompose when the task splits cleanly, otherwise run
              a single agent sequence (default)
  sequential  Always run a single planned agent sequence
  parallel    Require decomposition into concurrent subtasks

The command streams agent progress and blocks until the task reaches
a terminal state. Press Ctrl-C to cancel the running task.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "auto", "Execution mode: auto, sequential, or parallel")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "Override the handoff iteration ceiling")
}

func runTask(cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")

	mode, err := parseMode(runMode)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go streamEvents(a.orchestrator.Events(), done)

	taskID, err := a.orchestrator.SubmitTask(ctx, description, orchestrator.SubmitOptions{
		Mode:          mode,
		MaxIterations: runMaxIterations,
		Background:    true,
	})
	if err != nil {
		return fmt.Errorf("submitting task: %w", err)
	}
	fmt.Printf("Task %s submitted (%s mode)\n", color.CyanString(taskID), mode)

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

// waitTerminal polls the task until it reaches a terminal status. A
// cancelled context requests task cancellation and keeps waiting for
// the terminal record.
func waitTerminal(ctx context.Context, a *app, taskID string) (*models.TaskRecord, error) {
	cancelRequested := false
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		record, err := a.orchestrator.GetStatus(taskID)
		if err != nil {
			return nil, fmt.Errorf("polling task %s: %w", taskID, err)
		}
		if record.Status.Terminal() {
			return record, nil
		}

		select {
		case <-ctx.Done():
			if !cancelRequested {
				cancelRequested = true
				fmt.Println("\nCancelling...")
				if err := a.orchestrator.Cancel(taskID); err != nil {
					return nil, fmt.Errorf("cancelling task %s: %w", taskID, err)
				}
			}
			time.Sleep(100 * time.Millisecond)
		case <-ticker.C:
		}
	}
}

func streamEvents(events <-chan orchestrator.Event, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			printEvent(ev)
		case <-done:
			return
		}
	}
}

func printEvent(ev orchestrator.Event) {
	if line := eventLine(ev); line != "" {
		fmt.Println(line)
	}
}

// eventLine formats a progress event for the terminal. Returns the
// empty string for event types with no display line.
func eventLine(ev orchestrator.Event) string {
	switch ev.Type {
	case orchestrator.EventTaskStarted:
		return fmt.Sprintf("%s task started", color.CyanString("▶"))
	case orchestrator.EventAgentTurn:
		if ev.Cost > 0 {
			return fmt.Sprintf("%s %s ($%.4f)", color.BlueString("●"), ev.Agent, ev.Cost)
		}
		return fmt.Sprintf("%s %s", color.BlueString("●"), ev.Agent)
	case orchestrator.EventSubtaskFinished:
		return fmt.Sprintf("%s subtask %s: %s", color.MagentaString("◆"), ev.SubtaskID, ev.Message)
	case orchestrator.EventMergeFinished:
		return fmt.Sprintf("%s %s", color.MagentaString("⇄"), ev.Message)
	case orchestrator.EventTaskCompleted:
		return fmt.Sprintf("%s task completed", color.GreenString("✓"))
	case orchestrator.EventTaskFailed:
		return fmt.Sprintf("%s task failed: %s", color.RedString("✗"), ev.Message)
	case orchestrator.EventTaskCancelled:
		return fmt.Sprintf("%s task cancelled", color.YellowString("⊘"))
	default:
		return ""
	}
}

func printOutcome(record *models.TaskRecord) {
	fmt.Println()
	fmt.Printf("Status: %s\n", statusString(record.Status))
	if record.Cost > 0 {
		fmt.Printf("Cost:   $%.4f\n", record.Cost)
	}
	if record.Error != "" {
		fmt.Printf("Error:  %s\n", record.Error)
	}
	if len(record.Subtasks) > 0 {
		fmt.Printf("Subtasks:\n")
		for _, sub := range record.Subtasks {
			fmt.Printf("  %s %s (%s)\n", sub.SubtaskID, sub.State, sub.Branch)
		}
	}
}

func parseMode(s string) (models.ExecutionMode, error) {
	switch models.ExecutionMode(s) {
	case models.ModeAuto, models.ModeSequential, models.ModeParallel:
		return models.ExecutionMode(s), nil
	case "":
		return models.ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown mode %q: expected auto, sequential, or parallel", s)
	}
}

func statusString(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusCompleted:
		return color.GreenString(string(s))
	case models.TaskStatusFailed:
		return color.RedString(string(s))
	case models.TaskStatusCancelled:
		return color.YellowString(string(s))
	case models.TaskStatusRunning:
		return color.CyanString(string(s))
	default:
		return string(s)
	}
}
