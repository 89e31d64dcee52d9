package main

import (
	"strings"
	"testing"

	"conductor/internal/orchestrator"
	"conductor/pkg/models"
)

func TestEventLineAgentTurnShowsCost(t *testing.T) {
	line := eventLine(orchestrator.Event{
		Type:  orchestrator.EventAgentTurn,
		Agent: "coder",
		Cost:  0.0312,
	})
	if !strings.Contains(line, "coder") {
		t.Errorf("agent name missing from %q", line)
	}
	if !strings.Contains(line, "$0.0312") {
		t.Errorf("turn cost missing from %q", line)
	}

	// Zero-cost turns print just the agent, with no empty trailer.
	line = eventLine(orchestrator.Event{Type: orchestrator.EventAgentTurn, Agent: "reviewer"})
	if !strings.Contains(line, "reviewer") {
		t.Errorf("agent name missing from %q", line)
	}
	if strings.Contains(line, "$") || strings.HasSuffix(line, ": ") || strings.HasSuffix(line, ":") {
		t.Errorf("unexpected trailer in %q", line)
	}
}

func TestEventLineTerminalEvents(t *testing.T) {
	tests := []struct {
		ev   orchestrator.Event
		want string
	}{
		{orchestrator.Event{Type: orchestrator.EventTaskCompleted}, "task completed"},
		{orchestrator.Event{Type: orchestrator.EventTaskFailed, Message: "merge conflict"}, "merge conflict"},
		{orchestrator.Event{Type: orchestrator.EventTaskCancelled}, "task cancelled"},
		{orchestrator.Event{Type: orchestrator.EventSubtaskFinished, SubtaskID: "s1", Message: "completed"}, "subtask s1"},
	}
	for _, tt := range tests {
		if line := eventLine(tt.ev); !strings.Contains(line, tt.want) {
			t.Errorf("eventLine(%s) = %q, want substring %q", tt.ev.Type, line, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    models.ExecutionMode
		wantErr bool
	}{
		{"auto", models.ModeAuto, false},
		{"sequential", models.ModeSequential, false},
		{"parallel", models.ModeParallel, false},
		{"", models.ModeAuto, false},
		{"fast", "", true},
	}
	for _, tt := range tests {
		got, err := parseMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMode(%q) succeeded, want error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
