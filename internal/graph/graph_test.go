package graph

import (
	"errors"
	"testing"

	"conductor/pkg/models"
)

func TestBuildAndReady(t *testing.T) {
	g := New()
	subtasks := []*models.Subtask{
		{ID: "a", Description: "first"},
		{ID: "b", Description: "second", DependsOn: []string{"a"}},
		{ID: "c", Description: "third", DependsOn: []string{"a"}},
	}

	if err := g.Build(subtasks); err != nil {
		t.Fatalf("build: %v", err)
	}

	ready := g.GetReady()
	if len(ready) != 1 || ready[0] != "a" {
		t.Errorf("expected only a ready, got %v", ready)
	}

	g.MarkComplete("a")
	ready = g.GetReady()
	if len(ready) != 2 {
		t.Errorf("expected b and c ready, got %v", ready)
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	g := New()
	err := g.Build([]*models.Subtask{
		{ID: "a", DependsOn: []string{"ghost"}},
	})
	if err == nil {
		t.Error("expected error for unknown dependency")
	}
}

func TestBuildCycle(t *testing.T) {
	g := New()
	err := g.Build([]*models.Subtask{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	})
	if !errors.Is(err, ErrCycleDetected) {
		t.Errorf("expected ErrCycleDetected, got %v", err)
	}
}

func TestGetReadyChain(t *testing.T) {
	g := New()
	if err := g.Build([]*models.Subtask{
		{ID: "a"},
		{ID: "b", DependsOn: []string{"a"}},
		{ID: "c", DependsOn: []string{"b"}},
	}); err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, want := range []string{"a", "b", "c"} {
		ready := g.GetReady()
		if len(ready) != 1 || ready[0] != want {
			t.Fatalf("expected only %s ready, got %v", want, ready)
		}
		if g.Get(want) == nil {
			t.Fatalf("expected %s in graph", want)
		}
		g.MarkComplete(want)
	}
	if ready := g.GetReady(); len(ready) != 0 {
		t.Errorf("expected nothing ready after completion, got %v", ready)
	}
}
