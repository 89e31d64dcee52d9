package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"conductor/internal/registry"
	"conductor/pkg/models"
)

func TestDefaultAgentsRegister(t *testing.T) {
	reg := registry.New()
	for _, def := range DefaultAgents() {
		if err := reg.Register(def); err != nil {
			t.Fatalf("registering %q: %v", def.Name, err)
		}
	}

	for _, name := range []string{"architect", "coder", "reviewer", "analyst", "clarifier"} {
		if !reg.Has(name) {
			t.Errorf("built-in roster missing %q", name)
		}
	}

	coder, err := reg.Get("coder")
	if err != nil {
		t.Fatalf("get coder: %v", err)
	}
	if coder.Scope != models.ScopeFull {
		t.Errorf("expected coder scope full, got %q", coder.Scope)
	}
	if !coder.HasCapability("implement") {
		t.Error("expected coder to carry the implement capability")
	}
}

func TestLoadAgentsEmptyPathUsesBuiltins(t *testing.T) {
	defs, err := LoadAgents("")
	if err != nil {
		t.Fatalf("LoadAgents: %v", err)
	}
	if len(defs) != len(DefaultAgents()) {
		t.Errorf("expected %d built-in agents, got %d", len(DefaultAgents()), len(defs))
	}
}

func TestLoadAgentsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	content := `agents:
  - name: migrator
    capabilities: [implement, migrate]
    scope: full
    cost_estimate: 0.3
    model: claude-test
    prompt: You write database migrations.
  - name: auditor
    capabilities: [review]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing roster: %v", err)
	}

	defs, err := LoadAgents(path)
	if err != nil {
		t.Fatalf("LoadAgents: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(defs))
	}

	if defs[0].Name != "migrator" || defs[0].Scope != models.ScopeFull {
		t.Errorf("unexpected first agent: %+v", defs[0])
	}
	if defs[0].Model != "claude-test" {
		t.Errorf("expected model hint preserved, got %q", defs[0].Model)
	}

	// Scope defaults to read-only when omitted.
	if defs[1].Scope != models.ScopeReadOnly {
		t.Errorf("expected default read_only scope, got %q", defs[1].Scope)
	}
}

func TestLoadAgentsRejectsBadRosters(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty roster",
			content: "agents: []\n",
			wantErr: "no agents",
		},
		{
			name:    "missing name",
			content: "agents:\n  - capabilities: [review]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing capabilities",
			content: "agents:\n  - name: idle\n",
			wantErr: "capability",
		},
		{
			name:    "unknown scope",
			content: "agents:\n  - name: rogue\n    capabilities: [edit]\n    scope: superuser\n",
			wantErr: "unknown scope",
		},
		{
			name:    "negative cost",
			content: "agents:\n  - name: cheap\n    capabilities: [edit]\n    cost_estimate: -1\n",
			wantErr: "negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "agents.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatalf("writing roster: %v", err)
			}

			_, err := LoadAgents(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAgentsMissingFile(t *testing.T) {
	if _, err := LoadAgents(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing roster file")
	}
}
