package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"conductor/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(*config.Config) bool
	}{
		{"anthropic.model", "claude-opus-4-20250514", func(c *config.Config) bool {
			return c.Anthropic.Model == "claude-opus-4-20250514"
		}},
		{"anthropic.max_tokens", "4096", func(c *config.Config) bool {
			return c.Anthropic.MaxTokens == 4096
		}},
		{"anthropic.use_aws_bedrock", "true", func(c *config.Config) bool {
			return c.Anthropic.UseAWSBedrock
		}},
		{"planner.strategy", "model", func(c *config.Config) bool {
			return c.Planner.Strategy == "model"
		}},
		{"executor.max_iterations", "20", func(c *config.Config) bool {
			return c.Executor.MaxIterations == 20
		}},
		{"executor.dialogue_rounds", "4", func(c *config.Config) bool {
			return c.Executor.DialogueRounds == 4
		}},
		{"executor.invoke_timeout", "2m", func(c *config.Config) bool {
			return c.Executor.InvokeTimeout == 2*time.Minute
		}},
		{"decomposer.max_subtasks", "5", func(c *config.Config) bool {
			return c.Decomposer.MaxSubtasks == 5
		}},
		{"parallel.max_concurrent", "3", func(c *config.Config) bool {
			return c.Parallel.MaxConcurrent == 3
		}},
		{"parallel.branch_prefix", "feature", func(c *config.Config) bool {
			return c.Parallel.BranchPrefix == "feature"
		}},
		{"state.purge_after", "720h", func(c *config.Config) bool {
			return c.State.PurgeAfter == 720*time.Hour
		}},
		{"agents.roster", "/etc/conductor/agents.yaml", func(c *config.Config) bool {
			return c.Agents.Roster == "/etc/conductor/agents.yaml"
		}},
		{"remote.base_url", "https://git.example.com/api", func(c *config.Config) bool {
			return c.Remote.BaseURL == "https://git.example.com/api"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.Default()
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue(%q, %q): %v", tt.key, tt.value, err)
			}
			if !tt.check(cfg) {
				t.Errorf("setConfigValue(%q, %q) did not apply", tt.key, tt.value)
			}
		})
	}
}

func TestSetConfigValueRejectsBadInput(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"executor.max_iterations", "lots"},
		{"executor.invoke_timeout", "soon"},
		{"anthropic.use_aws_bedrock", "maybe"},
		{"planner.strategy", "clairvoyant"},
		{"no.such.key", "value"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.Default()
			if err := setConfigValue(cfg, tt.key, tt.value); err == nil {
				t.Errorf("setConfigValue(%q, %q) succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func TestGetConfigValue(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-ant-api03-test12345678"
	cfg.Executor.DialogueRounds = 2
	cfg.Parallel.BranchPrefix = "conductor"

	tests := []struct {
		key  string
		want string
	}{
		{"executor.dialogue_rounds", "2"},
		{"parallel.branch_prefix", "conductor"},
		{"executor.invoke_timeout", cfg.Executor.InvokeTimeout.String()},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q): %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}

	// The API key is never printed raw.
	masked, err := getConfigValue(cfg, "anthropic.api_key")
	if err != nil {
		t.Fatalf("getConfigValue(api_key): %v", err)
	}
	if masked == cfg.Anthropic.APIKey {
		t.Error("api_key returned unmasked")
	}

	if _, err := getConfigValue(cfg, "no.such.key"); err == nil {
		t.Error("unknown key succeeded, want error")
	}
}

func TestSetConfigValueRoundTripsThroughSave(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	cfg := config.Default()
	if err := setConfigValue(cfg, "executor.review_rounds", "5"); err != nil {
		t.Fatalf("setConfigValue: %v", err)
	}
	if err := config.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(tmp, "conductor", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := config.LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Executor.ReviewRounds != 5 {
		t.Errorf("review_rounds = %d after reload, want 5", loaded.Executor.ReviewRounds)
	}
}
