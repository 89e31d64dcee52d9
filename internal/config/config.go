// Package config handles configuration loading for conductor.
// It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for conductor.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Planner    PlannerConfig    `mapstructure:"planner"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Decomposer DecomposerConfig `mapstructure:"decomposer"`
	Parallel   ParallelConfig   `mapstructure:"parallel"`
	State      StateConfig      `mapstructure:"state"`
	Agents     AgentsConfig     `mapstructure:"agents"`
	Remote     RemoteConfig     `mapstructure:"remote"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	MaxTokens     int64  `mapstructure:"max_tokens"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// PlannerConfig holds plan-generation settings.
type PlannerConfig struct {
	// Strategy is "heuristic" or "model".
	Strategy string `mapstructure:"strategy"`
}

// ExecutorConfig holds handoff-loop bounds.
type ExecutorConfig struct {
	MaxIterations   int           `mapstructure:"max_iterations"`
	RepeatThreshold int           `mapstructure:"repeat_threshold"`
	ReviewRounds    int           `mapstructure:"review_rounds"`
	DialogueRounds  int           `mapstructure:"dialogue_rounds"`
	InvokeTimeout   time.Duration `mapstructure:"invoke_timeout"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryBaseDelay  time.Duration `mapstructure:"retry_base_delay"`
}

// DecomposerConfig holds task-splitting settings.
type DecomposerConfig struct {
	ComplexityThreshold int `mapstructure:"complexity_threshold"`
	MaxSubtasks         int `mapstructure:"max_subtasks"`
}

// ParallelConfig holds parallel execution settings.
type ParallelConfig struct {
	MaxConcurrent     int64  `mapstructure:"max_concurrent"`
	BranchPrefix      string `mapstructure:"branch_prefix"`
	IntegrationBranch string `mapstructure:"integration_branch"`
}

// StateConfig holds task-state persistence settings.
type StateConfig struct {
	// Path overrides the default database location when set.
	Path string `mapstructure:"path"`
	// HeartbeatInterval is how often running tasks signal liveness.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// StaleAfter is how long a heartbeat may lapse before a running
	// task is presumed dead.
	StaleAfter time.Duration `mapstructure:"stale_after"`
	// PurgeAfter bounds how long finished tasks are retained.
	PurgeAfter time.Duration `mapstructure:"purge_after"`
}

// RemoteConfig holds repository host settings for publishing change
// requests after a merged parallel run.
type RemoteConfig struct {
	// BaseURL is the host API endpoint. Empty disables publishing.
	BaseURL string `mapstructure:"base_url"`
	// Token is the bearer credential. ${VAR} references are expanded.
	Token string `mapstructure:"token"`
}

// AgentsConfig holds agent roster settings.
type AgentsConfig struct {
	// Roster is the path to a YAML roster file. Empty uses the
	// built-in roster.
	Roster string `mapstructure:"roster"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.conductor.yaml in current directory or parent)
// 3. User config (~/.config/conductor/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Remote.Token = expandEnv(cfg.Remote.Token)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Remote.Token = expandEnv(cfg.Remote.Token)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("planner.strategy", cfg.Planner.Strategy)
	v.Set("executor.max_iterations", cfg.Executor.MaxIterations)
	v.Set("executor.repeat_threshold", cfg.Executor.RepeatThreshold)
	v.Set("executor.review_rounds", cfg.Executor.ReviewRounds)
	v.Set("executor.dialogue_rounds", cfg.Executor.DialogueRounds)
	v.Set("executor.invoke_timeout", cfg.Executor.InvokeTimeout.String())
	v.Set("executor.retry_attempts", cfg.Executor.RetryAttempts)
	v.Set("executor.retry_base_delay", cfg.Executor.RetryBaseDelay.String())
	v.Set("decomposer.complexity_threshold", cfg.Decomposer.ComplexityThreshold)
	v.Set("decomposer.max_subtasks", cfg.Decomposer.MaxSubtasks)
	v.Set("parallel.max_concurrent", cfg.Parallel.MaxConcurrent)
	v.Set("parallel.branch_prefix", cfg.Parallel.BranchPrefix)
	v.Set("parallel.integration_branch", cfg.Parallel.IntegrationBranch)
	v.Set("state.path", cfg.State.Path)
	v.Set("state.heartbeat_interval", cfg.State.HeartbeatInterval.String())
	v.Set("state.stale_after", cfg.State.StaleAfter.String())
	v.Set("state.purge_after", cfg.State.PurgeAfter.String())
	v.Set("agents.roster", cfg.Agents.Roster)
	v.Set("remote.base_url", cfg.Remote.BaseURL)
	v.Set("remote.token", cfg.Remote.Token)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if
// it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Planner: PlannerConfig{
			Strategy: "heuristic",
		},
		Executor: ExecutorConfig{
			MaxIterations:   10,
			RepeatThreshold: 4,
			ReviewRounds:    3,
			DialogueRounds:  2,
			InvokeTimeout:   2 * time.Minute,
			RetryAttempts:   3,
			RetryBaseDelay:  time.Second,
		},
		Decomposer: DecomposerConfig{
			ComplexityThreshold: 3,
			MaxSubtasks:         8,
		},
		Parallel: ParallelConfig{
			MaxConcurrent: 10,
			BranchPrefix:  "conductor",
		},
		State: StateConfig{
			HeartbeatInterval: 15 * time.Second,
			StaleAfter:        time.Minute,
			PurgeAfter:        30 * 24 * time.Hour,
		},
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", def.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", def.Anthropic.MaxTokens)
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("planner.strategy", def.Planner.Strategy)

	v.SetDefault("executor.max_iterations", def.Executor.MaxIterations)
	v.SetDefault("executor.repeat_threshold", def.Executor.RepeatThreshold)
	v.SetDefault("executor.review_rounds", def.Executor.ReviewRounds)
	v.SetDefault("executor.dialogue_rounds", def.Executor.DialogueRounds)
	v.SetDefault("executor.invoke_timeout", def.Executor.InvokeTimeout.String())
	v.SetDefault("executor.retry_attempts", def.Executor.RetryAttempts)
	v.SetDefault("executor.retry_base_delay", def.Executor.RetryBaseDelay.String())

	v.SetDefault("decomposer.complexity_threshold", def.Decomposer.ComplexityThreshold)
	v.SetDefault("decomposer.max_subtasks", def.Decomposer.MaxSubtasks)

	v.SetDefault("parallel.max_concurrent", def.Parallel.MaxConcurrent)
	v.SetDefault("parallel.branch_prefix", def.Parallel.BranchPrefix)
	v.SetDefault("parallel.integration_branch", "")

	v.SetDefault("state.path", "")
	v.SetDefault("state.heartbeat_interval", def.State.HeartbeatInterval.String())
	v.SetDefault("state.stale_after", def.State.StaleAfter.String())
	v.SetDefault("state.purge_after", def.State.PurgeAfter.String())

	v.SetDefault("agents.roster", "")

	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.token", "")
}

// getUserConfigDir returns the XDG config directory for conductor.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "conductor")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conductor")
	}
	return filepath.Join(home, ".config", "conductor")
}

// findProjectConfig searches for .conductor.yaml in the current
// directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".conductor.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
