package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"conductor/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify conductor configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/conductor/config.yaml.
Project-specific overrides can be placed in .conductor.yaml.
The ANTHROPIC_API_KEY environment variable overrides both.`,
	Args: cobra.MaximumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

func displayConfig(cfg *config.Config) {
	key, _ := config.GetAPIKey(cfg)

	fmt.Printf("anthropic.api_key: %s (%s)\n", config.MaskAPIKey(key), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("planner.strategy: %s\n", cfg.Planner.Strategy)
	fmt.Printf("executor.max_iterations: %d\n", cfg.Executor.MaxIterations)
	fmt.Printf("executor.repeat_threshold: %d\n", cfg.Executor.RepeatThreshold)
	fmt.Printf("executor.review_rounds: %d\n", cfg.Executor.ReviewRounds)
	fmt.Printf("executor.dialogue_rounds: %d\n", cfg.Executor.DialogueRounds)
	fmt.Printf("executor.invoke_timeout: %s\n", cfg.Executor.InvokeTimeout)
	fmt.Printf("decomposer.complexity_threshold: %d\n", cfg.Decomposer.ComplexityThreshold)
	fmt.Printf("decomposer.max_subtasks: %d\n", cfg.Decomposer.MaxSubtasks)
	fmt.Printf("parallel.max_concurrent: %d\n", cfg.Parallel.MaxConcurrent)
	fmt.Printf("parallel.branch_prefix: %s\n", cfg.Parallel.BranchPrefix)
	fmt.Printf("parallel.integration_branch: %s\n", cfg.Parallel.IntegrationBranch)
	fmt.Printf("state.heartbeat_interval: %s\n", cfg.State.HeartbeatInterval)
	fmt.Printf("state.stale_after: %s\n", cfg.State.StaleAfter)
	fmt.Printf("state.purge_after: %s\n", cfg.State.PurgeAfter)
	fmt.Printf("agents.roster: %s\n", cfg.Agents.Roster)
	fmt.Printf("remote.base_url: %s\n", cfg.Remote.BaseURL)

	fmt.Println()
	fmt.Printf("user config:    %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("project config: %s\n", project)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.FormatInt(cfg.Anthropic.MaxTokens, 10), nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "planner.strategy":
		return cfg.Planner.Strategy, nil
	case "executor.max_iterations":
		return strconv.Itoa(cfg.Executor.MaxIterations), nil
	case "executor.repeat_threshold":
		return strconv.Itoa(cfg.Executor.RepeatThreshold), nil
	case "executor.review_rounds":
		return strconv.Itoa(cfg.Executor.ReviewRounds), nil
	case "executor.dialogue_rounds":
		return strconv.Itoa(cfg.Executor.DialogueRounds), nil
	case "executor.invoke_timeout":
		return cfg.Executor.InvokeTimeout.String(), nil
	case "decomposer.complexity_threshold":
		return strconv.Itoa(cfg.Decomposer.ComplexityThreshold), nil
	case "decomposer.max_subtasks":
		return strconv.Itoa(cfg.Decomposer.MaxSubtasks), nil
	case "parallel.max_concurrent":
		return strconv.FormatInt(cfg.Parallel.MaxConcurrent, 10), nil
	case "parallel.branch_prefix":
		return cfg.Parallel.BranchPrefix, nil
	case "parallel.integration_branch":
		return cfg.Parallel.IntegrationBranch, nil
	case "state.heartbeat_interval":
		return cfg.State.HeartbeatInterval.String(), nil
	case "state.stale_after":
		return cfg.State.StaleAfter.String(), nil
	case "state.purge_after":
		return cfg.State.PurgeAfter.String(), nil
	case "agents.roster":
		return cfg.Agents.Roster, nil
	case "remote.base_url":
		return cfg.Remote.BaseURL, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_aws_bedrock: %w", err)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "planner.strategy":
		if value != "heuristic" && value != "model" {
			return fmt.Errorf("invalid strategy %q: expected heuristic or model", value)
		}
		cfg.Planner.Strategy = value
	case "executor.max_iterations":
		return setIntField(&cfg.Executor.MaxIterations, key, value)
	case "executor.repeat_threshold":
		return setIntField(&cfg.Executor.RepeatThreshold, key, value)
	case "executor.review_rounds":
		return setIntField(&cfg.Executor.ReviewRounds, key, value)
	case "executor.dialogue_rounds":
		return setIntField(&cfg.Executor.DialogueRounds, key, value)
	case "executor.invoke_timeout":
		return setDurationField(&cfg.Executor.InvokeTimeout, key, value)
	case "decomposer.complexity_threshold":
		return setIntField(&cfg.Decomposer.ComplexityThreshold, key, value)
	case "decomposer.max_subtasks":
		return setIntField(&cfg.Decomposer.MaxSubtasks, key, value)
	case "parallel.max_concurrent":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for max_concurrent: %w", err)
		}
		cfg.Parallel.MaxConcurrent = n
	case "parallel.branch_prefix":
		cfg.Parallel.BranchPrefix = value
	case "parallel.integration_branch":
		cfg.Parallel.IntegrationBranch = value
	case "state.heartbeat_interval":
		return setDurationField(&cfg.State.HeartbeatInterval, key, value)
	case "state.stale_after":
		return setDurationField(&cfg.State.StaleAfter, key, value)
	case "state.purge_after":
		return setDurationField(&cfg.State.PurgeAfter, key, value)
	case "agents.roster":
		cfg.Agents.Roster = value
	case "remote.base_url":
		cfg.Remote.BaseURL = value
	case "remote.token":
		cfg.Remote.Token = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setIntField(field *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*field = n
	return nil
}

func setDurationField(field *time.Duration, key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*field = d
	return nil
}
