package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"conductor/internal/config"
	"conductor/internal/decomposer"
	"conductor/internal/exec"
	"conductor/internal/executor"
	"conductor/internal/git"
	"conductor/internal/orchestrator"
	"conductor/internal/parallel"
	"conductor/internal/planner"
	"conductor/internal/registry"
	"conductor/internal/remote"
	"conductor/internal/runner"
	"conductor/internal/sandbox"
	"conductor/internal/state"
)

// app bundles the wired-up components behind each command.
type app struct {
	cfg          *config.Config
	orchestrator *orchestrator.Orchestrator
	store        *state.DB
	logger       *orchestrator.DebugLogger
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.logger != nil {
		a.logger.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// newApp loads configuration and wires the orchestrator against the
// repository in the current working directory.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	apiKey, _ := config.GetAPIKey(cfg)
	modelRunner, err := runner.NewAnthropicRunner(runner.AnthropicConfig{
		APIKey:        apiKey,
		Model:         cfg.Anthropic.Model,
		MaxTokens:     cfg.Anthropic.MaxTokens,
		UseAWSBedrock: cfg.Anthropic.UseAWSBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("creating runner: %w", err)
	}

	store, err := openStateDB(cfg, cwd)
	if err != nil {
		return nil, err
	}

	logger, err := newDebugLogger(cwd)
	if err != nil {
		store.Close()
		return nil, err
	}

	gitClient := git.NewRunner(cwd)
	provisioner := sandbox.NewWorktreeProvisioner(
		gitClient,
		exec.NewRunner(),
		filepath.Join(cwd, ".conductor", "worktrees"),
	)

	var host remote.Host
	if cfg.Remote.BaseURL != "" {
		host = remote.NewHTTPHost(cfg.Remote.BaseURL, cfg.Remote.Token)
	}

	orch := orchestrator.New(reg, modelRunner, store, provisioner, gitClient, orchestrator.Options{
		Project:           filepath.Base(cwd),
		PlannerStrategy:   planner.Strategy(cfg.Planner.Strategy),
		ExecutorConfig:    executorConfig(cfg),
		DecomposerConfig:  decomposerConfig(cfg),
		ParallelConfig:    parallelConfig(cfg),
		IntegrationBranch: cfg.Parallel.IntegrationBranch,
		Remote:            host,
		HeartbeatInterval: cfg.State.HeartbeatInterval,
		Logger:            logger,
	})

	return &app{cfg: cfg, orchestrator: orch, store: store, logger: logger}, nil
}

// newStatusApp opens just the task store, without requiring an API key.
// Used by read-only commands (status, list) and by cancel.
func newStatusApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	store, err := openStateDB(cfg, cwd)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, store: store}, nil
}

func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	defs, err := config.LoadAgents(cfg.Agents.Roster)
	if err != nil {
		return nil, fmt.Errorf("loading agent roster: %w", err)
	}

	reg := registry.New()
	for _, def := range defs {
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("registering agent: %w", err)
		}
	}
	return reg, nil
}

func openStateDB(cfg *config.Config, cwd string) (*state.DB, error) {
	var (
		db  *state.DB
		err error
	)
	if cfg.State.Path != "" {
		db, err = state.Open(cfg.State.Path)
	} else {
		db, err = state.OpenProject(cwd)
	}
	if err != nil {
		return nil, fmt.Errorf("opening task store: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating task store: %w", err)
	}

	// Finalize records orphaned by a previous crash before serving.
	staleAfter := cfg.State.StaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Minute
	}
	if _, err := db.SyncLiveness(staleAfter); err != nil {
		db.Close()
		return nil, fmt.Errorf("syncing task liveness: %w", err)
	}

	// Drop finished records past the retention window.
	if cfg.State.PurgeAfter > 0 {
		if _, err := db.PurgeOldTasks(cfg.State.PurgeAfter); err != nil {
			db.Close()
			return nil, fmt.Errorf("purging old tasks: %w", err)
		}
	}

	return db, nil
}

func newDebugLogger(cwd string) (*orchestrator.DebugLogger, error) {
	if os.Getenv("CONDUCTOR_DEBUG") == "" {
		return orchestrator.NewDebugLogger("")
	}
	return orchestrator.NewDebugLogger(filepath.Join(cwd, ".conductor", "debug.log"))
}

func executorConfig(cfg *config.Config) executor.Config {
	return executor.Config{
		MaxIterations:   cfg.Executor.MaxIterations,
		RepeatThreshold: cfg.Executor.RepeatThreshold,
		ReviewRounds:    cfg.Executor.ReviewRounds,
		DialogueRounds:  cfg.Executor.DialogueRounds,
		InvokeTimeout:   cfg.Executor.InvokeTimeout,
		RetryAttempts:   cfg.Executor.RetryAttempts,
		RetryBaseDelay:  cfg.Executor.RetryBaseDelay,
		Roles:           executor.DefaultRoles(),
	}
}

func decomposerConfig(cfg *config.Config) decomposer.Config {
	return decomposer.Config{
		ComplexityThreshold: cfg.Decomposer.ComplexityThreshold,
		MaxSubtasks:         cfg.Decomposer.MaxSubtasks,
	}
}

func parallelConfig(cfg *config.Config) parallel.Config {
	return parallel.Config{
		MaxConcurrent: cfg.Parallel.MaxConcurrent,
		BranchPrefix:  cfg.Parallel.BranchPrefix,
	}
}
