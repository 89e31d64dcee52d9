package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"conductor/internal/config"
	"conductor/pkg/models"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agent roster",
	Long: `List the agents available to the planner.

The roster comes from the file named in agents.roster, or the built-in
roster when none is configured.`,
	RunE: runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	defs, err := config.LoadAgents(cfg.Agents.Roster)
	if err != nil {
		return fmt.Errorf("loading agent roster: %w", err)
	}

	source := "built-in"
	if cfg.Agents.Roster != "" {
		source = cfg.Agents.Roster
	}
	fmt.Printf("Agent roster (%s):\n\n", source)

	for _, def := range defs {
		scope := string(def.Scope)
		if def.Scope == models.ScopeFull {
			scope = color.YellowString(scope)
		}
		fmt.Printf("  %s\n", color.CyanString(def.Name))
		fmt.Printf("    capabilities: %s\n", strings.Join(def.Capabilities, ", "))
		fmt.Printf("    scope:        %s\n", scope)
		fmt.Printf("    cost:         $%.2f per turn\n", def.CostEstimate)
		if def.Model != "" {
			fmt.Printf("    model:        %s\n", def.Model)
		}
	}
	return nil
}
