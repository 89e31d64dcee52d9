// Package decomposer splits a large task into independent subtasks for
// parallel execution. Rejection is the safe default: a task that cannot
// be cleanly separated falls back to sequential mode.
package decomposer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"conductor/internal/graph"
	"conductor/internal/runner"
	"conductor/pkg/models"
)

// ErrNotDecomposable signals that the task should run sequentially.
// Callers treat it as a mode decision, not a failure.
var ErrNotDecomposable = errors.New("task is not decomposable")

// Config bounds decomposition.
type Config struct {
	// ComplexityThreshold is the minimum complexity score for a task
	// to be considered for splitting.
	ComplexityThreshold int
	// MaxSubtasks caps the number of subtasks in an accepted plan.
	MaxSubtasks int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{ComplexityThreshold: 3, MaxSubtasks: 8}
}

// Decomposer proposes independent subtasks for a task description.
// A nil runner disables model-assisted extraction.
type Decomposer struct {
	runner runner.Runner
	cfg    Config
}

// New creates a Decomposer. Zero config fields are filled with defaults.
func New(r runner.Runner, cfg Config) *Decomposer {
	def := DefaultConfig()
	if cfg.ComplexityThreshold <= 0 {
		cfg.ComplexityThreshold = def.ComplexityThreshold
	}
	if cfg.MaxSubtasks <= 0 {
		cfg.MaxSubtasks = def.MaxSubtasks
	}
	return &Decomposer{runner: r, cfg: cfg}
}

// Decompose returns an accepted parallel plan, or ErrNotDecomposable
// when the task is too small, too entangled, or its dependencies cycle.
// Accepted plans guarantee that no two subtasks share a target file.
func (d *Decomposer) Decompose(ctx context.Context, task string, projectFiles []string) ([]*models.Subtask, error) {
	if ComplexityScore(task) < d.cfg.ComplexityThreshold {
		return nil, fmt.Errorf("complexity below threshold %d: %w", d.cfg.ComplexityThreshold, ErrNotDecomposable)
	}

	candidates := d.extract(ctx, task, projectFiles)
	if len(candidates) < 2 {
		return nil, fmt.Errorf("fewer than two independent candidates: %w", ErrNotDecomposable)
	}
	if len(candidates) > d.cfg.MaxSubtasks {
		return nil, fmt.Errorf("%d candidates exceed cap %d: %w", len(candidates), d.cfg.MaxSubtasks, ErrNotDecomposable)
	}

	subtasks := mergeConflicting(candidates)
	if len(subtasks) < 2 {
		return nil, fmt.Errorf("conflict merging collapsed the plan: %w", ErrNotDecomposable)
	}

	if err := graph.New().Build(subtasks); err != nil {
		return nil, fmt.Errorf("dependency validation failed (%v): %w", err, ErrNotDecomposable)
	}
	return subtasks, nil
}

// extract produces candidate subtasks, preferring the model when a
// runner is configured and falling back to clause splitting.
func (d *Decomposer) extract(ctx context.Context, task string, projectFiles []string) []*models.Subtask {
	if d.runner != nil {
		candidates, err := d.extractWithModel(ctx, task, projectFiles)
		if err == nil {
			return candidates
		}
		log.Printf("decomposer: model extraction failed, using clause splitting: %v", err)
	}
	return extractClauses(task)
}

// decomposerAgentName is the registry role consulted for extraction.
const decomposerAgentName = "architect"

// extractedSubtask is the JSON shape requested from the model.
type extractedSubtask struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Files       []string `json:"files"`
	DependsOn   []string `json:"depends_on"`
}

var subtaskBlockRe = regexp.MustCompile(`(?s)\[\s*\{.*\}\s*\]`)

func (d *Decomposer) extractWithModel(ctx context.Context, task string, projectFiles []string) ([]*models.Subtask, error) {
	prompt := fmt.Sprintf(extractionPrompt, task, strings.Join(projectFiles, "\n"))
	def := models.AgentDef{Name: decomposerAgentName, Model: "", Prompt: ""}

	result, err := d.runner.Invoke(ctx, def, prompt, runner.Session{})
	if err != nil {
		return nil, fmt.Errorf("invoke extraction: %w", err)
	}

	block := subtaskBlockRe.FindString(result.Content)
	if block == "" {
		return nil, fmt.Errorf("no subtask array in response")
	}

	var raw []extractedSubtask
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil, fmt.Errorf("decode subtask array: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty subtask array")
	}

	// Re-key with fresh ids so model-chosen ids cannot collide with
	// persisted records; depends_on references are remapped.
	idMap := make(map[string]string, len(raw))
	subtasks := make([]*models.Subtask, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Description) == "" {
			return nil, fmt.Errorf("subtask with empty description")
		}
		id := uuid.New().String()[:8]
		idMap[r.ID] = id
		subtasks = append(subtasks, &models.Subtask{
			ID:          id,
			Description: strings.TrimSpace(r.Description),
			TargetFiles: normalizeFiles(r.Files),
		})
	}
	for i, r := range raw {
		for _, dep := range r.DependsOn {
			mapped, ok := idMap[dep]
			if !ok {
				return nil, fmt.Errorf("subtask %s depends on unknown id %q", subtasks[i].ID, dep)
			}
			subtasks[i].DependsOn = append(subtasks[i].DependsOn, mapped)
		}
	}
	return subtasks, nil
}

func normalizeFiles(files []string) []string {
	out := make([]string, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

const extractionPrompt = `Split the following task into independent subtasks
that can be implemented concurrently in separate working copies.

Task: %s

Project files:
%s

Rules:
- Each subtask lists every file it will touch under "files".
- Two subtasks must not touch the same file.
- Use "depends_on" only for genuine ordering requirements.

Respond with a JSON array only:
[{"id": "a", "description": "...", "files": ["path"], "depends_on": []}]`
