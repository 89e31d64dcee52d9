package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"conductor/internal/exec"
	"conductor/internal/git"
)

// WorktreeProvisioner provisions sandboxes as git worktrees under a
// scratch directory, one branch per subtask.
type WorktreeProvisioner struct {
	git      git.Client
	commands exec.CommandRunner
	baseDir  string
}

// NewWorktreeProvisioner creates a worktree-backed provisioner.
// Worktrees are placed under baseDir, which is created on demand.
func NewWorktreeProvisioner(gitClient git.Client, commands exec.CommandRunner, baseDir string) *WorktreeProvisioner {
	return &WorktreeProvisioner{
		git:      gitClient,
		commands: commands,
		baseDir:  baseDir,
	}
}

// Create provisions a worktree on a fresh branch for the subtask.
func (p *WorktreeProvisioner) Create(ctx context.Context, spec Spec) (Handle, error) {
	if err := os.MkdirAll(p.baseDir, 0755); err != nil {
		return Handle{}, fmt.Errorf("create sandbox base dir: %w", err)
	}

	path := filepath.Join(p.baseDir, spec.TaskID)
	if err := p.git.WorktreeAdd(path, spec.Branch); err != nil {
		return Handle{}, fmt.Errorf("provision worktree for %s: %w", spec.TaskID, err)
	}

	return Handle{ID: spec.TaskID, Workdir: path, Branch: spec.Branch}, nil
}

// Exec runs a shell command inside the sandbox worktree.
func (p *WorktreeProvisioner) Exec(ctx context.Context, handle Handle, command string) ([]byte, error) {
	return p.commands.RunShell(ctx, handle.Workdir, command)
}

// Destroy removes the worktree. The branch is kept; the merger owns
// branch cleanup after integration.
func (p *WorktreeProvisioner) Destroy(ctx context.Context, handle Handle) error {
	if handle.Workdir == "" {
		return nil
	}
	if err := p.git.WorktreeRemove(handle.Workdir); err != nil {
		return fmt.Errorf("remove worktree %s: %w", handle.Workdir, err)
	}
	return nil
}

var _ Provisioner = (*WorktreeProvisioner)(nil)
