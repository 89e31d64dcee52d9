package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner implements Client using the git CLI.
type ExecRunner struct {
	repoPath string
}

// NewRunner creates a git runner for the repository at the given path.
func NewRunner(repoPath string) *ExecRunner {
	return &ExecRunner{repoPath: repoPath}
}

// RepoPath returns the repository path this runner operates on.
func (r *ExecRunner) RepoPath() string {
	return r.repoPath
}

// run executes a git command and returns its trimmed output.
func (r *ExecRunner) run(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// runSilent executes a git command and discards output.
func (r *ExecRunner) runSilent(args ...string) error {
	_, err := r.run(args...)
	return err
}

// CurrentBranch returns the name of the checked-out branch.
func (r *ExecRunner) CurrentBranch() (string, error) {
	return r.run("rev-parse", "--abbrev-ref", "HEAD")
}

// CreateBranch creates a new branch at the current HEAD.
func (r *ExecRunner) CreateBranch(name string) error {
	return r.runSilent("branch", name)
}

// CheckoutBranch switches to the specified branch.
func (r *ExecRunner) CheckoutBranch(name string) error {
	return r.runSilent("checkout", name)
}

// BranchExists returns true if the branch exists.
func (r *ExecRunner) BranchExists(name string) (bool, error) {
	cmd := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	if err := cmd.Run(); err != nil {
		// Exit code 1 means the branch does not exist.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch force-deletes the specified branch.
func (r *ExecRunner) DeleteBranch(name string) error {
	return r.runSilent("branch", "-D", name)
}

// Add stages the specified paths.
func (r *ExecRunner) Add(paths ...string) error {
	args := append([]string{"add"}, paths...)
	return r.runSilent(args...)
}

// Commit creates a commit with the given message.
func (r *ExecRunner) Commit(message string) error {
	return r.runSilent("commit", "-m", message)
}

// Merge merges branch into the current branch with --no-ff. On conflict
// it collects the unmerged paths, aborts the merge, and returns them.
// Conflicting content is never force-overwritten.
func (r *ExecRunner) Merge(branch string) (MergeResult, error) {
	if err := r.runSilent("merge", "--no-ff", branch); err == nil {
		return MergeResult{Success: true}, nil
	}

	conflicts, cerr := r.conflictedFiles()
	if cerr != nil {
		_ = r.runSilent("merge", "--abort")
		return MergeResult{}, fmt.Errorf("list conflicted files: %w", cerr)
	}
	if len(conflicts) == 0 {
		// Merge failed for a reason other than a textual conflict.
		_ = r.runSilent("merge", "--abort")
		return MergeResult{}, fmt.Errorf("merge %s failed without conflicts", branch)
	}

	if err := r.runSilent("merge", "--abort"); err != nil {
		return MergeResult{}, fmt.Errorf("abort conflicted merge: %w", err)
	}
	return MergeResult{Success: false, ConflictingPaths: conflicts}, nil
}

// conflictedFiles returns files with unmerged changes.
func (r *ExecRunner) conflictedFiles() ([]string, error) {
	out, err := r.run("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Diff returns the diff between the current state and base.
func (r *ExecRunner) Diff(base string) (string, error) {
	return r.run("diff", base)
}

// WorktreeAdd creates a worktree at path on a new branch.
func (r *ExecRunner) WorktreeAdd(path, branch string) error {
	return r.runSilent("worktree", "add", "-b", branch, path)
}

// WorktreeRemove removes the worktree at path.
func (r *ExecRunner) WorktreeRemove(path string) error {
	return r.runSilent("worktree", "remove", "--force", path)
}

var _ Client = (*ExecRunner)(nil)
