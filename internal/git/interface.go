// Package git provides the version-control primitives consumed by the
// branch merger and the sandbox provisioner.
package git

// MergeResult reports the outcome of merging one branch into another.
type MergeResult struct {
	// Success is true if the merge completed cleanly.
	Success bool
	// ConflictingPaths lists the files with textual conflicts when the
	// merge failed. The merge is aborted before returning.
	ConflictingPaths []string
}

// Client defines the version-control operations the orchestrator needs.
type Client interface {
	// CurrentBranch returns the name of the checked-out branch.
	CurrentBranch() (string, error)
	// CreateBranch creates a new branch at the current HEAD.
	CreateBranch(name string) error
	// CheckoutBranch switches to the specified branch.
	CheckoutBranch(name string) error
	// BranchExists returns true if the branch exists.
	BranchExists(name string) (bool, error)
	// DeleteBranch force-deletes the specified branch.
	DeleteBranch(name string) error
	// Add stages the specified paths.
	Add(paths ...string) error
	// Commit creates a commit with the given message.
	Commit(message string) error
	// Merge merges branch into the current branch. On conflict it
	// aborts the merge and reports the conflicting paths.
	Merge(branch string) (MergeResult, error)
	// Diff returns the diff between the current state and base.
	Diff(base string) (string, error)
	// WorktreeAdd creates a worktree at path on a new branch.
	WorktreeAdd(path, branch string) error
	// WorktreeRemove removes the worktree at path.
	WorktreeRemove(path string) error
}
