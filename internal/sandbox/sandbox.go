// Package sandbox provides isolated workspaces for parallel subtask
// execution. Provisioning is a collaborator boundary; the local
// implementation uses git worktrees.
package sandbox

import "context"

// Spec describes the sandbox to provision.
type Spec struct {
	// TaskID identifies the owning subtask.
	TaskID string
	// Branch is the branch the sandbox works on.
	Branch string
}

// Handle identifies a provisioned sandbox.
type Handle struct {
	// ID is the provisioner-assigned identifier.
	ID string
	// Workdir is the sandbox's working directory.
	Workdir string
	// Branch is the branch the sandbox works on.
	Branch string
}

// Provisioner creates, drives, and tears down sandboxes.
type Provisioner interface {
	// Create provisions a sandbox for the given spec.
	Create(ctx context.Context, spec Spec) (Handle, error)
	// Exec runs a command inside the sandbox and returns its output.
	Exec(ctx context.Context, handle Handle, command string) ([]byte, error)
	// Destroy tears the sandbox down. Safe to call on a dead handle.
	Destroy(ctx context.Context, handle Handle) error
}
