// Package checkout provides the 'checkout' runner: a shallow git clone of
// the source repository at the triggering revision.
package checkout

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the checkout runner.
type Input struct {
	Repository string `hcl:"repository"`
	Ref        string `hcl:"ref,optional"`
	Dest       string `hcl:"dest"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// CloneError carries the diagnostic detail of a failed git invocation.
type CloneError struct {
	Repository string
	Ref        string
	Stderr     string
	ExitCode   int
	Err        error
}

// Error implements the error interface.
func (e *CloneError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git clone failed (exit %d): %s", e.ExitCode, strings.TrimSpace(e.Stderr))
	}
	if e.Err != nil {
		return fmt.Sprintf("git clone failed: %v", e.Err)
	}
	return fmt.Sprintf("git clone failed with exit code %d", e.ExitCode)
}

// Unwrap returns the underlying error.
func (e *CloneError) Unwrap() error {
	return e.Err
}

// OnRunCheckout is the handler for the 'checkout' runner's on_run event.
// It shallow-clones the repository and resolves the checked-out commit.
func OnRunCheckout(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "checkout", "repository", input.Repository, "ref", input.Ref)
	logger.Info("Checking out source", "dest", input.Dest)

	if err := os.MkdirAll(filepath.Dir(input.Dest), 0o755); err != nil {
		return cty.NilVal, fmt.Errorf("failed to create checkout destination: %w", err)
	}

	args := cloneArgs(input.Repository, input.Ref, input.Dest)
	if stderr, exitCode, err := runGit(ctx, "", args...); err != nil {
		// Shallow branch clones reject commit SHAs; retry with a full clone
		// and an explicit checkout before giving up.
		if input.Ref == "" {
			return cty.NilVal, &CloneError{Repository: input.Repository, Ref: input.Ref, Stderr: stderr, ExitCode: exitCode, Err: err}
		}
		logger.Debug("Branch clone failed, retrying with full clone and checkout.", "stderr", stderr)
		if err := cloneAndCheckout(ctx, input); err != nil {
			return cty.NilVal, err
		}
	}

	commit, err := resolveHead(ctx, input.Dest)
	if err != nil {
		return cty.NilVal, err
	}

	logger.Info("Source checked out", "commit", commit)
	return cty.ObjectVal(map[string]cty.Value{
		"path":   cty.StringVal(input.Dest),
		"commit": cty.StringVal(commit),
	}), nil
}

// cloneArgs builds the git arguments for a shallow clone.
func cloneArgs(repository, ref, dest string) []string {
	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	return append(args, repository, dest)
}

// cloneAndCheckout is the fallback path for refs that are not branch or tag
// names: full clone, then a detached checkout of the ref.
func cloneAndCheckout(ctx context.Context, input *Input) error {
	if err := os.RemoveAll(input.Dest); err != nil {
		return fmt.Errorf("failed to clear checkout destination: %w", err)
	}
	if stderr, exitCode, err := runGit(ctx, "", "clone", input.Repository, input.Dest); err != nil {
		return &CloneError{Repository: input.Repository, Ref: input.Ref, Stderr: stderr, ExitCode: exitCode, Err: err}
	}
	if stderr, exitCode, err := runGit(ctx, input.Dest, "checkout", input.Ref); err != nil {
		return &CloneError{Repository: input.Repository, Ref: input.Ref, Stderr: stderr, ExitCode: exitCode, Err: err}
	}
	return nil
}

// resolveHead returns the commit SHA the checkout landed on.
func resolveHead(ctx context.Context, dest string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dest, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to resolve checked-out commit: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// runGit executes git with the given arguments, returning stderr and the
// exit code on failure.
func runGit(ctx context.Context, dir string, args ...string) (string, int, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return "", 0, nil
	}
	exitCode := 1
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	}
	return stderr.String(), exitCode, err
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunCheckout", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunCheckout,
	})
}
