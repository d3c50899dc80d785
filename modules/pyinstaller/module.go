// Package pyinstaller provides the 'pyinstaller' runner: it freezes a Python
// script into a standalone executable using the PyInstaller tool installed in
// a python_env resource.
package pyinstaller

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/registry"
	"github.com/vk/frostline/modules/python_env"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the pyinstaller runner.
type Input struct {
	Script   string `hcl:"script"`
	Name     string `hcl:"name"`
	Dist     string `hcl:"dist"`
	OneFile  bool   `hcl:"onefile,optional"`
	Windowed bool   `hcl:"windowed,optional"`
	Clean    bool   `hcl:"clean,optional"`
}

// Deps declares the python environment the build runs inside.
type Deps struct {
	Env *python_env.Env `hcl:"env"`
}

// OnRunPyInstaller is the handler for the 'pyinstaller' runner's on_run
// event. It invokes PyInstaller from the environment and verifies that the
// expected executable landed in the dist directory.
func OnRunPyInstaller(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "pyinstaller", "script", input.Script, "name", input.Name)

	if deps.Env == nil {
		return cty.NilVal, fmt.Errorf("python environment dependency was not injected")
	}
	if _, err := os.Stat(input.Script); err != nil {
		return cty.NilVal, fmt.Errorf("entry script %s is not readable: %w", input.Script, err)
	}

	workDir, err := os.MkdirTemp("", "pyinstaller-work-*")
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create build work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	args := buildArgs(input, workDir)
	logger.Info("Freezing script into executable", "dist", input.Dist)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, deps.Env.Tool("pyinstaller"), args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return cty.NilVal, fmt.Errorf("pyinstaller build of %s failed: %w\n%s", input.Script, err, stderr.String())
	}

	executable := ExecutablePath(input.Dist, input.Name, input.OneFile)
	info, err := os.Stat(executable)
	if err != nil {
		return cty.NilVal, fmt.Errorf("build reported success but produced no executable at %s: %w", executable, err)
	}

	logger.Info("Executable frozen", "executable", executable, "size_bytes", info.Size())
	return cty.ObjectVal(map[string]cty.Value{
		"executable": cty.StringVal(executable),
		"size_bytes": cty.NumberIntVal(info.Size()),
	}), nil
}

// buildArgs assembles the PyInstaller command line. Work and spec files are
// kept out of the dist directory so only the final executable remains there.
func buildArgs(input *Input, workDir string) []string {
	args := []string{
		"--noconfirm",
		"--name", input.Name,
		"--distpath", input.Dist,
		"--workpath", workDir,
		"--specpath", workDir,
	}
	if input.OneFile {
		args = append(args, "--onefile")
	}
	if input.Windowed {
		args = append(args, "--windowed")
	}
	if input.Clean {
		args = append(args, "--clean")
	}
	return append(args, input.Script)
}

// ExecutablePath returns where PyInstaller places the built executable for
// the given dist directory and build mode. One-file builds emit the binary
// directly into dist; one-dir builds nest it under a directory named after
// the app.
func ExecutablePath(dist, name string, oneFile bool) string {
	binary := name
	if runtime.GOOS == "windows" {
		binary += ".exe"
	}
	if oneFile {
		return filepath.Join(dist, binary)
	}
	return filepath.Join(dist, name, binary)
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunPyInstaller", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunPyInstaller,
	})
}
