package python_env

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/vk/frostline/internal/ctxlog"
)

// AssetInput defines the arguments for creating a python_env resource.
type AssetInput struct {
	Interpreter string `hcl:"interpreter,optional"`
	Root        string `hcl:"root"`
}

// Env is the live object shared with runners that use this asset. It knows
// where the virtual environment's tools live.
type Env struct {
	// Root is the virtual environment directory.
	Root string
	// Version is the interpreter version string reported at creation time.
	Version string
}

// Tool returns the absolute path of a console script inside the environment,
// accounting for the bin/Scripts layout difference between platforms.
func (e *Env) Tool(name string) string {
	binDir := "bin"
	suffix := ""
	if runtime.GOOS == "windows" {
		binDir = "Scripts"
		suffix = ".exe"
	}
	return filepath.Join(e.Root, binDir, name+suffix)
}

// Python returns the absolute path of the environment's interpreter.
func (e *Env) Python() string {
	return e.Tool("python")
}

// createPythonEnv is the 'create' handler for the asset. It provisions a
// fresh virtual environment with the base interpreter.
func createPythonEnv(ctx context.Context, input *AssetInput) (*Env, error) {
	logger := ctxlog.FromContext(ctx).With("asset", "python_env", "root", input.Root)

	interpreter := input.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}

	logger.Info("Provisioning virtual environment", "interpreter", interpreter)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, interpreter, "-m", "venv", input.Root)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("venv creation with %s failed: %w\n%s", interpreter, err, stderr.String())
	}

	env := &Env{Root: input.Root}

	version, err := reportVersion(ctx, env.Python())
	if err != nil {
		return nil, err
	}
	env.Version = version

	logger.Info("Virtual environment ready", "version", version)
	return env, nil
}

// destroyPythonEnv is the 'destroy' handler. The environment is scoped to a
// single run, so teardown removes it entirely.
func destroyPythonEnv(env *Env) error {
	return os.RemoveAll(env.Root)
}

// reportVersion asks the environment's interpreter for its version string.
func reportVersion(ctx context.Context, python string) (string, error) {
	out, err := exec.CommandContext(ctx, python, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("environment interpreter is not runnable: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
