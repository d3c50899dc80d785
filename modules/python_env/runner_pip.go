package python_env

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// RunnerInput defines the arguments for the 'pip_install' runner.
type RunnerInput struct {
	Requirements string   `hcl:"requirements"`
	Packages     []string `hcl:"packages,optional"`
}

// RunnerDeps defines the injected resources from the 'uses' HCL block.
type RunnerDeps struct {
	Env *Env `hcl:"env"`
}

// onRunPipInstall is the handler for the 'pip_install' runner's on_run event.
// It installs the declared dependency manifest, plus any extra packages, into
// the provisioned environment.
func onRunPipInstall(ctx context.Context, deps *RunnerDeps, input *RunnerInput) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "pip_install", "requirements", input.Requirements)

	if deps.Env == nil {
		return cty.NilVal, fmt.Errorf("python environment dependency was not injected")
	}
	if _, err := os.Stat(input.Requirements); err != nil {
		return cty.NilVal, fmt.Errorf("dependency manifest %s is not readable: %w", input.Requirements, err)
	}

	args := []string{"install", "-r", input.Requirements}
	args = append(args, input.Packages...)

	logger.Info("Installing dependencies", "extra_packages", len(input.Packages))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, deps.Env.Tool("pip"), args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return cty.NilVal, fmt.Errorf("pip install failed: %w\n%s", err, stderr.String())
	}

	logger.Info("Dependencies installed")
	return cty.ObjectVal(map[string]cty.Value{
		"requirements": cty.StringVal(input.Requirements),
	}), nil
}
