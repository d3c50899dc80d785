// Package verify_file provides the 'verify_file' runner: the gate between a
// build that succeeded and a build that silently produced nothing. It checks
// that a file exists and carries at least a minimum size before the pipeline
// is allowed to package it.
package verify_file

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the verify_file runner.
type Input struct {
	Path     string `hcl:"path"`
	MinBytes int64  `hcl:"min_bytes,optional"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunVerifyFile is the handler for the 'verify_file' runner's on_run
// event. A missing or undersized file logs a failure marker and returns an
// error, which halts the pipeline before packaging.
func OnRunVerifyFile(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "verify_file", "path", input.Path)

	info, err := os.Stat(input.Path)
	if err != nil {
		logger.Error("❌ Verification failed: file not found.")
		return cty.NilVal, fmt.Errorf("expected file %s does not exist: %w", input.Path, err)
	}
	if info.IsDir() {
		logger.Error("❌ Verification failed: path is a directory.")
		return cty.NilVal, fmt.Errorf("expected a file at %s but found a directory", input.Path)
	}
	if info.Size() < input.MinBytes {
		logger.Error("❌ Verification failed: file is smaller than the required minimum.",
			"size_bytes", info.Size(), "min_bytes", input.MinBytes)
		return cty.NilVal, fmt.Errorf("file %s is %d bytes, below the required minimum of %d", input.Path, info.Size(), input.MinBytes)
	}

	logger.Info("✅ File verified", "name", info.Name(), "size_bytes", info.Size(), "modified_at", info.ModTime())
	return cty.ObjectVal(map[string]cty.Value{
		"name":        cty.StringVal(info.Name()),
		"size_bytes":  cty.NumberIntVal(info.Size()),
		"modified_at": cty.StringVal(info.ModTime().UTC().Format(time.RFC3339)),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunVerifyFile", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunVerifyFile,
	})
}
