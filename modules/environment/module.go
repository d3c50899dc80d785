// Package environment provides the 'environment' runner: it exposes a chosen
// subset of the process environment to pipeline expressions.
package environment

import (
	"context"
	"os"
	"reflect"
	"strings"

	"github.com/vk/frostline/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the environment runner.
type Input struct {
	Keys []string `hcl:"keys,optional"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunEnvironment is the handler for the 'environment' runner's on_run
// event. With no keys it exposes the full environment; with keys it exposes
// only those, mapping unset variables to the empty string.
func OnRunEnvironment(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	values := make(map[string]cty.Value)

	if len(input.Keys) == 0 {
		for _, e := range os.Environ() {
			pair := strings.SplitN(e, "=", 2)
			if len(pair) == 2 {
				values[pair[0]] = cty.StringVal(pair[1])
			}
		}
	} else {
		for _, key := range input.Keys {
			values[key] = cty.StringVal(os.Getenv(key))
		}
	}

	vars := cty.MapValEmpty(cty.String)
	if len(values) > 0 {
		vars = cty.MapVal(values)
	}
	return cty.ObjectVal(map[string]cty.Value{"vars": vars}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunEnvironment", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunEnvironment,
	})
}
