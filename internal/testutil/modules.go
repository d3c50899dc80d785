package testutil

import (
	"context"
	"reflect"
	"sync"

	"github.com/vk/frostline/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// SimpleModule is a test helper for creating a mock module that registers a
// single runner or asset handler under caller-chosen names.
type SimpleModule struct {
	RunnerName string
	Runner     *registry.RegisteredRunner

	AssetName string
	Asset     *registry.RegisteredAsset
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.RunnerName != "" && m.Runner != nil {
		r.RegisterRunner(m.RunnerName, m.Runner)
	}
	if m.AssetName != "" && m.Asset != nil {
		r.RegisterAssetHandler(m.AssetName, m.Asset)
	}
}

// NoOpModule registers a single "NoOp" runner that takes no inputs, requires
// no dependencies, and does nothing. Useful for tests that need valid HCL
// passing registry validation without side effects.
type NoOpModule struct{}

// Register implements the registry.Module interface.
func (m *NoOpModule) Register(r *registry.Registry) {
	r.RegisterRunner("NoOp", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps *struct{}, input *struct{}) (cty.Value, error) {
			return cty.NilVal, nil
		},
	})
}

// RecorderModule registers an "OnRunRecord" runner that appends each step's
// id argument to an ordered log, for asserting execution order.
type RecorderModule struct {
	mu  sync.Mutex
	ids []string

	// Fail names the id whose execution should return an error.
	Fail string
}

type recorderInput struct {
	ID string `hcl:"id"`
}

// Register implements the registry.Module interface.
func (m *RecorderModule) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunRecord", &registry.RegisteredRunner{
		NewInput:  func() any { return new(recorderInput) },
		InputType: reflect.TypeOf(recorderInput{}),
		NewDeps:   func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps *struct{}, input *recorderInput) (cty.Value, error) {
			m.mu.Lock()
			m.ids = append(m.ids, input.ID)
			m.mu.Unlock()
			if m.Fail != "" && m.Fail == input.ID {
				return cty.NilVal, errInjected
			}
			return cty.ObjectVal(map[string]cty.Value{"id": cty.StringVal(input.ID)}), nil
		},
	})
}

// Executed returns the ids recorded so far, in execution order.
func (m *RecorderModule) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

// RecorderManifest is the manifest HCL matching RecorderModule, for tests
// that load it through the normal module path.
const RecorderManifest = `
runner "record" {
  lifecycle {
    on_run = "OnRunRecord"
  }

  input "id" {
    description = "Identifier appended to the execution log."
  }

  output "id" {
    description = "The recorded identifier."
  }
}
`
