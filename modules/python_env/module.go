// Package python_env provides a stateful, per-run Python virtual environment
// asset and a stateless runner that installs a dependency manifest into it.
package python_env

import (
	"reflect"

	"github.com/vk/frostline/internal/registry"
)

// Module implements the registry.Module interface. It registers the
// python_env asset and the pip_install runner.
type Module struct{}

// Register registers all of the module's components with the central registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreatePythonEnv", &registry.RegisteredAsset{
		NewInput:  func() any { return new(AssetInput) },
		InputType: reflect.TypeOf(AssetInput{}),
		CreateFn:  createPythonEnv,
	})
	r.RegisterAssetHandler("DestroyPythonEnv", &registry.RegisteredAsset{
		DestroyFn: destroyPythonEnv,
	})
	r.RegisterAssetInterface("python_env", reflect.TypeOf((*Env)(nil)))

	r.RegisterRunner("OnRunPipInstall", &registry.RegisteredRunner{
		NewInput:  func() any { return new(RunnerInput) },
		InputType: reflect.TypeOf(RunnerInput{}),
		NewDeps:   func() any { return new(RunnerDeps) },
		Fn:        onRunPipInstall,
	})
}
