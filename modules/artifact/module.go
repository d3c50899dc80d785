// Package artifact provides a connected object-store asset and a runner that
// publishes a packaged directory as a named, retention-tagged artifact.
package artifact

import (
	"reflect"

	"github.com/vk/frostline/internal/registry"
)

// Module implements the registry.Module interface. It registers the
// artifact_store asset and the artifact_upload runner.
type Module struct{}

// Register registers all of the module's components with the central registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateArtifactStore", &registry.RegisteredAsset{
		NewInput:  func() any { return new(AssetInput) },
		InputType: reflect.TypeOf(AssetInput{}),
		CreateFn:  createStore,
	})
	r.RegisterAssetHandler("DestroyArtifactStore", &registry.RegisteredAsset{
		DestroyFn: destroyStore,
	})
	r.RegisterAssetInterface("artifact_store", reflect.TypeOf((*Store)(nil)))

	r.RegisterRunner("OnRunArtifactUpload", &registry.RegisteredRunner{
		NewInput:  func() any { return new(RunnerInput) },
		InputType: reflect.TypeOf(RunnerInput{}),
		NewDeps:   func() any { return new(RunnerDeps) },
		Fn:        onRunArtifactUpload,
	})
}
