package integrationtests

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/frostline/internal/registry"
	"github.com/vk/frostline/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

// scratchDir is the live object handed from the asset to its runners.
type scratchDir struct {
	Label string
}

// scratchModule registers a scratch_dir asset and a runner that uses it,
// recording lifecycle events in order.
type scratchModule struct {
	mu     sync.Mutex
	events []string
}

func (m *scratchModule) record(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *scratchModule) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.events...)
}

type scratchInput struct {
	Label string `hcl:"label"`
}

type scratchDeps struct {
	Dir *scratchDir `hcl:"dir"`
}

func (m *scratchModule) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateScratchDir", &registry.RegisteredAsset{
		NewInput:  func() any { return new(scratchInput) },
		InputType: reflect.TypeOf(scratchInput{}),
		CreateFn: func(ctx context.Context, input *scratchInput) (*scratchDir, error) {
			m.record("create:" + input.Label)
			return &scratchDir{Label: input.Label}, nil
		},
	})
	r.RegisterAssetHandler("DestroyScratchDir", &registry.RegisteredAsset{
		DestroyFn: func(d *scratchDir) error {
			m.record("destroy:" + d.Label)
			return nil
		},
	})
	r.RegisterAssetInterface("scratch_dir", reflect.TypeOf((*scratchDir)(nil)))

	r.RegisterRunner("OnRunUseScratch", &registry.RegisteredRunner{
		NewInput:  func() any { return new(struct{}) },
		InputType: reflect.TypeOf(struct{}{}),
		NewDeps:   func() any { return new(scratchDeps) },
		Fn: func(ctx context.Context, deps *scratchDeps, input *struct{}) (cty.Value, error) {
			if deps.Dir == nil {
				m.record("use:<nil>")
				return cty.NilVal, nil
			}
			m.record("use:" + deps.Dir.Label)
			return cty.NilVal, nil
		},
	})
}

const scratchManifest = `
asset "scratch_dir" {
  lifecycle {
    create  = "CreateScratchDir"
    destroy = "DestroyScratchDir"
  }

  input "label" {}
}

runner "use_scratch" {
  lifecycle {
    on_run = "OnRunUseScratch"
  }

  uses "dir" {
    asset_type = "scratch_dir"
  }
}
`

func TestPipeline_ResourceLifecycle(t *testing.T) {
	module := &scratchModule{}

	files := map[string]string{
		"modules/scratch/manifest.hcl": scratchManifest,
		"pipeline/main.hcl": `
			resource "scratch_dir" "work" {
				arguments {
					label = "work"
				}
			}

			step "use_scratch" "consumer" {
				uses {
					dir = resource.scratch_dir.work
				}

				arguments {}
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, module)
	require.NoError(t, result.Err)

	// The resource is created before the step runs and destroyed after the
	// whole run finishes.
	assert.Equal(t, []string{"create:work", "use:work", "destroy:work"}, module.Events())
}

func TestPipeline_ResourcesDestroyedInReverseOrder(t *testing.T) {
	module := &scratchModule{}

	files := map[string]string{
		"modules/scratch/manifest.hcl": scratchManifest,
		"pipeline/main.hcl": `
			resource "scratch_dir" "first" {
				arguments {
					label = "first"
				}
			}

			resource "scratch_dir" "second" {
				arguments {
					label = "second"
				}
				depends_on = ["resource.scratch_dir.first"]
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, module)
	require.NoError(t, result.Err)

	assert.Equal(t, []string{
		"create:first",
		"create:second",
		"destroy:second",
		"destroy:first",
	}, module.Events())
}

func TestPipeline_ResourceCreateFailureFailsRun(t *testing.T) {
	module := &scratchModule{}
	failing := &testutil.SimpleModule{
		AssetName: "CreateBrokenDir",
		Asset: &registry.RegisteredAsset{
			NewInput:  func() any { return new(struct{}) },
			InputType: reflect.TypeOf(struct{}{}),
			CreateFn: func(ctx context.Context, input *struct{}) (*scratchDir, error) {
				return nil, errors.New("disk full")
			},
		},
	}

	files := map[string]string{
		"modules/broken/manifest.hcl": `
			asset "broken_dir" {
				lifecycle {
					create  = "CreateBrokenDir"
					destroy = "DestroyScratchDir"
				}
			}
		`,
		"modules/scratch/manifest.hcl": scratchManifest,
		"pipeline/main.hcl": `
			resource "broken_dir" "doomed" {
				arguments {}
			}
		`,
	}

	result := testutil.RunPipelineTest(t, files, module, failing)
	require.Error(t, result.Err)
	assert.ErrorContains(t, result.Err, "disk full")
}
