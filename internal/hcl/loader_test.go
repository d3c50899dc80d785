package hcl

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/frostline/internal/ctxlog"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoader_LoadPipelineAndManifest(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"modules/gate/manifest.hcl": `
			runner "gate" {
				description = "Checks a file before packaging."

				lifecycle {
					on_run = "OnRunGate"
				}

				input "path" {
					description = "File to check."
				}

				input "min_bytes" {
					default = 1
				}
			}
		`,
		"pipeline/main.hcl": `
			step "gate" "exe" {
				arguments {
					path = "dist/KPI_Dashboard.exe"
				}
			}
		`,
	})

	model, converter, err := NewLoader().Load(testContext(t), dir)
	require.NoError(t, err)
	require.NotNil(t, converter)

	require.Contains(t, model.Runners, "gate")
	def := model.Runners["gate"]
	assert.Equal(t, "OnRunGate", def.Lifecycle.OnRun)
	require.Contains(t, def.Inputs, "path")
	assert.False(t, def.Inputs["path"].Optional)
	require.Contains(t, def.Inputs, "min_bytes")
	assert.True(t, def.Inputs["min_bytes"].Optional)
	require.NotNil(t, def.Inputs["min_bytes"].Default)

	require.Len(t, model.Pipeline.Steps, 1)
	step := model.Pipeline.Steps[0]
	assert.Equal(t, "gate", step.RunnerType)
	assert.Equal(t, "exe", step.Name)
	assert.Contains(t, step.Arguments, "path")
}

func TestLoader_LoadAssetDefinition(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"manifest.hcl": `
			asset "store" {
				lifecycle {
					create  = "CreateStore"
					destroy = "DestroyStore"
				}

				input "bucket" {}
			}
		`,
		"main.hcl": `
			resource "store" "ci" {
				arguments {
					bucket = "pipeline-artifacts"
				}
			}
		`,
	})

	model, _, err := NewLoader().Load(testContext(t), dir)
	require.NoError(t, err)

	require.Contains(t, model.Assets, "store")
	assert.Equal(t, "CreateStore", model.Assets["store"].Lifecycle.Create)
	assert.Equal(t, "DestroyStore", model.Assets["store"].Lifecycle.Destroy)

	require.Len(t, model.Pipeline.Resources, 1)
	assert.Equal(t, "store", model.Pipeline.Resources[0].AssetType)
	assert.Equal(t, "ci", model.Pipeline.Resources[0].Name)
}

func TestLoader_DuplicateRunnerDefinitionIsRejected(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.hcl": `
			runner "gate" {
				lifecycle { on_run = "OnRunGate" }
			}
		`,
		"b.hcl": `
			runner "gate" {
				lifecycle { on_run = "OnRunOtherGate" }
			}
		`,
	})

	_, _, err := NewLoader().Load(testContext(t), dir)
	require.Error(t, err)
	assert.ErrorContains(t, err, "duplicate runner definition 'gate'")
}

func TestLoader_RejectsInvalidHCL(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"broken.hcl": `step "gate" {`,
	})

	_, _, err := NewLoader().Load(testContext(t), dir)
	require.Error(t, err)
}

func TestLoader_RejectsNonHCLFilePath(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"notes.txt": "not a pipeline",
	})

	_, _, err := NewLoader().Load(testContext(t), filepath.Join(dir, "notes.txt"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "not an .hcl file")
}

func TestLoader_IgnoresNonHCLFilesInDirectories(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"README.md": "docs",
		"main.hcl": `
			runner "gate" {
				lifecycle { on_run = "OnRunGate" }
			}
		`,
	})

	model, _, err := NewLoader().Load(testContext(t), dir)
	require.NoError(t, err)
	assert.Contains(t, model.Runners, "gate")
}
