package integrationtests

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/frostline/internal/testutil"
	"github.com/vk/frostline/modules/release"
	"github.com/vk/frostline/modules/verify_file"
)

const gateAndBundleManifests = `
runner "verify_file" {
  lifecycle {
    on_run = "OnRunVerifyFile"
  }

  input "path" {}

  input "min_bytes" {
    default = 1
  }

  output "name" {}
  output "size_bytes" {}
  output "modified_at" {}
}

runner "release" {
  lifecycle {
    on_run = "OnRunRelease"
  }

  input "executable" {}
  input "config" {}
  input "dest" {}

  output "path" {}
  output "files" {}
  output "total_bytes" {}
}
`

func TestPipeline_VerifyThenPackage(t *testing.T) {
	srcDir := t.TempDir()
	exe := filepath.Join(srcDir, "KPI_Dashboard.exe")
	cfg := filepath.Join(srcDir, "config.txt")
	require.NoError(t, os.WriteFile(exe, []byte("frozen binary"), 0o755))
	require.NoError(t, os.WriteFile(cfg, []byte("server=db.internal\n"), 0o644))
	dest := filepath.Join(srcDir, "release")

	files := map[string]string{
		"modules/core/manifest.hcl": gateAndBundleManifests,
		"pipeline/main.hcl": fmt.Sprintf(`
			step "verify_file" "gate" {
				arguments {
					path = %q
				}
			}

			step "release" "bundle" {
				arguments {
					executable = %q
					config     = %q
					dest       = %q
				}
				depends_on = ["verify_file.gate"]
			}
		`, exe, exe, cfg, dest),
	}

	result := testutil.RunPipelineTest(t, files, &verify_file.Module{}, &release.Module{})
	require.NoError(t, result.Err)

	testutil.AssertStepRan(t, result, "verify_file", "gate")
	testutil.AssertStepRan(t, result, "release", "bundle")

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestPipeline_MissingExecutableBlocksPackaging(t *testing.T) {
	srcDir := t.TempDir()
	cfg := filepath.Join(srcDir, "config.txt")
	require.NoError(t, os.WriteFile(cfg, []byte("server=db.internal\n"), 0o644))

	missingExe := filepath.Join(srcDir, "KPI_Dashboard.exe")
	dest := filepath.Join(srcDir, "release")

	files := map[string]string{
		"modules/core/manifest.hcl": gateAndBundleManifests,
		"pipeline/main.hcl": fmt.Sprintf(`
			step "verify_file" "gate" {
				arguments {
					path = %q
				}
			}

			step "release" "bundle" {
				arguments {
					executable = %q
					config     = %q
					dest       = %q
				}
				depends_on = ["verify_file.gate"]
			}
		`, missingExe, missingExe, cfg, dest),
	}

	result := testutil.RunPipelineTest(t, files, &verify_file.Module{}, &release.Module{})
	require.Error(t, result.Err)
	assert.ErrorContains(t, result.Err, "does not exist")

	// The gate failed, so no bundle directory may appear.
	assert.NoDirExists(t, dest)
	testutil.AssertStepSkipped(t, result, "release", "bundle")
}
