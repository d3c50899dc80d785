// Package testutil provides the shared harness for integration tests: it
// writes pipeline and manifest files into a temporary directory, boots the
// app against them, and captures the run's log output.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/frostline/internal/app"
	"github.com/vk/frostline/internal/hcl"
	"github.com/vk/frostline/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a harness run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
	Workdir   string
}

// RunPipelineTest boots the app against the given files using a background
// context. File names are relative paths under a fresh temporary directory;
// "pipeline/..." and "modules/..." land in the configured load paths.
func RunPipelineTest(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunPipelineTestWithContext(context.Background(), t, files, modules...)
}

// RunPipelineTestWithContext is RunPipelineTest with a caller-provided
// context, for tests that exercise cancellation.
func RunPipelineTestWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()

	pipelineDir := filepath.Join(tmpDir, "pipeline")
	modulesDir := filepath.Join(tmpDir, "modules")
	require.NoError(t, os.Mkdir(pipelineDir, 0o755))
	require.NoError(t, os.Mkdir(modulesDir, 0o755))

	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0o755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0o644))
	}

	appConfig := &app.Config{
		PipelinePath: pipelineDir,
		ModulesPath:  modulesDir,
		Workdir:      tmpDir,
		LogLevel:     "debug",
		LogFormat:    "text",
		WorkerCount:  4,
	}

	logBuffer := &SafeBuffer{}

	var testApp *app.App
	var startupErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				startupErr = fmt.Errorf("application startup panicked | %v", r)
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hcl.NewLoader(), modules...)
	}()

	if startupErr != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: startupErr, Workdir: tmpDir}
	}

	runErr := testApp.Run(ctx, appConfig)

	if os.Getenv("FROSTLINE_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
		Workdir:   tmpDir,
	}
}
