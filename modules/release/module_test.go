package release

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/frostline/internal/ctxlog"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func TestOnRunRelease_ProducesExactlyThreeFiles(t *testing.T) {
	srcDir := t.TempDir()
	exe := writeSource(t, srcDir, "KPI_Dashboard.exe", "frozen binary bytes")
	cfg := writeSource(t, srcDir, "config.txt", "server=db.internal\n")
	dest := filepath.Join(t.TempDir(), "release")

	out, err := OnRunRelease(testContext(t), &Deps{}, &Input{Executable: exe, Config: cfg, Dest: dest})
	require.NoError(t, err)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	names := make([]string, 0, 3)
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"KPI_Dashboard.exe", "config.txt", InstructionsFileName}, names)

	files, _ := out.GetAttr("files").AsBigFloat().Int64()
	assert.Equal(t, int64(3), files)
	assert.Equal(t, dest, out.GetAttr("path").AsString())
}

func TestOnRunRelease_CopiesInputsVerbatim(t *testing.T) {
	srcDir := t.TempDir()
	exe := writeSource(t, srcDir, "KPI_Dashboard.exe", "\x00\x01binary\xffpayload")
	cfg := writeSource(t, srcDir, "config.txt", "server=db.internal\nuser=kpi\n")
	dest := filepath.Join(t.TempDir(), "release")

	_, err := OnRunRelease(testContext(t), &Deps{}, &Input{Executable: exe, Config: cfg, Dest: dest})
	require.NoError(t, err)

	gotExe, err := os.ReadFile(filepath.Join(dest, "KPI_Dashboard.exe"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\x00\x01binary\xffpayload"), gotExe)

	gotCfg, err := os.ReadFile(filepath.Join(dest, "config.txt"))
	require.NoError(t, err)
	assert.Equal(t, "server=db.internal\nuser=kpi\n", string(gotCfg))
}

func TestOnRunRelease_WritesFrenchInstructions(t *testing.T) {
	srcDir := t.TempDir()
	exe := writeSource(t, srcDir, "KPI_Dashboard.exe", "bin")
	cfg := writeSource(t, srcDir, "config.txt", "cfg")
	dest := filepath.Join(t.TempDir(), "release")

	_, err := OnRunRelease(testContext(t), &Deps{}, &Input{Executable: exe, Config: cfg, Dest: dest})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dest, InstructionsFileName))
	require.NoError(t, err)

	assert.Equal(t, Instructions, string(raw))
	assert.True(t, utf8.Valid(raw))
	assert.Contains(t, string(raw), "TABLEAU DE BORD KPI")
	assert.Contains(t, string(raw), "config.txt")
}

func TestOnRunRelease_ReplacesStaleBundle(t *testing.T) {
	srcDir := t.TempDir()
	exe := writeSource(t, srcDir, "KPI_Dashboard.exe", "bin")
	cfg := writeSource(t, srcDir, "config.txt", "cfg")

	dest := filepath.Join(t.TempDir(), "release")
	require.NoError(t, os.MkdirAll(dest, 0o755))
	writeSource(t, dest, "leftover.tmp", "from a previous run")

	_, err := OnRunRelease(testContext(t), &Deps{}, &Input{Executable: exe, Config: cfg, Dest: dest})
	require.NoError(t, err)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.NoFileExists(t, filepath.Join(dest, "leftover.tmp"))
}

func TestOnRunRelease_MissingSourceAbortsPackaging(t *testing.T) {
	srcDir := t.TempDir()
	exe := writeSource(t, srcDir, "KPI_Dashboard.exe", "bin")
	dest := filepath.Join(t.TempDir(), "release")

	_, err := OnRunRelease(testContext(t), &Deps{}, &Input{
		Executable: exe,
		Config:     filepath.Join(srcDir, "config.txt"),
		Dest:       dest,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "config.txt")
}
