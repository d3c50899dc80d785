package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func pointAtEmptyDefaults(t *testing.T) {
	t.Helper()
	t.Setenv("FROSTLINE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
}

func TestRun_PanicRecovery(t *testing.T) {
	pointAtEmptyDefaults(t)

	// An HCL syntax error makes app.NewApp panic during loading; run must
	// recover it and return a normal error.
	invalidHCL := `
		step "print" "A" {
			arguments {
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600))

	out := &bytes.Buffer{}
	err := run(out, []string{"-modules-path", t.TempDir(), filePath})

	require.Error(t, err)
	require.Contains(t, err.Error(), "application startup panicked")
	require.Contains(t, err.Error(), "failed to parse")
}

func TestRun_HelpExitsCleanly(t *testing.T) {
	pointAtEmptyDefaults(t)

	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})

	require.NoError(t, err)
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_NoArgumentsShowsUsage(t *testing.T) {
	pointAtEmptyDefaults(t)

	out := &bytes.Buffer{}
	err := run(out, []string{})

	require.NoError(t, err)
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_UnknownFlagIsAnError(t *testing.T) {
	pointAtEmptyDefaults(t)

	out := &bytes.Buffer{}
	err := run(out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined")
}
