package pyinstaller

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildArgs(t *testing.T) {
	t.Run("one-file windowed build", func(t *testing.T) {
		input := &Input{
			Script:   "src/kpi_dashboard.py",
			Name:     "KPI_Dashboard",
			Dist:     ".frostline/dist",
			OneFile:  true,
			Windowed: true,
		}
		args := buildArgs(input, "/tmp/work")
		assert.Equal(t, []string{
			"--noconfirm",
			"--name", "KPI_Dashboard",
			"--distpath", ".frostline/dist",
			"--workpath", "/tmp/work",
			"--specpath", "/tmp/work",
			"--onefile",
			"--windowed",
			"src/kpi_dashboard.py",
		}, args)
	})

	t.Run("plain one-dir build", func(t *testing.T) {
		input := &Input{Script: "app.py", Name: "app", Dist: "dist"}
		args := buildArgs(input, "/tmp/work")
		assert.NotContains(t, args, "--onefile")
		assert.NotContains(t, args, "--windowed")
		assert.NotContains(t, args, "--clean")
		assert.Equal(t, "app.py", args[len(args)-1])
	})

	t.Run("clean build", func(t *testing.T) {
		input := &Input{Script: "app.py", Name: "app", Dist: "dist", Clean: true}
		assert.Contains(t, buildArgs(input, "/tmp/work"), "--clean")
	})
}

func TestExecutablePath(t *testing.T) {
	ext := ""
	if runtime.GOOS == "windows" {
		ext = ".exe"
	}

	t.Run("one-file build lands in dist", func(t *testing.T) {
		got := ExecutablePath("dist", "KPI_Dashboard", true)
		assert.Equal(t, filepath.Join("dist", "KPI_Dashboard"+ext), got)
	})

	t.Run("one-dir build nests under app directory", func(t *testing.T) {
		got := ExecutablePath("dist", "KPI_Dashboard", false)
		assert.Equal(t, filepath.Join("dist", "KPI_Dashboard", "KPI_Dashboard"+ext), got)
	})
}
