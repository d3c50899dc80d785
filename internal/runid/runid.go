// Package runid resolves the identity of a single pipeline run: a
// monotonically increasing run number and a unique run ID.
//
// The run number keeps re-runs distinguishable: an artifact named with it is
// never overwritten by a later run. On CI hosts the platform already provides
// a counter; outside CI a per-workdir counter file preserves monotonicity.
package runid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// counterEnvVars are checked in order for a platform-provided run number.
var counterEnvVars = []string{
	"FROSTLINE_RUN_NUMBER",
	"GITHUB_RUN_NUMBER",
	"CI_PIPELINE_IID",
	"BUILD_NUMBER",
}

// counterFileName is the per-workdir fallback counter, relative to workdir.
const counterFileName = ".frostline/run-counter"

// lockWait bounds how long a run waits for a concurrent run to release the
// counter lock.
var lockWait = 5 * time.Second

// Info identifies one pipeline run.
type Info struct {
	// Number is the monotonically increasing run number.
	Number int
	// ID is a globally unique identifier for this run.
	ID string
	// StartedAt is when the run began.
	StartedAt time.Time
}

// Resolve determines the run identity. An explicit non-zero number (from the
// command line) wins; otherwise the first CI counter environment variable
// found is used; otherwise a counter file under workdir is incremented.
func Resolve(workdir string, explicit int) (Info, error) {
	info := Info{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	if explicit > 0 {
		info.Number = explicit
		return info, nil
	}

	for _, name := range counterEnvVars {
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Info{}, fmt.Errorf("environment variable %s holds a non-numeric run number %q", name, raw)
		}
		if n <= 0 {
			return Info{}, fmt.Errorf("environment variable %s holds a non-positive run number %d", name, n)
		}
		info.Number = n
		return info, nil
	}

	n, err := nextFromCounterFile(filepath.Join(workdir, counterFileName))
	if err != nil {
		return Info{}, err
	}
	info.Number = n
	return info, nil
}

// nextFromCounterFile reads, increments, and rewrites the counter file. A
// sibling lock file serializes concurrent runs in the same workdir so two
// runs never claim the same number.
func nextFromCounterFile(path string) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create run counter directory: %w", err)
	}

	unlock, err := acquireCounterLock(path + ".lock")
	if err != nil {
		return 0, err
	}
	defer unlock()

	last := 0
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		last, err = strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			return 0, fmt.Errorf("run counter file %s is corrupt: %w", path, err)
		}
	case os.IsNotExist(err):
		// First run in this workdir.
	default:
		return 0, fmt.Errorf("failed to read run counter file %s: %w", path, err)
	}

	next := last + 1
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(next)+"\n"), 0o644); err != nil {
		return 0, fmt.Errorf("failed to update run counter file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("failed to update run counter file %s: %w", path, err)
	}
	return next, nil
}

// acquireCounterLock creates the lock file with O_CREATE|O_EXCL, retrying
// while a concurrent run holds it. The returned function releases the lock.
func acquireCounterLock(path string) (func(), error) {
	deadline := time.Now().Add(lockWait)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to take run counter lock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("run counter lock %s is held; remove it if no run is active", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
