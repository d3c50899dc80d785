package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// errInjected is the deliberate failure returned by RecorderModule.
var errInjected = fmt.Errorf("injected failure")

// AssertStepRan checks the log output within a HarnessResult to confirm that
// a specific step completed. It keys off the step's node id rather than any
// handler detail, so tests survive internal refactoring.
func AssertStepRan(t *testing.T, result *HarnessResult, runnerType, stepName string) {
	t.Helper()

	nodeID := fmt.Sprintf("step.%s.%s", runnerType, stepName)
	require.True(t,
		strings.Contains(result.LogOutput, "Finished step") && strings.Contains(result.LogOutput, "step="+nodeID),
		"expected log output for completed step '%s' was not found in logs", nodeID,
	)
}

// AssertStepSkipped checks that a step was skipped due to an upstream failure.
func AssertStepSkipped(t *testing.T, result *HarnessResult, runnerType, stepName string) {
	t.Helper()

	nodeID := fmt.Sprintf("step.%s.%s", runnerType, stepName)
	require.True(t,
		strings.Contains(result.LogOutput, "Skipping dependent node") && strings.Contains(result.LogOutput, nodeID),
		"expected step '%s' to be skipped, but no skip was logged", nodeID,
	)
}
