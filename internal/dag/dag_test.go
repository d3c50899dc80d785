package dag

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/frostline/internal/config"
	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/registry"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "failed to parse test expression %q: %s", src, diags)
	return expr
}

func step(runnerType, name string) *config.Step {
	return &config.Step{
		RunnerType: runnerType,
		Name:       name,
		Arguments:  map[string]hcl.Expression{},
		Uses:       map[string]hcl.Expression{},
	}
}

func modelOf(steps []*config.Step, resources []*config.Resource) *config.Model {
	return &config.Model{
		Runners: map[string]*config.RunnerDefinition{},
		Assets:  map[string]*config.AssetDefinition{},
		Pipeline: &config.Pipeline{
			Steps:     steps,
			Resources: resources,
		},
	}
}

func TestBuild_CreatesNodesForStepsAndResources(t *testing.T) {
	model := modelOf(
		[]*config.Step{step("checkout", "source"), step("release", "bundle")},
		[]*config.Resource{{AssetType: "python_env", Name: "build", Arguments: map[string]hcl.Expression{}}},
	)

	graph, err := Build(testContext(t), model, registry.New())
	require.NoError(t, err)

	require.Len(t, graph.Nodes, 3)
	assert.Contains(t, graph.Nodes, "step.checkout.source")
	assert.Contains(t, graph.Nodes, "step.release.bundle")
	assert.Contains(t, graph.Nodes, "resource.python_env.build")

	source := graph.Nodes["step.checkout.source"]
	assert.Equal(t, StepNode, source.Type)
	assert.Equal(t, "source", source.Name)
	assert.Equal(t, int32(0), source.DepCount())

	env := graph.Nodes["resource.python_env.build"]
	assert.Equal(t, ResourceNode, env.Type)
}

func TestBuild_ExplicitDependencies(t *testing.T) {
	t.Run("shorthand step address", func(t *testing.T) {
		gate := step("verify_file", "gate")
		gate.DependsOn = []string{"pyinstaller.freeze"}
		model := modelOf([]*config.Step{step("pyinstaller", "freeze"), gate}, nil)

		graph, err := Build(testContext(t), model, registry.New())
		require.NoError(t, err)

		gateNode := graph.Nodes["step.verify_file.gate"]
		assert.Contains(t, gateNode.Deps, "step.pyinstaller.freeze")
		assert.Equal(t, int32(1), gateNode.DepCount())

		freezeNode := graph.Nodes["step.pyinstaller.freeze"]
		assert.Contains(t, freezeNode.Dependents, "step.verify_file.gate")
	})

	t.Run("full resource address", func(t *testing.T) {
		deps := step("pip_install", "deps")
		deps.DependsOn = []string{"resource.python_env.build"}
		model := modelOf(
			[]*config.Step{deps},
			[]*config.Resource{{AssetType: "python_env", Name: "build", Arguments: map[string]hcl.Expression{}}},
		)

		graph, err := Build(testContext(t), model, registry.New())
		require.NoError(t, err)
		assert.Contains(t, graph.Nodes["step.pip_install.deps"].Deps, "resource.python_env.build")
	})

	t.Run("unknown dependency is rejected", func(t *testing.T) {
		orphan := step("release", "bundle")
		orphan.DependsOn = []string{"verify_file.missing"}
		model := modelOf([]*config.Step{orphan}, nil)

		_, err := Build(testContext(t), model, registry.New())
		require.Error(t, err)
		assert.ErrorContains(t, err, "unknown node")
	})

	t.Run("self dependency is rejected", func(t *testing.T) {
		selfish := step("print", "loop")
		selfish.DependsOn = []string{"print.loop"}
		model := modelOf([]*config.Step{selfish}, nil)

		_, err := Build(testContext(t), model, registry.New())
		require.Error(t, err)
		assert.ErrorContains(t, err, "cannot depend on itself")
	})
}

func TestBuild_ImplicitDependencies(t *testing.T) {
	t.Run("argument reference links step output", func(t *testing.T) {
		freeze := step("pyinstaller", "freeze")
		gate := step("verify_file", "gate")
		gate.Arguments["path"] = parseExpr(t, "step.pyinstaller.freeze.output.executable")
		model := modelOf([]*config.Step{freeze, gate}, nil)

		graph, err := Build(testContext(t), model, registry.New())
		require.NoError(t, err)
		assert.Contains(t, graph.Nodes["step.verify_file.gate"].Deps, "step.pyinstaller.freeze")
	})

	t.Run("uses reference links resource", func(t *testing.T) {
		deps := step("pip_install", "deps")
		deps.Uses["env"] = parseExpr(t, "resource.python_env.build")
		model := modelOf(
			[]*config.Step{deps},
			[]*config.Resource{{AssetType: "python_env", Name: "build", Arguments: map[string]hcl.Expression{}}},
		)

		graph, err := Build(testContext(t), model, registry.New())
		require.NoError(t, err)
		assert.Contains(t, graph.Nodes["step.pip_install.deps"].Deps, "resource.python_env.build")
	})

	t.Run("engine variables are not treated as nodes", func(t *testing.T) {
		publish := step("artifact_upload", "publish")
		publish.Arguments["name"] = parseExpr(t, `"kpi-dashboard-windows-${run.number}"`)
		model := modelOf([]*config.Step{publish}, nil)

		graph, err := Build(testContext(t), model, registry.New())
		require.NoError(t, err)
		assert.Empty(t, graph.Nodes["step.artifact_upload.publish"].Deps)
	})

	t.Run("reference to unknown node is rejected", func(t *testing.T) {
		gate := step("verify_file", "gate")
		gate.Arguments["path"] = parseExpr(t, "step.pyinstaller.missing.output.executable")
		model := modelOf([]*config.Step{gate}, nil)

		_, err := Build(testContext(t), model, registry.New())
		require.Error(t, err)
		assert.ErrorContains(t, err, "unknown node")
	})
}

func TestBuild_DetectsCycles(t *testing.T) {
	a := step("print", "a")
	a.DependsOn = []string{"print.b"}
	b := step("print", "b")
	b.DependsOn = []string{"print.a"}
	model := modelOf([]*config.Step{a, b}, nil)

	_, err := Build(testContext(t), model, registry.New())
	require.Error(t, err)
	assert.ErrorContains(t, err, "cycle detected")
}

func TestNode_MarkSkippedIsIdempotent(t *testing.T) {
	node := &Node{ID: "step.print.once"}

	calls := 0
	node.MarkSkipped(assert.AnError, func() { calls++ })
	node.MarkSkipped(assert.AnError, func() { calls++ })

	assert.Equal(t, 1, calls)
	assert.Equal(t, Failed, node.GetState())
	assert.Equal(t, assert.AnError, node.Error)
}

func TestTraversalToNodeID(t *testing.T) {
	cases := []struct {
		expr   string
		wantID string
		wantOK bool
	}{
		{"step.checkout.source.output.path", "step.checkout.source", true},
		{"resource.python_env.build", "resource.python_env.build", true},
		{"run.number", "", false},
		{"step.checkout", "", false},
	}
	for _, tc := range cases {
		expr := parseExpr(t, tc.expr)
		vars := expr.Variables()
		require.Len(t, vars, 1)

		id, ok := traversalToNodeID(vars[0])
		assert.Equal(t, tc.wantOK, ok, tc.expr)
		if tc.wantOK {
			assert.Equal(t, tc.wantID, id, tc.expr)
		}
	}
}
