package executor

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/dag"
	"github.com/zclconf/go-cty/cty"
)

// buildEvalContext creates the HCL evaluation context for a node. It exposes
// the outputs of every completed step as `step.<runner>.<name>.output` and
// the run identity as `run.number`, `run.id`, and `run.started_at`.
func (e *Executor) buildEvalContext(ctx context.Context) *hcl.EvalContext {
	logger := ctxlog.FromContext(ctx)
	vars := make(map[string]cty.Value)

	// Collect outputs from all successfully completed steps in the graph.
	stepOutputs := make(map[string]map[string]cty.Value)
	for _, graphNode := range e.Graph.Nodes {
		if graphNode.Type != dag.StepNode || graphNode.GetState() != dag.Done {
			continue
		}
		output, ok := graphNode.Output.(cty.Value)
		if !ok || output == cty.NilVal {
			continue
		}

		runnerType := graphNode.StepConfig.RunnerType
		if _, exists := stepOutputs[runnerType]; !exists {
			stepOutputs[runnerType] = make(map[string]cty.Value)
		}
		stepOutputs[runnerType][graphNode.StepConfig.Name] = cty.ObjectVal(map[string]cty.Value{
			"output": output,
		})
	}

	finalStepOutputs := make(map[string]cty.Value, len(stepOutputs))
	for runnerType, instances := range stepOutputs {
		finalStepOutputs[runnerType] = cty.ObjectVal(instances)
	}
	vars["step"] = cty.ObjectVal(finalStepOutputs)

	vars["run"] = cty.ObjectVal(map[string]cty.Value{
		"number":     cty.NumberIntVal(int64(e.run.Number)),
		"id":         cty.StringVal(e.run.ID),
		"started_at": cty.StringVal(e.run.StartedAt.Format("2006-01-02T15:04:05Z")),
	})

	logger.Debug("Built HCL evaluation context.", "completed_steps", len(stepOutputs))
	return &hcl.EvalContext{Variables: vars}
}
