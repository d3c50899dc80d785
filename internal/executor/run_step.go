package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/dag"
	"github.com/zclconf/go-cty/cty"
)

// runStepNode handles the execution of a single step node.
func (e *Executor) runStepNode(ctx context.Context, node *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("step", node.ID)
	logger.Info("▶️ Starting step")

	runnerDef, ok := e.registry.DefinitionRegistry[node.StepConfig.RunnerType]
	if !ok {
		return fmt.Errorf("unknown runner type '%s'", node.StepConfig.RunnerType)
	}
	handlerName := runnerDef.Lifecycle.OnRun
	registeredHandler, ok := e.registry.HandlerRegistry[handlerName]
	if !ok {
		return fmt.Errorf("handler '%s' not registered", handlerName)
	}

	logger.Debug("Decoding step arguments.")
	evalCtx := e.buildEvalContext(ctx)
	inputStruct := registeredHandler.NewInput()
	if inputStruct != nil {
		err := e.converter.DecodeBody(ctx, inputStruct, node.StepConfig.Arguments, runnerDef.Inputs, evalCtx)
		if err != nil {
			return fmt.Errorf("failed to decode arguments for step %s: %w", node.ID, err)
		}
	}

	logger.Debug("Building step dependencies.")
	depsStruct, err := e.buildDepsStruct(ctx, node, registeredHandler)
	if err != nil {
		return err
	}

	logger.Debug("Calling step run handler.", "handler", handlerName)
	handlerFunc := reflect.ValueOf(registeredHandler.Fn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(depsStruct)}
	if inputStruct == nil {
		inputType := handlerFunc.Type().In(2)
		callArgs = append(callArgs, reflect.Zero(inputType))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(inputStruct))
	}

	results := handlerFunc.Call(callArgs)
	outputVal, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}

	if ctyOutput, ok := outputVal.(cty.Value); ok {
		node.Output = ctyOutput
	} else {
		ctyOutput, err := e.converter.ToCtyValue(outputVal)
		if err != nil {
			return fmt.Errorf("failed to convert handler output for step %s: %w", node.ID, err)
		}
		node.Output = ctyOutput
	}

	logger.Info("✅ Finished step")
	return nil
}
