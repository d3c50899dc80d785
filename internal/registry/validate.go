package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/vk/frostline/internal/ctxlog"
)

// ValidateRegistry performs a strict parity check between manifests and Go
// code: every manifest lifecycle handler must exist, and the set of inputs a
// manifest declares must match the `hcl`-tagged fields of the Go input struct.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for runnerType, def := range r.DefinitionRegistry {
		if def.Lifecycle == nil || def.Lifecycle.OnRun == "" {
			errs = append(errs, fmt.Sprintf("runner '%s': manifest declares no on_run handler", runnerType))
			continue
		}
		handler, ok := r.HandlerRegistry[def.Lifecycle.OnRun]
		if !ok {
			errs = append(errs, fmt.Sprintf("runner '%s': handler '%s' is not registered", runnerType, def.Lifecycle.OnRun))
			continue
		}
		errs = append(errs, checkInputParity("runner", runnerType, handler.InputType, mapKeys(def.Inputs))...)
	}

	for assetType, def := range r.AssetDefinitionRegistry {
		if def.Lifecycle == nil || def.Lifecycle.Create == "" || def.Lifecycle.Destroy == "" {
			errs = append(errs, fmt.Sprintf("asset '%s': manifest must declare create and destroy handlers", assetType))
			continue
		}
		createHandler, ok := r.AssetHandlerRegistry[def.Lifecycle.Create]
		if !ok || createHandler.CreateFn == nil {
			errs = append(errs, fmt.Sprintf("asset '%s': create handler '%s' is not registered", assetType, def.Lifecycle.Create))
		}
		destroyHandler, ok := r.AssetHandlerRegistry[def.Lifecycle.Destroy]
		if !ok || destroyHandler.DestroyFn == nil {
			errs = append(errs, fmt.Sprintf("asset '%s': destroy handler '%s' is not registered", assetType, def.Lifecycle.Destroy))
		}
		if ok && createHandler != nil {
			errs = append(errs, checkInputParity("asset", assetType, createHandler.InputType, mapKeys(def.Inputs))...)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logger.Debug("Registry validation passed.",
		"runners", len(r.DefinitionRegistry),
		"assets", len(r.AssetDefinitionRegistry),
	)
	return nil
}

// checkInputParity compares a manifest's declared inputs with the hcl-tagged
// fields of the registered Go input struct.
func checkInputParity(kind, name string, inputType reflect.Type, manifestInputs map[string]struct{}) []string {
	var errs []string

	goInputs := make(map[string]struct{})
	if inputType != nil {
		for i := 0; i < inputType.NumField(); i++ {
			field := inputType.Field(i)
			if !field.IsExported() {
				continue
			}
			tagName := strings.Split(field.Tag.Get("hcl"), ",")[0]
			if tagName != "" && tagName != "-" {
				goInputs[tagName] = struct{}{}
			}
		}
	}

	for input := range goInputs {
		if _, ok := manifestInputs[input]; !ok {
			errs = append(errs, fmt.Sprintf("%s '%s': Go struct has field for input '%s' which is not declared in manifest", kind, name, input))
		}
	}
	for input := range manifestInputs {
		if _, ok := goInputs[input]; !ok {
			errs = append(errs, fmt.Sprintf("%s '%s': manifest declares input '%s' which is not found in Go struct", kind, name, input))
		}
	}
	return errs
}

func mapKeys[V any](m map[string]V) map[string]struct{} {
	keys := make(map[string]struct{}, len(m))
	for k := range m {
		keys[k] = struct{}{}
	}
	return keys
}
