package hcl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/frostline/internal/config"
	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/fsutil"
	"github.com/vk/frostline/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileContent is the superset schema for a single HCL file. Pipeline files
// carry step/resource blocks, module manifests carry runner/asset blocks;
// a single decode handles both.
type fileContent struct {
	Runners   []*schema.RunnerDefinition `hcl:"runner,block"`
	Assets    []*schema.AssetDefinition  `hcl:"asset,block"`
	Steps     []*schema.Step             `hcl:"step,block"`
	Resources []*schema.Resource         `hcl:"resource,block"`
	Body      hcl.Body                   `hcl:",remain"`
}

// Load parses all .hcl files found under the given paths (files or
// directories) and translates them into the format-agnostic model.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, config.Converter, error) {
	logger := ctxlog.FromContext(ctx)

	model := &config.Model{
		Runners:  make(map[string]*config.RunnerDefinition),
		Assets:   make(map[string]*config.AssetDefinition),
		Pipeline: &config.Pipeline{},
	}

	files, err := collectFiles(paths)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		logger.Warn("No .hcl files found in the provided paths.", "paths", paths)
	}

	parser := hclparse.NewParser()
	for _, filePath := range files {
		hclFile, diags := parser.ParseHCLFile(filePath)
		if diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
		}

		var content fileContent
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &content); diags.HasErrors() {
			return nil, nil, fmt.Errorf("failed to decode HCL file %s: %w", filePath, diags)
		}

		for _, rn := range content.Runners {
			def, err := l.translateRunnerDefinition(ctx, rn)
			if err != nil {
				return nil, nil, fmt.Errorf("in %s: %w", filePath, err)
			}
			if _, exists := model.Runners[def.Type]; exists {
				return nil, nil, fmt.Errorf("duplicate runner definition '%s' in %s", def.Type, filePath)
			}
			model.Runners[def.Type] = def
		}
		for _, as := range content.Assets {
			def, err := l.translateAssetDefinition(ctx, as)
			if err != nil {
				return nil, nil, fmt.Errorf("in %s: %w", filePath, err)
			}
			if _, exists := model.Assets[def.Type]; exists {
				return nil, nil, fmt.Errorf("duplicate asset definition '%s' in %s", def.Type, filePath)
			}
			model.Assets[def.Type] = def
		}
		for _, st := range content.Steps {
			model.Pipeline.Steps = append(model.Pipeline.Steps, l.translateStep(st))
		}
		for _, rs := range content.Resources {
			model.Pipeline.Resources = append(model.Pipeline.Resources, l.translateResource(rs))
		}

		logger.Debug("Loaded HCL file.", "file", filePath)
	}

	logger.Debug("Configuration loading complete.",
		"runners", len(model.Runners),
		"assets", len(model.Assets),
		"steps", len(model.Pipeline.Steps),
		"resources", len(model.Pipeline.Resources),
	)

	return model, NewConverter(), nil
}

// collectFiles expands a mix of file and directory paths into the flat,
// sorted list of .hcl files to load.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("cannot access config path %s: %w", p, err)
		}
		if info.IsDir() {
			found, err := fsutil.FindFilesByExtension(p, ".hcl")
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s for .hcl files: %w", p, err)
			}
			files = append(files, found...)
			continue
		}
		if filepath.Ext(p) != ".hcl" {
			return nil, fmt.Errorf("config file %s is not an .hcl file", p)
		}
		files = append(files, p)
	}
	return files, nil
}
