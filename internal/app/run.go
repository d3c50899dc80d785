package app

import (
	"context"
	"fmt"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/dag"
	"github.com/vk/frostline/internal/executor"
	"github.com/vk/frostline/internal/runid"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, appConfig.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	run, err := runid.Resolve(appConfig.Workdir, appConfig.RunNumber)
	if err != nil {
		return fmt.Errorf("failed to resolve run identity: %w", err)
	}
	a.logger.Info("Run identity resolved.", "run_number", run.Number, "run_id", run.ID)

	a.logger.Debug("Building dependency graph from config model...")
	graph, err := dag.Build(ctx, a.model, a.registry)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))

	if len(graph.Nodes) == 0 {
		a.logger.Warn("No nodes found in graph, execution not required.")
		return nil
	}

	a.logger.Info("🚀 Starting pipeline execution...", "run_number", run.Number)
	exec := executor.New(graph, appConfig.WorkerCount, a.registry, a.converter, run)
	if err := exec.Run(ctx); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Info("🏁 Pipeline finished.")

	a.logger.Debug("App.Run method finished.")
	return nil
}
