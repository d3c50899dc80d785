// Package executor runs a validated execution graph: a worker pool picks up
// nodes as their dependencies complete, any failure cancels the run and skips
// everything downstream, and resources are destroyed in LIFO order at the end.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/vk/frostline/internal/config"
	"github.com/vk/frostline/internal/ctxlog"
	"github.com/vk/frostline/internal/dag"
	"github.com/vk/frostline/internal/registry"
	"github.com/vk/frostline/internal/runid"
)

// Executor orchestrates the end-to-end execution of a graph.
type Executor struct {
	Graph      *dag.Graph
	numWorkers int
	registry   *registry.Registry
	converter  config.Converter
	run        runid.Info

	// resourceInstances maps resource node IDs to their live created objects.
	resourceInstances sync.Map

	cleanupMu    sync.Mutex
	cleanupStack []func()

	wg sync.WaitGroup
}

// New creates an Executor for the given graph.
func New(graph *dag.Graph, numWorkers int, r *registry.Registry, c config.Converter, run runid.Info) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{
		Graph:      graph,
		numWorkers: numWorkers,
		registry:   r,
		converter:  c,
		run:        run,
	}
}

// Run executes the entire graph and returns an error if any node fails.
// It respects the cancellation signal from the provided context.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	defer e.executeCleanupStack(ctx)

	readyChan := make(chan *dag.Node, len(e.Graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("Initializing executor, finding root nodes...")
	rootNodeCount := 0
	for _, node := range e.Graph.Nodes {
		if node.DepCount() == 0 {
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(e.Graph.Nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)

	var failedNodes []string
	var rootCauseError error
	for _, node := range e.Graph.Nodes {
		if node.GetState() != dag.Failed {
			continue
		}
		logger.Error("Node failed execution.", "nodeID", node.ID, "error", node.Error)
		// A "skipped" error is a symptom, not a cause.
		if node.Error != nil && !strings.HasPrefix(node.Error.Error(), "skipped") && !errors.Is(node.Error, context.Canceled) {
			failedNodes = append(failedNodes, node.ID)
			if rootCauseError == nil {
				rootCauseError = node.Error
			}
		}
	}

	if rootCauseError != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failedNodes, ", "), rootCauseError)
	}
	return nil
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *dag.Node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for node := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", node.ID)

		if ctx.Err() != nil {
			// A node can still become ready after cancellation when an
			// in-flight sibling finishes successfully. Release its whole
			// downstream cone, or wg.Wait never returns.
			node.MarkSkipped(ctx.Err(), func() {
				workerLogger.Warn("Skipping node drained after cancellation.")
				e.wg.Done()
				e.skipDependents(ctx, node)
			})
			continue
		}

		workerLogger.Debug("Worker picked up node for execution.")
		node.SetState(dag.Running)

		var err error
		switch node.Type {
		case dag.ResourceNode:
			err = e.runResourceNode(ctx, node)
		case dag.StepNode:
			err = e.runStepNode(ctx, node)
		}

		if err != nil {
			workerLogger.Error("Node execution failed.", "error", err)
			node.SetState(dag.Failed)
			node.Error = err
			cancel()
			e.skipDependents(ctx, node)
			e.wg.Done()
			continue
		}

		workerLogger.Debug("Node execution succeeded.")
		node.SetState(dag.Done)

		for _, dependent := range node.Dependents {
			if dependent.DecrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.ID)
				readyChan <- dependent
			}
		}

		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// skipDependents recursively marks all downstream nodes as failed and
// releases their WaitGroup slots.
func (e *Executor) skipDependents(ctx context.Context, node *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range node.Dependents {
		dep := dependent
		dep.MarkSkipped(fmt.Errorf("skipped due to upstream failure of '%s'", node.ID), func() {
			logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", dep.ID, "dependency", node.ID)
			e.wg.Done()
			e.skipDependents(ctx, dep)
		})
	}
}

// pushCleanup registers a destruction callback to run after the graph finishes.
func (e *Executor) pushCleanup(fn func()) {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	e.cleanupStack = append(e.cleanupStack, fn)
}

// executeCleanupStack destroys resources in reverse creation order.
func (e *Executor) executeCleanupStack(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	e.cleanupMu.Lock()
	stack := e.cleanupStack
	e.cleanupStack = nil
	e.cleanupMu.Unlock()

	logger.Debug("Executing cleanup stack.", "count", len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		stack[i]()
	}
}
