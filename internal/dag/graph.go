package dag

import (
	"sync"
	"sync/atomic"

	"github.com/vk/frostline/internal/config"
)

// Graph is the complete, validated execution plan for one pipeline run.
type Graph struct {
	// Nodes provides a fast, ID-based lookup for any node in the graph.
	Nodes map[string]*Node
}

// NodeType distinguishes between different kinds of nodes in the graph.
type NodeType int

const (
	// StepNode represents a node that executes a unit of work.
	StepNode NodeType = iota
	// ResourceNode represents a node that manages a stateful resource.
	ResourceNode
)

// State represents the execution state of a node in the graph.
type State int32

const (
	// Pending indicates the node is waiting for its dependencies to complete.
	Pending State = iota
	// Running indicates the node is currently being executed by a worker.
	Running
	// Done indicates the node has completed execution successfully.
	Done
	// Failed indicates the node has failed execution or was skipped.
	Failed
)

// Node is a single vertex in the execution graph.
type Node struct {
	// ID is the unique, machine-readable identifier for the node.
	// Example: "step.verify_file.exe_gate"
	ID string
	// Name is the human-readable instance name from the configuration.
	Name string
	// Type distinguishes between step and resource nodes.
	Type NodeType

	// StepConfig holds the configuration for a step node. It is nil for resources.
	StepConfig *config.Step
	// ResourceConfig holds the configuration for a resource node. It is nil for steps.
	ResourceConfig *config.Resource

	// Error stores any error that occurred during the node's execution.
	Error error
	// Output stores the result of the node's execution for downstream nodes.
	Output any

	// Deps holds the set of nodes this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the set of nodes that depend on this node (successors).
	Dependents map[string]*Node

	// depCount is an atomic counter of unmet dependencies, used for scheduling.
	depCount atomic.Int32
	// state is the node's current execution state, managed atomically.
	state atomic.Int32
	// skipOnce ensures a node is marked as skipped exactly once.
	skipOnce sync.Once
}

// SetInitialCounters primes the dependency counter after linking completes.
func (n *Node) SetInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))
}

// DecrementDepCount atomically reduces the unmet dependency count and returns
// the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// DepCount returns the current unmet dependency count.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// SetState atomically transitions the node to the given state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// GetState returns the node's current execution state.
func (n *Node) GetState() State {
	return State(n.state.Load())
}

// MarkSkipped records a skip exactly once, running fn on the first call.
func (n *Node) MarkSkipped(err error, fn func()) {
	n.skipOnce.Do(func() {
		n.SetState(Failed)
		n.Error = err
		fn()
	})
}
