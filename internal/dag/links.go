package dag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/frostline/internal/config"
	"github.com/vk/frostline/internal/ctxlog"
)

// linkNodes performs the second pass, establishing dependency links from both
// explicit depends_on entries and implicit references in expressions.
func linkNodes(ctx context.Context, model *config.Model, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting node linking pass.")

	for _, node := range graph.Nodes {
		var dependsOn []string
		var expressions []hcl.Expression

		if node.Type == StepNode {
			dependsOn = node.StepConfig.DependsOn
			for _, expr := range node.StepConfig.Arguments {
				expressions = append(expressions, expr)
			}
			for _, expr := range node.StepConfig.Uses {
				expressions = append(expressions, expr)
			}
		} else {
			dependsOn = node.ResourceConfig.DependsOn
			for _, expr := range node.ResourceConfig.Arguments {
				expressions = append(expressions, expr)
			}
		}

		if err := linkExplicitDeps(ctx, node, dependsOn, graph); err != nil {
			return err
		}
		for _, expr := range expressions {
			if err := linkImplicitDeps(ctx, node, expr, graph); err != nil {
				return err
			}
		}
	}

	logger.Debug("Finished node linking pass.")
	return nil
}

// linkExplicitDeps resolves dependencies from a `depends_on` list. Entries
// address steps as "runner_type.instance_name" and resources as
// "resource.asset_type.instance_name".
func linkExplicitDeps(ctx context.Context, node *Node, dependsOn []string, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)

	for _, addr := range dependsOn {
		var depID string
		if strings.HasPrefix(addr, "resource.") || strings.HasPrefix(addr, "step.") {
			depID = addr
		} else {
			depID = "step." + addr
		}

		dep, ok := graph.Nodes[depID]
		if !ok {
			return fmt.Errorf("node '%s' depends on unknown node '%s'", node.ID, addr)
		}
		if dep == node {
			return fmt.Errorf("node '%s' cannot depend on itself", node.ID)
		}

		logger.Debug("Linking explicit dependency.", "from", dep.ID, "to", node.ID)
		addEdge(dep, node)
	}
	return nil
}

// linkImplicitDeps inspects an expression's traversals for references to
// other nodes ("step.<runner>.<name>..." or "resource.<asset>.<name>") and
// links them as dependencies.
func linkImplicitDeps(ctx context.Context, node *Node, expr hcl.Expression, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)

	for _, traversal := range expr.Variables() {
		depID, ok := traversalToNodeID(traversal)
		if !ok {
			continue
		}
		dep, found := graph.Nodes[depID]
		if !found {
			return fmt.Errorf("node '%s' references unknown node '%s'", node.ID, depID)
		}
		if dep == node {
			return fmt.Errorf("node '%s' cannot reference itself", node.ID)
		}

		logger.Debug("Linking implicit dependency.", "from", dep.ID, "to", node.ID)
		addEdge(dep, node)
	}
	return nil
}

// traversalToNodeID converts an HCL traversal into a node ID, when the
// traversal root addresses a step or resource. Other roots (e.g. `run`) are
// engine-provided variables, not graph nodes.
func traversalToNodeID(t hcl.Traversal) (string, bool) {
	if len(t) < 3 {
		return "", false
	}
	root := t.RootName()
	if root != "step" && root != "resource" {
		return "", false
	}
	first, ok := t[1].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}
	second, ok := t[2].(hcl.TraverseAttr)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s.%s.%s", root, first.Name, second.Name), true
}
