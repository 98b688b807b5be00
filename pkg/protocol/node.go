// Package protocol defines the interfaces and contracts for pluggable nodes.
package protocol

import (
	"context"

	"github.com/dukex/botflow/pkg/models"
)

// Node is an executable instance of a graph node, built from its config.
type Node interface {
	ID() string
	Type() models.NodeType
}

// ActionNode performs a side effect. Actions never choose a branch; a returned
// error fails only this node.
type ActionNode interface {
	Node
	Execute(ctx context.Context, executionCtx *models.ExecutionContext) error
}

// ConditionNode evaluates a predicate that selects the "true" or "false" branch.
type ConditionNode interface {
	Node
	Evaluate(ctx context.Context, executionCtx *models.ExecutionContext) (bool, error)
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given configuration
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// ID returns the node type this factory builds
	ID() models.NodeType

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}
