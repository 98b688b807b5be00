// Package testutil provides workflow graph builders for tests.
package testutil

import (
	"fmt"

	"github.com/dukex/botflow/pkg/models"
	"github.com/google/uuid"
)

// NewGraph creates an active graph attached to botID, with overrides applied in order.
func NewGraph(botID string, overrides ...func(*models.WorkflowGraph)) *models.WorkflowGraph {
	graph := &models.WorkflowGraph{
		ID:          uuid.New().String(),
		Name:        "Test Graph",
		BotIDs:      []string{botID},
		IsActive:    true,
		Nodes:       []*models.Node{},
		Connections: []*models.Connection{},
	}

	for _, override := range overrides {
		override(graph)
	}

	return graph
}

// WithNodes appends nodes to the graph.
func WithNodes(nodes ...*models.Node) func(*models.WorkflowGraph) {
	return func(g *models.WorkflowGraph) {
		g.Nodes = append(g.Nodes, nodes...)
	}
}

// WithConnections appends connections to the graph.
func WithConnections(connections ...*models.Connection) func(*models.WorkflowGraph) {
	return func(g *models.WorkflowGraph) {
		g.Connections = append(g.Connections, connections...)
	}
}

// Inactive marks the graph inactive.
func Inactive() func(*models.WorkflowGraph) {
	return func(g *models.WorkflowGraph) {
		g.IsActive = false
	}
}

// Chain connects the given node ids in sequence without handles.
func Chain(ids ...string) func(*models.WorkflowGraph) {
	return func(g *models.WorkflowGraph) {
		for i := 1; i < len(ids); i++ {
			g.Connections = append(g.Connections, Connect(ids[i-1], ids[i], ""))
		}
	}
}

// Connect creates a connection, with handle selecting a condition branch when non-empty.
func Connect(source, target, handle string) *models.Connection {
	return &models.Connection{
		ID:           fmt.Sprintf("%s-%s", source, target),
		SourceNodeID: source,
		TargetNodeID: target,
		SourceHandle: handle,
	}
}

// CreateNode creates a node of the given type.
func CreateNode(id string, nodeType models.NodeType, config map[string]any) *models.Node {
	if config == nil {
		config = map[string]any{}
	}

	return &models.Node{
		ID:       id,
		Type:     nodeType,
		Position: models.Position{X: 100, Y: 200},
		Config:   config,
	}
}

func CommandTrigger(id, command string) *models.Node {
	return CreateNode(id, models.NodeTypeTriggerCommand, map[string]any{"command": command})
}

func TextTrigger(id, matchType, pattern string) *models.Node {
	return CreateNode(id, models.NodeTypeTriggerText, map[string]any{"matchType": matchType, "pattern": pattern})
}

// CallbackTrigger creates a callback trigger; an empty pattern matches every callback.
func CallbackTrigger(id, matchType, pattern string) *models.Node {
	config := map[string]any{}
	if matchType != "" {
		config["matchType"] = matchType
	}

	if pattern != "" {
		config["pattern"] = pattern
	}

	return CreateNode(id, models.NodeTypeTriggerCallback, config)
}

func MessageAction(id, text string) *models.Node {
	return CreateNode(id, models.NodeTypeActionMessage, map[string]any{"text": text})
}

func DelayAction(id string, milliseconds int64) *models.Node {
	return CreateNode(id, models.NodeTypeActionDelay, map[string]any{"delay": milliseconds})
}

func Condition(id string, config map[string]any) *models.Node {
	return CreateNode(id, models.NodeTypeConditionIf, config)
}
