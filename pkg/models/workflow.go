package models

import (
	"slices"
	"time"
)

// WorkflowGraph is a user-authored directed graph attached to one or more bots.
type WorkflowGraph struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"      validate:"required,min=1"`
	BotIDs      []string      `json:"bot_ids"   validate:"required,min=1"`
	IsActive    bool          `json:"is_active"`
	Nodes       []*Node       `json:"nodes"`
	Connections []*Connection `json:"connections"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// AppliesTo reports whether the graph is attached to the given bot.
func (w *WorkflowGraph) AppliesTo(botID string) bool {
	return slices.Contains(w.BotIDs, botID)
}

// Triggers returns the trigger nodes in load order.
func (w *WorkflowGraph) Triggers() []*Node {
	triggers := make([]*Node, 0)

	for _, node := range w.Nodes {
		if node.IsTrigger() {
			triggers = append(triggers, node)
		}
	}

	return triggers
}

// NodeByID looks a node up by id.
func (w *WorkflowGraph) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// Outgoing indexes connections by source node, keeping load order.
func (w *WorkflowGraph) Outgoing() map[string][]*Connection {
	out := make(map[string][]*Connection, len(w.Nodes))

	for _, connection := range w.Connections {
		out[connection.SourceNodeID] = append(out[connection.SourceNodeID], connection)
	}

	return out
}
