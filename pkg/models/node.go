// Package models defines the core data model shared by the bot gateway and the workflow engine.
package models

import "strings"

// NodeType is the closed set of node variants a workflow graph may contain.
type NodeType string

const (
	NodeTypeTriggerCommand  NodeType = "trigger-command"
	NodeTypeTriggerText     NodeType = "trigger-text"
	NodeTypeTriggerCallback NodeType = "trigger-callback"
	NodeTypeActionMessage   NodeType = "action-message"
	NodeTypeActionDelay     NodeType = "action-delay"
	NodeTypeConditionIf     NodeType = "condition-if"
)

// NodeCategory groups node types by how the executor treats them.
type NodeCategory string

const (
	CategoryTrigger   NodeCategory = "trigger"
	CategoryAction    NodeCategory = "action"
	CategoryCondition NodeCategory = "condition"
	CategoryUnknown   NodeCategory = "unknown"
)

// Branch handles used on connections leaving a condition node.
const (
	HandleTrue  = "true"
	HandleFalse = "false"
)

// Category returns the category encoded in the type prefix.
func (t NodeType) Category() NodeCategory {
	switch {
	case strings.HasPrefix(string(t), "trigger-"):
		return CategoryTrigger
	case strings.HasPrefix(string(t), "action-"):
		return CategoryAction
	case strings.HasPrefix(string(t), "condition-"):
		return CategoryCondition
	default:
		return CategoryUnknown
	}
}

// Position is the node location on the authoring canvas. The engine never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a single vertex of a workflow graph. Config is schema-free at rest and
// validated per type when the node executes.
type Node struct {
	ID       string         `json:"id"       validate:"required"`
	Type     NodeType       `json:"type"     validate:"required"`
	Position Position       `json:"position"`
	Config   map[string]any `json:"config"`
}

func (n *Node) IsTrigger() bool {
	return n.Type.Category() == CategoryTrigger
}

func (n *Node) IsAction() bool {
	return n.Type.Category() == CategoryAction
}

func (n *Node) IsCondition() bool {
	return n.Type.Category() == CategoryCondition
}

// ConfigString returns a string config value, or "" when absent or not a string.
func (n *Node) ConfigString(key string) string {
	if n.Config == nil {
		return ""
	}

	s, _ := n.Config[key].(string)

	return s
}

// Connection is a directed edge between two nodes of the same graph.
// SourceHandle selects the branch ("true"/"false") when the source is a condition.
type Connection struct {
	ID           string `json:"id"`
	SourceNodeID string `json:"source_node_id"          validate:"required"`
	TargetNodeID string `json:"target_node_id"          validate:"required"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle,omitempty"`
}
