package condition

import (
	"context"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/protocol"
)

// Factory creates condition-if nodes.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewNode(id, config)
}

func (f *Factory) ID() models.NodeType {
	return models.NodeTypeConditionIf
}

func (f *Factory) Name() string {
	return "Condition"
}

func (f *Factory) Description() string {
	return "Routes the flow to the true or false branch. Without a predicate it always takes the true branch"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Template rendered against the context and coerced to a boolean",
				"examples":    []any{`{{ eq .user.language_code "pt" }}`},
			},
			"field": map[string]any{
				"type":        "string",
				"description": "Context field: text, callbackData, eventType, user.<name>, conversation.<name>, variables.<name>",
			},
			"operator": map[string]any{
				"type": "string",
				"enum": []any{
					OperatorEquals, OperatorNotEquals, OperatorContains,
					OperatorStartsWith, OperatorRegex, OperatorExists,
				},
			},
			"value":         map[string]any{"type": "string"},
			"caseSensitive": map[string]any{"type": "boolean"},
		},
	}
}
