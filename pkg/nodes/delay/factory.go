package delay

import (
	"context"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/protocol"
)

// Factory creates delay nodes.
type Factory struct{}

// NewFactory creates a new factory instance.
func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewNode(id, config)
}

func (f *Factory) ID() models.NodeType {
	return models.NodeTypeActionDelay
}

func (f *Factory) Name() string {
	return "Delay"
}

func (f *Factory) Description() string {
	return "Pauses the current flow for a number of milliseconds before continuing"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"delay": map[string]any{
				"type":        []any{"number", "string"},
				"description": "Delay in milliseconds",
				"examples":    []any{1000, "2500"},
			},
		},
	}
}
