package message

import (
	"context"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/protocol"
)

// Factory creates message nodes bound to shared dependencies.
type Factory struct {
	deps Dependencies
}

// NewFactory creates a new factory instance.
func NewFactory(deps Dependencies) protocol.NodeFactory {
	return &Factory{deps: deps}
}

func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewNode(id, config, f.deps)
}

func (f *Factory) ID() models.NodeType {
	return models.NodeTypeActionMessage
}

func (f *Factory) Name() string {
	return "Send message"
}

func (f *Factory) Description() string {
	return "Sends a text, photo, video, voice, audio, document or animation to the current conversation"
}

func (f *Factory) Schema() map[string]any {
	button := map[string]any{
		"type":     "object",
		"required": []any{"text"},
		"properties": map[string]any{
			"text":         map[string]any{"type": "string"},
			"callbackData": map[string]any{"type": "string", "maxLength": 64},
			"url":          map[string]any{"type": "string"},
		},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type": map[string]any{
				"type":    "string",
				"enum":    []any{"text", "photo", "video", "voice", "audio", "document", "animation"},
				"default": "text",
			},
			"text": map[string]any{
				"type":        "string",
				"description": "Message text. Supports templating, e.g. Hi {{ .user.first_name }}",
			},
			"caption":   map[string]any{"type": "string"},
			"mediaUrl":  map[string]any{"type": "string"},
			"fileId":    map[string]any{"type": "string"},
			"filePath":  map[string]any{"type": "string", "description": "Path under the upload root"},
			"parseMode": map[string]any{"type": "string", "enum": []any{"HTML", "Markdown", "MarkdownV2"}},
			"buttons": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "array", "items": button},
			},
		},
	}
}
