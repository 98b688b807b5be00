package workflow

import (
	"log/slog"
	"testing"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTriggerMatcher_Match(t *testing.T) {
	matcher := NewTriggerMatcher(slog.Default())

	tests := []struct {
		name      string
		node      *models.Node
		eventType models.EventType
		text      string
		callback  string
		want      bool
	}{
		{name: "command with arguments", node: testutil.CommandTrigger("t", "cmd"), eventType: models.EventCommand, text: "/cmd a b", want: true},
		{name: "command with longer name", node: testutil.CommandTrigger("t", "cmd"), eventType: models.EventCommand, text: "/cmdx", want: false},
		{name: "command configured with slash", node: testutil.CommandTrigger("t", "/start"), eventType: models.EventCommand, text: "/start promo42", want: true},
		{name: "command is case insensitive", node: testutil.CommandTrigger("t", "Start"), eventType: models.EventCommand, text: "/START", want: true},
		{name: "command addressed to bot", node: testutil.CommandTrigger("t", "help"), eventType: models.EventCommand, text: "/help@flowbot", want: true},
		{name: "command on text event", node: testutil.CommandTrigger("t", "cmd"), eventType: models.EventText, text: "/cmd", want: false},
		{name: "command without config", node: testutil.CreateNode("t", models.NodeTypeTriggerCommand, nil), eventType: models.EventCommand, text: "/cmd", want: false},
		{name: "command with empty text", node: testutil.CommandTrigger("t", "cmd"), eventType: models.EventCommand, text: "  ", want: false},

		{name: "contains any case", node: testutil.TextTrigger("t", MatchContains, "hello"), eventType: models.EventText, text: "Well HeLLo there", want: true},
		{name: "contains missing", node: testutil.TextTrigger("t", MatchContains, "hello"), eventType: models.EventText, text: "goodbye", want: false},
		{name: "exact", node: testutil.TextTrigger("t", MatchExact, "Yes"), eventType: models.EventText, text: "yes", want: true},
		{name: "exact rejects partial", node: testutil.TextTrigger("t", MatchExact, "yes"), eventType: models.EventText, text: "yes please", want: false},
		{name: "default match type is exact", node: testutil.TextTrigger("t", "", "hi"), eventType: models.EventText, text: "HI", want: true},
		{name: "regex", node: testutil.TextTrigger("t", MatchRegex, `^order \d+$`), eventType: models.EventText, text: "Order 42", want: true},
		{name: "malformed regex", node: testutil.TextTrigger("t", MatchRegex, `(unclosed`), eventType: models.EventText, text: "(unclosed", want: false},
		{name: "startsWith not allowed for text", node: testutil.TextTrigger("t", MatchStartsWith, "he"), eventType: models.EventText, text: "hello", want: false},
		{name: "text trigger on command event", node: testutil.TextTrigger("t", MatchContains, "start"), eventType: models.EventCommand, text: "/start", want: false},

		{name: "callback wildcard", node: testutil.CallbackTrigger("t", "", ""), eventType: models.EventCallback, callback: "anything", want: true},
		{name: "callback wildcard on button", node: testutil.CallbackTrigger("t", "", ""), eventType: models.EventButton, callback: "", want: true},
		{name: "callback exact", node: testutil.CallbackTrigger("t", MatchExact, "buy"), eventType: models.EventCallback, callback: "buy", want: true},
		{name: "callback exact is case sensitive", node: testutil.CallbackTrigger("t", MatchExact, "buy"), eventType: models.EventCallback, callback: "BUY", want: false},
		{name: "callback startsWith", node: testutil.CallbackTrigger("t", MatchStartsWith, "item:"), eventType: models.EventCallback, callback: "item:7", want: true},
		{name: "callback contains", node: testutil.CallbackTrigger("t", MatchContains, ":7"), eventType: models.EventCallback, callback: "item:7", want: true},
		{name: "callback regex", node: testutil.CallbackTrigger("t", MatchRegex, `^item:\d+$`), eventType: models.EventCallback, callback: "item:x", want: false},
		{name: "callback on text event", node: testutil.CallbackTrigger("t", "", ""), eventType: models.EventText, text: "hi", want: false},

		{name: "action node never matches", node: testutil.MessageAction("a", "hi"), eventType: models.EventText, text: "hi", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executionCtx := &models.ExecutionContext{EventType: tt.eventType, Text: tt.text, CallbackData: tt.callback}

			assert.Equal(t, tt.want, matcher.Match(tt.node, executionCtx))
		})
	}
}

func TestTriggerMatcher_CachesInvalidPattern(t *testing.T) {
	matcher := NewTriggerMatcher(slog.Default())
	node := testutil.TextTrigger("t", MatchRegex, `[`)
	executionCtx := &models.ExecutionContext{EventType: models.EventText, Text: "["}

	assert.False(t, matcher.Match(node, executionCtx))
	assert.False(t, matcher.Match(node, executionCtx))
}
