package models

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_Validation_MissingFields(t *testing.T) {
	testCases := []struct {
		name       string
		connection *Connection
		fieldName  string
	}{
		{
			name:       "missing source node",
			connection: &Connection{ID: "conn-1", TargetNodeID: "node-2"},
			fieldName:  "SourceNodeID",
		},
		{
			name:       "missing target node",
			connection: &Connection{ID: "conn-1", SourceNodeID: "node-1"},
			fieldName:  "TargetNodeID",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.New().Struct(tc.connection)
			require.Error(t, err)

			var validationErrors validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrors))
			assert.Equal(t, tc.fieldName, validationErrors[0].Field())
		})
	}
}

func TestNodeType_Category(t *testing.T) {
	tests := map[NodeType]NodeCategory{
		NodeTypeTriggerCommand:  CategoryTrigger,
		NodeTypeTriggerText:     CategoryTrigger,
		NodeTypeTriggerCallback: CategoryTrigger,
		NodeTypeActionMessage:   CategoryAction,
		NodeTypeActionDelay:     CategoryAction,
		NodeTypeConditionIf:     CategoryCondition,
		NodeType("webhook"):     CategoryUnknown,
		NodeType(""):            CategoryUnknown,
	}

	for nodeType, want := range tests {
		assert.Equal(t, want, nodeType.Category(), string(nodeType))
	}
}

func TestParseChatKind(t *testing.T) {
	assert.Equal(t, ChatKindPrivate, ParseChatKind("private"))
	assert.Equal(t, ChatKindGroup, ParseChatKind("group"))
	assert.Equal(t, ChatKindSupergroup, ParseChatKind("supergroup"))
	assert.Equal(t, ChatKindChannel, ParseChatKind("channel"))
	assert.Equal(t, ChatKindPrivate, ParseChatKind("sender"))
	assert.Equal(t, ChatKindPrivate, ParseChatKind(""))
}

func TestWorkflowGraph_TriggersAndOutgoing(t *testing.T) {
	graph := &WorkflowGraph{
		ID:     "wf-1",
		BotIDs: []string{"bot-1"},
		Nodes: []*Node{
			{ID: "t1", Type: NodeTypeTriggerCommand},
			{ID: "a1", Type: NodeTypeActionMessage},
			{ID: "t2", Type: NodeTypeTriggerText},
		},
		Connections: []*Connection{
			{ID: "c1", SourceNodeID: "t1", TargetNodeID: "a1"},
			{ID: "c2", SourceNodeID: "t2", TargetNodeID: "a1"},
		},
	}

	triggers := graph.Triggers()
	require.Len(t, triggers, 2)
	assert.Equal(t, "t1", triggers[0].ID)
	assert.Equal(t, "t2", triggers[1].ID)

	out := graph.Outgoing()
	assert.Len(t, out["t1"], 1)
	assert.Empty(t, out["a1"])

	assert.True(t, graph.AppliesTo("bot-1"))
	assert.False(t, graph.AppliesTo("bot-2"))
}

func TestExecutionContext_ForkIsolatesVariables(t *testing.T) {
	original := &ExecutionContext{BotID: "bot-1", Variables: map[string]any{"a": 1}}

	forked := original.Fork("wf-1")
	forked.Variables["b"] = 2

	assert.Equal(t, "wf-1", forked.WorkflowID)
	assert.Empty(t, original.WorkflowID)
	assert.NotContains(t, original.Variables, "b")

	original.Conversation = &Conversation{ID: "c1"}
	forked = original.Fork("wf-2")
	forked.Conversation.IsBotBlocked = true

	assert.False(t, original.Conversation.IsBotBlocked)
}

func TestRemoteUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&RemoteUser{FirstName: "Ada", LastName: "Lovelace"}).DisplayName())
	assert.Equal(t, "Ada", (&RemoteUser{FirstName: " Ada "}).DisplayName())
	assert.Equal(t, "@ada", (&RemoteUser{Username: "ada"}).DisplayName())
	assert.Empty(t, (&RemoteUser{}).DisplayName())
}
