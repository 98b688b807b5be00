package message

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/botflow/pkg/eventbus"
	"github.com/dukex/botflow/pkg/events"
	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/mocks"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/dukex/botflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	sender       *mocks.MockSender
	store        persistence.Persistence
	conversation *models.Conversation
	uploads      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	conversation := &models.Conversation{ExternalChatID: 777, BotID: "bot-1", Kind: models.ChatKindPrivate}
	require.NoError(t, store.ConversationRepository().Create(context.Background(), conversation))

	return &fixture{
		sender:       &mocks.MockSender{},
		store:        store,
		conversation: conversation,
		uploads:      t.TempDir(),
	}
}

func (f *fixture) node(t *testing.T, config map[string]any) *Node {
	t.Helper()

	node, err := NewNode("msg-1", config, Dependencies{
		Sender:        f.sender,
		Conversations: f.store.ConversationRepository(),
		Transcripts:   f.store.TranscriptRepository(),
		UploadRoot:    f.uploads,
	})
	require.NoError(t, err)

	return node
}

func (f *fixture) execCtx() *models.ExecutionContext {
	conversation := *f.conversation

	return &models.ExecutionContext{
		BotID:        "bot-1",
		WorkflowID:   "wf-1",
		User:         &models.RemoteUser{FirstName: "Ada"},
		Conversation: &conversation,
	}
}

func TestNode_SendsRenderedText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.sender.On("Send", mock.Anything, "bot-1", mock.MatchedBy(func(msg gateway.Outgoing) bool {
		return msg.ChatID == 777 && msg.Kind == gateway.MediaText && msg.Text == "Hello Ada"
	})).Return(gateway.Sent{MessageID: 55}, nil).Once()

	err := f.node(t, map[string]any{"text": "Hello {{.user.first_name}}"}).Execute(ctx, f.execCtx())
	require.NoError(t, err)

	messages, err := f.store.TranscriptRepository().ListByConversation(ctx, f.conversation.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.DirectionOutgoing, messages[0].Direction)
	assert.Equal(t, "Hello Ada", messages[0].Text)
	assert.Equal(t, int64(55), messages[0].ExternalMessageID)
	assert.Equal(t, "msg-1", messages[0].NodeID)

	stored, err := f.store.ConversationRepository().GetByID(ctx, f.conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, messages[0].ID, stored.LastMessageID)
	assert.NotNil(t, stored.LastMessageAt)

	f.sender.AssertExpectations(t)
}

func TestNode_ButtonsAreForwarded(t *testing.T) {
	f := newFixture(t)

	f.sender.On("Send", mock.Anything, "bot-1", mock.MatchedBy(func(msg gateway.Outgoing) bool {
		return len(msg.Buttons) == 1 && msg.Buttons[0][0].CallbackData == "yes" && msg.Buttons[0][1].URL == "https://example.com"
	})).Return(gateway.Sent{MessageID: 1}, nil).Once()

	node := f.node(t, map[string]any{
		"text": "Continue?",
		"buttons": []any{
			[]any{
				map[string]any{"text": "Yes", "callbackData": "yes"},
				map[string]any{"text": "Docs", "url": "https://example.com"},
			},
		},
	})

	require.NoError(t, node.Execute(context.Background(), f.execCtx()))
	f.sender.AssertExpectations(t)
}

func TestNode_MediaFallsBackToText(t *testing.T) {
	f := newFixture(t)

	f.sender.On("Send", mock.Anything, "bot-1", mock.MatchedBy(func(msg gateway.Outgoing) bool {
		return msg.Kind == gateway.MediaText && msg.Text == "caption only" && msg.Media == nil
	})).Return(gateway.Sent{MessageID: 2}, nil).Once()

	node := f.node(t, map[string]any{"type": "photo", "caption": "caption only", "filePath": "missing.png"})

	require.NoError(t, node.Execute(context.Background(), f.execCtx()))
	f.sender.AssertExpectations(t)
}

func TestNode_NothingToSend(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
	}{
		{name: "empty text", config: map[string]any{"text": ""}},
		{name: "media without source or caption", config: map[string]any{"type": "video"}},
		{name: "template renders empty", config: map[string]any{"text": "{{.variables.missing}}"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			err := f.node(t, tt.config).Execute(context.Background(), f.execCtx())
			require.ErrorIs(t, err, ErrNothingToSend)
			f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestNode_StreamsLocalUpload(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.uploads, "media"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(f.uploads, "media", "cat.jpg"), []byte("jpeg"), 0600))

	var body []byte

	f.sender.On("Send", mock.Anything, "bot-1", mock.MatchedBy(func(msg gateway.Outgoing) bool {
		return msg.Kind == gateway.MediaPhoto && msg.Media != nil && msg.Media.Name == "cat.jpg"
	})).Run(func(args mock.Arguments) {
		msg := args.Get(2).(gateway.Outgoing)
		body, _ = io.ReadAll(msg.Media.Reader)
	}).Return(gateway.Sent{MessageID: 3, FileID: "AgAD"}, nil).Once()

	node := f.node(t, map[string]any{"type": "photo", "mediaUrl": "https://internal.local/uploads/media/cat.jpg"})

	require.NoError(t, node.Execute(context.Background(), f.execCtx()))
	assert.Equal(t, "jpeg", string(body))

	messages, err := f.store.TranscriptRepository().ListByConversation(context.Background(), f.conversation.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "AgAD", messages[0].FileRef)
}

func TestResolveMedia(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.png"), []byte("png"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(root), "secret.txt"), []byte("x"), 0600))

	tests := []struct {
		name    string
		config  Config
		wantRef string
	}{
		{name: "local path", config: Config{FilePath: "a.png"}, wantRef: "a.png"},
		{name: "uploads path", config: Config{FilePath: "/uploads/a.png"}, wantRef: "a.png"},
		{name: "traversal stays inside root", config: Config{FilePath: "../secret.txt"}},
		{name: "remote url", config: Config{MediaURL: "https://cdn.example.com/a.png"}, wantRef: "https://cdn.example.com/a.png"},
		{name: "internal uploads url", config: Config{MediaURL: "http://localhost:8080/uploads/a.png"}, wantRef: "a.png"},
		{name: "file id", config: Config{FileID: "BQAC"}, wantRef: "BQAC"},
		{name: "missing local then file id", config: Config{FilePath: "gone.png", FileID: "BQAC"}, wantRef: "BQAC"},
		{name: "nothing", config: Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, err := resolveMedia(root, &tt.config)
			require.NoError(t, err)
			defer source.Close()

			if tt.wantRef == "" {
				assert.Nil(t, source)

				return
			}

			require.NotNil(t, source)
			assert.Equal(t, tt.wantRef, source.ref)
		})
	}
}

func TestNode_UnreachableMarksBlockedThenClears(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	node := f.node(t, map[string]any{"text": "ping"})

	f.sender.On("Send", mock.Anything, "bot-1", mock.Anything).
		Return(gateway.Sent{}, fmt.Errorf("forbidden: %w", gateway.ErrRecipientUnreachable)).Once()

	err := node.Execute(ctx, f.execCtx())
	require.ErrorIs(t, err, gateway.ErrRecipientUnreachable)

	stored, err := f.store.ConversationRepository().GetByID(ctx, f.conversation.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBotBlocked)

	f.sender.On("Send", mock.Anything, "bot-1", mock.Anything).Return(gateway.Sent{MessageID: 9}, nil).Once()

	executionCtx := f.execCtx()
	executionCtx.Conversation.IsBotBlocked = true

	require.NoError(t, node.Execute(ctx, executionCtx))

	stored, err = f.store.ConversationRepository().GetByID(ctx, f.conversation.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsBotBlocked)
}

func TestNode_RequiresConversation(t *testing.T) {
	f := newFixture(t)

	err := f.node(t, map[string]any{"text": "hi"}).Execute(context.Background(), &models.ExecutionContext{BotID: "bot-1"})
	require.ErrorIs(t, err, ErrNoConversation)
}

func TestNewNode_RejectsInvalidConfig(t *testing.T) {
	_, err := NewNode("m", map[string]any{"type": "hologram"}, Dependencies{})
	require.Error(t, err)

	_, err = NewNode("m", map[string]any{"text": "x", "parseMode": "RTF"}, Dependencies{})
	require.Error(t, err)
}

type blockedRecorder struct {
	changes []bool
}

func (r *blockedRecorder) Publish(_ context.Context, _ string, event eventbus.Event) error {
	if blocked, ok := event.(events.ConversationBlocked); ok {
		r.changes = append(r.changes, blocked.Blocked)
	}

	return nil
}

func TestNode_PublishesBlockedChanges(t *testing.T) {
	f := newFixture(t)
	recorder := &blockedRecorder{}

	node, err := NewNode("msg-1", map[string]any{"text": "ping"}, Dependencies{
		Sender:        f.sender,
		Conversations: f.store.ConversationRepository(),
		Transcripts:   f.store.TranscriptRepository(),
		Events:        recorder,
	})
	require.NoError(t, err)

	f.sender.On("Send", mock.Anything, "bot-1", mock.Anything).
		Return(gateway.Sent{}, gateway.ErrRecipientUnreachable).Once()
	f.sender.On("Send", mock.Anything, "bot-1", mock.Anything).
		Return(gateway.Sent{MessageID: 1}, nil).Once()

	executionCtx := f.execCtx()
	require.Error(t, node.Execute(context.Background(), executionCtx))
	require.NoError(t, node.Execute(context.Background(), executionCtx))

	assert.Equal(t, []bool{true, false}, recorder.changes)
}

func TestNode_SuccessClearsBlockedFlagFromStaleContext(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name           string
		blockFirst     bool
		expectedEvents []bool
	}{
		{name: "blocked by another run", blockFirst: true, expectedEvents: []bool{true, false}},
		{name: "never blocked", blockFirst: false, expectedEvents: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			recorder := &blockedRecorder{}

			node, err := NewNode("msg-1", map[string]any{"text": "ping"}, Dependencies{
				Sender:        f.sender,
				Conversations: f.store.ConversationRepository(),
				Transcripts:   f.store.TranscriptRepository(),
				Events:        recorder,
			})
			require.NoError(t, err)

			stale := f.execCtx()

			if tt.blockFirst {
				f.sender.On("Send", mock.Anything, "bot-1", mock.Anything).
					Return(gateway.Sent{}, gateway.ErrRecipientUnreachable).Once()
				require.Error(t, node.Execute(ctx, f.execCtx()))
				require.False(t, stale.Conversation.IsBotBlocked)
			}

			f.sender.On("Send", mock.Anything, "bot-1", mock.Anything).
				Return(gateway.Sent{MessageID: 2}, nil).Once()
			require.NoError(t, node.Execute(ctx, stale))

			stored, err := f.store.ConversationRepository().GetByID(ctx, f.conversation.ID)
			require.NoError(t, err)
			assert.False(t, stored.IsBotBlocked)
			assert.Equal(t, tt.expectedEvents, recorder.changes)
		})
	}
}
