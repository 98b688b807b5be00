package bots

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/idempotency"
	"github.com/dukex/botflow/pkg/mocks"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/nodes/condition"
	"github.com/dukex/botflow/pkg/nodes/delay"
	"github.com/dukex/botflow/pkg/nodes/message"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/dukex/botflow/pkg/persistence/file"
	"github.com/dukex/botflow/pkg/registry"
	"github.com/dukex/botflow/pkg/resolver"
	"github.com/dukex/botflow/pkg/testutil"
	"github.com/dukex/botflow/pkg/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type capturingExecutor struct {
	mu       sync.Mutex
	contexts []*models.ExecutionContext
}

func (e *capturingExecutor) Execute(_ context.Context, executionCtx *models.ExecutionContext) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.contexts = append(e.contexts, executionCtx)
}

func (e *capturingExecutor) Contexts() []*models.ExecutionContext {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*models.ExecutionContext(nil), e.contexts...)
}

func newIngest(t *testing.T, guard idempotency.Guard) (*Ingest, *capturingExecutor, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	executor := &capturingExecutor{}
	resolve := resolver.New(slog.Default(), store.UserRepository(), store.ConversationRepository())

	return NewIngest(slog.Default(), resolve, store.ConversationRepository(), store.TranscriptRepository(), executor, guard), executor, store
}

func testConnection(session gateway.Session) *Connection {
	return newConnection("bot-1", session, slog.Default())
}

func textUpdate(id int64, text string) gateway.Update {
	return gateway.Update{
		ID:        id,
		Kind:      gateway.UpdateText,
		Chat:      gateway.Chat{ID: 777, Type: "private"},
		From:      gateway.User{ID: 42, FirstName: "Ada", Username: "ada"},
		MessageID: id * 10,
		Text:      text,
	}
}

func TestIngest_BuildsExecutionContext(t *testing.T) {
	ctx := context.Background()
	ingest, executor, store := newIngest(t, nil)

	ingest.HandleUpdate(ctx, testConnection(&mocks.MockSession{}), textUpdate(1, "hello there"))

	contexts := executor.Contexts()
	require.Len(t, contexts, 1)

	executionCtx := contexts[0]
	assert.Equal(t, "bot-1", executionCtx.BotID)
	assert.Equal(t, models.EventText, executionCtx.EventType)
	assert.Equal(t, "hello there", executionCtx.Text)
	assert.Equal(t, int64(777), executionCtx.ExternalChatID)
	assert.Equal(t, int64(10), executionCtx.MessageID)
	require.NotNil(t, executionCtx.User)
	assert.Equal(t, int64(42), executionCtx.User.ExternalID)
	require.NotNil(t, executionCtx.Conversation)
	assert.Equal(t, models.ChatKindPrivate, executionCtx.Conversation.Kind)

	messages, err := store.TranscriptRepository().ListByConversation(ctx, executionCtx.Conversation.ID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.DirectionIncoming, messages[0].Direction)
	assert.Equal(t, "hello there", messages[0].Text)

	conversation, err := store.ConversationRepository().GetByID(ctx, executionCtx.Conversation.ID)
	require.NoError(t, err)
	assert.Equal(t, messages[0].ID, conversation.LastMessageID)
}

func TestIngest_AnswersCallbacks(t *testing.T) {
	ingest, executor, _ := newIngest(t, nil)

	session := &mocks.MockSession{}
	session.On("AnswerCallback", mock.Anything, "cb-1", "").Return(nil).Once()

	update := textUpdate(2, "")
	update.Kind = gateway.UpdateCallback
	update.CallbackID = "cb-1"
	update.CallbackData = "buy:7"

	ingest.HandleUpdate(context.Background(), testConnection(session), update)

	session.AssertExpectations(t)

	contexts := executor.Contexts()
	require.Len(t, contexts, 1)
	assert.Equal(t, models.EventCallback, contexts[0].EventType)
	assert.Equal(t, "buy:7", contexts[0].CallbackData)
}

func TestIngest_SkipsDuplicateDeliveries(t *testing.T) {
	mr := miniredis.RunT(t)
	guard := idempotency.NewRedisGuard(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:", time.Minute)
	ingest, executor, _ := newIngest(t, guard)

	update := textUpdate(3, "hi")
	ingest.HandleUpdate(context.Background(), testConnection(&mocks.MockSession{}), update)
	ingest.HandleUpdate(context.Background(), testConnection(&mocks.MockSession{}), update)

	assert.Len(t, executor.Contexts(), 1)
}

func TestIngest_FirstTouchParameter(t *testing.T) {
	ctx := context.Background()
	ingest, executor, store := newIngest(t, nil)
	conn := testConnection(&mocks.MockSession{})

	first := textUpdate(4, "/start promo42")
	first.Kind = gateway.UpdateCommand
	ingest.HandleUpdate(ctx, conn, first)

	second := textUpdate(5, "/start other")
	second.Kind = gateway.UpdateCommand
	ingest.HandleUpdate(ctx, conn, second)

	user, err := store.UserRepository().GetByExternalID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "promo42", user.StartParam)
	assert.Len(t, executor.Contexts(), 2)
}

func TestStartParam(t *testing.T) {
	tests := []struct {
		name string
		kind gateway.UpdateKind
		text string
		want string
	}{
		{name: "payload", kind: gateway.UpdateCommand, text: "/start promo42", want: "promo42"},
		{name: "addressed to bot", kind: gateway.UpdateCommand, text: "/start@flow_bot ref_1", want: "ref_1"},
		{name: "no payload", kind: gateway.UpdateCommand, text: "/start", want: ""},
		{name: "other command", kind: gateway.UpdateCommand, text: "/help me", want: ""},
		{name: "plain text", kind: gateway.UpdateText, text: "/start promo42", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StartParam(gateway.Update{Kind: tt.kind, Text: tt.text}))
		})
	}
}

func TestEventType(t *testing.T) {
	tests := map[gateway.UpdateKind]models.EventType{
		gateway.UpdateText:      models.EventText,
		gateway.UpdateCommand:   models.EventCommand,
		gateway.UpdateCallback:  models.EventCallback,
		gateway.UpdatePhoto:     models.EventPhoto,
		gateway.UpdateVideo:     models.EventVideo,
		gateway.UpdateVoice:     models.EventVoice,
		gateway.UpdateDocument:  models.EventDocument,
		gateway.UpdateAudio:     models.EventAudio,
		gateway.UpdateSticker:   models.EventSticker,
		gateway.UpdateVideoNote: models.EventVideoNote,
		gateway.UpdateAnimation: models.EventAnimation,
	}

	for kind, want := range tests {
		assert.Equal(t, want, EventType(kind), string(kind))
	}
}

// TestStartCommandScenario runs one "/start promo42" update through a live
// registry, the ingest pipeline and the executor.
func TestStartCommandScenario(t *testing.T) {
	ctx := context.Background()
	store := file.NewPersistence(t.TempDir())

	update := textUpdate(9, "/start promo42")
	update.Kind = gateway.UpdateCommand

	session := &mocks.MockSession{}
	session.On("Identity").Return(gateway.Identity{ExternalID: 1001, Username: "flow_bot"})
	session.On("Receive", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, handler func(context.Context, gateway.Update)) error {
			handler(ctx, update)
			<-ctx.Done()

			return nil
		})
	session.On("Close").Return(nil).Maybe()

	sends := make(chan gateway.Outgoing, 4)
	session.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sends <- args.Get(1).(gateway.Outgoing) }).
		Return(gateway.Sent{MessageID: 500}, nil)

	platform := &mocks.MockPlatform{}
	platform.On("Connect", mock.Anything, "token-a").Return(session, nil)

	bots := NewRegistry(slog.Default(), platform, store.BotRepository())
	defer bots.Shutdown(ctx)

	nodes := registry.NewRegistry(slog.Default())
	nodes.RegisterNode(message.NewFactory(message.Dependencies{
		Sender:        bots,
		Conversations: store.ConversationRepository(),
		Transcripts:   store.TranscriptRepository(),
	}))
	nodes.RegisterNode(delay.NewFactory())
	nodes.RegisterNode(condition.NewFactory())

	executor := workflow.NewExecutor(slog.Default(), store.WorkflowRepository(), nodes)
	resolve := resolver.New(slog.Default(), store.UserRepository(), store.ConversationRepository())
	bots.OnUpdate(NewIngest(slog.Default(), resolve, store.ConversationRepository(), store.TranscriptRepository(), executor, nil))

	// The bot record must exist before the graph can reference it.
	bot := &models.Bot{Token: "token-a", ExternalID: 1001, IsActive: true}
	require.NoError(t, store.BotRepository().Save(ctx, bot))

	graph := testutil.NewGraph(bot.ID,
		testutil.WithNodes(testutil.CommandTrigger("trigger", "start"), testutil.MessageAction("welcome", "Welcome!")),
		testutil.Chain("trigger", "welcome"),
	)
	require.NoError(t, store.WorkflowRepository().Save(ctx, graph))

	_, err := bots.Start(ctx, "token-a", bot.ID)
	require.NoError(t, err)

	select {
	case sent := <-sends:
		assert.Equal(t, int64(777), sent.ChatID)
		assert.Equal(t, gateway.MediaText, sent.Kind)
		assert.Equal(t, "Welcome!", sent.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("welcome message was not sent")
	}

	executor.Wait()

	select {
	case extra := <-sends:
		t.Fatalf("unexpected second send: %+v", extra)
	default:
	}

	user, err := store.UserRepository().GetByExternalID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "promo42", user.StartParam)
}
