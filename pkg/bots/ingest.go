package bots

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/idempotency"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/dukex/botflow/pkg/resolver"
)

// Executor runs the workflows of a bot for one event without blocking the caller.
type Executor interface {
	Execute(ctx context.Context, executionCtx *models.ExecutionContext)
}

// Ingest turns inbound updates into execution contexts: it resolves the
// sender and chat, records the message and hands the event to the executor.
type Ingest struct {
	logger        *slog.Logger
	resolver      *resolver.Resolver
	conversations persistence.ConversationRepository
	transcripts   persistence.TranscriptRepository
	executor      Executor
	guard         idempotency.Guard
}

func NewIngest(
	logger *slog.Logger,
	resolver *resolver.Resolver,
	conversations persistence.ConversationRepository,
	transcripts persistence.TranscriptRepository,
	executor Executor,
	guard idempotency.Guard,
) *Ingest {
	if guard == nil {
		guard = idempotency.Noop{}
	}

	return &Ingest{
		logger:        logger.With("module", "ingest"),
		resolver:      resolver,
		conversations: conversations,
		transcripts:   transcripts,
		executor:      executor,
		guard:         guard,
	}
}

func (i *Ingest) HandleUpdate(ctx context.Context, conn *Connection, update gateway.Update) {
	botID := conn.BotID()
	logger := i.logger.With("botId", botID, "updateId", update.ID, "kind", update.Kind)

	claimed, err := i.guard.Claim(ctx, botID+":"+strconv.FormatInt(update.ID, 10))
	if err != nil {
		logger.WarnContext(ctx, "failed to claim update, processing anyway", "error", err)
	} else if !claimed {
		logger.DebugContext(ctx, "duplicate update skipped")

		return
	}

	if update.Kind == gateway.UpdateCallback && update.CallbackID != "" {
		err = conn.AnswerCallback(ctx, update.CallbackID, "")
		if err != nil {
			logger.WarnContext(ctx, "failed to answer callback", "error", err)
		}
	}

	user, err := i.resolver.ResolveUser(ctx, update.From, StartParam(update))
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve user", "error", err)

		return
	}

	conversation, err := i.resolver.ResolveChat(ctx, update.Chat, botID, user.ID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to resolve chat", "error", err)

		return
	}

	i.record(ctx, logger, botID, conversation, update)

	i.executor.Execute(ctx, &models.ExecutionContext{
		BotID:          botID,
		EventType:      EventType(update.Kind),
		Text:           eventText(update),
		CallbackData:   update.CallbackData,
		MessageID:      update.MessageID,
		ExternalChatID: update.Chat.ID,
		User:           user,
		Conversation:   conversation,
		Variables:      map[string]any{},
	})
}

// record stores the incoming transcript entry and moves the last-message
// pointer. Failures are logged only.
func (i *Ingest) record(ctx context.Context, logger *slog.Logger, botID string, conversation *models.Conversation, update gateway.Update) {
	message := &models.Message{
		ConversationID:    conversation.ID,
		BotID:             botID,
		Direction:         models.DirectionIncoming,
		ExternalMessageID: update.MessageID,
		Kind:              string(update.Kind),
		Text:              eventText(update),
		FileRef:           update.FileID,
	}

	if update.Kind == gateway.UpdateCallback {
		message.Text = update.CallbackData
	}

	err := i.transcripts.Save(ctx, message)
	if err != nil {
		logger.ErrorContext(ctx, "failed to save transcript", "error", err)

		return
	}

	err = i.conversations.UpdateLastMessage(ctx, conversation.ID, message.ID, time.Now().UTC())
	if err != nil {
		logger.ErrorContext(ctx, "failed to update last message", "error", err)

		return
	}

	conversation.LastMessageID = message.ID
}

// EventType maps a platform update kind to the event type seen by triggers.
func EventType(kind gateway.UpdateKind) models.EventType {
	switch kind {
	case gateway.UpdateCommand:
		return models.EventCommand
	case gateway.UpdateCallback:
		return models.EventCallback
	case gateway.UpdatePhoto:
		return models.EventPhoto
	case gateway.UpdateVideo:
		return models.EventVideo
	case gateway.UpdateVoice:
		return models.EventVoice
	case gateway.UpdateDocument:
		return models.EventDocument
	case gateway.UpdateAudio:
		return models.EventAudio
	case gateway.UpdateSticker:
		return models.EventSticker
	case gateway.UpdateVideoNote:
		return models.EventVideoNote
	case gateway.UpdateAnimation:
		return models.EventAnimation
	default:
		return models.EventText
	}
}

// StartParam returns the payload of a "/start <payload>" command, or "".
func StartParam(update gateway.Update) string {
	if update.Kind != gateway.UpdateCommand {
		return ""
	}

	fields := strings.Fields(update.Text)
	if len(fields) < 2 {
		return ""
	}

	command, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	if command != "/start" {
		return ""
	}

	return fields[1]
}

func eventText(update gateway.Update) string {
	if update.Text != "" {
		return update.Text
	}

	return update.Caption
}
