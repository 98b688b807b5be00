// Package message provides the action that sends a text or media message to
// the conversation of the current event.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/botflow/pkg/eventbus"
	"github.com/dukex/botflow/pkg/events"
	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/nodes"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/dukex/botflow/pkg/template"
)

var (
	// ErrNothingToSend is returned when neither media nor text resolves.
	ErrNothingToSend = errors.New("nothing to send")

	// ErrNoConversation is returned when the event has no resolved conversation.
	ErrNoConversation = errors.New("execution context has no conversation")
)

// Sender delivers an outgoing message through the live session of a bot.
type Sender interface {
	Send(ctx context.Context, botID string, msg gateway.Outgoing) (gateway.Sent, error)
}

// Dependencies are the collaborators shared by every message node.
type Dependencies struct {
	Sender        Sender
	Conversations persistence.ConversationRepository
	Transcripts   persistence.TranscriptRepository
	UploadRoot    string
	Logger        *slog.Logger

	// Events optionally receives blocked-flag changes.
	Events eventbus.EventPublisher
}

// Node sends one message per execution.
type Node struct {
	id     string
	config Config
	deps   Dependencies
}

// NewNode creates a message node from its raw config.
func NewNode(id string, config map[string]any, deps Dependencies) (*Node, error) {
	var cfg Config

	err := nodes.DecodeConfig(config, &cfg)
	if err != nil {
		return nil, err
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Node{id: id, config: cfg, deps: deps}, nil
}

func (n *Node) ID() string {
	return n.id
}

func (n *Node) Type() models.NodeType {
	return models.NodeTypeActionMessage
}

// Execute sends the message. An unreachable recipient marks the conversation
// as blocked and every successful send clears the stored flag.
func (n *Node) Execute(ctx context.Context, executionCtx *models.ExecutionContext) error {
	conversation := executionCtx.Conversation
	if conversation == nil {
		return ErrNoConversation
	}

	logger := n.deps.Logger.With("nodeId", n.id, "botId", executionCtx.BotID, "conversationId", conversation.ID)

	body, err := template.RenderWithContext(n.config.Body(), executionCtx)
	if err != nil {
		return fmt.Errorf("failed to render message text: %w", err)
	}

	outgoing, source, err := n.build(ctx, logger, conversation.ExternalChatID, body)
	if err != nil {
		return err
	}
	defer source.Close()

	sent, err := n.deps.Sender.Send(ctx, executionCtx.BotID, outgoing)
	if err != nil {
		if gateway.IsUnreachable(err) {
			n.setBlocked(ctx, logger, conversation, true)
		}

		return fmt.Errorf("failed to send message: %w", err)
	}

	n.setBlocked(ctx, logger, conversation, false)

	n.record(ctx, logger, executionCtx, outgoing, source, sent)

	return nil
}

func (n *Node) build(ctx context.Context, logger *slog.Logger, chatID int64, body string) (gateway.Outgoing, *mediaSource, error) {
	outgoing := gateway.Outgoing{
		ChatID:    chatID,
		Kind:      n.config.Kind(),
		Text:      body,
		ParseMode: n.config.ParseMode,
		Buttons:   n.config.buttons(),
	}

	if outgoing.Kind == gateway.MediaText {
		if body == "" {
			return outgoing, nil, ErrNothingToSend
		}

		return outgoing, nil, nil
	}

	source, err := resolveMedia(n.deps.UploadRoot, &n.config)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve media", "error", err)
	}

	if source == nil {
		if body == "" {
			return outgoing, nil, ErrNothingToSend
		}

		logger.WarnContext(ctx, "media source unresolved, sending text instead", "kind", outgoing.Kind)

		outgoing.Kind = gateway.MediaText

		return outgoing, nil, nil
	}

	outgoing.Media = source.media

	return outgoing, source, nil
}

func (n *Node) setBlocked(ctx context.Context, logger *slog.Logger, conversation *models.Conversation, blocked bool) {
	changed, err := n.deps.Conversations.SetBlocked(ctx, conversation.ID, blocked)
	if err != nil {
		logger.ErrorContext(ctx, "failed to update blocked flag", "blocked", blocked, "error", err)

		return
	}

	conversation.IsBotBlocked = blocked

	if !changed || n.deps.Events == nil {
		return
	}

	err = n.deps.Events.Publish(ctx, conversation.BotID, events.ConversationBlocked{
		BaseEvent:      events.NewBaseEvent(events.ConversationBlockedEvent, conversation.BotID),
		ConversationID: conversation.ID,
		Blocked:        blocked,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to publish blocked change", "error", err)
	}
}

// record stores the transcript entry and moves the last-message pointer. Both
// are best effort: the message is already delivered.
func (n *Node) record(ctx context.Context, logger *slog.Logger, executionCtx *models.ExecutionContext, outgoing gateway.Outgoing, source *mediaSource, sent gateway.Sent) {
	fileRef := sent.FileID
	if fileRef == "" && source != nil {
		fileRef = source.ref
	}

	message := &models.Message{
		ConversationID:    executionCtx.Conversation.ID,
		BotID:             executionCtx.BotID,
		Direction:         models.DirectionOutgoing,
		ExternalMessageID: sent.MessageID,
		Kind:              string(outgoing.Kind),
		Text:              outgoing.Text,
		FileRef:           fileRef,
		WorkflowID:        executionCtx.WorkflowID,
		NodeID:            n.id,
	}

	err := n.deps.Transcripts.Save(ctx, message)
	if err != nil {
		logger.ErrorContext(ctx, "failed to save transcript", "error", err)

		return
	}

	lastID := message.ID
	if lastID == "" {
		lastID = strconv.FormatInt(sent.MessageID, 10)
	}

	err = n.deps.Conversations.UpdateLastMessage(ctx, executionCtx.Conversation.ID, lastID, time.Now().UTC())
	if err != nil {
		logger.ErrorContext(ctx, "failed to update last message", "error", err)
	}
}
