// Package resolver maps platform identities to local RemoteUser and Conversation rows.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
)

const maxAttempts = 3

// ErrUnresolved is returned when a row could neither be read nor created after retries.
var ErrUnresolved = errors.New("identity could not be resolved")

// Resolver performs get-or-create for remote identities. Uniqueness is owned by
// the store; a conflicting insert means another writer won and the row is re-read.
type Resolver struct {
	users         persistence.UserRepository
	conversations persistence.ConversationRepository
	logger        *slog.Logger
}

// New creates a resolver over the given repositories.
func New(logger *slog.Logger, users persistence.UserRepository, conversations persistence.ConversationRepository) *Resolver {
	return &Resolver{
		users:         users,
		conversations: conversations,
		logger:        logger.With("module", "resolver"),
	}
}

// ResolveUser finds or creates the user. A non-empty startParam is stored only
// when the user has none yet.
func (r *Resolver) ResolveUser(ctx context.Context, from gateway.User, startParam string) (*models.RemoteUser, error) {
	for attempt := range maxAttempts {
		user, err := r.users.GetByExternalID(ctx, from.ID)
		if err == nil {
			return r.applyStartParam(ctx, user, startParam)
		}

		if !persistence.IsNotFound(err) {
			return nil, fmt.Errorf("failed to look up user %d: %w", from.ID, err)
		}

		user = &models.RemoteUser{
			ExternalID:   from.ID,
			FirstName:    from.FirstName,
			LastName:     from.LastName,
			Username:     from.Username,
			LanguageCode: from.LanguageCode,
			StartParam:   startParam,
			IsBot:        from.IsBot,
		}

		err = r.users.Create(ctx, user)
		if err == nil {
			r.logger.DebugContext(ctx, "created remote user", "userId", user.ID, "externalId", from.ID)

			return user, nil
		}

		if !persistence.IsAlreadyExists(err) {
			return nil, fmt.Errorf("failed to create user %d: %w", from.ID, err)
		}

		r.logger.DebugContext(ctx, "user created concurrently, re-reading", "externalId", from.ID, "attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w: user %d", ErrUnresolved, from.ID)
}

func (r *Resolver) applyStartParam(ctx context.Context, user *models.RemoteUser, startParam string) (*models.RemoteUser, error) {
	if startParam == "" || user.StartParam == startParam {
		return user, nil
	}

	if user.StartParam != "" {
		r.logger.InfoContext(ctx, "discarding later first-touch parameter",
			"userId", user.ID, "stored", user.StartParam, "received", startParam)

		return user, nil
	}

	written, err := r.users.SetStartParam(ctx, user.ID, startParam)
	if err != nil {
		return nil, fmt.Errorf("failed to store first-touch parameter: %w", err)
	}

	if written {
		user.StartParam = startParam

		return user, nil
	}

	// Another writer set it between our read and update.
	stored, err := r.users.GetByExternalID(ctx, user.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read user %d: %w", user.ExternalID, err)
	}

	r.logger.InfoContext(ctx, "discarding later first-touch parameter",
		"userId", stored.ID, "stored", stored.StartParam, "received", startParam)

	return stored, nil
}

// ResolveChat finds or creates the conversation for (chat, bot).
func (r *Resolver) ResolveChat(ctx context.Context, chat gateway.Chat, botID, userID string) (*models.Conversation, error) {
	for attempt := range maxAttempts {
		conversation, err := r.conversations.GetByExternalChat(ctx, chat.ID, botID)
		if err == nil {
			return conversation, nil
		}

		if !persistence.IsNotFound(err) {
			return nil, fmt.Errorf("failed to look up conversation %d: %w", chat.ID, err)
		}

		conversation = &models.Conversation{
			ExternalChatID: chat.ID,
			BotID:          botID,
			UserID:         userID,
			Kind:           models.ParseChatKind(chat.Type),
			Title:          chat.Title,
		}

		err = r.conversations.Create(ctx, conversation)
		if err == nil {
			r.logger.DebugContext(ctx, "created conversation", "conversationId", conversation.ID, "botId", botID)

			return conversation, nil
		}

		if !persistence.IsAlreadyExists(err) {
			return nil, fmt.Errorf("failed to create conversation %d: %w", chat.ID, err)
		}

		r.logger.DebugContext(ctx, "conversation created concurrently, re-reading", "externalChatId", chat.ID, "attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w: conversation %d/%s", ErrUnresolved, chat.ID, botID)
}
