package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const conversationSelect = `
	SELECT
		c.id
	  , c.external_chat_id
	  , c.bot_id
	  , COALESCE(c.user_id::text, '')
	  , c.kind
	  , c.title
	  , COALESCE(c.last_message_id, '')
	  , c.last_message_at
	  , c.is_bot_blocked
	  , COALESCE(array_agg(cc.category_id::text) FILTER (WHERE cc.category_id IS NOT NULL), '{}')
	  , c.created_at
	  , c.updated_at
	FROM conversations c
	LEFT JOIN conversation_categories cc ON cc.conversation_id = c.id
`

// ConversationRepository handles conversation database operations.
type ConversationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *sql.DB, logger *slog.Logger) *ConversationRepository {
	return &ConversationRepository{db: db, logger: logger}
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	row := r.db.QueryRowContext(ctx, conversationSelect+" WHERE c.id = $1 GROUP BY c.id", id)

	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewEntityError("GetByID", "conversation", id, persistence.ErrConversationNotFound)
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	return conversation, nil
}

func (r *ConversationRepository) GetByExternalChat(ctx context.Context, externalChatID int64, botID string) (*models.Conversation, error) {
	query := conversationSelect + " WHERE c.external_chat_id = $1 AND c.bot_id = $2 GROUP BY c.id"

	conversation, err := scanConversation(r.db.QueryRowContext(ctx, query, externalChatID, botID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			key := fmt.Sprintf("%d/%s", externalChatID, botID)

			return nil, persistence.NewEntityError("GetByExternalChat", "conversation", key, persistence.ErrConversationNotFound)
		}

		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	return conversation, nil
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	if conversation.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate conversation ID: %w", err)
		}

		conversation.ID = id.String()
	}

	now := time.Now().UTC()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	if conversation.Kind == "" {
		conversation.Kind = models.ChatKindPrivate
	}

	query := `
		INSERT INTO conversations (id, external_chat_id, bot_id, user_id, kind, title, is_bot_blocked, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		conversation.ID,
		conversation.ExternalChatID,
		conversation.BotID,
		conversation.UserID,
		conversation.Kind,
		conversation.Title,
		conversation.IsBotBlocked,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)
	if err != nil {
		key := fmt.Sprintf("%d/%s", conversation.ExternalChatID, conversation.BotID)
		if isUniqueViolation(err) {
			return persistence.NewEntityError("Create", "conversation", key, persistence.ErrAlreadyExists)
		}

		return persistence.NewEntityError("Create", "conversation", key, err)
	}

	return nil
}

func (r *ConversationRepository) SetBlocked(ctx context.Context, id string, blocked bool) (bool, error) {
	query := `
		WITH previous AS (
			SELECT id FROM conversations WHERE id = $1
		), updated AS (
			UPDATE conversations SET is_bot_blocked = $2, updated_at = $3
			WHERE id = $1 AND is_bot_blocked <> $2
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM updated) FROM previous
	`

	var changed bool

	err := r.db.QueryRowContext(ctx, query, id, blocked, time.Now().UTC()).Scan(&changed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, persistence.NewEntityError("SetBlocked", "conversation", id, persistence.ErrConversationNotFound)
		}

		return false, fmt.Errorf("failed to update conversation: %w", err)
	}

	return changed, nil
}

func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id, messageID string, at time.Time) error {
	query := "UPDATE conversations SET last_message_id = $2, last_message_at = $3, updated_at = $4 WHERE id = $1"

	return r.exec(ctx, "UpdateLastMessage", id, query, id, messageID, at, time.Now().UTC())
}

func (r *ConversationRepository) exec(ctx context.Context, op, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewEntityError(op, "conversation", id, persistence.ErrConversationNotFound)
	}

	return nil
}

func scanConversation(scanner rowScanner) (*models.Conversation, error) {
	var (
		conversation  models.Conversation
		lastMessageAt sql.NullTime
		categories    pq.StringArray
	)

	err := scanner.Scan(
		&conversation.ID,
		&conversation.ExternalChatID,
		&conversation.BotID,
		&conversation.UserID,
		&conversation.Kind,
		&conversation.Title,
		&conversation.LastMessageID,
		&lastMessageAt,
		&conversation.IsBotBlocked,
		&categories,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastMessageAt.Valid {
		conversation.LastMessageAt = &lastMessageAt.Time
	}

	if len(categories) > 0 {
		conversation.CategoryIDs = categories
	}

	return &conversation, nil
}
