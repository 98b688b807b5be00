package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/google/uuid"
)

// TranscriptRepository handles transcript database operations.
type TranscriptRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTranscriptRepository creates a new transcript repository.
func NewTranscriptRepository(db *sql.DB, logger *slog.Logger) *TranscriptRepository {
	return &TranscriptRepository{db: db, logger: logger}
}

func (r *TranscriptRepository) Save(ctx context.Context, message *models.Message) error {
	if message.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}

		message.ID = id.String()
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (id, conversation_id, bot_id, direction, external_message_id, kind, text, file_ref, workflow_id, node_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.ConversationID,
		message.BotID,
		message.Direction,
		message.ExternalMessageID,
		message.Kind,
		message.Text,
		message.FileRef,
		message.WorkflowID,
		message.NodeID,
		message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// ListByConversation returns up to limit most recent records, oldest first.
func (r *TranscriptRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, bot_id, direction, external_message_id, kind, text, file_ref, workflow_id, node_id, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($2, 0)
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer closeRows(ctx, r.logger, rows)

	messages := make([]*models.Message, 0)

	for rows.Next() {
		var message models.Message

		err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.BotID,
			&message.Direction,
			&message.ExternalMessageID,
			&message.Kind,
			&message.Text,
			&message.FileRef,
			&message.WorkflowID,
			&message.NodeID,
			&message.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		messages = append(messages, &message)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	slices.Reverse(messages)

	return messages, nil
}
