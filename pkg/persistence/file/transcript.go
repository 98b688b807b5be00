package file

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/google/uuid"
)

// TranscriptRepository appends transcript records as JSON lines, one file per conversation.
type TranscriptRepository struct {
	root string
	mu   sync.Mutex
}

// NewTranscriptRepository creates a new transcript repository.
func NewTranscriptRepository(root string) *TranscriptRepository {
	return &TranscriptRepository{root: filepath.Join(root, "messages")}
}

func (r *TranscriptRepository) path(conversationID string) string {
	return filepath.Join(r.root, filepath.Base(conversationID)+".jsonl")
}

func (r *TranscriptRepository) Save(_ context.Context, message *models.Message) error {
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

	line, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message %s: %w", message.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = os.MkdirAll(r.root, 0750)
	if err != nil {
		return fmt.Errorf("failed to create messages directory: %w", err)
	}

	f, err := os.OpenFile(r.path(message.ConversationID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("failed to open transcript %s: %w", message.ConversationID, err)
	}

	_, err = f.Write(append(line, '\n'))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("failed to append message %s: %w", message.ID, err)
	}

	return nil
}

// ListByConversation returns up to limit most recent records, oldest first.
func (r *TranscriptRepository) ListByConversation(_ context.Context, conversationID string, limit int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path(conversationID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make([]*models.Message, 0), nil
		}

		return nil, fmt.Errorf("failed to open transcript %s: %w", conversationID, err)
	}
	defer f.Close()

	messages := make([]*models.Message, 0)
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		var message models.Message

		err := json.Unmarshal(scanner.Bytes(), &message)
		if err != nil {
			return nil, fmt.Errorf("failed to decode transcript %s: %w", conversationID, err)
		}

		messages = append(messages, &message)
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript %s: %w", conversationID, err)
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	return messages, nil
}
