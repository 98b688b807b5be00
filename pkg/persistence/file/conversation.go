package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
	"github.com/google/uuid"
)

// ConversationRepository stores conversations under conversations/<bot id>/<chat id>.json,
// so the unique pair is the path itself.
type ConversationRepository struct {
	root string
	mu   sync.Mutex
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(root string) *ConversationRepository {
	return &ConversationRepository{root: filepath.Join(root, "conversations")}
}

func (r *ConversationRepository) path(externalChatID int64, botID string) string {
	return filepath.Join(r.root, filepath.Base(botID), strconv.FormatInt(externalChatID, 10)+".json")
}

func (r *ConversationRepository) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	conversations, err := readAll[models.Conversation](r.root, "*/*.json")
	if err != nil {
		return nil, err
	}

	for _, conversation := range conversations {
		if conversation.ID == id {
			return conversation, nil
		}
	}

	return nil, persistence.NewEntityError("GetByID", "conversation", id, persistence.ErrConversationNotFound)
}

func (r *ConversationRepository) GetByExternalChat(_ context.Context, externalChatID int64, botID string) (*models.Conversation, error) {
	var conversation models.Conversation

	err := readJSON(r.path(externalChatID, botID), &conversation)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			key := fmt.Sprintf("%d/%s", externalChatID, botID)

			return nil, persistence.NewEntityError("GetByExternalChat", "conversation", key, persistence.ErrConversationNotFound)
		}

		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) Create(_ context.Context, conversation *models.Conversation) error {
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

	err := writeJSONExclusive(r.path(conversation.ExternalChatID, conversation.BotID), conversation)
	if err != nil {
		key := fmt.Sprintf("%d/%s", conversation.ExternalChatID, conversation.BotID)

		return persistence.NewEntityError("Create", "conversation", key, err)
	}

	return nil
}

func (r *ConversationRepository) SetBlocked(ctx context.Context, id string, blocked bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	if conversation.IsBotBlocked == blocked {
		return false, nil
	}

	conversation.IsBotBlocked = blocked
	conversation.UpdatedAt = time.Now().UTC()

	err = writeJSON(r.path(conversation.ExternalChatID, conversation.BotID), conversation)
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *ConversationRepository) UpdateLastMessage(ctx context.Context, id, messageID string, at time.Time) error {
	return r.update(ctx, id, func(conversation *models.Conversation) {
		conversation.LastMessageID = messageID
		conversation.LastMessageAt = &at
	})
}

func (r *ConversationRepository) update(ctx context.Context, id string, mutate func(*models.Conversation)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	mutate(conversation)
	conversation.UpdatedAt = time.Now().UTC()

	return writeJSON(r.path(conversation.ExternalChatID, conversation.BotID), conversation)
}
