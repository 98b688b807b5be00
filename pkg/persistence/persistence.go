// Package persistence provides the storage abstraction for bots, remote identities,
// conversations, workflow graphs and transcripts.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/botflow/pkg/models"
)

// Persistence groups every repository the engine consumes.
type Persistence interface {
	BotRepository() BotRepository
	UserRepository() UserRepository
	ConversationRepository() ConversationRepository
	WorkflowRepository() WorkflowRepository
	TranscriptRepository() TranscriptRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// BotRepository stores bot records.
type BotRepository interface {
	GetByID(ctx context.Context, id string) (*models.Bot, error)
	GetByExternalID(ctx context.Context, externalID int64) (*models.Bot, error)
	ListActive(ctx context.Context) ([]*models.Bot, error)
	// Save inserts the bot or refreshes its token and display metadata.
	Save(ctx context.Context, bot *models.Bot) error
	SetActive(ctx context.Context, id string, active bool) (*models.Bot, error)
}

// UserRepository stores remote users. Create must fail with ErrAlreadyExists when
// the external id is taken, whichever process inserted it.
type UserRepository interface {
	GetByExternalID(ctx context.Context, externalID int64) (*models.RemoteUser, error)
	Create(ctx context.Context, user *models.RemoteUser) error
	// SetStartParam writes the first-touch parameter only when none is stored yet and
	// reports whether the write happened.
	SetStartParam(ctx context.Context, id, param string) (bool, error)
}

// ConversationRepository stores conversations. Create must fail with ErrAlreadyExists
// when (external chat id, bot id) is taken.
type ConversationRepository interface {
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetByExternalChat(ctx context.Context, externalChatID int64, botID string) (*models.Conversation, error)
	Create(ctx context.Context, conversation *models.Conversation) error
	// SetBlocked stores the flag and reports whether it differed from the
	// stored value.
	SetBlocked(ctx context.Context, id string, blocked bool) (bool, error)
	UpdateLastMessage(ctx context.Context, id, messageID string, at time.Time) error
}

// WorkflowRepository stores workflow graphs with their nodes and connections.
type WorkflowRepository interface {
	ActiveByBot(ctx context.Context, botID string) ([]*models.WorkflowGraph, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowGraph, error)
	Save(ctx context.Context, workflow *models.WorkflowGraph) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

// TranscriptRepository stores conversation transcript records.
type TranscriptRepository interface {
	Save(ctx context.Context, message *models.Message) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
}
