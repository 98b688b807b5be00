// Package mocks provides testify mocks of the engine's collaborator interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/dukex/botflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockWorkflowRepository is a mock implementation of persistence.WorkflowRepository interface.
type MockWorkflowRepository struct {
	mock.Mock
}

func (m *MockWorkflowRepository) ActiveByBot(ctx context.Context, botID string) ([]*models.WorkflowGraph, error) {
	args := m.Called(ctx, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowGraph), args.Error(1)
}

func (m *MockWorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowGraph, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowGraph), args.Error(1)
}

func (m *MockWorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowGraph) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockWorkflowRepository) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)

	return args.Error(0)
}

func (m *MockWorkflowRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

// MockConversationRepository is a mock implementation of persistence.ConversationRepository interface.
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetByExternalChat(ctx context.Context, externalChatID int64, botID string) (*models.Conversation, error) {
	args := m.Called(ctx, externalChatID, botID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	args := m.Called(ctx, conversation)

	return args.Error(0)
}

func (m *MockConversationRepository) SetBlocked(ctx context.Context, id string, blocked bool) (bool, error) {
	args := m.Called(ctx, id, blocked)

	return args.Bool(0), args.Error(1)
}

func (m *MockConversationRepository) UpdateLastMessage(ctx context.Context, id, messageID string, at time.Time) error {
	args := m.Called(ctx, id, messageID, at)

	return args.Error(0)
}

// MockTranscriptRepository is a mock implementation of persistence.TranscriptRepository interface.
type MockTranscriptRepository struct {
	mock.Mock
}

func (m *MockTranscriptRepository) Save(ctx context.Context, message *models.Message) error {
	args := m.Called(ctx, message)

	return args.Error(0)
}

func (m *MockTranscriptRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Message), args.Error(1)
}
