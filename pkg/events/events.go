// Package events defines the lifecycle notifications published for adjacent subsystems.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every lifecycle event.
const Topic = "botflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Bot session events.
	BotStartedEvent EventType = "bot.started"
	BotStoppedEvent EventType = "bot.stopped"

	// Traversal events.
	WorkflowTriggeredEvent EventType = "workflow.triggered"
	WorkflowFinishedEvent  EventType = "workflow.finished"
	NodeFailedEvent        EventType = "node.failed"

	// Conversation events.
	ConversationBlockedEvent EventType = "conversation.blocked"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	BotID     string         `json:"bot_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, botID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		BotID:     botID,
		Metadata:  make(map[string]any),
	}
}

type BotStarted struct {
	BaseEvent

	ExternalID int64  `json:"external_id"`
	Username   string `json:"username"`
}

func (b BotStarted) GetType() EventType {
	return BotStartedEvent
}

type BotStopped struct {
	BaseEvent
}

func (b BotStopped) GetType() EventType {
	return BotStoppedEvent
}

// WorkflowTriggered is published when a trigger node matched and a traversal started.
type WorkflowTriggered struct {
	BaseEvent

	WorkflowID    string `json:"workflow_id"`
	ExecutionID   string `json:"execution_id"`
	TriggerNodeID string `json:"trigger_node_id"`
	EventType     string `json:"event_type"`
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

// WorkflowFinished is published when a traversal's queue drained or its step bound was hit.
type WorkflowFinished struct {
	BaseEvent

	WorkflowID  string        `json:"workflow_id"`
	ExecutionID string        `json:"execution_id"`
	Steps       int           `json:"steps"`
	Failures    int           `json:"failures"`
	Truncated   bool          `json:"truncated,omitempty"`
	Duration    time.Duration `json:"duration"`
}

func (w WorkflowFinished) GetType() EventType {
	return WorkflowFinishedEvent
}

type NodeFailed struct {
	BaseEvent

	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	NodeType    string `json:"node_type"`
	Error       string `json:"error"`
}

func (n NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

// ConversationBlocked reports a change of the conversation's blocked flag.
type ConversationBlocked struct {
	BaseEvent

	ConversationID string `json:"conversation_id"`
	Blocked        bool   `json:"blocked"`
}

func (c ConversationBlocked) GetType() EventType {
	return ConversationBlockedEvent
}
