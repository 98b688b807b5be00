package models

import "time"

// MessageDirection tells whether a transcript entry was received or sent.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// Message is one transcript record of a conversation.
type Message struct {
	ID                string           `json:"id"`
	ConversationID    string           `json:"conversation_id"`
	BotID             string           `json:"bot_id"`
	Direction         MessageDirection `json:"direction"`
	ExternalMessageID int64            `json:"external_message_id,omitempty"`
	Kind              string           `json:"kind"`
	Text              string           `json:"text,omitempty"`
	FileRef           string           `json:"file_ref,omitempty"`
	WorkflowID        string           `json:"workflow_id,omitempty"`
	NodeID            string           `json:"node_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
