package models

import "time"

// ChatKind is the closed set of chat kinds the platform reports.
type ChatKind string

const (
	ChatKindPrivate    ChatKind = "private"
	ChatKindGroup      ChatKind = "group"
	ChatKindSupergroup ChatKind = "supergroup"
	ChatKindChannel    ChatKind = "channel"
)

// ParseChatKind maps a platform chat type to a ChatKind, defaulting to private.
func ParseChatKind(raw string) ChatKind {
	switch ChatKind(raw) {
	case ChatKindGroup:
		return ChatKindGroup
	case ChatKindSupergroup:
		return ChatKindSupergroup
	case ChatKindChannel:
		return ChatKindChannel
	default:
		return ChatKindPrivate
	}
}

// Conversation is a thread between a remote chat and one bot.
// (ExternalChatID, BotID) is unique.
type Conversation struct {
	ID             string     `json:"id"`
	ExternalChatID int64      `json:"external_chat_id"`
	BotID          string     `json:"bot_id"`
	UserID         string     `json:"user_id"`
	Kind           ChatKind   `json:"kind"`
	Title          string     `json:"title,omitempty"`
	LastMessageID  string     `json:"last_message_id,omitempty"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
	IsBotBlocked   bool       `json:"is_bot_blocked"`
	CategoryIDs    []string   `json:"category_ids,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Category is an operator-defined tag attached to conversations.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}
