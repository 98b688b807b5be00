package models

import "time"

// Bot is the persisted record of one externally registered bot account.
type Bot struct {
	ID          string    `json:"id"`
	Token       string    `json:"token,omitempty"`
	ExternalID  int64     `json:"external_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BotState is the lifecycle state of a live bot connection.
type BotState string

const (
	BotStateStarting BotState = "starting"
	BotStateRunning  BotState = "running"
	BotStateStopped  BotState = "stopped"
)
