package web

import (
	"time"

	"github.com/dukex/botflow/pkg/bots"
	"github.com/dukex/botflow/pkg/models"
)

// StartBotRequest represents the request body for starting a bot session.
// ID is set when the credential belongs to an already stored bot.
type StartBotRequest struct {
	Token string `json:"token"        validate:"required"`
	ID    string `json:"id,omitempty" validate:"omitempty,uuid"`
}

// BotResponse is the public view of a bot record. The credential is never exposed.
type BotResponse struct {
	ID          string          `json:"id"`
	ExternalID  int64           `json:"external_id"`
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	IsActive    bool            `json:"is_active"`
	State       models.BotState `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SessionResponse describes one live session held by the registry.
type SessionResponse struct {
	BotID       string          `json:"bot_id"`
	ExternalID  int64           `json:"external_id"`
	Username    string          `json:"username"`
	DisplayName string          `json:"display_name"`
	State       models.BotState `json:"state"`
}

// TransformBotResponse builds the response for bot, reporting the live state
// of conn when the bot is registered.
func TransformBotResponse(bot *models.Bot, conn *bots.Connection) BotResponse {
	state := models.BotStateStopped
	if conn != nil {
		state = conn.State()
	}

	return BotResponse{
		ID:          bot.ID,
		ExternalID:  bot.ExternalID,
		Username:    bot.Username,
		DisplayName: bot.DisplayName,
		IsActive:    bot.IsActive,
		State:       state,
		CreatedAt:   bot.CreatedAt,
		UpdatedAt:   bot.UpdatedAt,
	}
}

// TransformSessionResponse builds the response for a live connection.
func TransformSessionResponse(conn *bots.Connection) SessionResponse {
	identity := conn.Identity()

	return SessionResponse{
		BotID:       conn.BotID(),
		ExternalID:  identity.ExternalID,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		State:       conn.State(),
	}
}
