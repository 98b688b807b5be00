package models

import (
	"strings"
	"time"
)

// RemoteUser is a person identified by the messaging platform.
// ExternalID is unique and never changes; StartParam is written at most once.
type RemoteUser struct {
	ID           string    `json:"id"`
	ExternalID   int64     `json:"external_id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name,omitempty"`
	Username     string    `json:"username,omitempty"`
	LanguageCode string    `json:"language_code,omitempty"`
	StartParam   string    `json:"start_param,omitempty"`
	IsBot        bool      `json:"is_bot"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName prefers the full name, then the handle.
func (u *RemoteUser) DisplayName() string {
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)

	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case u.Username != "":
		return "@" + u.Username
	default:
		return ""
	}
}
