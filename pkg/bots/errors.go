package bots

import "errors"

var (
	// ErrBotNotRunning is returned by send operations for a bot without a live session.
	ErrBotNotRunning = errors.New("bot is not running")

	// ErrEmptyToken is returned when starting a bot without a credential.
	ErrEmptyToken = errors.New("bot token is empty")

	// ErrConnect wraps failures of the platform to authenticate a credential.
	ErrConnect = errors.New("failed to connect bot")

	// ErrIdentityMismatch is returned when a credential belongs to a different
	// account than the stored bot it is started for.
	ErrIdentityMismatch = errors.New("token belongs to a different bot account")

	errHalted = errors.New("bot was stopped")
)
