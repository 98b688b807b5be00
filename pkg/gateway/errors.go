package gateway

import "errors"

var (
	// ErrRecipientUnreachable means the platform refused delivery because the
	// recipient blocked the bot, was deactivated, or the chat no longer exists.
	ErrRecipientUnreachable = errors.New("recipient unreachable")

	// ErrIdentityTimeout means the identity fetch did not complete in time.
	ErrIdentityTimeout = errors.New("identity fetch timed out")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// IsUnreachable checks if the error classifies the recipient as unreachable.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrRecipientUnreachable)
}
