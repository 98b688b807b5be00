// Package bots owns the live bot sessions: starting, stopping and sending
// through them, and turning their inbound updates into workflow executions.
package bots

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/models"
)

// UpdateHandler processes one inbound update of a connection. Calls are
// sequential per connection.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, conn *Connection, update gateway.Update)
}

// UpdateHandlerFunc adapts a function to UpdateHandler.
type UpdateHandlerFunc func(ctx context.Context, conn *Connection, update gateway.Update)

func (f UpdateHandlerFunc) HandleUpdate(ctx context.Context, conn *Connection, update gateway.Update) {
	f(ctx, conn, update)
}

// Connection is one bot's live session plus its receive loop.
type Connection struct {
	botID   string
	session gateway.Session
	logger  *slog.Logger

	mu    sync.RWMutex
	state models.BotState

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newConnection(botID string, session gateway.Session, logger *slog.Logger) *Connection {
	return &Connection{
		botID:   botID,
		session: session,
		logger:  logger.With("botId", botID),
		state:   models.BotStateStarting,
		done:    make(chan struct{}),
	}
}

func (c *Connection) BotID() string {
	return c.botID
}

func (c *Connection) Identity() gateway.Identity {
	return c.session.Identity()
}

func (c *Connection) State() models.BotState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

func (c *Connection) setState(state models.BotState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = state
}

// Done is closed when the receive loop has exited.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// run starts the receive loop as a detached task. Its failures are logged;
// the connection stays registered with state stopped.
func (c *Connection) run(ctx context.Context, handler UpdateHandler) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.setState(models.BotStateRunning)

	go func() {
		defer close(c.done)
		defer c.setState(models.BotStateStopped)

		err := c.session.Receive(ctx, func(ctx context.Context, update gateway.Update) {
			c.dispatch(ctx, handler, update)
		})
		if err != nil {
			c.logger.ErrorContext(ctx, "receive loop ended", "error", err)

			return
		}

		c.logger.InfoContext(ctx, "receive loop stopped")
	}()
}

func (c *Connection) dispatch(ctx context.Context, handler UpdateHandler, update gateway.Update) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.ErrorContext(ctx, "update handler panicked", "updateId", update.ID, "panic", recovered)
		}
	}()

	if handler != nil {
		handler.HandleUpdate(ctx, c, update)
	}
}

// stop ends the receive loop and closes the session. In-flight traversals
// are not affected.
func (c *Connection) stop() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}

		err := c.session.Close()
		if err != nil {
			c.logger.Warn("failed to close session", "error", err)
		}

		c.setState(models.BotStateStopped)
	})
}

func (c *Connection) Send(ctx context.Context, msg gateway.Outgoing) (gateway.Sent, error) {
	return c.session.Send(ctx, msg)
}

// FileURL resolves a platform file reference, "" when unknown.
func (c *Connection) FileURL(ctx context.Context, fileID string) (string, error) {
	return c.session.FileURL(ctx, fileID)
}

func (c *Connection) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.session.DeleteMessage(ctx, chatID, messageID)
}

func (c *Connection) SetReaction(ctx context.Context, chatID, messageID int64, emoji string) error {
	return c.session.SetReaction(ctx, chatID, messageID, emoji)
}

func (c *Connection) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return c.session.AnswerCallback(ctx, callbackID, text)
}
