package bots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukex/botflow/pkg/eventbus"
	"github.com/dukex/botflow/pkg/events"
	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence"
)

// DefaultIdentityTimeout bounds the identity fetch performed by Start.
const DefaultIdentityTimeout = 15 * time.Second

// Registry maps bot ids to live connections. Mutations for one id are
// serialized by a per-id lock, so a session is live exactly when it is
// registered.
type Registry struct {
	logger          *slog.Logger
	platform        gateway.Platform
	bots            persistence.BotRepository
	publisher       eventbus.EventPublisher
	identityTimeout time.Duration
	handler         UpdateHandler

	mu     sync.RWMutex
	conns  map[string]*Connection
	halted map[string]struct{}
	locks  sync.Map
}

type Option func(*Registry)

func WithIdentityTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		if timeout > 0 {
			r.identityTimeout = timeout
		}
	}
}

// WithPublisher publishes bot lifecycle events.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(r *Registry) {
		r.publisher = publisher
	}
}

func NewRegistry(logger *slog.Logger, platform gateway.Platform, bots persistence.BotRepository, opts ...Option) *Registry {
	registry := &Registry{
		logger:          logger.With("module", "bot_registry"),
		platform:        platform,
		bots:            bots,
		identityTimeout: DefaultIdentityTimeout,
		conns:           make(map[string]*Connection),
		halted:          make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(registry)
	}

	return registry
}

// OnUpdate sets the handler for inbound updates of connections started afterwards.
func (r *Registry) OnUpdate(handler UpdateHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handler = handler
}

func (r *Registry) lock(id string) func() {
	value, _ := r.locks.LoadOrStore(id, &sync.Mutex{})
	mu, _ := value.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

// Start opens a session for token, upserts the bot record and begins
// receiving in the background. A session already registered for the bot is
// replaced. The receive loop outlives ctx.
func (r *Registry) Start(ctx context.Context, token, existingID string) (*models.Bot, error) {
	return r.start(ctx, token, existingID, false)
}

// resume starts a stored bot unless it was stopped through Stop since its
// last explicit start.
func (r *Registry) resume(ctx context.Context, bot *models.Bot) (*models.Bot, error) {
	if r.Halted(bot.ID) {
		return nil, errHalted
	}

	return r.start(ctx, bot.Token, bot.ID, true)
}

// Halted reports whether the bot was stopped through Stop and not started
// again since.
func (r *Registry) Halted(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.halted[id]

	return ok
}

func (r *Registry) start(ctx context.Context, token, existingID string, resume bool) (*models.Bot, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	connectCtx, cancel := context.WithTimeout(ctx, r.identityTimeout)
	defer cancel()

	session, err := r.platform.Connect(connectCtx, token)
	if err != nil {
		if errors.Is(connectCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, gateway.ErrIdentityTimeout) {
			err = fmt.Errorf("%w: %w", gateway.ErrIdentityTimeout, err)
		}

		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	bot, err := r.upsert(ctx, token, existingID, session.Identity())
	if err != nil {
		_ = session.Close()

		return nil, err
	}

	unlock := r.lock(bot.ID)
	defer unlock()

	r.mu.Lock()
	if _, halted := r.halted[bot.ID]; halted && resume {
		r.mu.Unlock()
		_ = session.Close()

		return nil, errHalted
	}

	delete(r.halted, bot.ID)

	conn := newConnection(bot.ID, session, r.logger)
	previous := r.conns[bot.ID]
	r.conns[bot.ID] = conn
	handler := r.handler
	r.mu.Unlock()

	if previous != nil {
		r.logger.InfoContext(ctx, "replacing running session", "botId", bot.ID)
		previous.stop()
	}

	conn.run(context.WithoutCancel(ctx), handler)

	r.logger.InfoContext(ctx, "bot started", "botId", bot.ID, "username", bot.Username)

	r.publish(ctx, bot.ID, events.BotStarted{
		BaseEvent:  events.NewBaseEvent(events.BotStartedEvent, bot.ID),
		ExternalID: bot.ExternalID,
		Username:   bot.Username,
	})

	return bot, nil
}

func (r *Registry) upsert(ctx context.Context, token, existingID string, identity gateway.Identity) (*models.Bot, error) {
	var (
		bot *models.Bot
		err error
	)

	if existingID != "" {
		bot, err = r.bots.GetByID(ctx, existingID)
		if err != nil && !persistence.IsNotFound(err) {
			return nil, fmt.Errorf("failed to load bot %s: %w", existingID, err)
		}

		if bot != nil && bot.ExternalID != 0 && bot.ExternalID != identity.ExternalID {
			return nil, fmt.Errorf("%w: bot %s", ErrIdentityMismatch, existingID)
		}
	}

	if bot == nil {
		bot, err = r.bots.GetByExternalID(ctx, identity.ExternalID)
		if err != nil && !persistence.IsNotFound(err) {
			return nil, fmt.Errorf("failed to look up bot %d: %w", identity.ExternalID, err)
		}
	}

	if bot == nil {
		bot = &models.Bot{ID: existingID, IsActive: true}
	}

	bot.Token = token
	bot.ExternalID = identity.ExternalID
	bot.Username = identity.Username
	bot.DisplayName = identity.DisplayName

	err = r.bots.Save(ctx, bot)
	if err != nil {
		return nil, fmt.Errorf("failed to save bot %d: %w", identity.ExternalID, err)
	}

	return bot, nil
}

// Stop ends the bot's session and unregisters it. The bot stays halted for
// the reconciler until the next Start. Stopping a bot that is not running is
// a no-op.
func (r *Registry) Stop(ctx context.Context, id string) error {
	unlock := r.lock(id)
	defer unlock()

	r.mu.Lock()
	conn := r.conns[id]
	delete(r.conns, id)
	r.halted[id] = struct{}{}
	r.mu.Unlock()

	if conn == nil {
		return nil
	}

	conn.stop()

	r.logger.InfoContext(ctx, "bot stopped", "botId", id)

	r.publish(ctx, id, events.BotStopped{BaseEvent: events.NewBaseEvent(events.BotStoppedEvent, id)})

	return nil
}

// Toggle flips the stored active flag and starts or stops the bot to match.
// When the start fails the flag is reverted.
func (r *Registry) Toggle(ctx context.Context, id string) (*models.Bot, error) {
	bot, err := r.bots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := r.bots.SetActive(ctx, id, !bot.IsActive)
	if err != nil {
		return nil, err
	}

	if !updated.IsActive {
		return updated, r.Stop(ctx, id)
	}

	started, err := r.Start(ctx, updated.Token, id)
	if err != nil {
		_, revertErr := r.bots.SetActive(ctx, id, false)
		if revertErr != nil {
			r.logger.ErrorContext(ctx, "failed to revert active flag", "botId", id, "error", revertErr)
		}

		return nil, err
	}

	return started, nil
}

// Restart stops the bot and starts it again with its stored credential.
func (r *Registry) Restart(ctx context.Context, id string) (*models.Bot, error) {
	bot, err := r.bots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = r.Stop(ctx, id)
	if err != nil {
		return nil, err
	}

	return r.Start(ctx, bot.Token, id)
}

// StartAll starts every active bot concurrently. Individual failures are
// logged and do not affect the others.
func (r *Registry) StartAll(ctx context.Context) error {
	bots, err := r.bots.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active bots: %w", err)
	}

	r.logger.InfoContext(ctx, "starting active bots", "count", len(bots))

	var wg sync.WaitGroup

	for _, bot := range bots {
		wg.Add(1)

		go func(bot *models.Bot) {
			defer wg.Done()

			_, err := r.Start(ctx, bot.Token, bot.ID)
			if err != nil {
				r.logger.ErrorContext(ctx, "failed to start bot", "botId", bot.ID, "error", err)
			}
		}(bot)
	}

	wg.Wait()

	return nil
}

// Shutdown stops every running bot.
func (r *Registry) Shutdown(ctx context.Context) {
	for _, id := range r.Running() {
		_ = r.Stop(ctx, id)
	}
}

func (r *Registry) Get(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]

	return conn, ok
}

// Running returns the ids of registered bots, sorted.
func (r *Registry) Running() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))

	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)

	return ids
}

func (r *Registry) connection(id string) (*Connection, error) {
	conn, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBotNotRunning, id)
	}

	return conn, nil
}

// Send delivers msg through the bot's live session.
func (r *Registry) Send(ctx context.Context, botID string, msg gateway.Outgoing) (gateway.Sent, error) {
	conn, err := r.connection(botID)
	if err != nil {
		return gateway.Sent{}, err
	}

	return conn.Send(ctx, msg)
}

func (r *Registry) FileURL(ctx context.Context, botID, fileID string) (string, error) {
	conn, err := r.connection(botID)
	if err != nil {
		return "", err
	}

	return conn.FileURL(ctx, fileID)
}

func (r *Registry) DeleteMessage(ctx context.Context, botID string, chatID, messageID int64) error {
	conn, err := r.connection(botID)
	if err != nil {
		return err
	}

	return conn.DeleteMessage(ctx, chatID, messageID)
}

func (r *Registry) SetReaction(ctx context.Context, botID string, chatID, messageID int64, emoji string) error {
	conn, err := r.connection(botID)
	if err != nil {
		return err
	}

	return conn.SetReaction(ctx, chatID, messageID, emoji)
}

func (r *Registry) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	err := r.publisher.Publish(ctx, key, event)
	if err != nil {
		r.logger.WarnContext(ctx, "failed to publish event", "eventType", event.GetType(), "error", err)
	}
}
