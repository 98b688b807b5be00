// Package telegram implements the gateway contract on top of the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dukex/botflow/pkg/gateway"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	pollTimeout   = 60
	clientTimeout = 75 * time.Second
)

// Platform opens Telegram bot sessions.
type Platform struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewPlatform creates a Telegram platform. An empty endpoint uses the public Bot API.
func NewPlatform(logger *slog.Logger, endpoint string) *Platform {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	return &Platform{
		endpoint: endpoint,
		client:   &http.Client{Timeout: clientTimeout},
		logger:   logger.With("module", "telegram"),
	}
}

type connectResult struct {
	api *tgbotapi.BotAPI
	err error
}

// Connect authenticates the token with getMe. If ctx ends first the call fails
// with gateway.ErrIdentityTimeout.
func (p *Platform) Connect(ctx context.Context, token string) (gateway.Session, error) {
	result := make(chan connectResult, 1)

	go func() {
		api, err := tgbotapi.NewBotAPIWithClient(token, p.endpoint, p.client)
		result <- connectResult{api: api, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", gateway.ErrIdentityTimeout, ctx.Err())
	case res := <-result:
		if res.err != nil {
			return nil, fmt.Errorf("failed to fetch bot identity: %w", res.err)
		}

		return newSession(res.api, p.logger), nil
	}
}

// Session is a live Telegram bot session.
type Session struct {
	api      *tgbotapi.BotAPI
	logger   *slog.Logger
	identity gateway.Identity

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(api *tgbotapi.BotAPI, logger *slog.Logger) *Session {
	name := strings.TrimSpace(api.Self.FirstName + " " + api.Self.LastName)

	return &Session{
		api:    api,
		logger: logger.With("botUsername", api.Self.UserName),
		identity: gateway.Identity{
			ExternalID:  api.Self.ID,
			Username:    api.Self.UserName,
			DisplayName: name,
		},
		closed: make(chan struct{}),
	}
}

func (s *Session) Identity() gateway.Identity {
	return s.identity
}

// Receive long-polls getUpdates until ctx is done or the session is closed.
func (s *Session) Receive(ctx context.Context, handler func(context.Context, gateway.Update)) error {
	select {
	case <-s.closed:
		return gateway.ErrSessionClosed
	default:
	}

	config := tgbotapi.NewUpdate(0)
	config.Timeout = pollTimeout

	updates := s.api.GetUpdatesChan(config)

	for {
		select {
		case <-ctx.Done():
			_ = s.Close()

			return nil
		case <-s.closed:
			return nil
		case raw, ok := <-updates:
			if !ok {
				return nil
			}

			update, ok := toUpdate(raw)
			if !ok {
				s.logger.DebugContext(ctx, "skipping unsupported update", "updateId", raw.UpdateID)

				continue
			}

			handler(ctx, update)
		}
	}
}

func (s *Session) Send(_ context.Context, msg gateway.Outgoing) (gateway.Sent, error) {
	chattable, err := buildChattable(msg)
	if err != nil {
		return gateway.Sent{}, err
	}

	sent, err := s.api.Send(chattable)
	if err != nil {
		return gateway.Sent{}, classify(err)
	}

	return gateway.Sent{MessageID: int64(sent.MessageID), FileID: sentFileID(&sent)}, nil
}

func (s *Session) FileURL(_ context.Context, fileID string) (string, error) {
	url, err := s.api.GetFileDirectURL(fileID)
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			return "", nil
		}

		return "", fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	return url, nil
}

func (s *Session) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	_, err := s.api.Request(tgbotapi.NewDeleteMessage(chatID, int(messageID)))
	if err != nil {
		return classify(err)
	}

	return nil
}

func (s *Session) SetReaction(_ context.Context, chatID, messageID int64, emoji string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero("message_id", int(messageID))

	reaction := []map[string]string{}
	if emoji != "" {
		reaction = append(reaction, map[string]string{"type": "emoji", "emoji": emoji})
	}

	err := params.AddInterface("reaction", reaction)
	if err != nil {
		return fmt.Errorf("failed to encode reaction: %w", err)
	}

	_, err = s.api.MakeRequest("setMessageReaction", params)
	if err != nil {
		return classify(err)
	}

	return nil
}

func (s *Session) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := s.api.Request(tgbotapi.NewCallback(callbackID, text))
	if err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}

	return nil
}

// Close stops long polling. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.api.StopReceivingUpdates()
	})

	return nil
}

// classify maps platform refusals that mean "this chat cannot be reached" to
// gateway.ErrRecipientUnreachable.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("telegram request failed: %w", err)
	}

	description := strings.ToLower(apiErr.Message)

	switch {
	case apiErr.Code == http.StatusForbidden,
		strings.Contains(description, "chat not found"),
		strings.Contains(description, "user is deactivated"),
		strings.Contains(description, "bot was blocked"),
		strings.Contains(description, "bot was kicked"):
		return fmt.Errorf("%w: %s", gateway.ErrRecipientUnreachable, apiErr.Message)
	default:
		return fmt.Errorf("telegram request failed (%d): %w", apiErr.Code, err)
	}
}
