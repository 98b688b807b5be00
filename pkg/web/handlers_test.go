package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/dukex/botflow/pkg/bots"
	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/mocks"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence/file"
	"github.com/dukex/botflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const goodToken = "123:good"

type platformFunc func(ctx context.Context, token string) (gateway.Session, error)

func (f platformFunc) Connect(ctx context.Context, token string) (gateway.Session, error) {
	return f(ctx, token)
}

type testEnv struct {
	app      *fiber.App
	registry *bots.Registry
	root     string
	connects atomic.Int32
}

func setupTestApp(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{root: t.TempDir()}

	platform := platformFunc(func(_ context.Context, token string) (gateway.Session, error) {
		if token != goodToken {
			return nil, errors.New("unauthorized")
		}

		env.connects.Add(1)

		session := &mocks.MockSession{}
		session.On("Identity").Return(gateway.Identity{ExternalID: 1001, Username: "flow_bot", DisplayName: "Flow"})
		session.On("Receive", mock.Anything, mock.Anything).Return(nil).Maybe()
		session.On("Close").Return(nil).Maybe()

		return session, nil
	})

	persistence := file.NewPersistence(env.root)
	env.registry = bots.NewRegistry(slog.Default(), platform, persistence.BotRepository())
	t.Cleanup(func() { env.registry.Shutdown(context.Background()) })

	handlers := web.NewAPIHandlers(env.registry, persistence, validator.New(validator.WithRequiredStructEnabled()))

	env.app = fiber.New()
	handlers.Register(env.app)
	env.app.Get("/health", handlers.HealthCheck)

	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)

		reader = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, data
}

func (e *testEnv) startBot(t *testing.T) web.BotResponse {
	t.Helper()

	status, body := e.do(t, http.MethodPost, "/bots", web.StartBotRequest{Token: goodToken})
	require.Equal(t, http.StatusCreated, status, string(body))

	var bot web.BotResponse
	require.NoError(t, json.Unmarshal(body, &bot))

	return bot
}

func TestAPIHandlers_StartBot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "successful start",
			requestBody:    web.StartBotRequest{Token: goodToken},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid json",
			requestBody:    "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "missing token",
			requestBody:    web.StartBotRequest{},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "malformed id",
			requestBody:    web.StartBotRequest{Token: goodToken, ID: "not-a-uuid"},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "validation_error",
		},
		{
			name:           "rejected credential",
			requestBody:    web.StartBotRequest{Token: "123:bad"},
			expectedStatus: http.StatusBadGateway,
			expectedType:   "platform_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := setupTestApp(t)

			status, body := env.do(t, http.MethodPost, "/bots", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedType != "" {
				var problem map[string]any
				require.NoError(t, json.Unmarshal(body, &problem))
				assert.Equal(t, tt.expectedType, problem["type"])
				assert.Empty(t, env.registry.Running())

				return
			}

			var bot web.BotResponse
			require.NoError(t, json.Unmarshal(body, &bot))
			assert.NotEmpty(t, bot.ID)
			assert.Equal(t, "flow_bot", bot.Username)
			assert.Equal(t, int64(1001), bot.ExternalID)
			assert.True(t, bot.IsActive)
			assert.NotContains(t, string(body), goodToken)
			assert.Equal(t, []string{bot.ID}, env.registry.Running())
		})
	}
}

func TestAPIHandlers_ListSessions(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/bots", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"sessions":[],"total_count":0}`, string(body))

	bot := env.startBot(t)

	status, body = env.do(t, http.MethodGet, "/bots", nil)
	require.Equal(t, http.StatusOK, status)

	var result struct {
		Sessions   []web.SessionResponse `json:"sessions"`
		TotalCount int                   `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, bot.ID, result.Sessions[0].BotID)
	assert.Equal(t, "flow_bot", result.Sessions[0].Username)
}

func TestAPIHandlers_GetBot(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	bot := env.startBot(t)

	status, body := env.do(t, http.MethodGet, "/bots/"+bot.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), goodToken)

	var fetched web.BotResponse
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, bot.ID, fetched.ID)
	assert.NotEqual(t, models.BotStateStopped, fetched.State)

	status, _ = env.do(t, http.MethodGet, "/bots/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_StopBot(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	bot := env.startBot(t)

	status, _ := env.do(t, http.MethodDelete, "/bots/"+bot.ID+"/session", nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Empty(t, env.registry.Running())

	status, _ = env.do(t, http.MethodDelete, "/bots/"+bot.ID+"/session", nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestAPIHandlers_ToggleBot(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	bot := env.startBot(t)

	status, body := env.do(t, http.MethodPost, "/bots/"+bot.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var toggled web.BotResponse
	require.NoError(t, json.Unmarshal(body, &toggled))
	assert.False(t, toggled.IsActive)
	assert.Equal(t, models.BotStateStopped, toggled.State)
	assert.Empty(t, env.registry.Running())

	status, body = env.do(t, http.MethodPost, "/bots/"+bot.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &toggled))
	assert.True(t, toggled.IsActive)
	assert.Equal(t, []string{bot.ID}, env.registry.Running())

	status, _ = env.do(t, http.MethodPost, "/bots/missing/toggle", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_RestartBot(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)
	bot := env.startBot(t)

	status, body := env.do(t, http.MethodPost, "/bots/"+bot.ID+"/restart", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, int32(2), env.connects.Load())
	assert.Equal(t, []string{bot.ID}, env.registry.Running())

	status, _ = env.do(t, http.MethodPost, "/bots/missing/restart", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	env := setupTestApp(t)

	status, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"status":"healthy"`)

	require.NoError(t, os.RemoveAll(env.root))

	status, body = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, string(body), `"status":"unhealthy"`)
}
