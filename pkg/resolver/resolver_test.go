package resolver_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/dukex/botflow/pkg/gateway"
	"github.com/dukex/botflow/pkg/models"
	"github.com/dukex/botflow/pkg/persistence/file"
	"github.com/dukex/botflow/pkg/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) (*resolver.Resolver, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return resolver.New(logger, store.UserRepository(), store.ConversationRepository()), store
}

func TestResolveUser_ConcurrentFirstContact(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()
	from := gateway.User{ID: 42, FirstName: "Ann"}

	const callers = 8

	results := make([]*models.RemoteUser, callers)

	var wg sync.WaitGroup

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			user, err := r.ResolveUser(ctx, from, "")
			assert.NoError(t, err)

			results[i] = user
		}()
	}

	wg.Wait()

	stored, err := store.UserRepository().GetByExternalID(ctx, 42)
	require.NoError(t, err)

	for _, user := range results {
		require.NotNil(t, user)
		assert.Equal(t, stored.ID, user.ID)
	}
}

func TestResolveUser_StartParamFirstWriteWins(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()
	from := gateway.User{ID: 7, FirstName: "Bob"}

	user, err := r.ResolveUser(ctx, from, "")
	require.NoError(t, err)
	assert.Empty(t, user.StartParam)

	user, err = r.ResolveUser(ctx, from, "promo42")
	require.NoError(t, err)
	assert.Equal(t, "promo42", user.StartParam)

	user, err = r.ResolveUser(ctx, from, "other")
	require.NoError(t, err)
	assert.Equal(t, "promo42", user.StartParam)
}

func TestResolveUser_CreateWithStartParam(t *testing.T) {
	r, _ := newResolver(t)

	user, err := r.ResolveUser(context.Background(), gateway.User{ID: 8}, "ref")
	require.NoError(t, err)
	assert.Equal(t, "ref", user.StartParam)
}

func TestResolveChat(t *testing.T) {
	tests := []struct {
		name     string
		chatType string
		want     models.ChatKind
	}{
		{name: "private", chatType: "private", want: models.ChatKindPrivate},
		{name: "group", chatType: "group", want: models.ChatKindGroup},
		{name: "supergroup", chatType: "supergroup", want: models.ChatKindSupergroup},
		{name: "channel", chatType: "channel", want: models.ChatKindChannel},
		{name: "unknown defaults to private", chatType: "forum", want: models.ChatKindPrivate},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newResolver(t)
			ctx := context.Background()
			chat := gateway.Chat{ID: int64(100 + i), Type: tt.chatType}

			conversation, err := r.ResolveChat(ctx, chat, "bot-1", "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, conversation.Kind)

			again, err := r.ResolveChat(ctx, chat, "bot-1", "user-1")
			require.NoError(t, err)
			assert.Equal(t, conversation.ID, again.ID)

			other, err := r.ResolveChat(ctx, chat, "bot-2", "user-1")
			require.NoError(t, err)
			assert.NotEqual(t, conversation.ID, other.ID)
		})
	}
}
