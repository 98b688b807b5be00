package eventbus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/botflow/pkg/channels/gochannel"
	"github.com/dukex/botflow/pkg/eventbus"
	"github.com/dukex/botflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub := gochannel.CreateChannel(watermill.NewSlogLogger(slog.Default()))
	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan *events.BotStarted, 1)

	require.NoError(t, bus.Handle(events.BotStartedEvent, eventbus.On(func(_ context.Context, event *events.BotStarted) error {
		received <- event

		return nil
	})))
	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "bot-1", events.BotStarted{
		BaseEvent:  events.NewBaseEvent(events.BotStartedEvent, "bot-1"),
		ExternalID: 42,
		Username:   "flowbot",
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "bot-1", event.BotID)
		assert.Equal(t, int64(42), event.ExternalID)
		assert.Equal(t, "flowbot", event.Username)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypesAreAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan *events.NodeFailed, 1)

	require.NoError(t, bus.Handle(events.NodeFailedEvent, eventbus.On(func(_ context.Context, event *events.NodeFailed) error {
		received <- event

		return nil
	})))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "bot-1", events.BotStopped{BaseEvent: events.NewBaseEvent(events.BotStoppedEvent, "bot-1")}))
	require.NoError(t, bus.Publish(ctx, "bot-1", events.NodeFailed{
		BaseEvent: events.NewBaseEvent(events.NodeFailedEvent, "bot-1"),
		NodeID:    "msg-1",
	}))

	select {
	case event := <-received:
		assert.Equal(t, "msg-1", event.NodeID)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}

func TestOn(t *testing.T) {
	ctx := context.Background()

	var got *events.BotStopped

	handler := eventbus.On(func(_ context.Context, event *events.BotStopped) error {
		got = event

		return nil
	})

	tests := []struct {
		name    string
		event   eventbus.Event
		wantErr error
	}{
		{name: "matching type", event: &events.BotStopped{BaseEvent: events.NewBaseEvent(events.BotStoppedEvent, "bot-1")}},
		{name: "value instead of pointer", event: events.BotStopped{}, wantErr: eventbus.ErrUnexpectedEvent},
		{name: "other event", event: &events.NodeFailed{}, wantErr: eventbus.ErrUnexpectedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil

			err := handler(ctx, tt.event)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "bot-1", got.BotID)
		})
	}
}
