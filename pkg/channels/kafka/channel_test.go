package kafka

import (
	"log/slog"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/botflow/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	logger := watermill.NewSlogLogger(slog.Default())

	for _, brokers := range [][]string{nil, {""}, {" , "}} {
		_, _, err := CreateChannel(logger, brokers, "botflow")
		require.ErrorIs(t, err, ErrNoBrokers)
	}
}

func TestBrokers(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{name: "empty", raw: nil, want: []string{}},
		{name: "list", raw: []string{"a:9092", "b:9092"}, want: []string{"a:9092", "b:9092"}},
		{name: "comma separated", raw: []string{"a:9092, b:9092,"}, want: []string{"a:9092", "b:9092"}},
		{name: "blank entries", raw: []string{"", " ", "c:9092"}, want: []string{"c:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Brokers(tt.raw))
		})
	}
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("msg-1", nil)
	msg.Metadata.Set(events.EventMetadataKey, "bot-1")

	key, err := partitionKey(events.Topic, msg)
	require.NoError(t, err)
	assert.Equal(t, "bot-1", key)
}
