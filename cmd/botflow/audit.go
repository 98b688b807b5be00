package main

import (
	"context"
	"log/slog"

	"github.com/dukex/botflow/pkg/eventbus"
	"github.com/dukex/botflow/pkg/events"
)

// registerAuditHandlers logs the lifecycle events that need operator attention.
func registerAuditHandlers(ctx context.Context, bus eventbus.EventBus, logger *slog.Logger) error {
	logger = logger.With("component", "audit")

	handlers := map[events.EventType]eventbus.EventHandler{
		events.NodeFailedEvent: eventbus.On(func(ctx context.Context, failed *events.NodeFailed) error {
			logger.WarnContext(ctx, "node failed",
				"botId", failed.BotID,
				"workflowId", failed.WorkflowID,
				"executionId", failed.ExecutionID,
				"nodeId", failed.NodeID,
				"error", failed.Error,
			)

			return nil
		}),
		events.ConversationBlockedEvent: eventbus.On(func(ctx context.Context, blocked *events.ConversationBlocked) error {
			logger.InfoContext(ctx, "conversation blocked flag changed",
				"botId", blocked.BotID,
				"conversationId", blocked.ConversationID,
				"blocked", blocked.Blocked,
			)

			return nil
		}),
	}

	for eventType, handler := range handlers {
		err := bus.Handle(eventType, handler)
		if err != nil {
			return err
		}
	}

	return bus.Subscribe(ctx)
}
