package bots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/botflow/pkg/models"
	"github.com/robfig/cron/v3"
)

// DefaultReconcileSchedule runs the reconciler once a minute.
const DefaultReconcileSchedule = "@every 1m"

// Reconciler periodically restarts bots that are active in storage but have
// no running session, for example after their receive loop ended.
type Reconciler struct {
	logger   *slog.Logger
	registry *Registry
	schedule string
	cron     *cron.Cron
}

func NewReconciler(logger *slog.Logger, registry *Registry, schedule string) *Reconciler {
	if schedule == "" {
		schedule = DefaultReconcileSchedule
	}

	return &Reconciler{
		logger:   logger.With("module", "bot_reconciler"),
		registry: registry,
		schedule: schedule,
	}
}

// Start schedules reconciliation until ctx is done or Stop is called.
func (r *Reconciler) Start(ctx context.Context) error {
	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := r.cron.AddFunc(r.schedule, func() {
		r.Reconcile(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// Reconcile restarts every active bot that is not registered or whose
// receive loop has stopped. Bots halted through Registry.Stop are left alone.
// It returns the ids it restarted.
func (r *Reconciler) Reconcile(ctx context.Context) []string {
	active, err := r.registry.bots.ListActive(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to list active bots", "error", err)

		return nil
	}

	restarted := make([]string, 0)

	for _, bot := range active {
		conn, ok := r.registry.Get(bot.ID)
		if ok && conn.State() != models.BotStateStopped {
			continue
		}

		_, err := r.registry.resume(ctx, bot)
		if errors.Is(err, errHalted) {
			continue
		}

		if err != nil {
			r.logger.ErrorContext(ctx, "failed to restart bot", "botId", bot.ID, "error", err)

			continue
		}

		r.logger.InfoContext(ctx, "bot restarted", "botId", bot.ID)

		restarted = append(restarted, bot.ID)
	}

	return restarted
}
