package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/botflow/pkg/bots"
	"github.com/dukex/botflow/pkg/cmd"
	"github.com/dukex/botflow/pkg/config"
	"github.com/dukex/botflow/pkg/gateway/telegram"
	"github.com/dukex/botflow/pkg/log"
	"github.com/dukex/botflow/pkg/nodes/message"
	"github.com/dukex/botflow/pkg/otelhelper"
	"github.com/dukex/botflow/pkg/resolver"
	"github.com/dukex/botflow/pkg/workflow"
	"github.com/urfave/cli/v3"
)

const serviceName = "botflow"

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start every active bot and serve the control API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-file",
				Usage:   "Optional YAML config file",
				Sources: cli.EnvVars("CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL (postgres://... or a file:// directory)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "upload-root",
				Usage:   "Directory holding locally uploaded media",
				Sources: cli.EnvVars("UPLOAD_ROOT"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for update dedup; empty processes every delivery",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers for the kafka event bus",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Sources: cli.EnvVars("API_PORT"),
			},
			&cli.DurationFlag{
				Name:    "identity-timeout",
				Usage:   "How long to wait for the platform to confirm a bot identity",
				Sources: cli.EnvVars("IDENTITY_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "reconcile-schedule",
				Usage:   "Cron schedule for restarting active bots without a session",
				Sources: cli.EnvVars("RECONCILE_SCHEDULE"),
			},
			&cli.IntFlag{
				Name:    "max-traversal-steps",
				Usage:   "Node visits allowed per traversal, 0 for unbounded",
				Sources: cli.EnvVars("MAX_TRAVERSAL_STEPS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP HTTP",
				Sources: cli.EnvVars("TRACING"),
			},
			&cli.StringFlag{
				Name:    "telegram-endpoint",
				Usage:   "Bot API endpoint format, for self-hosted Bot API servers",
				Sources: cli.EnvVars("TELEGRAM_API_ENDPOINT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			log.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, command.String("telegram-endpoint"))
		},
	}
}

// loadConfig reads the config file and environment, then applies the flags
// that were set explicitly.
func loadConfig(command *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(command.String("config-file"))
	if err != nil {
		return nil, err
	}

	if command.IsSet("database-url") {
		cfg.DatabaseURL = command.String("database-url")
	}

	if command.IsSet("log-level") {
		cfg.LogLevel = command.String("log-level")
	}

	if command.IsSet("log-format") {
		cfg.LogFormat = command.String("log-format")
	}

	if command.IsSet("upload-root") {
		cfg.UploadRoot = command.String("upload-root")
	}

	if command.IsSet("redis-url") {
		cfg.Redis.URL = command.String("redis-url")
	}

	if command.IsSet("event-bus") {
		cfg.EventBus.Type = command.String("event-bus")
	}

	if command.IsSet("kafka-brokers") {
		cfg.EventBus.KafkaBrokers = command.StringSlice("kafka-brokers")
	}

	if command.IsSet("port") {
		cfg.API.Port = command.Int("port")
	}

	if command.IsSet("identity-timeout") {
		cfg.Bots.IdentityTimeout = command.Duration("identity-timeout")
	}

	if command.IsSet("reconcile-schedule") {
		cfg.Bots.ReconcileSchedule = command.String("reconcile-schedule")
	}

	if command.IsSet("max-traversal-steps") {
		cfg.Workflow.MaxTraversalSteps = command.Int("max-traversal-steps")
	}

	if command.IsSet("tracing") {
		cfg.Tracing = command.Bool("tracing")
	}

	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, telegramEndpoint string) error {
	logger := log.WithModule(serviceName)

	logger.InfoContext(ctx, "Initializing botflow")

	executorOpts := []workflow.Option{workflow.WithMaxSteps(cfg.Workflow.MaxTraversalSteps)}

	if cfg.Tracing {
		tracer, err := otelhelper.NewTracer(ctx, serviceName)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		executorOpts = append(executorOpts, workflow.WithTracer(tracer))
	}

	persistence, err := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open persistence: %w", err)
	}

	defer func() {
		err := persistence.Close(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(cfg.EventBus.Type, cfg.EventBus.KafkaBrokers, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	err = registerAuditHandlers(ctx, eventBus, logger)
	if err != nil {
		return fmt.Errorf("failed to subscribe to events: %w", err)
	}

	guard, closeGuard, err := cmd.NewGuard(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
	if err != nil {
		return err
	}

	defer func() {
		if err := closeGuard(); err != nil {
			logger.ErrorContext(ctx, "Failed to close dedup guard", "error", err)
		}
	}()

	registry := bots.NewRegistry(
		logger,
		telegram.NewPlatform(logger, telegramEndpoint),
		persistence.BotRepository(),
		bots.WithIdentityTimeout(cfg.Bots.IdentityTimeout),
		bots.WithPublisher(eventBus),
	)

	nodes := cmd.NewRegistry(logger, message.Dependencies{
		Sender:        registry,
		Conversations: persistence.ConversationRepository(),
		Transcripts:   persistence.TranscriptRepository(),
		UploadRoot:    cfg.UploadRoot,
		Logger:        logger,
		Events:        eventBus,
	})

	executorOpts = append(executorOpts, workflow.WithPublisher(eventBus))
	executor := workflow.NewExecutor(logger, persistence.WorkflowRepository(), nodes, executorOpts...)

	registry.OnUpdate(bots.NewIngest(
		logger,
		resolver.New(logger, persistence.UserRepository(), persistence.ConversationRepository()),
		persistence.ConversationRepository(),
		persistence.TranscriptRepository(),
		executor,
		guard,
	))

	err = registry.StartAll(ctx)
	if err != nil {
		return err
	}

	reconciler := bots.NewReconciler(logger, registry, cfg.Bots.ReconcileSchedule)

	err = reconciler.Start(ctx)
	if err != nil {
		registry.Shutdown(ctx)

		return fmt.Errorf("failed to start reconciler: %w", err)
	}

	api := NewAPI(logger, persistence, registry)

	err = api.Serve(ctx, cfg.API.Port)
	if err != nil {
		logger.ErrorContext(ctx, "API server stopped", "error", err)
	}

	logger.InfoContext(ctx, "Shutting down botflow")

	reconciler.Stop()
	registry.Shutdown(context.WithoutCancel(ctx))
	executor.Wait()

	return err
}
