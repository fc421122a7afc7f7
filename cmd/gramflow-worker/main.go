// Package main provides the GramFlow worker: it consumes trigger events
// and executes matching workflows.
package main

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/gramflow/gramflow/pkg/cmd"
	"github.com/gramflow/gramflow/pkg/ingest"
	"github.com/gramflow/gramflow/pkg/log"
	"github.com/gramflow/gramflow/pkg/otelhelper"
	"github.com/gramflow/gramflow/pkg/ratelimit"
)

func main() {
	command := &cli.Command{
		Name:                  "gramflow-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to execute Instagram automation workflows",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus transport (kafka, gochannel)",
				Value:   "kafka",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker addresses",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the rate limit store and intake queue",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "intake-queue",
				Usage:   "Redis list the webhook tier pushes decoded events onto",
				Value:   ingest.DefaultQueue,
				Sources: cli.EnvVars("INTAKE_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "instagram-base-url",
				Usage:   "Instagram Graph API base URL ('fake' for the recording client)",
				Sources: cli.EnvVars("INSTAGRAM_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	workerID := command.String("worker-id")
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()[:8]
	}

	logger := log.WithModule("gramflow-worker").With("worker_id", workerID)

	logger.InfoContext(ctx, "Initializing GramFlow Worker")

	tracerProvider, err := otelhelper.InitTracer(ctx, "gramflow-worker")
	if err != nil {
		return err
	}

	defer func() {
		err := tracerProvider.Shutdown(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
		}
	}()

	tracer := tracerProvider.Tracer("gramflow-worker")

	persist, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := persist.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	brokers := strings.Split(command.String("kafka-brokers"), ",")

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), brokers, "gramflow-worker", logger)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	limiter, redisClient, err := cmd.NewLimiter(ctx, logger, command.String("redis-url"), ratelimit.WithTracer(tracer))
	if err != nil {
		return err
	}

	if redisClient != nil {
		defer func() {
			err := redisClient.Close()
			if err != nil {
				logger.ErrorContext(ctx, "Failed to close Redis client", "error", err)
			}
		}()
	}

	client := cmd.NewInstagramClient(logger, command.String("instagram-base-url"))
	registry := cmd.NewRegistry(logger, limiter, client)

	if redisClient != nil {
		consumer := ingest.NewConsumer(logger, redisClient, eventBus, command.String("intake-queue"))

		err = consumer.Start(ctx)
		if err != nil {
			return err
		}

		defer func() {
			err := consumer.Stop(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to stop intake consumer", "error", err)
			}
		}()
	} else {
		logger.WarnContext(ctx, "No Redis URL configured, intake consumer disabled")
	}

	reporter := newStatsReporter(logger, persist, limiter)

	err = reporter.Start(ctx)
	if err != nil {
		return err
	}

	defer reporter.Stop()

	worker := NewWorkerManager(workerID, persist, eventBus, logger, registry, tracer)

	err = worker.Start(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to start worker", "error", err)
	}

	return err
}
