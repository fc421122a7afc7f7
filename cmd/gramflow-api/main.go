package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/gramflow/gramflow/pkg/cmd"
	"github.com/gramflow/gramflow/pkg/log"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "gramflow-api",
		Usage:                 "Create and manage Instagram automation workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection URL for the rate limit store",
				Sources: cli.EnvVars("REDIS_URL"),
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
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("gramflow-api")

			logger.InfoContext(ctx, "Initializing GramFlow API")

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

			limiter, redisClient, err := cmd.NewLimiter(ctx, logger, command.String("redis-url"))
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

			api := NewAPI(logger, persist, limiter, registry)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return err
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
