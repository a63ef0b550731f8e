// Package main provides the argus API server implementation.
package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/socworks/argus/pkg/log"
)

const (
	defaultPort          = 8000
	defaultTimeout       = 300
	defaultMaxConcurrent = 10
)

func main() {
	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "argus-api",
		Usage:                 "Run the SOC alert analysis pipeline",
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
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "llm-provider",
				Usage:   "LLM provider (openai, gemini, mock)",
				Value:   "mock",
				Sources: cli.EnvVars("LLM_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Usage:   "Model name for the configured LLM provider",
				Sources: cli.EnvVars("LLM_MODEL"),
			},
			&cli.StringFlag{
				Name:    "llm-api-key",
				Usage:   "API key for the configured LLM provider",
				Sources: cli.EnvVars("LLM_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "llm-base-url",
				Usage:   "Override the LLM provider's API base URL",
				Sources: cli.EnvVars("LLM_BASE_URL"),
			},
			&cli.IntFlag{
				Name:    "alert-timeout",
				Usage:   "Per-alert processing timeout in seconds",
				Value:   defaultTimeout,
				Sources: cli.EnvVars("ALERT_TIMEOUT_SECONDS"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent",
				Usage:   "Maximum number of alerts processed concurrently",
				Value:   defaultMaxConcurrent,
				Sources: cli.EnvVars("MAX_CONCURRENT_ALERTS"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka broker addresses, required when --event-bus=kafka",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL to ingest alerts from a queue (optional)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-queue",
				Usage:   "Redis list name to pop alerts from",
				Value:   "argus:alerts",
				Sources: cli.EnvVars("REDIS_QUEUE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing for stage execution",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "metrics-report-schedule",
				Usage:   "Cron schedule for the periodic metrics log line (empty disables it)",
				Value:   "@every 1m",
				Sources: cli.EnvVars("METRICS_REPORT_SCHEDULE"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing argus API")

			api, err := NewAPI(ctx, logger, configFromCommand(command))
			if err != nil {
				return err
			}
			defer api.Shutdown(ctx)

			return api.Start(ctx, command.Int("port"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("argus-api exited with error", "error", err)
		os.Exit(1)
	}
}
