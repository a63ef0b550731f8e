package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/socworks/argus/pkg/broadcaster"
	"github.com/socworks/argus/pkg/cmd"
	"github.com/socworks/argus/pkg/eventbus"
	"github.com/socworks/argus/pkg/llm"
	"github.com/socworks/argus/pkg/metrics"
	"github.com/socworks/argus/pkg/models"
	"github.com/socworks/argus/pkg/orchestrator"
	"github.com/socworks/argus/pkg/otelhelper"
	"github.com/socworks/argus/pkg/receivers/queue"
	"github.com/socworks/argus/pkg/registry"
	"github.com/socworks/argus/pkg/services"
	"github.com/socworks/argus/pkg/stages/decision"
	"github.com/socworks/argus/pkg/stages/investigation"
	"github.com/socworks/argus/pkg/stages/response"
	"github.com/socworks/argus/pkg/stages/triage"
	"github.com/socworks/argus/pkg/web"
)

// Config collects everything the API binary needs to assemble the pipeline.
type Config struct {
	LLM             llm.Config
	AlertTimeout    time.Duration
	MaxConcurrent   int
	EventBus        string
	KafkaBrokers    []string
	RedisURL        string
	RedisQueue      string
	Tracing         bool
	MetricsSchedule string
}

func configFromCommand(command *cli.Command) Config {
	return Config{
		LLM: llm.Config{
			Provider: command.String("llm-provider"),
			Model:    command.String("llm-model"),
			APIKey:   command.String("llm-api-key"),
			BaseURL:  command.String("llm-base-url"),
		},
		AlertTimeout:    time.Duration(command.Int("alert-timeout")) * time.Second,
		MaxConcurrent:   command.Int("max-concurrent"),
		EventBus:        command.String("event-bus"),
		KafkaBrokers:    command.StringSlice("kafka-brokers"),
		RedisURL:        command.String("redis-url"),
		RedisQueue:      command.String("redis-queue"),
		Tracing:         command.Bool("tracing"),
		MetricsSchedule: command.String("metrics-report-schedule"),
	}
}

type API struct {
	logger    *slog.Logger
	bus       eventbus.EventBus
	hub       *broadcaster.Hub
	alerts    *services.AlertService
	receiver  *queue.Receiver
	reporter  *cron.Cron
	busCancel context.CancelFunc
}

func NewAPI(ctx context.Context, logger *slog.Logger, cfg Config) (*API, error) {
	bus, err := cmd.NewEventBus(cfg.EventBus, cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry(logger)

	collector := metrics.NewCollector(logger)
	if err := collector.Attach(bus); err != nil {
		return nil, err
	}

	hub := broadcaster.NewHub(func(workflowID string) (models.Summary, bool) {
		summary, err := reg.Summary(workflowID)

		return summary, err == nil
	}, logger)

	if err := hub.Attach(bus); err != nil {
		return nil, err
	}

	// The bus consumer loop outlives the startup context.
	busCtx, busCancel := context.WithCancel(context.WithoutCancel(ctx))

	if err := bus.Subscribe(busCtx); err != nil {
		busCancel()

		return nil, fmt.Errorf("subscribing to event bus: %w", err)
	}

	provider, err := llm.New(cfg.LLM)
	if err != nil {
		busCancel()

		return nil, err
	}

	logger.InfoContext(ctx, "LLM provider configured", "provider", provider.Name())

	opts := []orchestrator.Option{orchestrator.WithTimeout(cfg.AlertTimeout)}

	if cfg.Tracing {
		tracer, err := otelhelper.NewTracer(ctx, "argus-api")
		if err != nil {
			busCancel()

			return nil, fmt.Errorf("initializing tracer: %w", err)
		}

		opts = append(opts, orchestrator.WithTracer(tracer))
	}

	orch, err := orchestrator.NewOrchestrator(
		[]orchestrator.StageExecutor{
			triage.NewExecutor(provider, logger),
			investigation.NewExecutor(provider, logger),
			decision.NewExecutor(provider, logger),
			response.NewExecutor(provider, logger),
		},
		bus,
		reg,
		logger,
		opts...,
	)
	if err != nil {
		busCancel()

		return nil, err
	}

	alerts := services.NewAlertService(reg, orch, collector, cfg.MaxConcurrent, logger)

	api := &API{
		logger:    logger,
		bus:       bus,
		hub:       hub,
		alerts:    alerts,
		busCancel: busCancel,
	}

	if cfg.RedisURL != "" {
		receiver, err := queue.NewReceiver(cfg.RedisURL, cfg.RedisQueue, alerts, logger)
		if err != nil {
			busCancel()

			return nil, err
		}

		if err := receiver.Start(busCtx); err != nil {
			busCancel()

			return nil, err
		}

		api.receiver = receiver
	}

	if cfg.MetricsSchedule != "" {
		reporter := cron.New()

		if _, err := reporter.AddFunc(cfg.MetricsSchedule, func() {
			snapshot := alerts.Metrics()
			logger.Info("Pipeline metrics",
				"total_processed", snapshot.TotalAlertsProcessed,
				"in_progress", snapshot.AlertsInProgress,
				"true_positives", snapshot.TruePositives,
				"false_positives", snapshot.FalsePositives,
				"failed", snapshot.Failed,
				"avg_processing_seconds", snapshot.AverageProcessingTime,
			)
		}); err != nil {
			busCancel()

			return nil, fmt.Errorf("scheduling metrics report: %w", err)
		}

		reporter.Start()
		api.reporter = reporter
	}

	return api, nil
}

func (a *API) App() (*fiber.App, error) {
	handlers, err := web.NewAPIHandlers(
		a.alerts,
		a.hub,
		validator.New(validator.WithRequiredStructEnabled()),
		a.logger,
	)
	if err != nil {
		return nil, err
	}

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Argus SOC API")
	})

	api := app.Group("/api")
	api.Post("/alerts/process", handlers.ProcessAlert)
	api.Post("/alerts/batch", handlers.ProcessBatch)
	api.Get("/alerts/status/:id", handlers.GetStatus)
	api.Get("/alerts/list", handlers.ListAlerts)
	api.Get("/alerts/sample", handlers.GetSampleAlerts)
	api.Get("/alerts/stream/:id", handlers.StreamAlert)
	api.Get("/ground-truth", handlers.GetGroundTruth)
	api.Post("/upload-and-run", handlers.UploadAndRun)
	api.Get("/metrics", handlers.GetMetrics)
	api.Delete("/workflows/clear", handlers.ClearWorkflows)

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"message": "Argus SOC API is healthy",
		})
	})

	return app, nil
}

func (a *API) Start(ctx context.Context, port int) error {
	app, err := a.App()
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "Starting API server", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}

func (a *API) Shutdown(ctx context.Context) {
	if a.reporter != nil {
		a.reporter.Stop()
	}

	if a.receiver != nil {
		if err := a.receiver.Stop(ctx); err != nil {
			a.logger.ErrorContext(ctx, "Failed to stop queue receiver", "error", err)
		}
	}

	a.busCancel()

	if err := a.bus.Close(); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}
}
