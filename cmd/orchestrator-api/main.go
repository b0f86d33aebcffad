package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"

	cli "github.com/urfave/cli/v3"

	"github.com/SanketsMane/Flowversal-sub007/pkg/approval"
	"github.com/SanketsMane/Flowversal-sub007/pkg/clients/openai"
	"github.com/SanketsMane/Flowversal-sub007/pkg/clients/smtpmail"
	"github.com/SanketsMane/Flowversal-sub007/pkg/cmd"
	"github.com/SanketsMane/Flowversal-sub007/pkg/dispatcher"
	"github.com/SanketsMane/Flowversal-sub007/pkg/log"
	"github.com/SanketsMane/Flowversal-sub007/pkg/otelhelper"
	"github.com/SanketsMane/Flowversal-sub007/pkg/runner"
	"github.com/SanketsMane/Flowversal-sub007/pkg/sweeper"
	"github.com/SanketsMane/Flowversal-sub007/pkg/web"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "orchestrator-api",
		Usage:                 "Run and manage workflow executions",
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
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "model-api-key",
				Usage:   "API key for the language model provider",
				Sources: cli.EnvVars("MODEL_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "model-base-url",
				Usage:   "Base URL of an OpenAI-compatible completions API",
				Value:   openai.DefaultBaseURL,
				Sources: cli.EnvVars("MODEL_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "smtp-addr",
				Usage:   "SMTP relay address (host:port) for email nodes",
				Value:   "localhost:25",
				Sources: cli.EnvVars("SMTP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Usage:   "From address for email nodes",
				Value:   "orchestrator@flowversal.local",
				Sources: cli.EnvVars("SMTP_FROM"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export dispatch spans over OTLP (endpoint from OTEL_EXPORTER_OTLP_* variables)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing Flowversal Orchestrator API")

			if command.Bool("tracing") {
				tracerProvider, err := otelhelper.InitTracer(ctx, "orchestrator-api")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}
				defer func() {
					if err := tracerProvider.Shutdown(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			modelClient := openai.NewClient(
				logger,
				command.String("model-api-key"),
				openai.WithBaseURL(command.String("model-base-url")),
			)
			mailer := smtpmail.NewMailer(
				logger,
				command.String("smtp-addr"),
				command.String("smtp-from"),
				os.Getenv("SMTP_USERNAME"),
				os.Getenv("SMTP_PASSWORD"),
			)

			approvalService := approval.NewService(logger, persistence.ApprovalRepository())
			registry := cmd.NewRegistry(logger, modelClient, http.DefaultClient, mailer, approvalService)
			nodeDispatcher := dispatcher.NewDispatcher(logger, registry)
			executionRunner := runner.NewRunner(logger, persistence, nodeDispatcher, approvalService, eventBus)

			approvalSweep := sweeper.NewApprovalSweeper(
				logger,
				persistence.ApprovalRepository(),
				approvalService,
				executionRunner,
				eventBus,
			)
			breakpointSweep := sweeper.NewBreakpointSweeper(logger, persistence.BreakpointRepository(), eventBus)

			app := web.NewApp(persistence, executionRunner, approvalSweep, breakpointSweep)

			return app.Listen(":" + strconv.Itoa(command.Int("port")))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
