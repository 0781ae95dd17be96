package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "broom",
		Usage:   "chat automod daemon (sweeps the channel)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "relay-ws-host",
			Usage:   "websocket host of the chat relay to subscribe to",
			Value:   "ws://localhost:6021",
			EnvVars: []string{"BROOM_RELAY_WS_HOST"},
		},
		&cli.StringFlag{
			Name:    "relay-api-host",
			Usage:   "HTTP host of the chat relay enforcement API",
			Value:   "http://localhost:6020",
			EnvVars: []string{"BROOM_RELAY_API_HOST"},
		},
		&cli.StringFlag{
			Name:    "relay-auth-token",
			Usage:   "bearer token for the relay enforcement API",
			EnvVars: []string{"BROOM_RELAY_AUTH_TOKEN"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the moderation service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Value:   "sqlite://data/broom/moderation.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; enables persistent counters, cache, and stream cursor",
			EnvVars: []string{"BROOM_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "sets-json-path",
			Usage:   "file path of JSON file containing static whitelist/domain sets",
			EnvVars: []string{"BROOM_SETS_JSON_PATH"},
		},
		&cli.StringSliceFlag{
			Name:    "channel",
			Usage:   "chat channel to moderate (can be repeated)",
			EnvVars: []string{"BROOM_CHANNELS"},
		},
		&cli.StringFlag{
			Name:    "owner-username",
			Usage:   "channel owner; the only user allowed to toggle automod settings",
			EnvVars: []string{"BROOM_OWNER_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "sensitivity",
			Usage:   "detection profile: low, medium, or high",
			Value:   "medium",
			EnvVars: []string{"BROOM_SENSITIVITY"},
		},
		&cli.BoolFlag{
			Name:    "disable-strikes",
			Usage:   "use fixed timeouts instead of the escalating strike ladder",
			EnvVars: []string{"BROOM_DISABLE_STRIKES"},
		},
		&cli.IntFlag{
			Name:    "strike-expire-days",
			Usage:   "rolling window before strikes expire",
			Value:   30,
			EnvVars: []string{"BROOM_STRIKE_EXPIRE_DAYS"},
		},
		&cli.IntFlag{
			Name:    "max-strikes",
			Usage:   "strike count that triggers a ban",
			Value:   5,
			EnvVars: []string{"BROOM_MAX_STRIKES"},
		},
		&cli.BoolFlag{
			Name:    "exempt-manual-bans",
			Usage:   "let moderator-issued strikes ban subscribers instead of downgrading",
			EnvVars: []string{"BROOM_EXEMPT_MANUAL_BANS"},
		},
		&cli.DurationFlag{
			Name:    "action-cooldown",
			Usage:   "minimum gap between enforcement actions on the same user",
			Value:   30 * time.Second,
			EnvVars: []string{"BROOM_ACTION_COOLDOWN"},
		},
		&cli.IntFlag{
			Name:    "relay-rate-limit",
			Usage:   "max enforcement requests per second to the relay API",
			Value:   10,
			EnvVars: []string{"BROOM_RELAY_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":6022",
			EnvVars: []string{"BROOM_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "snippet of slack webhook URL, for ban and spam wave notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Usage:   "log enforcement decisions without sending them to the relay",
			EnvVars: []string{"BROOM_DRY_RUN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		// Enable OTLP HTTP exporter
		// For relevant environment variables:
		// https://pkg.go.dev/go.opentelemetry.io/otel/exporters/otlp/otlptrace#readme-environment-variables
		// At a minimum, you need to set
		// OTEL_EXPORTER_OTLP_ENDPOINT=http://localhost:4318
		if ep := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); ep != "" {
			slog.Info("setting up trace exporter", "endpoint", ep)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			exp, err := otlptracehttp.New(ctx)
			if err != nil {
				log.Fatal("failed to create trace exporter", "error", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := exp.Shutdown(ctx); err != nil {
					slog.Error("failed to shutdown trace exporter", "error", err)
				}
			}()

			tp := tracesdk.NewTracerProvider(
				tracesdk.WithBatcher(exp),
				tracesdk.WithResource(resource.NewWithAttributes(
					semconv.SchemaURL,
					semconv.ServiceNameKey.String("broom"),
					attribute.String("env", os.Getenv("ENVIRONMENT")),         // DataDog
					attribute.String("environment", os.Getenv("ENVIRONMENT")), // Others
					attribute.Int64("ID", 1),
				)),
			)
			otel.SetTracerProvider(tp)
		}

		srv, err := NewServer(Config{
			RelayWSHost:      cctx.String("relay-ws-host"),
			RelayAPIHost:     cctx.String("relay-api-host"),
			RelayAuthToken:   cctx.String("relay-auth-token"),
			RelayRateLimit:   cctx.Int("relay-rate-limit"),
			DatabaseURL:      cctx.String("database-url"),
			MaxDBConnections: cctx.Int("max-db-connections"),
			RedisURL:         cctx.String("redis-url"),
			SetsFileJSON:     cctx.String("sets-json-path"),
			Channels:         cctx.StringSlice("channel"),
			OwnerUsername:    cctx.String("owner-username"),
			Sensitivity:      cctx.String("sensitivity"),
			DisableStrikes:   cctx.Bool("disable-strikes"),
			StrikeExpireDays: cctx.Int("strike-expire-days"),
			MaxStrikes:       cctx.Int("max-strikes"),
			ExemptManualBans: cctx.Bool("exempt-manual-bans"),
			ActionCooldown:   cctx.Duration("action-cooldown"),
			SlackWebhookURL:  cctx.String("slack-webhook-url"),
			DryRun:           cctx.Bool("dry-run"),
			Logger:           logger,
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}
