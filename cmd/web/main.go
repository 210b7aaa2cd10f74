package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/myrjola/fitcoach/internal/coach"
	"github.com/myrjola/fitcoach/internal/envstruct"
	"github.com/myrjola/fitcoach/internal/errors"
	"github.com/myrjola/fitcoach/internal/flightrecorder"
	"github.com/myrjola/fitcoach/internal/logging"
	"github.com/myrjola/fitcoach/internal/metrics"
	"github.com/myrjola/fitcoach/internal/personalize"
	"github.com/myrjola/fitcoach/internal/sqlite"
	"github.com/prometheus/client_golang/prometheus"
)

type application struct {
	logger         *slog.Logger
	coach          *coach.Service
	metrics        *metrics.Manager
	registry       *prometheus.Registry
	flightRecorder *flightrecorder.Service
	// requestTimeout bounds a single request. Zero means defaultTimeout.
	requestTimeout time.Duration
}

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"FITCOACH_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"FITCOACH_SQLITE_URL" envDefault:"./fitcoach.sqlite3"`
	// OpenAIAPIKey enables AI personalization. Without it every adjustment comes from the fallback table.
	OpenAIAPIKey string `env:"FITCOACH_OPENAI_API_KEY" envDefault:""`
	// OpenAIBaseURL points at an OpenAI compatible provider.
	OpenAIBaseURL string `env:"FITCOACH_OPENAI_BASE_URL" envDefault:""`
	OpenAIModel   string `env:"FITCOACH_OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	// AITimeout bounds a single chat completion before falling back.
	AITimeout time.Duration `env:"FITCOACH_AI_TIMEOUT" envDefault:"10s"`
	// TracesDir enables the flight recorder that dumps a runtime trace when a request times out.
	TracesDir string `env:"FITCOACH_TRACES_DIR" envDefault:""`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		cancel context.CancelFunc
		err    error
	)

	ctx, cancel = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open db", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close db", errors.SlogError(closeErr))
		}
	}()
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	var recorder *flightrecorder.Service
	if cfg.TracesDir != "" {
		if recorder, err = flightrecorder.New(flightrecorder.Config{ //nolint:exhaustruct // defaults.
			TracesDirectory: cfg.TracesDir,
		}, logger); err != nil {
			return errors.Wrap(err, "new flight recorder")
		}
		if err = recorder.Start(ctx); err != nil {
			return errors.Wrap(err, "start flight recorder")
		}
		defer recorder.Stop(ctx)
	}

	registry := metrics.NewRegistry()
	m := metrics.NewManager("fitcoach", "server", registry)
	personalizer := personalize.New(personalize.Config{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Timeout:     cfg.AITimeout,
		MaxTokens:   0,
		Temperature: 0,
	}, logger, m)
	if cfg.OpenAIAPIKey == "" {
		logger.LogAttrs(ctx, slog.LevelWarn, "no OpenAI API key, personalization uses the fallback table")
	}

	app := application{
		logger:         logger,
		coach:          coach.NewService(db, personalizer, m, logger),
		metrics:        m,
		registry:       registry,
		flightRecorder: recorder,
		// Personalization may wait for the full AI timeout before answering with the fallback.
		requestTimeout: cfg.AITimeout + defaultTimeout,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
