package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ashita-ai/tenran/internal/auth"
	"github.com/ashita-ai/tenran/internal/client"
	"github.com/ashita-ai/tenran/internal/config"
	"github.com/ashita-ai/tenran/internal/pipeline"
	"github.com/ashita-ai/tenran/internal/ratelimit"
	"github.com/ashita-ai/tenran/internal/server"
	"github.com/ashita-ai/tenran/internal/stage"
	"github.com/ashita-ai/tenran/internal/store"
	"github.com/ashita-ai/tenran/internal/telemetry"
	"github.com/ashita-ai/tenran/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("TENRAN_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("tenran starting", "version", version, "port", cfg.Port, "store", cfg.StoreDriver)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version,
		os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true")
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Open the session store.
	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() { _ = st.Close(context.Background()) }()

	// External data source clients. Empty base URLs select the
	// production endpoints; tests override them with httptest servers.
	wikipedia := client.NewWikipedia("", cfg.ClientTimeout)
	wikidata := client.NewWikidata("", cfg.ClientTimeout)
	europeana := client.NewEuropeana("", cfg.EuropeanaAPIKey, cfg.ClientTimeout)
	if europeana.Enabled() {
		logger.Info("europeana: enabled")
	} else {
		logger.Info("europeana: disabled (no EUROPEANA_API_KEY)")
	}

	// Optional LLM for curatorial statements; the theme stage falls back
	// to a template without it.
	var llm *openai.Client
	if cfg.OpenAIAPIKey != "" {
		llm = openai.NewClient(cfg.OpenAIAPIKey)
		logger.Info("llm: enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Info("llm: disabled (no OPENAI_API_KEY), using templated statements")
	}

	stages := stage.New(stage.Deps{
		Wikipedia: wikipedia,
		Wikidata:  wikidata,
		Europeana: europeana,
		LLM:       llm,
		LLMModel:  cfg.OpenAIModel,
		Logger:    logger,
	})

	// Create the SSE broker. With a Postgres notify connection it
	// bridges through LISTEN/NOTIFY so every replica sees every event;
	// otherwise it fans out in-process.
	var broker *server.Broker
	if pg, ok := st.(*store.Postgres); ok && pg.HasNotifyConn() {
		broker = server.NewBridgedBroker(pg, logger)
		go broker.Start(ctx)
		logger.Info("sse broker: bridged through postgres notifications")
	} else {
		broker = server.NewBroker(logger)
		logger.Info("sse broker: in-process")
	}

	orch := pipeline.New(st, stages, broker, logger)

	authMgr, err := auth.NewManager(cfg.APIKey, cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	var limiter ratelimit.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = ratelimit.NewMemoryLimiter(float64(cfg.RateLimitPerMinute)/60.0, cfg.RateLimitPerMinute)
		defer func() { _ = limiter.Close() }()
		logger.Info("rate limiting: memory (in-process token bucket)", "per_minute", cfg.RateLimitPerMinute)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.ServerConfig{
		Orchestrator:        orch,
		AuthMgr:             authMgr,
		Store:               st,
		Logger:              logger,
		Broker:              broker,
		Limiter:             limiter,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	// Start HTTP server in background.
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	// Graceful shutdown. Stop accepting requests first, then wait for
	// in-flight drive loops: each persists strictly before it publishes,
	// so anything the drain cuts off resumes from its last phase.
	slog.Info("tenran shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	httpCancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	orch.Drain(drainCtx)
	drainCancel()

	slog.Info("tenran stopped")
	return nil
}

// newStore opens the session store selected by the configuration.
func newStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.NotifyURL, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.RunMigrations(ctx, migrations.FS); err != nil {
			_ = pg.Close(ctx)
			return nil, err
		}
		return pg, nil
	case "sqlite":
		return store.NewSQLite(ctx, cfg.SQLitePath)
	default:
		return store.NewMemory(), nil
	}
}
