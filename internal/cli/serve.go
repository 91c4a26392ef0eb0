package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/p-n-ai/mindshift/internal/ai"
	"github.com/p-n-ai/mindshift/internal/events"
	"github.com/p-n-ai/mindshift/internal/httpapi"
	"github.com/p-n-ai/mindshift/internal/platform/cache"
	"github.com/p-n-ai/mindshift/internal/platform/config"
	"github.com/p-n-ai/mindshift/internal/platform/database"
	"github.com/p-n-ai/mindshift/internal/platform/logging"
	"github.com/p-n-ai/mindshift/internal/platform/metrics"
	"github.com/p-n-ai/mindshift/internal/prompts"
	"github.com/p-n-ai/mindshift/internal/quiz"
	"github.com/p-n-ai/mindshift/internal/roadmap"
	"github.com/p-n-ai/mindshift/internal/scraper"
	"github.com/p-n-ai/mindshift/internal/session"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}

			// Graceful shutdown on SIGTERM/SIGINT.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return runServer(ctx, cfg, cmd.OutOrStdout())
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, out io.Writer) error {
	logger, logCloser, err := logging.New(cfg.Log, out)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No write timeout: websocket streams stay open indefinitely.
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	for _, run := range a.background {
		g.Go(func() error {
			return run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// app is the wired service graph.
type app struct {
	handler    http.Handler
	service    *session.Service
	background []func(ctx context.Context) error
	closers    []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	router := newAIRouter(cfg, logger)
	var budget *ai.InMemoryBudget
	if cfg.AI.SessionTokenBudget > 0 {
		budget = ai.NewInMemoryBudget(cfg.AI.SessionTokenBudget)
		router.SetBudget(budget)
	}

	loader, err := prompts.NewLoader(cfg.PromptsPath)
	if err != nil {
		return fail(fmt.Errorf("loading prompts: %w", err))
	}
	scr, err := scraper.NewFromConfig(cfg.Scraper)
	if err != nil {
		return fail(err)
	}

	checks := make(map[string]httpapi.Checker)

	var store session.Store
	switch cfg.Session.Store {
	case "redis":
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fail(fmt.Errorf("connecting to session cache: %w", err))
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		checks["cache"] = c
		logger.Info("session cache connected", "addr", c.Addr())
		store = session.NewRedisStore(c.Client, cfg.Session.TTL)
	default:
		mem := session.NewMemoryStore(cfg.Session.TTL)
		a.background = append(a.background, func(ctx context.Context) error {
			return mem.RunSweeper(ctx, sweepInterval)
		})
		store = mem
	}
	logger.Info("session store ready", "store", cfg.Session.Store, "ttl", cfg.Session.TTL)

	// Expired sessions never reach Delete, so their counters age out instead.
	if budget != nil && cfg.Session.TTL > 0 {
		a.background = append(a.background, func(ctx context.Context) error {
			return budget.RunPruner(ctx, sweepInterval, cfg.Session.TTL)
		})
	}

	var (
		eventLog    events.Logger = events.NopLogger{}
		eventReader events.Reader
	)
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return fail(fmt.Errorf("connecting to event database: %w", err))
		}
		a.closers = append(a.closers, db.Close)
		checks["database"] = db

		pg := events.NewPostgresLogger(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fail(err)
		}
		eventLog, eventReader = pg, pg
		logger.Info("analytics events enabled", "host", db.Host())
	}

	m := metrics.New()
	opts := []session.Option{
		session.WithEvents(eventLog),
		session.WithMetrics(m),
	}
	if budget != nil {
		opts = append(opts, session.WithBudget(budget))
	}

	a.service = session.NewService(
		store,
		scr,
		quiz.NewGenerator(router, loader, quiz.WithModel(cfg.AI.OpenAI.Model)),
		roadmap.NewGenerator(router, loader, cfg.AI.OpenAI.Model),
		opts...,
	)
	a.handler = httpapi.New(httpapi.Deps{
		Service:         a.service,
		Events:          eventReader,
		Metrics:         m,
		Checks:          checks,
		RateLimitPerMin: cfg.Server.RateLimitPerMin,
		Logger:          logger,
	})
	return a, nil
}

// newAIRouter registers the configured providers in fallback order. A missing
// provider is only a warning; generation requests then fail individually.
func newAIRouter(cfg *config.Config, logger *slog.Logger) *ai.Router {
	router := ai.NewRouter()

	if key := cfg.AI.OpenAI.APIKey; key != "" {
		router.Register("openai", ai.NewOpenAIProvider(key,
			ai.WithBaseURL(cfg.AI.OpenAI.BaseURL),
			ai.WithDefaultModel(cfg.AI.OpenAI.Model),
		))
		logger.Info("AI provider registered",
			"provider", "openai",
			"model", cfg.AI.OpenAI.Model,
			"key_fingerprint", config.Fingerprint(key),
		)
	}
	if cfg.AI.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.AI.Ollama.URL,
			ai.WithOllamaModel(cfg.AI.Ollama.Model),
		))
		logger.Info("AI provider registered", "provider", "ollama", "model", cfg.AI.Ollama.Model)
	}

	if !cfg.HasAIProvider() {
		logger.Warn("no AI provider configured; set MINDSHIFT_AI_OPENAI_API_KEY or enable Ollama")
	}
	return router
}
