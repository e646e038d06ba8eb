// Package server assembles the application's dependencies and owns its
// lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jfaulkner/mailharvest/internal/api"
	"github.com/jfaulkner/mailharvest/internal/config"
	"github.com/jfaulkner/mailharvest/internal/crawl"
	"github.com/jfaulkner/mailharvest/internal/fetch"
	"github.com/jfaulkner/mailharvest/internal/github"
	"github.com/jfaulkner/mailharvest/internal/logging"
	"github.com/jfaulkner/mailharvest/internal/metrics"
	"github.com/jfaulkner/mailharvest/internal/store"
	"github.com/jfaulkner/mailharvest/internal/verify"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	emails    *store.EmailStore
	coord     *crawl.Coordinator
	verifier  *verify.Verifier
	apiServer *api.Server
}

// Build creates the application's dependencies.
func Build(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	metrics.Init()

	emails, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("email store init failed: %w", err)
	}
	logger.Info("email store opened", zap.String("path", emails.Path()))

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Crawl.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	})

	commits := github.New(fetcher, github.Config{
		APIBase:        cfg.GitHub.APIBase,
		Token:          cfg.GitHub.Token,
		UserAgent:      cfg.Crawl.UserAgent,
		MaxRepos:       cfg.GitHub.MaxRepos,
		CommitsPerPage: cfg.GitHub.CommitsPerPg,
		PoliteDelay:    cfg.PoliteDelay(),
	}, logger.Named("github"))

	coord := crawl.New(crawl.Config{
		HubBaseURL:     cfg.Hub.BaseURL,
		UserAgent:      cfg.Crawl.UserAgent,
		MaxUsernameLen: cfg.Crawl.MaxUsernameLen,
		PoliteDelay:    cfg.PoliteDelay(),
		SnapshotPath:   cfg.Store.SnapshotPath,
	}, fetcher, commits, emails, logger.Named("crawl"))

	verifier := verify.New(
		verify.NewNetResolver(time.Duration(cfg.Verify.MXTimeoutSeconds)*time.Second),
		verify.NewSMTPProber(
			cfg.Verify.HeloDomain,
			cfg.Verify.ProbeFrom,
			time.Duration(cfg.Verify.SMTPTimeoutSeconds)*time.Second,
		),
	)

	app := &App{
		cfg:      cfg,
		logger:   logger,
		emails:   emails,
		coord:    coord,
		verifier: verifier,
	}
	app.apiServer = api.NewServer(coord, verifier, emails, cfg, logger.Named("api"))
	return app, nil
}

// Coordinator exposes the run orchestrator, used by the one-shot CLI path.
func (a *App) Coordinator() *crawl.Coordinator {
	return a.coord
}

// Verifier exposes the verification engine, used by the CLI verify path.
func (a *App) Verifier() *verify.Verifier {
	return a.verifier
}

// Logger exposes the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close()
}

// Close releases the application's resources.
func (a *App) Close() error {
	if err := a.emails.Close(); err != nil {
		a.logger.Warn("email store close failed", zap.Error(err))
	}
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
	return nil
}
