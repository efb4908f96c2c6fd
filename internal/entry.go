// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/newsdesk/internal/api"
	"github.com/starford/newsdesk/internal/apperr"
	"github.com/starford/newsdesk/internal/backup"
	"github.com/starford/newsdesk/internal/mcpserver"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build()
	if err != nil {
		return err
	}
	defer c.close()

	cfg := c.cfg
	logger := c.logger

	// Initial load. A failure is surfaced in the session status and the
	// operator can retry from the UI.
	if err := c.ctl.Load(ctx, "", ""); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	var scheduler *backup.Scheduler
	if cfg.Backup.Schedule != "" {
		scheduler, err = backup.NewScheduler(cfg.Backup.Schedule, c.exporter, logger)
		if err != nil {
			return err
		}
	}

	apiRouter := api.NewRouter(c.ctl, c.exporter, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.ledger.List(1); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", c.metrics.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the local repository for commits made by other writers.
	if c.repo != nil {
		g.Go(func() error {
			if err := c.repo.Watch(gCtx, cfg.Remote.Branch, c.broker.PublishRemoteChange); err != nil {
				logger.Error("ref watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if scheduler != nil {
		g.Go(func() error {
			return scheduler.Run(gCtx)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Close the broker first so open event streams end and Shutdown
		// does not wait on them.
		c.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context once shutdown starts so the
// watcher and scheduler stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the editing session as MCP tools over stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build()
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.ctl.Load(ctx, "", ""); err != nil {
		c.logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	c.logger.Info("MCP server starting on stdio", slog.String("version", app.version))
	return mcpserver.New(c.ctl, app.version).ServeStdio()
}

// RunBackup loads the configured collection and exports one snapshot.
func RunBackup(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build()
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.ctl.Load(ctx, "", ""); err != nil {
		return fmt.Errorf("load collection: %s (%s)", apperr.Message(err), apperr.Code(err))
	}
	res, err := c.exporter.Export(ctx, true)
	if err != nil {
		return fmt.Errorf("export backup: %w", err)
	}
	c.logger.Info("backup exported",
		slog.String("name", res.Record.Name),
		slog.Int64("size", res.Record.Size))
	return nil
}
