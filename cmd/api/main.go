// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	app "astrolive/internal"
	"astrolive/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication()
	if err := application.Initialize(ctx); err != nil {
		util.GetLogger().Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}
	logger := application.Logger

	server := &http.Server{
		Addr:        ":" + application.Config.ServerPort,
		Handler:     application.HTTPHandler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: it would cut long-lived WebSocket connections.
		IdleTimeout: 120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", "port", application.Config.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// End sessions first so both parties still receive chat-end.
		appErr := application.Shutdown(shutdownCtx)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return appErr
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Application gracefully stopped.")
}
