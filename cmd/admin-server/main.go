// Package main is the entrypoint for the relay admin server: a small HTTP
// surface exposing health checks and a manual dead-letter reprocess
// trigger for operators, for environments where invoking the reprocessor
// Lambda directly is inconvenient.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"notifyrelay/internal/app"
	"notifyrelay/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	a, err := app.Bootstrap(context.Background())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	defer a.Close()

	port := os.Getenv("ADMIN_PORT")
	if port == "" {
		port = "8080"
	}

	srv := &adminServer{
		reprocessor: a.Reprocessor,
		maxDrain:    a.Cfg.DeadLetter.MaxDrain,
		logger:      a.Logger,
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Reprocess runs can hold the response for the whole drain budget.
		WriteTimeout: a.Cfg.DeadLetter.MaxDrain + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("admin server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.Logger.Info("admin server stopped cleanly")
	return nil
}

// drainRunner is the reprocessor surface the server needs. Satisfied by
// *dlq.Reprocessor.
type drainRunner interface {
	ReprocessAll(ctx context.Context) (types.ReprocessSummary, error)
}

// adminServer holds the handler dependencies.
type adminServer struct {
	reprocessor drainRunner
	maxDrain    time.Duration
	logger      interface {
		Info(msg string, args ...any)
		Error(msg string, args ...any)
	}
	// draining rejects overlapping manual runs. Concurrent drains are safe
	// (at-least-once), but two operators racing the same queue just burn
	// receives.
	draining atomic.Bool
}

func (s *adminServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/dlq/reprocess", s.handleReprocess)
	return r
}

func (s *adminServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReprocess triggers one dead-letter drain and responds with the run
// summary. The drain is bounded by the configured budget regardless of how
// long the client is willing to wait.
func (s *adminServer) handleReprocess(w http.ResponseWriter, r *http.Request) {
	if !s.draining.CompareAndSwap(false, true) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "a reprocess run is already in progress",
		})
		return
	}
	defer s.draining.Store(false)

	ctx, cancel := context.WithTimeout(r.Context(), s.maxDrain+10*time.Second)
	defer cancel()

	summary, err := s.reprocessor.ReprocessAll(ctx)
	if err != nil {
		s.logger.Error("manual reprocess run failed",
			"success_count", summary.SuccessCount,
			"failure_count", summary.FailureCount,
			"error", err.Error(),
		)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   err.Error(),
			"summary": summary,
		})
		return
	}

	s.logger.Info("manual reprocess run finished",
		"success_count", summary.SuccessCount,
		"failure_count", summary.FailureCount,
	)
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
