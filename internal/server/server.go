// Package server assembles all HTTP handlers and starts the server.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matthewbaird/leasefin/internal/activity"
	"github.com/matthewbaird/leasefin/internal/handler"
	"github.com/matthewbaird/leasefin/internal/wire"
)

// Config holds server configuration.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64

	FinancialConfig *handler.FinancialConfigHandler
	Activity        activity.Store
	Live            *wire.Handler
	Logger          *zap.Logger
}

// NewRouter registers every route on a chi router.
func NewRouter(cfg Config) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(handler.RequestID, handler.Logging(log), handler.Recovery(log))
	if cfg.MaxBodySize > 0 {
		r.Use(limitBody(cfg.MaxBodySize))
	}

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	fh := cfg.FinancialConfig
	var ah *handler.ActivityHandler
	if cfg.Activity != nil {
		ah = handler.NewActivityHandler(cfg.Activity)
	}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/financial-config/fields", fh.GetFields)
		r.Post("/financial-config/validate", fh.Validate)
		if cfg.Live != nil {
			r.Handle("/financial-config/live", cfg.Live)
		}
		r.Get("/financial-configs", fh.ListFinancialConfigs)

		r.Route("/tenants/{tenantID}/units/{unitID}", func(r chi.Router) {
			r.Post("/financial-config", fh.CreateFinancialConfig)
			r.Patch("/financial-config", fh.UpdateFinancialConfig)
			r.Get("/financial-config", fh.GetFinancialConfig)
			if ah != nil {
				r.Get("/activity", ah.GetAssignmentActivity)
				r.Get("/activity/summary", ah.GetAssignmentSummary)
			}
		})

		if ah != nil {
			r.Get("/activity/search", ah.SearchActivity)
		}
	})
	return r
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

// Run starts the HTTP server and shuts it down gracefully when ctx is done.
func Run(ctx context.Context, cfg Config) error {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      NewRouter(cfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Info("shutting down server", zap.Duration("timeout", timeout))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
