// Package main provides the analytics API entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/drfirst/rxinsight/internal/api/handlers"
	"github.com/drfirst/rxinsight/internal/api/middleware"
	"github.com/drfirst/rxinsight/internal/app"
	"github.com/drfirst/rxinsight/internal/config"
	"github.com/drfirst/rxinsight/internal/observability/metrics"
)

const serviceName = "analytics-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	apiKeys, _ := cfg.APIKeys()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := app.InitTracing(ctx, serviceName, cfg)
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store connection failed", zap.Error(err))
	}
	defer store.Close(context.Background())

	m := metrics.New(nil)
	svc, err := app.NewAnalytics(store, cfg, m, logger)
	if err != nil {
		logger.Fatal("analytics init failed", zap.Error(err))
	}
	var auth func(http.Handler) http.Handler
	switch {
	case len(apiKeys) > 0:
		auth = middleware.APIKeyAuth(apiKeys)
	case cfg.IsDev():
		logger.Warn("API_KEYS is empty; serving without authentication in development")
	default:
		logger.Fatal("API_KEYS is required outside development")
	}
	r := newRouter(svc, store.Ping, auth, m, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting analytics API",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver))
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newRouter builds the HTTP surface. Access and Tracing wrap Recover so a
// recovered panic is still logged, counted and traced as a 500. A nil auth
// serves /api/v1 unauthenticated.
func newRouter(svc handlers.Analytics, ready func(context.Context) error, auth func(http.Handler) http.Handler, m *metrics.Metrics, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Access(logger, m))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.Recover(logger))

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := ready(r.Context()); err != nil {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if auth != nil {
			r.Use(auth)
		}
		r.Mount("/", handlers.NewAnalyticsHandler(svc, logger).Routes())
	})
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}
