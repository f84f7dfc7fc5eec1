package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/goose-osm/goose/internal/config"
	dbRedis "github.com/goose-osm/goose/internal/db/redis"
	"github.com/goose-osm/goose/internal/domain"
	logpkg "github.com/goose-osm/goose/internal/logger"
	"github.com/goose-osm/goose/internal/metrics"
	presetrepo "github.com/goose-osm/goose/internal/repository/preset"
	"github.com/goose-osm/goose/internal/timezone"
	"github.com/goose-osm/goose/internal/transport/addok"
	chiTransport "github.com/goose-osm/goose/internal/transport/chi"
	"github.com/goose-osm/goose/internal/transport/nominatim"
	"github.com/goose-osm/goose/internal/transport/overpass"
	enrichuc "github.com/goose-osm/goose/internal/usecase/enrich"
	fetchuc "github.com/goose-osm/goose/internal/usecase/fetch"
	healthuc "github.com/goose-osm/goose/internal/usecase/health"
	resolveuc "github.com/goose-osm/goose/internal/usecase/resolve"
	searchuc "github.com/goose-osm/goose/internal/usecase/search"
	"github.com/goose-osm/goose/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting goose API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("preset_source", cfg.Presets.Source),
	)

	metrics.RegisterUpstreamMetrics()

	ctx := logpkg.ContextWithLogger(context.Background(), logger)

	var store *dbRedis.Store
	if cfg.UsesRedis() {
		store = openStore(ctx, &cfg, logger)
		defer store.Close()
	}

	var source presetrepo.Source
	if cfg.Presets.Source == config.PresetSourceRedis {
		source = presetrepo.NewRedisSource(store, cfg.Presets.KeyPrefix)
	} else {
		logger.Info("Serving presets from file", zap.String("path", cfg.Presets.Path))
		source = presetrepo.NewFileSource(cfg.Presets.Path)
	}
	presets := presetrepo.NewStore(source)
	if _, err := presets.List(ctx); err != nil {
		logger.Fatal("Failed to load presets", zap.Error(err))
	}

	// Upstream clients
	var addokClient *addok.Client
	if cfg.Geocoding.AddokURL != "" {
		addokClient = addok.New(addok.Config{
			BaseURL:   cfg.Geocoding.AddokURL,
			UserAgent: cfg.Geocoding.UserAgent,
			Timeout:   time.Duration(cfg.Geocoding.TimeoutSec) * time.Second,
		})
	}
	nominatimClient := nominatim.New(nominatim.Config{
		BaseURL:        cfg.Geocoding.NominatimURL,
		UserAgent:      cfg.Geocoding.UserAgent,
		RequestsPerSec: cfg.Geocoding.RequestsPerSec,
		Timeout:        time.Duration(cfg.Geocoding.TimeoutSec) * time.Second,
	})
	overpassClient := overpass.New(overpass.Config{
		BaseURL:   cfg.Overpass.URL,
		UserAgent: cfg.Geocoding.UserAgent,
		Timeout:   time.Duration(cfg.Overpass.TimeoutSec) * time.Second,
	})

	// Pass nil interfaces (not typed nil pointers) when addok is disabled.
	var primary resolveuc.StructuredGeocoder
	var batch enrichuc.BatchAddressLookup
	upstreams := map[string]healthuc.UpstreamChecker{
		"nominatim": nominatimClient,
		"overpass":  overpassClient,
	}
	if addokClient != nil {
		primary = addokClient
		batch = addokClient
		upstreams["addok"] = addokClient
	}

	// Use case services
	resolver := resolveuc.New(primary, nominatimClient, resolveuc.Config{
		MaxAttempts: cfg.Geocoding.MaxAttempts,
		Language:    cfg.Geocoding.Language,
	})
	fetcher := fetchuc.New(overpassClient, fetchuc.Config{
		MaxAttempts:     cfg.Overpass.MaxAttempts,
		QueryTimeoutSec: cfg.Overpass.QueryTimeoutSec,
	})
	enricher, err := enrichuc.New(batch, resolver, enrichuc.Config{
		Workers:         cfg.Search.Workers,
		TrueBearing:     cfg.Search.TrueBearing,
		MaxFallbacks:    cfg.Search.AddressFallbacks,
		FallbackTimeout: time.Duration(cfg.Search.AddressFallbackTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		logger.Fatal("Failed to create enrichment pool", zap.Error(err))
	}
	defer enricher.Release()

	zones, err := timezone.New(cfg.Search.DefaultTimezone)
	if err != nil {
		logger.Fatal("Failed to create timezone finder", zap.Error(err))
	}

	searchSvc := searchuc.New(presets, resolver, fetcher, enricher, zones, searchuc.Config{
		MinRadius:     cfg.Search.MinRadius,
		MaxRadius:     cfg.Search.MaxRadius,
		RadiusStep:    cfg.Search.RadiusStep,
		DefaultRadius: cfg.Search.DefaultRadius,
		Timeout:       time.Duration(cfg.Search.RequestTimeoutSec) * time.Second,
	})
	healthSvc := healthuc.New(presets, upstreams)

	// Create chi server
	server := chiTransport.NewServer(searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openStore connects to Redis and waits until it answers.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) *dbRedis.Store {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}

	// Wait for database to be ready
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database", zap.Strings("db_addrs", cfg.Database.Addrs))
	return store
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set(metrics.ErrorCodeHeader, string(domain.CategoryUnexpected))
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    string(domain.CategoryUnexpected),
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
