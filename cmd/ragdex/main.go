package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/config"
	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/index"
	logpkg "github.com/kailas-cloud/ragdex/internal/logger"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	historyrepo "github.com/kailas-cloud/ragdex/internal/repository/history"
	"github.com/kailas-cloud/ragdex/internal/repository/snapshot"
	chiTransport "github.com/kailas-cloud/ragdex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/ragdex/internal/transport/openai"
	rerankClient "github.com/kailas-cloud/ragdex/internal/transport/rerank"
	healthuc "github.com/kailas-cloud/ragdex/internal/usecase/health"
	historyuc "github.com/kailas-cloud/ragdex/internal/usecase/history"
	ingestuc "github.com/kailas-cloud/ragdex/internal/usecase/ingest"
	rerankuc "github.com/kailas-cloud/ragdex/internal/usecase/rerank"
	searchuc "github.com/kailas-cloud/ragdex/internal/usecase/search"
	"github.com/kailas-cloud/ragdex/internal/version"
)

func main() {
	// .env is optional; real config comes from config/<env>.yaml
	_ = godotenv.Load()

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

	logger.Info("Starting ragdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("rerank_enabled", cfg.Rerank.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx := context.Background()

	// Redis is optional: without it the embedding cache and search history
	// are disabled and the index snapshot lives on local disk.
	var store db.Store
	if len(cfg.Database.Addrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create database store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Database not ready", zap.Error(err))
		}
		logger.Info("Connected to database")
	} else {
		logger.Info("No database configured; embedding cache and search history disabled")
	}

	base, embedder := buildEmbedder(cfg, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
		zap.Bool("cached", store != nil),
	)

	// Vector index with snapshot persistence.
	idx := index.New()
	snapStore := newSnapshotStore(cfg, store, logger)
	restoreIndex(ctx, idx, snapStore, logger)

	// Rerank engine; a nil gateway makes Apply a pass-through.
	var rerankGateway rerankuc.Reranker
	if cfg.Rerank.Enabled {
		rerankGateway = rerankClient.NewClient(&rerankClient.Config{
			APIKey:  cfg.Rerank.APIKey,
			BaseURL: cfg.Rerank.BaseURL,
			Model:   cfg.Rerank.Model,
			Timeout: time.Duration(cfg.Retry.RequestTimeoutSec) * time.Second,
			Logger:  logger,
		})
		logger.Info("Rerank enabled", zap.String("model", cfg.Rerank.Model))
	}
	rerankEngine := rerankuc.New(rerankGateway, rerankuc.Config{
		BatchSize: cfg.Rerank.BatchSize,
	}, logger)

	// Search history: bounded queue in front of a capped Redis list.
	var emitter *historyuc.Emitter
	if store != nil {
		histRepo := historyrepo.New(store, cfg.History.MaxRecords)
		emitter = historyuc.NewEmitter(histRepo, historyuc.Config{
			QueueSize: cfg.History.QueueSize,
			OnEmitted: func() { metrics.HistoryEmittedTotal.WithLabelValues("emitted").Inc() },
			OnDropped: func() { metrics.HistoryEmittedTotal.WithLabelValues("dropped").Inc() },
		}, logger)
		emitter.Start()
		defer emitter.Close()
	}

	// Use case services
	ingestSvc := ingestuc.New(embedder, idx, ingestuc.NewTextExtractor(), ingestuc.Config{
		ChunkSize:      cfg.Chunking.ChunkSize,
		ChunkOverlap:   cfg.Chunking.ChunkOverlap,
		RetryAttempts:  cfg.Retry.MaxAttempts,
		RetryBaseDelay: time.Duration(cfg.Retry.BackoffBaseMs) * time.Millisecond,
		EmbedTimeout:   time.Duration(cfg.Retry.RequestTimeoutSec) * time.Second,
	}, logger)
	if n := ingestSvc.Rehydrate(ctx); n > 0 {
		logger.Info("Document catalog rebuilt from snapshot", zap.Int("documents", n))
	}

	// Pass nil interface (not typed nil pointer!) when history is disabled.
	var histEmitter searchuc.HistoryEmitter
	if emitter != nil {
		histEmitter = emitter
	}
	searchSvc := searchuc.New(embedder, idx, rerankEngine, histEmitter, searchuc.Config{
		DefaultTopK:         cfg.Search.TopK,
		CandidateMultiplier: cfg.Search.CandidateMultiplier,
		DefaultThreshold:    cfg.Search.SimilarityThreshold,
		RerankEnabled:       cfg.Rerank.Enabled,
		RetryAttempts:       cfg.Retry.MaxAttempts,
		RetryBaseDelay:      time.Duration(cfg.Retry.BackoffBaseMs) * time.Millisecond,
		EmbedTimeout:        time.Duration(cfg.Retry.RequestTimeoutSec) * time.Second,
	}, logger)

	var dbPinger healthuc.DBPinger
	if store != nil {
		dbPinger = store
	}
	healthSvc := healthuc.New(dbPinger, base)

	var histReader chiTransport.HistoryReader
	if emitter != nil {
		histReader = emitter
	}
	server := chiTransport.NewServer(ingestSvc, searchSvc, histReader, healthSvc, logger)

	handler := server.Routes(
		jsonRecoverer(logger),
		chiMiddleware.RequestID,
		wideEventMiddleware(logger),
		chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys),
		metrics.Middleware(),
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Periodic snapshot saver
	snapDone := make(chan struct{})
	if cfg.Snapshot.IntervalSec > 0 {
		go func() {
			t := time.NewTicker(time.Duration(cfg.Snapshot.IntervalSec) * time.Second)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					saveIndex(ctx, idx, snapStore, logger)
				case <-snapDone:
					return
				}
			}
		}()
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

	close(snapDone)
	saveIndex(shutdownCtx, idx, snapStore, logger)

	logger.Info("Server stopped gracefully")
}

// embedderGateway is the combined embedding surface the use cases consume.
type embedderGateway interface {
	domain.Embedder
	domain.BatchEmbedder
}

// buildEmbedder assembles the embedding chain: OpenAI-compatible gateway,
// wrapped in the Redis-backed cache when a store is available. The base
// provider is returned separately for health checks, which bypass the cache.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) (*openaiEmb.Embedder, embedderGateway) {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:            cfg.Embedding.APIKey,
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Dimensions:        cfg.Embedding.Dimensions,
		BatchSize:         cfg.Embedding.BatchSize,
		RequestsPerSecond: cfg.Embedding.RateLimitRPS,
		Provider:          cfg.Embedding.Provider,
		Logger:            logger,
	})

	if store == nil {
		return base, base
	}
	return base, embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
}

// snapshotStore abstracts where index snapshots live.
type snapshotStore interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// newSnapshotStore picks Redis when a database is configured, local disk
// otherwise.
func newSnapshotStore(cfg config.Config, store db.Store, logger *zap.Logger) snapshotStore {
	if store != nil {
		return snapshot.NewKVStore(store)
	}
	fs, err := snapshot.NewFileStore(cfg.Snapshot.Path)
	if err != nil {
		logger.Fatal("Failed to create snapshot store", zap.Error(err))
	}
	return fs
}

// restoreIndex loads the last snapshot if one exists. A missing snapshot is
// a cold start, not an error; a corrupt one is logged and skipped so the
// service still comes up empty.
func restoreIndex(ctx context.Context, idx *index.Index, snap snapshotStore, logger *zap.Logger) {
	data, err := snap.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("No index snapshot found, starting empty")
		return
	}
	if err != nil {
		logger.Warn("Failed to load index snapshot", zap.Error(err))
		return
	}
	if err := idx.Restore(data); err != nil {
		logger.Error("Failed to restore index snapshot", zap.Error(err))
		return
	}
	metrics.IndexEntries.Set(float64(idx.Len()))
	logger.Info("Index restored from snapshot", zap.Int("entries", idx.Len()))
}

func saveIndex(ctx context.Context, idx *index.Index, snap snapshotStore, logger *zap.Logger) {
	data, err := idx.Snapshot()
	if err != nil {
		logger.Error("Failed to serialize index snapshot", zap.Error(err))
		return
	}
	if err := snap.Save(ctx, data); err != nil {
		logger.Error("Failed to save index snapshot", zap.Error(err))
		return
	}
	logger.Debug("Index snapshot saved", zap.Int("entries", idx.Len()))
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
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

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
