package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbase/kbase/internal/auth"
	"github.com/kbase/kbase/internal/cache"
	"github.com/kbase/kbase/internal/config"
	"github.com/kbase/kbase/internal/embedder"
	"github.com/kbase/kbase/internal/repository/postgres"
	"github.com/kbase/kbase/internal/search"
	"github.com/kbase/kbase/internal/server"
	"github.com/kbase/kbase/internal/service"
	"github.com/kbase/kbase/internal/vectorstore"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting knowledge-base service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL")

	fileRepo := postgres.NewFileRecordRepo(db)
	userRepo := postgres.NewUserRepo(db)

	// Initialize Qdrant vector index
	index, err := vectorstore.NewQdrantIndex(ctx, cfg.QdrantGRPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer index.Close()
	slog.Info("connected to Qdrant")

	// Initialize the embedding provider
	embed, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	slog.Info("initialized embedder",
		"provider", cfg.EmbeddingProvider,
		"model", embed.ModelName(),
		"dimension", embed.Dimension(),
	)

	// Initialize the result cache
	store, redisStore, err := newCacheStore(cfg)
	if err != nil {
		return err
	}
	if redisStore != nil {
		defer redisStore.Close()
	}

	// Initialize services
	searchSvc, err := search.NewService(search.Config{
		Embedder: embed,
		Index:    index,
		Cache:    store,
		CacheTTL: cfg.CacheTTL,
		Timeout:  cfg.SearchTimeout,
		Logger:   slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create search service: %w", err)
	}
	documentSvc := service.NewDocumentService(fileRepo, embed, index, slog.Default())

	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
		Issuer: "kbase",
	})

	// Create HTTP server
	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		Search:         searchSvc,
		Documents:      documentSvc,
		Users:          userRepo,
		Auth:           jwtManager,
		Ready: func(ctx context.Context) error {
			if err := db.Pool.Ping(ctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			if redisStore != nil {
				if err := redisStore.Ping(ctx); err != nil {
					return fmt.Errorf("redis: %w", err)
				}
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	// Start server
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return nil
}

// newEmbedder selects the embedding provider from configuration.
func newEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		return embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
			APIKey:    cfg.EmbeddingAPIKey,
			BaseURL:   cfg.EmbeddingBaseURL,
			Model:     cfg.EmbeddingModel,
			Dimension: cfg.EmbeddingDimension,
		}), nil
	case "ollama":
		return embedder.NewOllamaEmbedder(embedder.OllamaConfig{
			BaseURL:   cfg.OllamaURL,
			Model:     cfg.OllamaModel,
			Dimension: cfg.EmbeddingDimension,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

// newCacheStore selects Redis when an address is configured, falling
// back to the bounded in-process store.
func newCacheStore(cfg *config.Config) (cache.Store, *cache.Redis, error) {
	if cfg.RedisAddr == "" {
		slog.Info("using in-process result cache", "max_entries", cfg.CacheMaxEntries)
		return cache.NewMemory(cfg.CacheMaxEntries), nil, nil
	}

	redisStore, err := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	slog.Info("using redis result cache", "addr", cfg.RedisAddr)
	return redisStore, redisStore, nil
}
