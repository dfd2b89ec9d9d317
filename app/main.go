package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feeddigest/feeddigest/app/api"
	"github.com/feeddigest/feeddigest/app/cache"
	"github.com/feeddigest/feeddigest/app/cfg"
	"github.com/feeddigest/feeddigest/app/database"
	"github.com/feeddigest/feeddigest/app/feed"
	"github.com/feeddigest/feeddigest/app/parser"
	"github.com/feeddigest/feeddigest/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting FeedDigest server", "version", appCfg.Version)

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	defer db.Close()

	migrationVersion, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	slog.Info("Database ready", "migration_version", migrationVersion, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	entryRepo := database.NewEntryRepository(db)
	runLogRepo := database.NewRunLogRepository(db)

	vocabulary := appCfg.Keywords
	if len(vocabulary) == 0 {
		vocabulary = feed.DefaultVocabulary()
	}
	slog.Info("Keyword vocabulary loaded", "terms", len(vocabulary))
	extractor := feed.NewKeywordExtractor(vocabulary)

	httpClient := &http.Client{
		Timeout: time.Duration(appCfg.FetchTimeout) * time.Second,
	}
	ingestor := feed.NewIngestor(httpClient, parser.NewParser(), extractor,
		feedRepo, entryRepo, runLogRepo)

	var summaryCache cache.Interface
	if appCfg.RedisAddr != "" {
		redisCache, err := cache.New(appCfg.RedisAddr)
		if err != nil {
			slog.Warn("Redis unavailable, summary caching disabled", "error", err)
		} else {
			slog.Info("Connected to Redis", "addr", appCfg.RedisAddr)
			summaryCache = redisCache
			defer redisCache.Close()
		}
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(ingestor, feedRepo, entryRepo, runLogRepo)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(feedRepo, entryRepo, runLogRepo, scheduler, summaryCache)
	server := api.NewServer(handler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler and cache are stopped via defers
	slog.Info("Shutdown complete")
}
