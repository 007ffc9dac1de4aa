package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lysyi3m/tourney-comb/app/api"
	"github.com/lysyi3m/tourney-comb/app/cfg"
	"github.com/lysyi3m/tourney-comb/app/database"
	"github.com/lysyi3m/tourney-comb/app/forum"
	"github.com/lysyi3m/tourney-comb/app/lookup"
	"github.com/lysyi3m/tourney-comb/app/tasks"
	"github.com/lysyi3m/tourney-comb/app/tournament"
)

// Usernames are cached for a day.
const lookupCacheTTL = 24 * time.Hour

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	if err := setupLogging(appCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	if err := run(appCfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(appCfg *cfg.Cfg) error {
	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	if appCfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(appCfg.LogFile), 0o750); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   appCfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
		})
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting Tourney Comb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	configCache := forum.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load source configurations: %w", err)
	}
	slog.Info("Source configurations loaded", "dir", appCfg.SourcesDir, "count", configCache.GetConfigCount())

	httpClient := &http.Client{Timeout: 60 * time.Second}
	clock := clockwork.NewRealClock()

	tokens := forum.NewTokenSource(httpClient, appCfg.ForumBaseURL, appCfg.ForumClientID,
		appCfg.ForumClientSecret, appCfg.UserAgent, clock)

	sources := map[forum.SourceKind]forum.Source{
		forum.SourceKindFeed: forum.NewFeedSource(httpClient, appCfg.UserAgent),
	}

	var hostLookup tournament.HostLookup
	if tokens.Configured() {
		sources[forum.SourceKindAPI] = forum.NewAPISource(httpClient, tokens, appCfg.UserAgent)

		client := lookup.NewClient(httpClient, tokens, lookup.Options{
			BaseURL:    appCfg.ForumBaseURL,
			UserAgent:  appCfg.UserAgent,
			Delay:      appCfg.LookupDelay,
			MaxRetries: appCfg.LookupMaxRetries,
			Timeout:    appCfg.LookupTimeout,
		})
		hostLookup = lookup.NewCache(client, lookupCacheTTL, clock)
	} else {
		slog.Warn("Forum API credentials not set, api sources and host lookups are disabled")
	}

	parser := tournament.NewParser(hostLookup, clock)

	sourceRepo := database.NewSourceRepository(db)
	topicRepo := database.NewTopicRepository(db)
	tournamentRepo := database.NewTournamentRepository(db)

	deps := &tasks.Deps{
		SourceRepo:       sourceRepo,
		TopicRepo:        topicRepo,
		TournamentRepo:   tournamentRepo,
		Sources:          sources,
		Filterer:         forum.NewFilterer(),
		Parser:           parser,
		ContentExtractor: forum.NewContentExtractor(),
		HTTPClient:       httpClient,
		UserAgent:        appCfg.UserAgent,
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(configCache, deps, time.Duration(appCfg.SchedulerInterval)*time.Second, appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	generator := api.NewGenerator(appCfg.BaseUrl, appCfg.Port, appCfg.Version)
	handler := api.NewHandler(configCache, sourceRepo, topicRepo, tournamentRepo, parser, generator, scheduler)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey, appCfg.Version),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	return runErr
}
