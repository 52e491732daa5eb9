package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/rss-monitor/app/api"
	"github.com/lysyi3m/rss-monitor/app/cfg"
	"github.com/lysyi3m/rss-monitor/app/database"
	"github.com/lysyi3m/rss-monitor/app/delivery"
	"github.com/lysyi3m/rss-monitor/app/feed"
	"github.com/lysyi3m/rss-monitor/app/i18n"
	"github.com/lysyi3m/rss-monitor/app/locks"
	"github.com/lysyi3m/rss-monitor/app/monitor"
	"github.com/lysyi3m/rss-monitor/app/seeds"
)

func main() {
	// Load configuration from environment variables and command-line flags
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
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

	slog.Info("Starting RSS Monitor", "version", appCfg.Version)

	// Database connection and schema
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	subRepo := database.NewSubRepository(db)
	userRepo := database.NewUserRepository(db)

	// Seed feeds and subscriptions
	if appCfg.SeedsFile != "" {
		if err := seeds.NewLoader(appCfg.SeedsFile).Apply(feedRepo, subRepo, userRepo); err != nil {
			slog.Error("Failed to apply seeds", "file", appCfg.SeedsFile, "error", err)
			os.Exit(1)
		}
	}

	// Core components
	httpClient := &http.Client{Timeout: 60 * time.Second}

	feedParser := feed.NewParser()
	fetcher := feed.NewFetcher(httpClient, feedParser, appCfg.UserAgent)

	catalog, err := i18n.Load()
	if err != nil {
		slog.Error("Failed to load translations", "error", err)
		os.Exit(1)
	}

	floodLocks := locks.NewRegistry(rate.Limit(appCfg.FloodRate), appCfg.FloodBurst)

	var bot delivery.Transport
	if appCfg.WebhookURL != "" {
		bot = delivery.NewWebhookTransport(httpClient, appCfg.WebhookURL, appCfg.UserAgent)
	} else {
		slog.Warn("No webhook URL configured, deliveries will be logged only")
		bot = delivery.LogTransport{}
	}

	renderer := delivery.NewRenderer(httpClient, appCfg.UserAgent, appCfg.ExtractContent)
	notifier := delivery.NewNotifier(bot, renderer, subRepo, userRepo, feedRepo,
		floodLocks, catalog, appCfg.ErrorLoggingChat,
		time.Duration(appCfg.SendTimeout)*time.Second)

	// The tier-1 summary period tracks the task timeout (600 s by default).
	stat := monitor.NewStats(time.Duration(appCfg.MonitorTimeout) * time.Second)
	schedule := monitor.NewSchedule(appCfg.DefaultInterval)
	detector := monitor.NewDetector(fetcher, feedRepo, subRepo, notifier, floodLocks,
		schedule, stat, appCfg.DefaultInterval)
	mon := monitor.NewMonitor(feedRepo, detector, schedule, stat,
		appCfg.MinimalInterval, time.Duration(appCfg.MonitorTimeout)*time.Second, time.Minute)

	if err := mon.SyncSchedule(); err != nil {
		slog.Error("Failed to build feed schedule", "error", err)
		os.Exit(1)
	}

	mon.Start()
	defer mon.Stop()
	slog.Info("Monitor started", "minimal_interval", appCfg.MinimalInterval,
		"default_interval", appCfg.DefaultInterval, "timeout", appCfg.MonitorTimeout)

	// HTTP server
	apiHandler := api.NewHandler(feedRepo, subRepo, mon)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

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

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Monitor and database close via defers
	slog.Info("Shutdown complete")
}
