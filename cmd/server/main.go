package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "telemt-admin/internal/api/http"
	"telemt-admin/internal/bot"
	"telemt-admin/internal/config"
	"telemt-admin/internal/jobs"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/repository/sqlstore"
	"telemt-admin/internal/scheduler"
	"telemt-admin/internal/service"
	"telemt-admin/internal/servicectl"
	"telemt-admin/internal/telegram"
	"telemt-admin/internal/telemt"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "/etc/telemt-admin/config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting telemt-admin...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Telemt configuration", "config_path", cfg.Telemt.ConfigPath, "service", cfg.Telemt.ServiceName)
	logger.Info("Database configuration", "driver", cfg.Database.Driver, "path", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		URL:    cfg.Database.URL,
	})
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()
	logger.Info("Database connection established")

	// Proxy integration
	creds := telemt.NewConfigFile(cfg.Telemt.ConfigPath)
	controller := servicectl.New(cfg.Telemt.ServiceName, servicectl.WithSystemctl(cfg.Telemt.SystemctlPath))

	// Initialize Services
	registrationSvc := service.NewRegistrationService(store, nil)
	inviteSvc := service.NewInviteService(store, service.TokenPolicy{
		MaxDays:          cfg.Security.MaxTokenDays,
		AllowAutoApprove: cfg.Security.AllowAutoApproveTokens,
	}, nil, nil)
	provisioningSvc := service.NewProvisioningService(store, creds, controller, nil, nil)
	accessSvc := service.NewAccessService(inviteSvc, registrationSvc, provisioningSvc)

	// Telegram
	client, botAPI, err := telegram.Connect(cfg.Bot.Token)
	if err != nil {
		logger.Error("Failed to connect to Telegram", "error", err)
		log.Fatalf("Failed to connect to Telegram: %v", err)
	}
	handler := bot.NewHandler(bot.Settings{
		AdminIDs:         cfg.Bot.AdminIDs,
		UsersPageSize:    cfg.Bot.UsersPageSize,
		DefaultTokenDays: cfg.Security.DefaultTokenDays,
		MaxTokenDays:     cfg.Security.MaxTokenDays,
		SupportContact:   cfg.Bot.SupportContact,
		BotUsername:      botAPI.Self.UserName,
	}, bot.Deps{
		Registration: registrationSvc,
		Invites:      inviteSvc,
		Provisioning: provisioningSvc,
		Access:       accessSvc,
		Waiting:      service.NewWaitingSet(),
		Controller:   controller,
		Responder:    client,
	})

	// Scheduled jobs
	notifier := jobs.NotifierFunc(func(ctx context.Context, text string) {
		handler.NotifyAdmins(ctx, text, nil)
	})
	cronScheduler := scheduler.NewScheduler(jobs.NewJobRunner(registrationSvc, creds, notifier), cfg.Scheduler)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// Optional status endpoint
	if cfg.HTTP.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           httpapi.NewRouter(httpapi.NewStatusHandler(store, registrationSvc)),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("HTTP status server listening", "address", cfg.HTTP.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP server shutdown failed", "error", err)
			}
		}()
	}

	logger.Info("Bot is running. Press Ctrl+C to stop.", "admins", len(cfg.Bot.AdminIDs))
	telegram.NewPoller(botAPI, handler).Run(ctx)
	logger.Info("Shutting down telemt-admin...")
}
