package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"telemt-admin/internal/bot"
	"telemt-admin/internal/config"
	"telemt-admin/internal/jobs"
	"telemt-admin/internal/logger"
	"telemt-admin/internal/repository/sqlstore"
	"telemt-admin/internal/scheduler"
	"telemt-admin/internal/service"
	"telemt-admin/internal/telegram"
	"telemt-admin/internal/telemt"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "/etc/telemt-admin/config.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'reconcile', 'pending-digest', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting telemt-admin cronjob runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	store, err := sqlstore.Open(context.Background(), sqlstore.Config{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		URL:    cfg.Database.URL,
	})
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	registrationSvc := service.NewRegistrationService(store, nil)
	creds := telemt.NewConfigFile(cfg.Telemt.ConfigPath)

	// Admin notifications go through the Bot API without polling.
	var notifier jobs.Notifier
	if client, _, err := telegram.Connect(cfg.Bot.Token); err != nil {
		logger.Warn("Telegram unavailable, admin notifications disabled", "error", err)
	} else {
		h := bot.NewHandler(bot.Settings{AdminIDs: cfg.Bot.AdminIDs}, bot.Deps{Responder: client})
		notifier = jobs.NotifierFunc(func(ctx context.Context, text string) {
			h.NotifyAdmins(ctx, text, nil)
		})
	}

	jobRunner := jobs.NewJobRunner(registrationSvc, creds, notifier)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	cronScheduler := scheduler.NewScheduler(jobRunner, cfg.Scheduler)
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "reconcile":
		jobRunner.Reconcile()
	case "pending-digest":
		jobRunner.SendPendingDigest()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - reconcile\n")
		fmt.Printf("  - pending-digest\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
