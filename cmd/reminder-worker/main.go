package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/unifyp/fyp-api/internal/repository"
	"github.com/unifyp/fyp-api/internal/service"
	"github.com/unifyp/fyp-api/pkg/config"
	"github.com/unifyp/fyp-api/pkg/database"
	"github.com/unifyp/fyp-api/pkg/logger"
	"github.com/unifyp/fyp-api/pkg/mailer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	log, err := logger.New(cfg)
	if err != nil {
		panic(fmt.Sprintf("init logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	if !cfg.Reminders.Enabled {
		log.Info("reminders disabled, exiting")
		return
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	var mail mailer.Mailer
	if cfg.Mail.SendgridAPIKey != "" {
		mail = mailer.NewSendgrid(cfg.Mail.SendgridAPIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	} else {
		log.Warn("no sendgrid key configured, logging reminders instead of sending")
		mail = mailer.NewLogMailer(log)
	}

	submissionRepo := repository.NewSubmissionRepository(db)
	reminders := service.NewReminderService(submissionRepo, mail, log, service.ReminderServiceConfig{
		PollInterval: cfg.Reminders.PollInterval,
		ResendAfter:  cfg.Reminders.ResendAfter,
		Workers:      cfg.Reminders.WorkerConcurrency,
		MaxRetries:   cfg.Reminders.WorkerRetries,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("starting reminder worker",
		zap.Duration("poll_interval", cfg.Reminders.PollInterval),
		zap.Duration("resend_after", cfg.Reminders.ResendAfter),
	)

	if err := reminders.Run(ctx); err != nil && err != context.Canceled {
		log.Fatal("reminder worker stopped", zap.Error(err))
	}
}
