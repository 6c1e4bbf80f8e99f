package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nithindas-k/lazydraft/internal/ai"
	"github.com/nithindas-k/lazydraft/internal/api"
	"github.com/nithindas-k/lazydraft/internal/auth"
	"github.com/nithindas-k/lazydraft/internal/db"
	"github.com/nithindas-k/lazydraft/internal/engine"
	"github.com/nithindas-k/lazydraft/internal/mailer"
	"github.com/nithindas-k/lazydraft/internal/metrics"
	"github.com/nithindas-k/lazydraft/internal/ratelimit"
	"github.com/nithindas-k/lazydraft/internal/repository"
	"github.com/nithindas-k/lazydraft/internal/scheduler"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("starting lazydraft", "version", version)

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	users := repository.NewUserRepository(database.DB)
	sessions := repository.NewSessionRepository(database.DB)
	messages := repository.NewMessageRepository(database.DB)
	templates := repository.NewTemplateRepository(database.DB)
	recurring := repository.NewRecurringRepository(database.DB)

	var sender mailer.Sender
	switch cfg.Gmail.Transport {
	case "smtp":
		sender = mailer.NewGmailSMTPSender(cfg.Auth.Google.ClientID, cfg.Auth.Google.ClientSecret, cfg.Gmail.Timeout, logger)
	default:
		sender = mailer.NewGmailAPISender(cfg.Auth.Google.ClientID, cfg.Auth.Google.ClientSecret, cfg.Gmail.Timeout, logger)
	}

	var limiter engine.SendLimiter
	if cfg.RateLimit.Enabled {
		path := cfg.RateLimit.Path
		if path == "" {
			path = filepath.Join(filepath.Dir(cfg.Database.Path), "ratelimit.db")
		}
		rl, err := ratelimit.New(path, cfg.RateLimit.MessagesPerHour, cfg.RateLimit.MessagesPerDay, logger)
		if err != nil {
			return fmt.Errorf("failed to open rate limiter: %w", err)
		}
		defer rl.Close()
		limiter = rl
	}

	m := metrics.New()

	eng := engine.New(engine.Config{
		Messages:    messages,
		Recurring:   recurring,
		Credentials: users,
		Sender:      sender,
		Limiter:     limiter,
		Metrics:     m,
		Logger:      logger,
		PublicURL:   cfg.Server.PublicURL,
		BatchSize:   cfg.Scheduler.BatchSize,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	google, err := auth.NewGoogleProvider(ctx, &cfg.Auth.Google)
	if err != nil {
		return fmt.Errorf("failed to initialize google sign-in: %w", err)
	}

	aiClient := ai.New(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Timeout, logger)

	sched := scheduler.New(eng, cfg.Scheduler.Interval, logger)
	sched.Start(ctx)
	defer sched.Stop()

	go cleanupSessions(ctx, sessions, logger)

	server := api.NewServer(cfg, logger, api.Deps{
		Engine:    eng,
		AI:        aiClient,
		Google:    google,
		Users:     users,
		Sessions:  sessions,
		Messages:  messages,
		Templates: templates,
		Recurring: recurring,
		Metrics:   m,
	})
	return server.Run(ctx)
}
