package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/adamsch0100/leadsynergy-sub002/internal/auth"
	"github.com/adamsch0100/leadsynergy-sub002/internal/compliance"
	"github.com/adamsch0100/leadsynergy-sub002/internal/contacts"
	"github.com/adamsch0100/leadsynergy-sub002/internal/conversation"
	"github.com/adamsch0100/leadsynergy-sub002/internal/delivery"
	smtpadapter "github.com/adamsch0100/leadsynergy-sub002/internal/delivery/adapters/smtp"
	twilioadapter "github.com/adamsch0100/leadsynergy-sub002/internal/delivery/adapters/twilio"
	"github.com/adamsch0100/leadsynergy-sub002/internal/escalation"
	"github.com/adamsch0100/leadsynergy-sub002/internal/executor"
	"github.com/adamsch0100/leadsynergy-sub002/internal/handlers"
	"github.com/adamsch0100/leadsynergy-sub002/internal/objection"
	"github.com/adamsch0100/leadsynergy-sub002/internal/router"
	"github.com/adamsch0100/leadsynergy-sub002/internal/scanner"
	"github.com/adamsch0100/leadsynergy-sub002/internal/schedule"
	"github.com/adamsch0100/leadsynergy-sub002/internal/sequence"
	"github.com/adamsch0100/leadsynergy-sub002/internal/settings"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := settings.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	consentStore := compliance.NewPGStore(pool)
	contactStore := contacts.NewPGStore(pool)
	conversationStore := conversation.NewPGStore(pool)
	sequenceStore := sequence.NewPGStore(pool)
	taskStore := escalation.NewPGStore(pool)

	gate := compliance.NewGate(logger, consentStore, compliance.Config{
		AllowedHourStart: cfg.AllowedHourStart,
		AllowedHourEnd:   cfg.AllowedHourEnd,
		DailyMessageCap:  cfg.DailyMessageCap,
		DefaultTimezone:  cfg.DefaultTimezone,
		ExcludedStages:   cfg.ExcludedStages,
	})
	consentService := compliance.NewService(logger, consentStore, cfg.DefaultTimezone)

	scripts, err := objection.LoadScriptsFile(cfg.ScriptsPath)
	if err != nil {
		return err
	}
	selector := objection.NewSelector(logger, conversationStore, scripts)

	scan := scanner.New(logger, contactStore, conversationStore, sequenceStore, gate, scanner.Config{
		BatchSize:    cfg.ScanBatchSize,
		RunCeiling:   cfg.RunCeiling,
		SilentAfter:  cfg.SilentAfter,
		DormantAfter: cfg.DormantAfter,
		RevivalAfter: cfg.RevivalAfter,
		HandoffStale: cfg.HandoffStale,
	})

	dispatcher := delivery.NewDispatcher(logger)
	if cfg.TwilioAccountSID != "" {
		adapter, err := twilioadapter.NewAdapter(twilioadapter.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
		})
		if err != nil {
			return err
		}
		dispatcher.RegisterAdapter(adapter)
	}
	if cfg.SMTPHost != "" {
		adapter, err := smtpadapter.NewAdapter(smtpadapter.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			return err
		}
		dispatcher.RegisterAdapter(adapter)
	}

	exec := executor.New(logger, scan, contactStore, contactStore, sequenceStore, taskStore, dispatcher, gate, consentService)
	processor := router.NewInboundProcessor(logger, consentService, selector, sequenceStore)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(auth.JWTMiddleware(cfg.JWTSecret, func(c echo.Context) bool {
		path := c.Path()
		return path == "/healthz" || strings.HasPrefix(path, "/webhooks/")
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	handlers.NewRunsHandler(exec).Register(e)
	handlers.NewComplianceHandler(gate, consentService, contactStore).Register(e)
	handlers.NewObjectionHandler(selector).Register(e)
	handlers.NewWebhookHandler(processor, cfg.WebhookSecret).Register(e)

	runner := schedule.NewRunner(logger, contactStore, exec, cfg.ScanInterval, cfg.ScanBatchSize)
	go runner.Start(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- e.Start(cfg.HTTPAddr)
	}()
	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
