// Package main starts the budget engine HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/config"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/handler"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/middleware"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/notify"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/pricing"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/repository"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/service"
	"github.com/DigitalNexo/Asesoria-la-Llave-V2-sub002/internal/token"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	if cfg.BudgetsSecret == "" {
		sugar.Fatal("BUDGETS_SECRET is required")
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	cache := pricing.NewCache(repo, cfg.ParamCacheTTL)
	codec := token.NewCodec(cfg.BudgetsSecret)
	renderer := notify.NewRenderClient(cfg.RenderServiceAddress, logger)
	mailer := notify.NewMailClient(cfg.MailRelayAddress, logger)

	svc := service.NewService(repo, cache, codec, renderer, mailer, logger, service.Options{
		Series:         cfg.BudgetSeries,
		ValidDays:      cfg.BudgetValidDays,
		ReminderWindow: time.Duration(cfg.ReminderWindowDays) * 24 * time.Hour,
		FrontendURL:    cfg.FrontendURL,
		OfficeEmail:    cfg.OfficeEmail,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.StaffAuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		svc.StartSweeper(ctx, cfg.SweepInterval)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting budget engine", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
