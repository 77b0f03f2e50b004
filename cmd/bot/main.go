// atendebot - scripted WhatsApp sales assistant for an IPTV reseller.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rfarias/atendebot/internal/bot"
	"github.com/rfarias/atendebot/internal/config"
	"github.com/rfarias/atendebot/internal/fixtures"
	"github.com/rfarias/atendebot/internal/flow"
	"github.com/rfarias/atendebot/internal/health"
	"github.com/rfarias/atendebot/internal/store"
	"github.com/rfarias/atendebot/internal/supervisor"
	"github.com/rfarias/atendebot/internal/transport"
	"github.com/rfarias/atendebot/internal/trial"
	"github.com/rfarias/atendebot/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting atendebot", "port", cfg.Port)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Browser workers: one scraper with a short leash, everything else on
	// the default idle timer. Leftovers from a previous crash die first.
	worker.KillOrphans(ctx)
	pool := worker.NewPool(
		worker.NewRodLauncher(cfg.ChromiumPath),
		cfg.MaxWorkers,
		map[string]time.Duration{"scraper": cfg.ScraperIdleTTL},
		cfg.DefaultIdleTTL,
	)
	defer pool.Shutdown()

	fixturesSvc := fixtures.NewService(pool, cfg.FixturesURL)
	limiter := trial.NewLimiter(repo, cfg.TrialCooldown)
	issuer := trial.NewPanelIssuer(cfg.PanelURL, cfg.PanelTimeout)

	wa, err := transport.NewWhatsmeow(ctx, cfg.DeviceDB)
	if err != nil {
		slog.Error("Failed to initialize transport", "error", err)
		os.Exit(1)
	}

	state := supervisor.NewProcessState()

	// The engine asks the supervisor for restarts through this indirection.
	// sup is assigned before the transport starts, so no message handler can
	// observe it nil.
	var sup *supervisor.Supervisor
	requestRestart := func() {
		if sup != nil {
			sup.Restart(ctx, "admin")
		}
	}

	engine := flow.NewEngine(repo, limiter, issuer, fixturesSvc, state, flow.Config{
		SessionTimeout: cfg.SessionTimeout,
		MaxInvalid:     cfg.MaxInvalid,
		NonNumericCap:  cfg.NonNumericCap,
		AdminJID:       cfg.AdminJID,
		MediaDir:       cfg.MediaDir,
	}, requestRestart)

	if err := engine.Preload(ctx); err != nil {
		slog.Warn("Session preload failed, starting with empty state", "error", err)
	}

	dispatcher := bot.New(engine, wa, state, cfg.MediaDir)
	wa.OnMessage(dispatcher.HandleMessage)

	sup = supervisor.New(
		supervisor.Options{
			PollInterval:     cfg.Supervisor.PollInterval,
			SilenceFloor:     cfg.Supervisor.SilenceFloor,
			PendingThreshold: cfg.Supervisor.PendingThreshold,
			RestartCeiling:   cfg.Supervisor.RestartCeiling,
			SuspendCooldown:  cfg.Supervisor.SuspendCooldown,
			TeardownTimeout:  cfg.Supervisor.TeardownTimeout,
			PreventiveHour:   cfg.Supervisor.PreventiveHour,
		},
		state,
		wa,
		engine.FlushAll,
		engine.HumanParked,
		pool.CloseAll,
		worker.KillOrphans,
		func(reason string) {
			slog.Error("Exiting for process manager", "reason", reason)
			os.Exit(1)
		},
	)

	if err := wa.Start(ctx); err != nil {
		slog.Error("Failed to start transport", "error", err)
		os.Exit(1)
	}
	go sup.Run(ctx)

	// Periodic flush picks up records the write-through path failed on.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				engine.FlushAll(ctx)
			}
		}
	}()

	healthSrv := health.NewServer(repo, wa, state, pool)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      healthSrv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Health server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	engine.FlushAll(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Health server forced to shutdown", "error", err)
	}
	if err := wa.Shutdown(shutdownCtx); err != nil {
		slog.Error("Transport shutdown incomplete", "error", err)
	}

	slog.Info("Stopped")
}
