package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tillshift/internal/config"
	"tillshift/internal/infra"
	"tillshift/internal/repository"
	"tillshift/internal/router"
	"tillshift/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger. dev: pretty, prod: JSON
	if cfg.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Worker handlers are wired here (composition root) so the pool has
	// access to every infrastructure dependency.
	mailer := infra.NewMailer(cfg)
	dispatcher := worker.NewDispatcher(rdb)
	shiftRepo := repository.NewShiftRepository(db)

	workerHandlers := &worker.WorkerHandlers{
		ShiftReport: worker.NewShiftReportWorker(worker.ShiftReportWorkerConfig{
			Shifts:      shiftRepo,
			Tills:       repository.NewTillRepository(db),
			Operators:   repository.NewOperatorRepository(db),
			Mailer:      mailer,
			Recipient:   cfg.ReportRecipient,
			StoragePath: cfg.ReportStoragePath,
		}),
		Email: worker.NewEmailWorker(mailer),
	}
	workers := worker.StartWorkerPool(ctx, rdb, workerHandlers, cfg.WorkerPoolSize)

	worker.StartStaleMonitor(ctx, worker.StaleMonitorConfig{
		Shifts:    shiftRepo,
		Deduper:   worker.NewRedisAlertDeduper(rdb),
		Emails:    dispatcher,
		Recipient: cfg.ReportRecipient,
		Location:  cfg.Location(),
		StaleDays: cfg.StaleShiftDays,
	})

	salesCB := infra.NewCircuitBreaker(infra.DefaultCBConfig("sales"))
	r := router.New(ctx, cfg, db, rdb, salesCB)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("tillshift listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	cancel()
	workers.Wait()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = rdb.Close()
	log.Info().Msg("server exited")
}
