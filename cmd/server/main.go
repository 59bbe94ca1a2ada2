// Package main runs the lottery engine HTTP server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/time/rate"

	app "github.com/openlottery/gamemaster/internal/app"
	"github.com/openlottery/gamemaster/internal/app/domain/game"
	"github.com/openlottery/gamemaster/internal/app/httpapi"
	"github.com/openlottery/gamemaster/internal/app/metrics"
	"github.com/openlottery/gamemaster/internal/app/migrations"
	"github.com/openlottery/gamemaster/internal/app/storage/postgres"
	"github.com/openlottery/gamemaster/internal/config"
	"github.com/openlottery/gamemaster/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides GAMEMASTER_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("server").WithError(err).Error("configuration invalid")
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	log := logger.New("gamemaster", logger.Config{Level: cfg.LogLevel})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stores app.Stores
	if cfg.DatabaseDSN != "" {
		db, err := sqlx.Open("postgres", cfg.DatabaseDSN)
		if err != nil {
			log.WithError(err).Error("open database")
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.WithError(err).Error("ping database")
			os.Exit(1)
		}
		if err := migrations.Apply(ctx, db.DB); err != nil {
			log.WithError(err).Error("apply migrations")
			os.Exit(1)
		}
		store := postgres.New(db)
		stores = app.Stores{Games: store, Settings: store}
		log.Info("using postgres store")
	} else {
		log.Info("using in-memory store")
	}

	application, err := app.New(ctx, stores, app.Options{
		Admin:              game.Address(cfg.AdminAddress),
		Treasury:           game.Address(cfg.TreasuryAddress),
		TreasuryFeePercent: cfg.TreasuryFeePercent,
		EntropyInterval:    cfg.EntropyInterval,
	}, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	api := httpapi.WrapWithAuth(httpapi.NewHandler(application),
		cfg.AuthTokens, rate.Limit(cfg.RateLimit), cfg.RateBurst)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", api)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           metrics.InstrumentHandler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Infof("received %s, shutting down", sig)
	case err := <-errCh:
		log.WithError(err).Error("server stopped")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
}
