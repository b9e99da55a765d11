package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kah-digital/agency-backend/config"
	"github.com/kah-digital/agency-backend/internal/bootstrap"
	"github.com/kah-digital/agency-backend/internal/leads/repository"
	"github.com/kah-digital/agency-backend/internal/mailer"
	"github.com/kah-digital/agency-backend/internal/notify"
	"github.com/kah-digital/agency-backend/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: cfg.Database.DSN()})
	if err != nil {
		log.Fatalf("[main] postgres: %v", err)
	}
	defer pool.Close()

	sqlDB, err := bootstrap.OpenSQL(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("[main] postgres (sql): %v", err)
	}
	defer sqlDB.Close()

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("[main] redis: %v", err)
	}
	defer rdb.Close()

	limiter := ratelimit.New()

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		Cfg:     cfg,
		DB:      pool,
		SQLDB:   sqlDB,
		Redis:   rdb,
		Limiter: limiter,
	})

	digest := notify.NewDigest(
		repository.NewPostgresStore(pool),
		mailer.New(cfg.Mail.ResendAPIKey, cfg.Mail.FromAddress),
		cfg.Mail.NotifyTo,
	)
	jobs := bootstrap.StartCron(limiter, digest)
	defer jobs.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[main] serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}
