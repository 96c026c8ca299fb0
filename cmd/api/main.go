package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"accessdesk.org/internal/auth"
	"accessdesk.org/internal/catalog"
	"accessdesk.org/internal/config"
	"accessdesk.org/internal/httpapi"
	"accessdesk.org/internal/obs"
	"accessdesk.org/internal/request"
	"accessdesk.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.PGDSN == "" {
		log.Fatal("missing PostgreSQL DSN: set ACCESSDESK_PG_DSN")
	}
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		log.Fatal("missing token secrets: set ACCESSDESK_AUTH_ACCESS_SECRET and ACCESSDESK_AUTH_REFRESH_SECRET")
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	authSvc, err := auth.NewService(store.Users(),
		auth.WithSecrets(cfg.AccessSecret, cfg.RefreshSecret),
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	userSvc, err := auth.NewUserService(store.Users())
	if err != nil {
		log.Fatalf("user service: %v", err)
	}
	catalogSvc, err := catalog.NewService(store.Catalog())
	if err != nil {
		log.Fatalf("catalog service: %v", err)
	}
	requestSvc, err := request.NewService(store.Requests(), store.Users(), store.Catalog())
	if err != nil {
		log.Fatalf("request service: %v", err)
	}

	api := httpapi.New(authSvc, userSvc, catalogSvc, requestSvc,
		httpapi.ReadyProbe{DB: store.DB()}, version,
		httpapi.WithRateLimit(cfg.RateBurst, cfg.RatePerSec),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting accessdesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
