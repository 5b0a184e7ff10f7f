package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"gitea.jw6.us/james/boardcal/internal/config"
	"gitea.jw6.us/james/boardcal/internal/engine"
	"gitea.jw6.us/james/boardcal/internal/gateway"
	"gitea.jw6.us/james/boardcal/internal/httpapi"
	"gitea.jw6.us/james/boardcal/internal/store"
)

func main() {
	log.Println("Starting BoardCal server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatalf("failed to create db pool: %v", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	stor := store.New(pool)

	colours, err := config.LoadStatusColours(cfg.StatusMapPath)
	if err != nil {
		log.Fatalf("failed to load status colour map: %v", err)
	}

	googleClient, err := googleHTTPClient(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to build google calendar client: %v", err)
	}
	calendarGW, err := gateway.NewGoogleCalendar(ctx, googleClient, cfg.GatewayTimeout)
	if err != nil {
		log.Fatalf("failed to initialize calendar gateway: %v", err)
	}
	boardGW := gateway.NewTrello(cfg.Trello.Key, cfg.Trello.Token, &http.Client{Timeout: cfg.GatewayTimeout})

	// Calendar push is best effort: without a channel the periodic pass
	// still repairs drift, just more slowly.
	calendarCallback := strings.TrimRight(cfg.BaseURL, "/") + "/webhooks/calendar"
	channel, err := calendarGW.Watch(ctx, "primary", calendarCallback)
	if err != nil {
		log.Printf("[WARN] calendar push channel not registered: %v", err)
	} else {
		log.Printf("calendar push channel %s registered until %s", channel.ID, channel.Expiration)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := calendarGW.StopWatch(stopCtx, channel.ID, channel.ResourceID); err != nil {
				log.Printf("[WARN] stopping calendar push channel: %v", err)
			}
		}()
	}

	lifecycle := engine.NewLifecycle(calendarGW, stor.Records, colours, boardGW, cfg.CallbackURL())
	reconciler := engine.NewReconciler(stor.Records, calendarGW, lifecycle, colours)
	notifications := engine.NewNotifications(stor.Records, reconciler)

	events := httpapi.NewEventsHandler(lifecycle)
	webhooks := httpapi.NewWebhooksHandler(notifications, cfg.Trello.WebhookSecret, cfg.CallbackURL())
	r := httpapi.NewRouter(cfg, stor, events, webhooks)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("reconciler running every %s", cfg.SyncInterval)
		if err := reconciler.Run(ctx, cfg.SyncInterval); err != nil && err != context.Canceled {
			log.Printf("reconciler stopped: %v", err)
		}
	}()

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

// googleHTTPClient builds an authenticated HTTP client from a previously
// obtained OAuth token on disk. Obtaining the token is an offline step (run
// the provider's consent flow once and save the JSON); the server only
// refreshes it.
func googleHTTPClient(ctx context.Context, cfg *config.Config) (*http.Client, error) {
	data, err := os.ReadFile(cfg.Google.TokenFile)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarScope},
	}
	return oauthCfg.Client(ctx, &token), nil
}
