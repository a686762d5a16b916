package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/comandaweb/terminal/internal/api"
	"github.com/comandaweb/terminal/internal/auth"
	"github.com/comandaweb/terminal/internal/cart"
	"github.com/comandaweb/terminal/internal/config"
	"github.com/comandaweb/terminal/internal/router"
	"github.com/comandaweb/terminal/internal/service"
	"github.com/comandaweb/terminal/internal/storage"
	"github.com/comandaweb/terminal/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	store, err := storage.Open(ctx, cfg.StoreDriver, cfg.StoreDSN)
	if err != nil {
		log.Fatalf("Unable to open local store: %v", err)
	}
	defer store.Close()

	client := api.New(cfg.APIBaseURL, cfg.RequestTimeout, nil)
	manager := auth.NewManager(store, client, cfg.MaxSession())
	client.SetTokenSource(manager)
	client.OnUnauthorized(manager.ForceLogout)

	if cfg.APIPrefix == config.PrefixAuto {
		prefix, err := client.Negotiate(ctx)
		if err != nil {
			log.Printf("WARNING: route prefix negotiation failed, using none: %v", err)
		} else {
			log.Printf("Backend route prefix: %q", prefix)
		}
	} else {
		client.SetPrefix(cfg.APIPrefix)
	}

	comanda, err := cart.Load(ctx, store)
	if err != nil {
		log.Fatalf("Unable to load comanda: %v", err)
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	orders := service.NewOrderService(client, manager, store, hub)
	if err := orders.Restore(ctx); err != nil {
		log.Printf("WARNING: restore selected order: %v", err)
	}

	go manager.Watch(ctx, cfg.SessionCheckInterval, cfg.SessionWarning,
		func(left time.Duration) {
			log.Printf("WARNING: session expires in %s", left.Round(time.Minute))
		},
		func() {
			log.Println("Session expired, screens will redirect to login")
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router.New(cfg, manager, client, orders, comanda, hub),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
	log.Println("Server stopped")
}
