// Command gatewayd runs the payment gateway as a standalone HTTP service:
// config.Load, pkg/gateway.NewApp, start background workers, serve until a
// shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackload-kz/payment-gateway/pkg/gateway"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (defaults baked in if empty)")
	flag.Parse()

	cfg, err := gateway.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("gatewayd: load config: %v", err)
	}

	app, err := gateway.NewApp(cfg)
	if err != nil {
		log.Fatalf("gatewayd: init app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.Start(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	go func() {
		log.Printf("gatewayd: listening on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gatewayd: serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("gatewayd: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("gatewayd: http shutdown error: %v", err)
	}
	if err := app.Close(); err != nil {
		log.Printf("gatewayd: resource cleanup error: %v", err)
	}

	os.Exit(0)
}
