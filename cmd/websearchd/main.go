package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"websearch-mcp/internal/api"
	"websearch-mcp/internal/app"
	"websearch-mcp/internal/config"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "Path to gateway configuration file")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	gateway, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialise gateway: %v", err)
	}
	defer gateway.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := gateway.Logger
	server := api.NewServer(gateway.Service)
	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("gateway listening",
		"addr", *addr,
		"provider", cfg.Search.Provider,
		"cache_enabled", cfg.Cache.Enabled,
		"fetch_enabled", cfg.Fetch.Enabled,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("gateway stopped")
}
