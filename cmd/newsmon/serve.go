package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pevans/newsmon"
	"github.com/pevans/newsmon/config"
)

const shutdownTimeout = 60 * time.Second

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	flags := addSourceFlags(fs)
	listen := fs.String("listen", "", "HTTP listen address (NEWSMON_LISTEN)")
	fs.Parse(args)

	cfg, err := flags.resolve(fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	c, err := buildComponents(cfg)
	if err != nil {
		log.Fatalf("Failed to set up monitor: %v", err)
	}

	log.Printf("Opening settings store: %s", cfg.Storage.Settings.DSN)
	settingsStore, err := config.NewSettingsStore(cfg.Storage.Settings.DSN, config.Settings{
		RefreshInterval: cfg.RefreshInterval,
		Enrich:          cfg.Enrich,
	})
	if err != nil {
		log.Fatalf("Failed to open settings store: %v", err)
	}
	defer settingsStore.Close()

	settings, err := settingsStore.GetSettings()
	if err != nil {
		log.Fatalf("Failed to read settings: %v", err)
	}

	monitor := newsmon.NewMonitor(c.source, c.aggregator, settings.Interval())
	c.aggregator.SetEnrich(settings.Enrich)

	settingsAPI := config.NewSettingsAPI(settingsStore, monitor.ApplySettings)
	server := newsmon.NewAPIServer(c.store, monitor, settingsAPI)
	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 2)
	go func() {
		log.Printf("API listening on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	go func() {
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-errChan:
		log.Printf("ERROR: %v", err)
	}

	log.Println("Shutting down gracefully...")
	cancel()
	monitor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP shutdown: %v", err)
	}
	log.Println("Service stopped")
}
