package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := parseFlags()
	if err != nil {
		log.WithError(err).Fatal("❌ Invalid configuration")
	}
	setupLogging(cfg)

	srv := server.New(server.Options{Config: cfg})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("❌ Failed to start server")
		}
	case <-ctx.Done():
		log.Info("🛑 Received shutdown signal...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error during shutdown")
		os.Exit(1)
	}
}

// parseFlags loads the configuration and applies command line overrides
func parseFlags() (*config.Config, error) {
	path := flag.String("config", "", "Config file (default: ./arrayserver.yaml or /etc/arrayserver)")
	port := flag.String("port", "", "HTTP port")
	workers := flag.Int("workers", 0, "Number of batch workers")
	webhookURL := flag.String("webhook", "", "Webhook URL for batch results")
	profile := flag.Bool("profile", false, "Enable pprof profiling")
	quiet := flag.Bool("quiet", false, "Suppress per-request logging")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *workers > 0 {
		cfg.WorkerCount = *workers
	}
	if *webhookURL != "" {
		cfg.WebhookURL = *webhookURL
	}
	if *profile {
		cfg.EnableProfiling = true
	}
	if *quiet {
		cfg.Quiet = true
	}
	return cfg, cfg.Validate()
}

func setupLogging(cfg *config.Config) {
	if cfg.LogJSON {
		log.SetFormatter(&log.JSONFormatter{})
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
