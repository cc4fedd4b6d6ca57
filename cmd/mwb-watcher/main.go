package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mwb/internal/assets"
	"mwb/internal/config"
	"mwb/internal/fetch"
	"mwb/internal/ingest"
	"mwb/internal/logging"
	"mwb/internal/observability/metrics"
	"mwb/internal/storage"
	"mwb/internal/watcher"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logging.New(cfg.LogLevel)
	m := metrics.NewExtractionMetrics(nil)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := assets.FromConfig(ctx, cfg, log)
	must(err)

	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	ingester := ingest.NewService(db, fetch.NewClient(cfg, log, m), store, cfg, log, m)
	svc := watcher.NewService(ingester, cfg, log)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
