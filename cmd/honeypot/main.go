package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/23016960-sys/honeypot/internal/bait"
	"github.com/23016960-sys/honeypot/internal/capture"
	"github.com/23016960-sys/honeypot/internal/config"
	"github.com/23016960-sys/honeypot/internal/logging"
	"github.com/23016960-sys/honeypot/internal/quarantine"
	"github.com/23016960-sys/honeypot/internal/sink"
)

func main() {
	cfg := config.Load()
	logging.Init("honeypot", cfg.LogLevel, cfg.LogPretty)

	primary, err := sink.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("primary sink init failed")
	}
	defer primary.Close()

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := primary.EnsureSchema(initCtx); err != nil {
		// Tolerated: the decoy serves from the fallback chain until the
		// datastore comes back.
		log.Warn().Err(err).Msg("events schema not ready; capture will fall back")
	}
	cancel()

	fileSink, err := sink.NewFile(cfg.LogFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.LogFile).Msg("fallback log open failed")
	}
	defer fileSink.Close()

	sinks := []sink.Sink{primary}
	if cfg.RedisAddr != "" {
		rs := sink.NewRedis(cfg.RedisAddr)
		defer rs.Close()
		sinks = append(sinks, rs)
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis stream sink enabled")
	}
	sinks = append(sinks, fileSink)
	chain := sink.NewChain(sinks...)

	store := quarantine.NewStore(cfg.QuarantineDir, fileSink)
	if err := store.Init(); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.QuarantineDir).Msg("quarantine init failed")
	}

	surface := bait.NewSurface(store, time.Duration(cfg.JitterMs)*time.Millisecond)
	pipeline := capture.NewPipeline(chain)
	handler := pipeline.Wrap(bait.BodyLimit(cfg.UploadMaxBytes, surface.Handler()))

	decoy := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	opsMux := http.NewServeMux()
	opsMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	opsMux.Handle("/metrics", promhttp.Handler())
	ops := &http.Server{
		Addr:              cfg.OpsAddr,
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.OpsAddr).Msg("ops listener up")
		if err := ops.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("ops listener stopped")
		}
	}()
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("decoy listening")
		if err := decoy.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("decoy server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = decoy.Shutdown(shutdownCtx)
	_ = ops.Close()
	log.Info().Msg("stopped")
}
