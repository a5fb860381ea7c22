package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"segment-relay/internal/media"
	"segment-relay/internal/platform/config"
	"segment-relay/internal/platform/logger"
	"segment-relay/internal/platform/metrics"
	"segment-relay/internal/relay"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	_ = config.Load()

	cfg, err := config.Parse()
	if err != nil {
		logger.New("info", "json").Error("config error", "error", err)
		return 1
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error("config error", "error", err)
		return 1
	}
	if err := cfg.CheckWatchDir(); err != nil {
		log.Error("cannot start", "error", err)
		return 1
	}
	if cfg.Destination == "" {
		log.Warn("RTMP_URL is not set; every forward attempt will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Destination != "" {
		if err := media.Reachable(ctx, cfg.Destination, cfg.PrecheckTimeoutDuration()); err != nil {
			log.Warn("ingest endpoint not reachable, continuing", "error", err)
		} else {
			log.Info("ingest endpoint reachable")
		}
	}

	met := metrics.New()
	mark := &relay.Watermark{}
	ledger := relay.NewLedger()
	catalog := relay.NewFSCatalog(cfg.WatchDir, cfg.SegmentPattern, cfg.MinFileAgeDuration(), log)

	pipeline := relay.NewPipeline(relay.PipelineConfig{
		Validator: media.NewFFprobeValidator(cfg.FFprobePath, cfg.ValidateTimeoutDuration()),
		Forwarder: media.NewFFmpegForwarder(cfg.FFmpegPath, cfg.ForwardTimeoutDuration()),
		Files:     catalog,
		Ledger:    ledger,
		Watermark: mark,
		Policy: relay.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			Cooldown:   cfg.RetryCooldownDuration(),
		},
		Destination: cfg.Destination,
		Log:         log,
		Metrics:     met,
	})

	var wake <-chan struct{}
	if cfg.WatchEvents {
		n, err := relay.NewNotifier(cfg.WatchDir, log)
		if err != nil {
			log.Warn("filesystem events unavailable, polling only", "error", err)
		} else {
			defer n.Close()
			go n.Run(ctx)
			wake = n.Wake()
		}
	}

	loop := relay.NewLoop(relay.LoopConfig{
		Catalog:   catalog,
		Files:     catalog,
		Pipeline:  pipeline,
		Watermark: mark,
		Ledger:    ledger,
		Policy: relay.SelectPolicy{
			RecentCutoff: cfg.RecentCutoffDuration(),
			HoldNewest:   cfg.HoldNewest,
		},
		Interval: cfg.CheckIntervalDuration(),
		Wake:     wake,
		Log:      log,
		Metrics:  met,
	})

	var srv *http.Server
	if cfg.StatusAddr != "" {
		srv = newStatusServer(cfg, log, met, mark, ledger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server error", "error", err)
			}
		}()
	}

	log.Info("relay starting",
		"watch_dir", cfg.WatchDir,
		"pattern", cfg.SegmentPattern,
		"min_file_age", cfg.MinFileAgeDuration(),
		"recent_cutoff", cfg.RecentCutoffDuration(),
		"max_retries", cfg.MaxRetries,
		"retry_cooldown", cfg.RetryCooldownDuration(),
		"status_addr", cfg.StatusAddr,
	)

	_ = loop.Run(ctx)

	log.Info("shutdown signal received")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", "error", err)
		}
	}

	log.Info("relay stopped")
	return 0
}

func newStatusServer(cfg config.Config, log *slog.Logger, met *metrics.Metrics, mark *relay.Watermark, ledger *relay.Ledger) *http.Server {
	h := relay.NewHandler(mark, ledger, cfg.WatchDir, cfg.Destination, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetLedgerEntries(ledger.Len())
			met.SetWatermark(mark.Last())
		}).ServeHTTP(w, r)
	})
	h.Routes(r)

	return &http.Server{Addr: cfg.StatusAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}
