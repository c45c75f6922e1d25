package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/deusflow/bizfeed/internal/app"
	"github.com/deusflow/bizfeed/internal/config"
	"github.com/deusflow/bizfeed/internal/logger"
	"github.com/deusflow/bizfeed/internal/metrics"
)

var serveFlags struct {
	port     string
	keywords string
	limit    int
	interval time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline in the background and serve /health and /metrics",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.port, "port", "", "listen port (default: MONITORING_PORT or 8080)")
	f.StringVar(&serveFlags.keywords, "keywords", "", "comma-separated keywords (default: preset list)")
	f.IntVar(&serveFlags.limit, "limit", 0, "articles per keyword (default: pipeline.limitPerKeyword)")
	f.DurationVar(&serveFlags.interval, "interval", 0, "rerun the pipeline this often; 0 runs it once at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	port := serveFlags.port
	if port == "" {
		port = cfg.MonitoringPort
	}
	log := logger.Component("server")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newMux(a),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runLoop(ctx, a, log, config.SplitKeywords(serveFlags.keywords), serveFlags.limit, serveFlags.interval)
	}()

	log.Info("starting monitoring server", "port", port, "interval", serveFlags.interval)
	err = srv.ListenAndServe()
	stop()
	<-done
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// runLoop runs the pipeline once, then every interval until ctx ends.
// A non-positive interval stops after the first run.
func runLoop(ctx context.Context, a *app.App, log *slog.Logger, keywords []string, limit int, interval time.Duration) {
	for {
		res, err := a.Run(ctx, keywords, limit)
		if err != nil {
			log.Warn("pipeline run failed", "err", err)
		} else {
			log.Info("pipeline run done", "run", res.RunID, "articles", len(res.Articles), "failures", len(res.Failures))
		}
		if interval <= 0 {
			return
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func newMux(a *app.App) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(a))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

func healthHandler(a *app.App) http.HandlerFunc {
	cfg := a.Config()
	return func(w http.ResponseWriter, r *http.Request) {
		stats := metrics.Global.GetStats()

		status := "ok"
		code := http.StatusOK
		if healthy, _ := stats["is_healthy"].(bool); !healthy {
			status = "error"
			code = http.StatusServiceUnavailable
		}

		response := map[string]interface{}{
			"status":        status,
			"last_run":      stats["last_run_time"],
			"last_articles": stats["last_articles"],
			"last_failures": stats["last_failures"],
			"last_error":    stats["last_error"],
			"stats":         a.Stats(r.Context()),
			"env": map[string]string{
				"gemini_api_key": config.MaskSecret(cfg.Scorer.GeminiAPIKey),
				"cache_backend":  cfg.Cache.Backend,
				"timezone":       cfg.Location().String(),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(response)
	}
}
