package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliamunaev/projection-pipeline/internal/app"
	"github.com/iliamunaev/projection-pipeline/internal/config"
	"github.com/iliamunaev/projection-pipeline/internal/middleware"
	httptransport "github.com/iliamunaev/projection-pipeline/internal/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default configs/config.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run loads configuration, wires the engine and serves the local API until
// SIGINT or SIGTERM.
//
// WriteTimeout is derived from the evaluation timeout so a submit or compare
// that runs to the remote bound can still be answered.
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	a := app.New(cfg, log)
	defer a.Engine.Close()
	a.Engine.SetRenderer(app.RendererFunc(func(s app.Snapshot) {
		log.Debug("state changed", "step", s.Step, "busy", s.Busy, "pending", s.Pending)
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if v := a.Engine.FetchVersion(ctx); v != "" {
		log.Info("projection service reachable", "version", v)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newMux(a, log),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      a.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "service", cfg.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return a.Engine.Drain(shutdownCtx)
}

func newMux(a *app.App, log *slog.Logger) *http.ServeMux {
	api := http.NewServeMux()
	httptransport.New(a.Engine).Routes(api)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", a.Metrics.Handler())
	mux.Handle("/", middleware.Logging(log)(api))
	return mux
}
