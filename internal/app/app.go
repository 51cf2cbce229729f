// internal/app/app.go
package app

import (
	"log/slog"
	"time"

	"github.com/iliamunaev/projection-pipeline/internal/compare"
	"github.com/iliamunaev/projection-pipeline/internal/config"
	"github.com/iliamunaev/projection-pipeline/internal/observability"
	"github.com/iliamunaev/projection-pipeline/internal/service/projection"
)

type App struct {
	Engine         *Engine
	Client         *projection.Client
	Metrics        *observability.Metrics
	RequestTimeout time.Duration
}

// New wires the engine for cfg.
func New(cfg config.Config, log *slog.Logger) *App {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = projection.DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	metrics := observability.NewMetrics("projection")
	client := projection.NewClient(cfg.BaseURL,
		projection.WithTimeout(cfg.RequestTimeout),
		projection.WithHealthTimeout(cfg.HealthTimeout),
		projection.WithLogger(log.With("component", "projection-client")),
		projection.WithMetrics(metrics),
	)
	cmp := compare.New(client,
		compare.WithLogger(log.With("component", "compare")),
		compare.WithMetrics(metrics),
	)

	return &App{
		Engine: NewEngine(Options{
			Evaluator:     client,
			Versions:      client,
			Compare:       cmp,
			DebounceDelay: cfg.DebounceDelay,
			Logger:        log.With("component", "engine"),
			Metrics:       metrics,
		}),
		Client:         client,
		Metrics:        metrics,
		RequestTimeout: cfg.RequestTimeout,
	}
}
