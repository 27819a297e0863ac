package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Manager owns the lifecycle of tracing and metrics: construct from
// config, expose Tracer()/Metrics(), and tear both down with a single
// Shutdown.
type Manager struct {
	tracer  *Tracer
	metrics *Metrics
}

// NewManager builds a Manager from cfg. A nil cfg yields a disabled
// Manager whose Tracer/Metrics accessors return nil.
func NewManager(ctx context.Context, cfg *Config) (*Manager, error) {
	if cfg == nil {
		return &Manager{}, nil
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("observability: invalid config: %w", err)
	}

	tracer, err := NewTracer(ctx, &cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("observability: initializing tracer: %w", err)
	}
	slog.Info("observability: tracer ready", "enabled", cfg.Tracing.Enabled, "exporter", cfg.Tracing.Exporter)

	metrics, err := NewMetrics(&cfg.Metrics)
	if err != nil {
		_ = tracer.Shutdown(ctx)
		return nil, fmt.Errorf("observability: initializing metrics: %w", err)
	}
	slog.Info("observability: metrics ready", "enabled", cfg.Metrics.Enabled, "endpoint", cfg.Metrics.Endpoint)

	return &Manager{tracer: tracer, metrics: metrics}, nil
}

func (m *Manager) Tracer() *Tracer {
	if m == nil {
		return nil
	}
	return m.tracer
}

func (m *Manager) Metrics() *Metrics {
	if m == nil {
		return nil
	}
	return m.metrics
}

// MetricsHandler exposes the Prometheus scrape endpoint regardless of
// whether metrics are enabled (it reports 503 when disabled).
func (m *Manager) MetricsHandler() http.Handler {
	if m == nil {
		return (*Metrics)(nil).Handler()
	}
	return m.metrics.Handler()
}

func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil || m.tracer == nil {
		return nil
	}
	if err := m.tracer.Shutdown(ctx); err != nil {
		return fmt.Errorf("observability: tracer shutdown: %w", err)
	}
	return nil
}
