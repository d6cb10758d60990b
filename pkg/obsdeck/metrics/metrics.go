// Package metrics exposes bridge activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MixyLabs/obsdeck/pkg/obsdeck/bridge"
)

const shutdownTimeout = 5 * time.Second

// Metrics holds the counters and gauges for one bridge
type Metrics struct {
	registry *prometheus.Registry

	commandsSubmitted *prometheus.CounterVec
	commandsDropped   *prometheus.CounterVec
	commandsFailed    *prometheus.CounterVec
	commandsExecuted  *prometheus.CounterVec
	snapshotsApplied  *prometheus.CounterVec
	sessionStatus     prometheus.Gauge
}

// New creates and registers the metrics on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		commandsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obsdeck_commands_submitted_total",
			Help: "Commands accepted by the command queue",
		}, []string{"command"}),
		commandsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obsdeck_commands_dropped_total",
			Help: "Commands that never reached OBS",
		}, []string{"reason"}),
		commandsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obsdeck_commands_failed_total",
			Help: "Commands OBS or the connection rejected",
		}, []string{"command"}),
		commandsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obsdeck_commands_executed_total",
			Help: "Commands the session driver carried out",
		}, []string{"command"}),
		snapshotsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "obsdeck_snapshots_applied_total",
			Help: "Inventory snapshots applied to the panel cache",
		}, []string{"kind"}),
		sessionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "obsdeck_session_status",
			Help: "Session lifecycle status: 0 disconnected, 1 connecting, 2 connected, 3 failed",
		}),
	}

	registry.MustRegister(
		m.commandsSubmitted,
		m.commandsDropped,
		m.commandsFailed,
		m.commandsExecuted,
		m.snapshotsApplied,
		m.sessionStatus,
	)

	return m
}

// IncSubmitted counts a command the consumer managed to enqueue
func (m *Metrics) IncSubmitted(cmd bridge.Command) {
	m.commandsSubmitted.WithLabelValues(bridge.CommandName(cmd)).Inc()
}

// IncQueueFull counts a command refused because the queue was full
func (m *Metrics) IncQueueFull() {
	m.commandsDropped.WithLabelValues("queue_full").Inc()
}

// SnapshotApplied counts a snapshot taken in by the consumer
func (m *Metrics) SnapshotApplied(kind bridge.InventoryKind) {
	m.snapshotsApplied.WithLabelValues(kind.String()).Inc()
}

// CommandExecuted implements bridge.Recorder
func (m *Metrics) CommandExecuted(cmd bridge.Command, err error) {
	name := bridge.CommandName(cmd)

	m.commandsExecuted.WithLabelValues(name).Inc()
	if err != nil {
		m.commandsFailed.WithLabelValues(name).Inc()
	}
}

// CommandDropped implements bridge.Recorder
func (m *Metrics) CommandDropped(_ bridge.Command, reason error) {
	m.commandsDropped.WithLabelValues(dropReason(reason)).Inc()
}

// StatusChanged implements bridge.Recorder
func (m *Metrics) StatusChanged(status bridge.Status) {
	m.sessionStatus.Set(float64(status))
}

func dropReason(reason error) string {
	switch {
	case errors.Is(reason, bridge.ErrNotConnected):
		return "not_connected"
	case errors.Is(reason, bridge.ErrAlreadyConnected):
		return "already_connected"
	case bridge.IsQueueFullError(reason):
		return "queue_full"
	default:
		return "other"
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Router mounts the metrics endpoint
func (m *Metrics) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/metrics", m.Handler().ServeHTTP)

	return r
}

// Serve listens on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, logger *zap.SugaredLogger, addr string) error {
	logger = logger.Named("metrics")

	srv := &http.Server{Addr: addr, Handler: m.Router()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Infow("Serving metrics", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Warnw("Metrics server stopped", "error", err)
		return err

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("Failed to shut down metrics server", "error", err)
		return err
	}

	logger.Debug("Metrics server stopped")

	return nil
}

var _ bridge.Recorder = (*Metrics)(nil)
