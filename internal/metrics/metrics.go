// Package metrics exposes cargobot's Prometheus collectors.
//
// A nil *Collector is valid and records nothing, so components can be
// built without metrics in tests and tooling.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cargobot/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cargobot"

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeForbidden = "forbidden"
	OutcomeUnknown   = "unknown"
)

// Collector holds the bot's metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	reports         *prometheus.CounterVec
}

// New creates a collector with Go and process metrics registered.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Bot commands handled, by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	c.commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent handling a bot command",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"command"},
	)

	c.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outgoing notifications, by source (queue, broadcast) and result",
		},
		[]string{"source", "result"},
	)

	c.reports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "PDF reports generated, by result",
		},
		[]string{"result"},
	)

	c.registry.MustRegister(
		c.commands,
		c.commandDuration,
		c.notifications,
		c.reports,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the /metrics handler for this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordCommand counts one handled command and its duration.
func (c *Collector) RecordCommand(command, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.commands.WithLabelValues(command, outcome).Inc()
	c.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// RecordNotifications adds sent and failed deliveries for a source.
func (c *Collector) RecordNotifications(source string, sent, failed int) {
	if c == nil {
		return
	}
	if sent > 0 {
		c.notifications.WithLabelValues(source, "sent").Add(float64(sent))
	}
	if failed > 0 {
		c.notifications.WithLabelValues(source, "failed").Add(float64(failed))
	}
}

// RecordReport counts one report generation.
func (c *Collector) RecordReport(err error) {
	if c == nil {
		return
	}
	result := OutcomeOK
	if err != nil {
		result = OutcomeError
	}
	c.reports.WithLabelValues(result).Inc()
}

// Serve exposes /metrics and /healthz on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", addr, err)
	}
	return c.serve(ctx, ln)
}

func (c *Collector) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logging.Metrics("Serving metrics on %s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logging.MetricsError("Metrics server failed: %v", err)
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	<-errCh
	logging.Metrics("Metrics server stopped")
	return nil
}
