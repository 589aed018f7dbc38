package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
	ResultPanic  = "panic"
)

// ScanObserver captures telemetry for the due-scan loop.
type ScanObserver interface {
	RecordScan(duration time.Duration, due int, err error)
	RecordDelivery(result string)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) RecordScan(time.Duration, int, error) {}
func (Nop) RecordDelivery(string)                {}

// PrometheusObserver exports scan metrics to Prometheus.
type PrometheusObserver struct {
	scanDuration prometheus.Histogram
	scanErrors   prometheus.Counter
	dueReminders prometheus.Gauge
	deliveries   *prometheus.CounterVec
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "reminders"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of one due-scan pass.",
			Buckets:   prometheus.DefBuckets,
		}),
		scanErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Scan passes that could not fetch due reminders.",
		}),
		dueReminders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "due_reminders",
			Help:      "Due reminders found by the last scan pass.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Reminder delivery attempts by result.",
		}, []string{"result"}),
	}
	collectors := []prometheus.Collector{o.scanDuration, o.scanErrors, o.dueReminders, o.deliveries}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register scan metric: %w", err)
		}
	}
	return o, nil
}

func (o *PrometheusObserver) RecordScan(duration time.Duration, due int, err error) {
	o.scanDuration.Observe(duration.Seconds())
	if err != nil {
		o.scanErrors.Inc()
		return
	}
	o.dueReminders.Set(float64(due))
}

func (o *PrometheusObserver) RecordDelivery(result string) {
	o.deliveries.WithLabelValues(result).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
