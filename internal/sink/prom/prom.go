// Package prom exposes this process's metrics (latency-monitor gauges,
// PPP/combination health counters) over HTTP for Prometheus scraping,
// wiring the example pack's prometheus/client_golang dependency.
package prom

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Exporter counts per-stage pipeline events (decode/combine/filter) in
// addition to the latency monitor's own metrics, and serves them all at
// /metrics.
type Exporter struct {
	registry *prometheus.Registry
	server   *http.Server
	log      *logrus.Logger

	EpochsProcessed *prometheus.CounterVec
	OutliersRejected *prometheus.CounterVec
	FilterFailures  *prometheus.CounterVec
}

// New constructs an Exporter bound to addr (e.g. ":9100"); call Serve to
// start accepting scrape requests.
func New(addr string, log *logrus.Logger) *Exporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	reg := prometheus.NewRegistry()
	e := &Exporter{
		registry: reg,
		log:      log,
		EpochsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bncgo", Name: "epochs_processed_total", Help: "Epochs fully processed per component.",
		}, []string{"component"}),
		OutliersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bncgo", Name: "outliers_rejected_total", Help: "Observations rejected as outliers.",
		}, []string{"component"}),
		FilterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bncgo", Name: "filter_failures_total", Help: "Kalman update failures.",
		}, []string{"component"}),
	}
	reg.MustRegister(e.EpochsProcessed, e.OutliersRejected, e.FilterFailures)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	e.server = &http.Server{Addr: addr, Handler: mux}
	return e
}

// Registry exposes the underlying registry so other packages (e.g.
// internal/latency) can register their own collectors into the same
// exporter.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Serve starts the HTTP server; blocks until ctx is cancelled or the
// server errors.
func (e *Exporter) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- e.server.ListenAndServe() }()
	select {
	case <-ctx.Done():
		return e.server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
