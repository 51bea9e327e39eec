package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mqrelay"

// Relay holds the relay node's counters, backed by a dedicated registry so
// tests can run multiple instances without collisions.
type Relay struct {
	registry *prometheus.Registry

	Received    prometheus.Counter
	Relayed     prometheus.Counter
	Failed      prometheus.Counter
	Retried     prometheus.Counter
	Dropped     prometheus.Counter
	BreakerOpen prometheus.Counter
	Elections   prometheus.Counter
}

// NewRelay builds the relay counter set on a fresh registry.
func NewRelay() *Relay {
	r := &Relay{registry: prometheus.NewRegistry()}

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		r.registry.MustRegister(c)
		return c
	}

	r.Received = counter("messages_received_total", "Inbound messages consumed from the ingress topic.")
	r.Relayed = counter("messages_relayed_total", "Messages delivered to the egress topic.")
	r.Failed = counter("messages_failed_total", "Messages whose delivery or processing failed.")
	r.Retried = counter("messages_retried_total", "Messages re-delivered from the retry buffer.")
	r.Dropped = counter("messages_dropped_total", "Messages dropped by pipeline failures or buffer overflow.")
	r.BreakerOpen = counter("breaker_open_total", "Times the admission controller opened.")
	r.Elections = counter("elections_total", "Leader elections triggered on this node.")

	return r
}

// Handler exposes the registry via an http.Handler.
func (r *Relay) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Relay) Registry() *prometheus.Registry {
	return r.registry
}

// HandlerFor exposes an arbitrary registry via an http.Handler.
func HandlerFor(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Serve runs an HTTP listener exposing the handler at path until ctx is
// cancelled. Listen errors other than shutdown are returned.
func Serve(ctx context.Context, port int, path string, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("metrics listener: %w", err)
	}
}
