package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robolink/robosock/internal/event"
	"github.com/robolink/robosock/internal/logging"
)

const namespace = "robosock"

// Collector turns socket and relay events into Prometheus metrics. Each
// Collector owns its registry, so several can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	// Binds counts successful constructions.
	// Labels: kind (fresh, reclaimed)
	Binds *prometheus.CounterVec
	// AlreadyOpen counts constructions refused because the file is owned.
	AlreadyOpen prometheus.Counter
	// Releases counts completed releases.
	// Labels: mode (cooperative, forced)
	Releases *prometheus.CounterVec
	// ReleaseFailures counts failed file removals during release.
	// Labels: mode (cooperative, forced)
	ReleaseFailures *prometheus.CounterVec
	// Inconsistencies counts registry invariant violations.
	Inconsistencies prometheus.Counter
	// Vanished counts socket files removed from under a live socket.
	Vanished prometheus.Counter
	// Datagrams counts datagrams received by the relay.
	Datagrams prometheus.Counter
	// DatagramBytes counts payload bytes received by the relay.
	DatagramBytes prometheus.Counter
	// LiveSockets is the number of bound, unreleased sockets.
	LiveSockets prometheus.Gauge

	mu   sync.Mutex
	bus  *event.Bus
	subs []string
}

// New creates a Collector with its metrics registered on a fresh registry
// alongside the Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		Binds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "binds_total",
			Help:      "Sockets bound, by whether a stale file was reclaimed",
		}, []string{"kind"}),
		AlreadyOpen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "already_open_total",
			Help:      "Socket constructions refused because a live socket owns the file",
		}),
		Releases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "releases_total",
			Help:      "Sockets released, by release mode",
		}, []string{"mode"}),
		ReleaseFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "release_failures_total",
			Help:      "Socket file removals that failed during release",
		}, []string{"mode"}),
		Inconsistencies: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registry_inconsistencies_total",
			Help:      "Socket registry invariant violations",
		}),
		Vanished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vanished_total",
			Help:      "Socket files removed or replaced while their socket was live",
		}),
		Datagrams: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_total",
			Help:      "Datagrams received by the relay",
		}),
		DatagramBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagram_bytes_total",
			Help:      "Payload bytes received by the relay",
		}),
		LiveSockets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sockets",
			Help:      "Bound sockets that have not been released",
		}),
	}
}

// Attach subscribes the collector to bus. Calling Attach again moves the
// subscription to the new bus.
func (c *Collector) Attach(bus *event.Bus) {
	c.Detach()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.bus = bus
	c.subs = []string{bus.SubscribeAll(c.observe)}
}

// Detach removes the collector's bus subscription.
func (c *Collector) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bus == nil {
		return
	}
	for _, id := range c.subs {
		c.bus.Unsubscribe(id)
	}
	c.bus, c.subs = nil, nil
}

func (c *Collector) observe(e event.Event) {
	switch e := e.(type) {
	case event.SocketBoundEvent:
		kind := "fresh"
		if e.Reclaimed {
			kind = "reclaimed"
		}
		c.Binds.WithLabelValues(kind).Inc()
		c.LiveSockets.Inc()
	case event.SocketAlreadyOpenEvent:
		c.AlreadyOpen.Inc()
	case event.SocketReleasedEvent:
		c.Releases.WithLabelValues(string(e.Mode)).Inc()
		c.LiveSockets.Dec()
	case event.SocketReleaseFailedEvent:
		c.ReleaseFailures.WithLabelValues(string(e.Mode)).Inc()
	case event.RegistryInconsistentEvent:
		c.Inconsistencies.Inc()
	case event.SocketVanishedEvent:
		c.Vanished.Inc()
	case event.DatagramEvent:
		c.Datagrams.Inc()
		c.DatagramBytes.Add(float64(e.Size))
	}
}

// RegistryState is the part of a socket registry the collector samples.
type RegistryState interface {
	Len() (int, error)
	Poisoned() bool
}

// WatchRegistry exports gauges sampled from reg at scrape time: the number
// of registered sockets and whether the registry is poisoned. It panics if
// called twice on the same Collector.
func (c *Collector) WatchRegistry(reg RegistryState) {
	factory := promauto.With(c.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "registry_entries",
		Help:      "Sockets currently held in the process registry",
	}, func() float64 {
		n, err := reg.Len()
		if err != nil {
			return 0
		}
		return float64(n)
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "registry_poisoned",
		Help:      "1 when a panic has poisoned the process registry",
	}, func() float64 {
		if reg.Poisoned() {
			return 1
		}
		return 0
	})
}

// Registry returns the registry the metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes Handler at /metrics on addr until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
