// Package metric owns the process-wide Prometheus registry. Components
// register their collectors under a service name and the ws server exposes
// the result on /metrics.
package metric

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ErrDuplicate = errors.New("metric already registered")

// Registry wraps a private prometheus.Registry and remembers which service
// registered which metric.
type Registry struct {
	prom       *prometheus.Registry
	mu         sync.RWMutex
	registered map[string]prometheus.Collector
}

// NewRegistry creates a registry with the Go runtime and process collectors
// already installed.
func NewRegistry() *Registry {
	r := &Registry{
		prom:       prometheus.NewRegistry(),
		registered: make(map[string]prometheus.Collector),
	}
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Register adds c under service.name. Registering the same key twice, or a
// collector prometheus considers a duplicate, fails with ErrDuplicate.
func (r *Registry) Register(service, name string, c prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := service + "." + name
	if _, ok := r.registered[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, key)
	}
	if err := r.prom.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return fmt.Errorf("%w: %s: %v", ErrDuplicate, key, err)
		}
		return fmt.Errorf("register %s: %w", key, err)
	}
	r.registered[key] = c
	return nil
}

// Unregister removes service.name and reports whether it was present.
func (r *Registry) Unregister(service, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := service + "." + name
	c, ok := r.registered[key]
	if !ok {
		return false
	}
	delete(r.registered, key)
	return r.prom.Unregister(c)
}

func (r *Registry) Prometheus() *prometheus.Registry {
	return r.prom
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}
