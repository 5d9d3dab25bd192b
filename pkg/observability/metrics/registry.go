// Package metrics provides Prometheus metrics for repository operations.
package metrics

import (
	"net/http"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps a private prometheus.Registry.
type Registry struct {
	registry *prometheus.Registry
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*prometheus.Registry)

// WithRuntimeCollectors adds the Go runtime and process collectors, for
// registries that are scraped.
func WithRuntimeCollectors() RegistryOption {
	return func(reg *prometheus.Registry) {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	reg := prometheus.NewRegistry()
	for _, opt := range opts {
		opt(reg)
	}
	return &Registry{registry: reg}
}

func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.registry.MustRegister(collectors...)
}

func (r *Registry) Unregister(collector prometheus.Collector) bool {
	return r.registry.Unregister(collector)
}

// Handler exposes the registry in the Prometheus text or OpenMetrics format.
//
//	http.Handle("/metrics", registry.Handler())
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// CounterSample is one series of a counter family.
type CounterSample struct {
	Labels map[string]string
	Value  float64
}

// Counters gathers the series of the counter family name, ordered by their
// label values. An unknown name yields no samples.
func (r *Registry) Counters(name string) ([]CounterSample, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}
	var samples []CounterSample
	var keys []string
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			s := CounterSample{Labels: make(map[string]string, len(m.GetLabel())), Value: m.GetCounter().GetValue()}
			key := ""
			for _, label := range m.GetLabel() {
				s.Labels[label.GetName()] = label.GetValue()
				key += label.GetValue() + "\xff"
			}
			samples = append(samples, s)
			keys = append(keys, key)
		}
	}
	sort.Sort(byKey{samples, keys})
	return samples, nil
}

type byKey struct {
	samples []CounterSample
	keys    []string
}

func (b byKey) Len() int           { return len(b.samples) }
func (b byKey) Less(i, j int) bool { return b.keys[i] < b.keys[j] }
func (b byKey) Swap(i, j int) {
	b.samples[i], b.samples[j] = b.samples[j], b.samples[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
