// Package promhooks exports layercache hook events as Prometheus counters.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/layercache"
)

type Hooks struct {
	hits        *prometheus.CounterVec
	misses      prometheus.Counter
	populated   *prometheus.CounterVec
	populateErr *prometheus.CounterVec
	faults      *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	selfHeals   *prometheus.CounterVec
}

var _ layercache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg. namespace prefixes every metric name,
// e.g. "app" => app_layercache_hits_total.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layercache",
			Name:      name,
			Help:      help,
		}, labels)
	}
	h := &Hooks{
		hits: counterVec("hits_total", "Reads answered by a layer", "layer"),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "layercache",
			Name:      "misses_total",
			Help:      "Reads answered by no layer",
		}),
		populated:   counterVec("populated_total", "Values copied into a faster layer", "layer"),
		populateErr: counterVec("populate_failures_total", "Failed copies into a faster layer", "layer"),
		faults:      counterVec("layer_faults_total", "Provider errors absorbed by the cache", "layer", "op"),
		rejected:    counterVec("set_rejected_total", "Writes refused by a provider", "layer"),
		selfHeals:   counterVec("self_heals_total", "Undecodable entries dropped on read", "layer", "reason"),
	}
	for _, c := range []prometheus.Collector{h.hits, h.misses, h.populated, h.populateErr, h.faults, h.rejected, h.selfHeals} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) LayerHit(layer string, _ int)  { h.hits.WithLabelValues(layer).Inc() }
func (h *Hooks) Miss()                         { h.misses.Inc() }
func (h *Hooks) Populated(layer string, _ int) { h.populated.WithLabelValues(layer).Inc() }
func (h *Hooks) PopulateFailed(layer string, _ int, _ error) {
	h.populateErr.WithLabelValues(layer).Inc()
}
func (h *Hooks) LayerFault(layer, op string, _ error) { h.faults.WithLabelValues(layer, op).Inc() }
func (h *Hooks) SetRejected(layer, _ string)          { h.rejected.WithLabelValues(layer).Inc() }
func (h *Hooks) SelfHeal(layer, _, reason string)     { h.selfHeals.WithLabelValues(layer, reason).Inc() }
