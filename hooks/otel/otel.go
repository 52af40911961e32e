// Package otelhooks records layercache hook events as OpenTelemetry counters.
package otelhooks

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/layercache"
)

const meterName = "github.com/unkn0wn-root/layercache"

type Hooks struct {
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	populated   metric.Int64Counter
	populateErr metric.Int64Counter
	faults      metric.Int64Counter
	rejected    metric.Int64Counter
	selfHeals   metric.Int64Counter
}

var _ layercache.Hooks = (*Hooks)(nil)

// New creates the instruments on mp, or on the global provider when mp is nil.
func New(mp metric.MeterProvider) (*Hooks, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	h := &Hooks{}
	var err error

	for _, in := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&h.hits, "layercache.hits", "Reads answered by a layer"},
		{&h.misses, "layercache.misses", "Reads answered by no layer"},
		{&h.populated, "layercache.populated", "Values copied into a faster layer"},
		{&h.populateErr, "layercache.populate_failures", "Failed copies into a faster layer"},
		{&h.faults, "layercache.layer_faults", "Provider errors absorbed by the cache"},
		{&h.rejected, "layercache.set_rejected", "Writes refused by a provider"},
		{&h.selfHeals, "layercache.self_heals", "Undecodable entries dropped on read"},
	} {
		*in.dst, err = meter.Int64Counter(in.name, metric.WithDescription(in.desc))
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Hooks carry no context; measurements use Background.
func add(c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func layerAttr(l string) attribute.KeyValue { return attribute.String("layer", l) }

func (h *Hooks) LayerHit(layer string, _ int)  { add(h.hits, layerAttr(layer)) }
func (h *Hooks) Miss()                         { add(h.misses) }
func (h *Hooks) Populated(layer string, _ int) { add(h.populated, layerAttr(layer)) }
func (h *Hooks) PopulateFailed(layer string, _ int, _ error) {
	add(h.populateErr, layerAttr(layer))
}
func (h *Hooks) LayerFault(layer, op string, _ error) {
	add(h.faults, layerAttr(layer), attribute.String("op", op))
}
func (h *Hooks) SetRejected(layer, _ string) { add(h.rejected, layerAttr(layer)) }
func (h *Hooks) SelfHeal(layer, _, reason string) {
	add(h.selfHeals, layerAttr(layer), attribute.String("reason", reason))
}
