// Package sloghooks logs layercache hook events to a log/slog logger.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/layercache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery      uint64
	MissEvery     uint64
	PopulateEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr      atomic.Uint64
	missCtr     atomic.Uint64
	populateCtr atomic.Uint64
}

var _ layercache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) LayerHit(layer string, index int) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("layercache.hit", "layer", layer, "index", index)
}

func (h *Hooks) Miss() {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("layercache.miss")
}

func (h *Hooks) Populated(layer string, index int) {
	if h.l == nil || !sample(h.opts.PopulateEvery, &h.populateCtr) {
		return
	}
	h.l.Debug("layercache.populated", "layer", layer, "index", index)
}

func (h *Hooks) PopulateFailed(layer string, index int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("layercache.populate_failed", "layer", layer, "index", index, "err", err)
}

func (h *Hooks) LayerFault(layer, op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("layercache.layer_fault", "layer", layer, "op", op, "err", err)
}

func (h *Hooks) SetRejected(layer, storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("layercache.set_rejected", "layer", layer, "key", h.redact(storageKey))
}

func (h *Hooks) SelfHeal(layer, storageKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("layercache.self_heal",
		"layer", layer,
		"key", h.redact(storageKey),
		"reason", reason)
}
