package analytics

import (
	"sync"

	"MarketRadar/internal/domain/models"
)

// MetricsHistory keeps the previous cycle's funding rate and open interest per symbol.
// It holds one slot per symbol, not a series.
type MetricsHistory struct {
	mu      sync.RWMutex
	funding map[string]float64
	oi      map[string]float64
}

func NewMetricsHistory() *MetricsHistory {
	return &MetricsHistory{
		funding: make(map[string]float64),
		oi:      make(map[string]float64),
	}
}

func (h *MetricsHistory) PreviousFunding(symbol string) (float64, bool) {
	if h == nil {
		return 0, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.funding[symbol]
	return v, ok
}

func (h *MetricsHistory) PreviousOpenInterest(symbol string) (float64, bool) {
	if h == nil {
		return 0, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.oi[symbol]
	return v, ok
}

// Update overwrites the slot of every symbol present in m.
func (h *MetricsHistory) Update(m models.SupplementaryMetrics) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sym, v := range m.Funding {
		h.funding[sym] = v
	}
	for sym, v := range m.OpenInterest {
		h.oi[sym] = v
	}
}

func (h *MetricsHistory) Reset() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.funding = make(map[string]float64)
	h.oi = make(map[string]float64)
	h.mu.Unlock()
}

// Len returns the number of symbols with any stored slot.
func (h *MetricsHistory) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{}, len(h.funding)+len(h.oi))
	for s := range h.funding {
		seen[s] = struct{}{}
	}
	for s := range h.oi {
		seen[s] = struct{}{}
	}
	return len(seen)
}
