package realtime

import (
	"log/slog"
	"sync"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/metrics"
)

// Hub owns the per-table channels and routes feed changes to them.
type Hub struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	tables map[string]*TableChannel
}

// NewHub constructs a Hub instance.
func NewHub(log *slog.Logger, m *metrics.Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:     log,
		metrics: m,
		tables:  make(map[string]*TableChannel),
	}
}

// Channel returns the stable channel handle for table.
func (h *Hub) Channel(table string) *TableChannel {
	h.mu.RLock()
	c, ok := h.tables[table]
	h.mu.RUnlock()
	if ok {
		return c
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.tables[table]; ok {
		return c
	}
	c = NewTableChannel(h.log, h.metrics, table)
	h.tables[table] = c
	return c
}

// Deliver broadcasts a change to the subscribers of its table.
func (h *Hub) Deliver(ch Change) {
	n := h.Channel(ch.Table).Broadcast(ch)
	h.log.Debug("realtime.change.delivered", "table", ch.Table, "type", ch.Type, "subscribers", n)
}
