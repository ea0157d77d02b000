package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics tracks the order broadcast and reconciliation pipeline.
type SyncMetrics struct {
	broadcastEvents *prometheus.CounterVec
	staleDrops      prometheus.Counter
	printRetries    prometheus.Counter
	printDedupHits  prometheus.Counter
	printExhausted  prometheus.Counter
	reconnects      prometheus.Counter
}

// NewSyncMetrics registers the sync pipeline metrics on the provided
// registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	broadcastEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_events_total",
		Help: "Order broadcast events processed, by event type.",
	}, []string{"event_type"})
	staleDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconcile_stale_drops_total",
		Help: "Broadcast snapshots dropped because a newer seq was already applied.",
	})
	printRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "print_retries_total",
		Help: "Print jobs re-attempted from the retry queue.",
	})
	printDedupHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "print_dedup_hits_total",
		Help: "Print enqueues collapsed into an existing queued job.",
	})
	printExhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "print_exhausted_total",
		Help: "Print jobs dropped after exhausting their retry budget.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_reconnects_total",
		Help: "Broadcast channel reconnect attempts.",
	})
	reg.MustRegister(broadcastEvents, staleDrops, printRetries, printDedupHits, printExhausted, reconnects)
	return &SyncMetrics{
		broadcastEvents: broadcastEvents,
		staleDrops:      staleDrops,
		printRetries:    printRetries,
		printDedupHits:  printDedupHits,
		printExhausted:  printExhausted,
		reconnects:      reconnects,
	}
}

// IncBroadcastEvent counts a processed broadcast event.
func (m *SyncMetrics) IncBroadcastEvent(eventType string) {
	if m == nil || m.broadcastEvents == nil {
		return
	}
	m.broadcastEvents.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncStaleDrop counts a snapshot discarded by the reconciler.
func (m *SyncMetrics) IncStaleDrop() {
	if m == nil || m.staleDrops == nil {
		return
	}
	m.staleDrops.Inc()
}

// IncPrintRetry counts a print job retry attempt.
func (m *SyncMetrics) IncPrintRetry() {
	if m == nil || m.printRetries == nil {
		return
	}
	m.printRetries.Inc()
}

// IncPrintDedupHit counts an enqueue deduplicated against a queued job.
func (m *SyncMetrics) IncPrintDedupHit() {
	if m == nil || m.printDedupHits == nil {
		return
	}
	m.printDedupHits.Inc()
}

// IncPrintExhausted counts a job dropped after its final attempt.
func (m *SyncMetrics) IncPrintExhausted() {
	if m == nil || m.printExhausted == nil {
		return
	}
	m.printExhausted.Inc()
}

// IncReconnect counts a broadcast channel reconnect.
func (m *SyncMetrics) IncReconnect() {
	if m == nil || m.reconnects == nil {
		return
	}
	m.reconnects.Inc()
}
