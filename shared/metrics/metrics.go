// Package metrics exposes the prometheus instrumentation surface for
// listeners, the dispatcher, and handlers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every prometheus collector the ingestion core
// publishes. It is constructed once at process startup and passed by
// reference into every component that reports.
type Metrics struct {
	EventsDecodedTotal   *prometheus.CounterVec // chain, event
	DecodeFailuresTotal  *prometheus.CounterVec // chain
	TransfersTotal       *prometheus.CounterVec // chain
	LargeTransfersTotal  *prometheus.CounterVec // chain
	MintsTotal           *prometheus.CounterVec // chain
	BurnsTotal           *prometheus.CounterVec // chain
	DuplicateEventsTotal *prometheus.CounterVec // chain

	ListenerReconnectsTotal *prometheus.CounterVec // chain
	ListenerStateGauge      *prometheus.GaugeVec   // chain, state (1 if current)
	ChainLatestBlock        *prometheus.GaugeVec   // chain
	ChainCursor             *prometheus.GaugeVec   // chain

	DispatcherQueueSize    prometheus.Gauge
	DispatcherDroppedTotal prometheus.Counter
	HandlerErrorsTotal     *prometheus.CounterVec // handler

	RPCCallsTotal *prometheus.CounterVec // chain, method
	ErrorsTotal   *prometheus.CounterVec // component, error_type
}

// New creates and registers every collector.
func New() *Metrics {
	return &Metrics{
		EventsDecodedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_events_decoded_total",
			Help: "Total number of logs successfully decoded",
		}, []string{"chain", "event"}),
		DecodeFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_decode_failures_total",
			Help: "Total number of logs dropped due to decode failure",
		}, []string{"chain"}),
		TransfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_transfers_total",
			Help: "Total number of Transfer events handled",
		}, []string{"chain"}),
		LargeTransfersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_large_transfers_total",
			Help: "Total number of Transfer events flagged as large",
		}, []string{"chain"}),
		MintsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_mints_total",
			Help: "Total number of mint transfers (from zero address)",
		}, []string{"chain"}),
		BurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_burns_total",
			Help: "Total number of burn transfers (to zero address)",
		}, []string{"chain"}),
		DuplicateEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_duplicate_events_total",
			Help: "Total number of event-store inserts skipped as duplicates",
		}, []string{"chain"}),

		ListenerReconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_listener_reconnects_total",
			Help: "Total number of push listener reconnect attempts",
		}, []string{"chain"}),
		ListenerStateGauge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainindexer_listener_state",
			Help: "Current listener state (1 for the active state, 0 otherwise)",
		}, []string{"chain", "state"}),
		ChainLatestBlock: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainindexer_chain_latest_block",
			Help: "Latest block number observed for a chain",
		}, []string{"chain"}),
		ChainCursor: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chainindexer_chain_cursor",
			Help: "Pull listener cursor (last fully drained block) for a chain",
		}, []string{"chain"}),

		DispatcherQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chainindexer_dispatcher_queue_size",
			Help: "Current number of events waiting in the dispatcher queue",
		}),
		DispatcherDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainindexer_dispatcher_dropped_total",
			Help: "Total number of events dropped because the dispatcher queue was full",
		}),
		HandlerErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_handler_errors_total",
			Help: "Total number of handler invocations that returned an error",
		}, []string{"handler"}),

		RPCCallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_rpc_calls_total",
			Help: "Total number of upstream RPC calls issued",
		}, []string{"chain", "method"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainindexer_errors_total",
			Help: "Total number of errors by component and kind",
		}, []string{"component", "error_type"}),
	}
}
