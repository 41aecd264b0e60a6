package handler

import (
	"fmt"

	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/mq"
	"chainindexer/shared/types"
)

// PublishHandler forwards every decoded event to a downstream
// analytics/alerting topic. It never blocks ingestion on a publish
// failure: errors are logged, counted and returned to the dispatcher,
// which swallows them. The dispatcher runs it concurrently with
// TransferHandler for the same event, so a publish failure has no
// effect on persistence, and an event can be published whether or not
// TransferHandler persists it.
type PublishHandler struct {
	queue  mq.MessageQueue
	topic  string
	log    logger.Logger
	metric *metrics.Metrics
}

// NewPublishHandler builds a handler that publishes to topic via
// queue. queue may be nil, in which case CanHandle always reports
// false and the handler is effectively disabled.
func NewPublishHandler(queue mq.MessageQueue, topic string, log logger.Logger, m *metrics.Metrics) *PublishHandler {
	return &PublishHandler{queue: queue, topic: topic, log: log, metric: m}
}

func (h *PublishHandler) Name() string { return "publish" }

func (h *PublishHandler) CanHandle(ev *types.BlockchainEvent) bool {
	return h.queue != nil
}

func (h *PublishHandler) Handle(ev *types.BlockchainEvent) error {
	if err := h.queue.Publish(h.topic, ev); err != nil {
		if h.log != nil {
			h.log.Warn("publish handler: chain=%d tx=%s: %v", ev.ChainID, ev.TransactionHash, err)
		}
		if h.metric != nil {
			h.metric.ErrorsTotal.WithLabelValues("publish_handler", "mq_publish_failed").Inc()
		}
		return fmt.Errorf("publish handler: %w", err)
	}
	return nil
}
