// Package dispatcher is the in-process event bus between listeners
// and handlers: an unbounded-by-default FIFO queue drained by a
// single cooperative worker, with per-event handler fan-out.
package dispatcher

import (
	"sync"

	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/types"
)

// Handler consumes decoded events the dispatcher drains. CanHandle is
// checked before Handle is invoked; handler errors are logged and
// swallowed, never stopping the queue.
type Handler interface {
	Name() string
	CanHandle(ev *types.BlockchainEvent) bool
	Handle(ev *types.BlockchainEvent) error
}

// Dispatcher serializes decoded events into the handler pipeline.
// Exactly one drain loop runs at a time: whichever call to
// DispatchEvent finds the worker idle becomes the drainer for as long
// as the queue stays non-empty; later, concurrent callers just append
// and return.
type Dispatcher struct {
	log     logger.Logger
	metrics *metrics.Metrics
	maxSize int

	mu       sync.Mutex
	queue    []*types.BlockchainEvent
	draining bool
	handlers []Handler
}

// New creates a Dispatcher. maxSize <= 0 means unbounded; otherwise
// the oldest queued event is dropped (logged at warn) when a new one
// arrives at capacity. See DESIGN.md's queue-bound open-question
// decision.
func New(log logger.Logger, m *metrics.Metrics, maxSize int) *Dispatcher {
	return &Dispatcher{log: log, metrics: m, maxSize: maxSize}
}

// RegisterHandler adds h to the pipeline. For each event, eligible
// handlers are started in registration order but run concurrently, so
// the order in which they execute or finish is not defined.
func (d *Dispatcher) RegisterHandler(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, h)
}

// HandlerCount reports the number of registered handlers.
func (d *Dispatcher) HandlerCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers)
}

// QueueSize reports the number of events currently queued
// (excluding one that may be actively draining).
func (d *Dispatcher) QueueSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// ClearQueue discards every queued event without draining it.
func (d *Dispatcher) ClearQueue() {
	d.mu.Lock()
	d.queue = nil
	d.mu.Unlock()
	if d.metrics != nil {
		d.metrics.DispatcherQueueSize.Set(0)
	}
}

// DispatchEvent enqueues ev. If no drain loop is active, the calling
// goroutine becomes the drainer and blocks until the queue empties.
func (d *Dispatcher) DispatchEvent(ev *types.BlockchainEvent) {
	d.mu.Lock()
	d.enqueueLocked(ev)

	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	d.mu.Unlock()

	d.drain()
}

func (d *Dispatcher) enqueueLocked(ev *types.BlockchainEvent) {
	if d.maxSize > 0 && len(d.queue) >= d.maxSize {
		dropped := d.queue[0]
		d.queue = d.queue[1:]
		if d.log != nil {
			d.log.Warn("dispatcher queue full, dropping oldest event chain=%d tx=%s logIndex=%d",
				dropped.ChainID, dropped.TransactionHash, dropped.LogIndex)
		}
		if d.metrics != nil {
			d.metrics.DispatcherDroppedTotal.Inc()
		}
	}
	d.queue = append(d.queue, ev)
	if d.metrics != nil {
		d.metrics.DispatcherQueueSize.Set(float64(len(d.queue)))
	}
}

func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.draining = false
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue = d.queue[1:]
		handlers := make([]Handler, len(d.handlers))
		copy(handlers, d.handlers)
		d.mu.Unlock()

		if d.metrics != nil {
			d.metrics.DispatcherQueueSize.Set(float64(d.QueueSize()))
		}

		d.runHandlers(ev, handlers)
	}
}

func (d *Dispatcher) runHandlers(ev *types.BlockchainEvent, handlers []Handler) {
	var wg sync.WaitGroup
	for _, h := range handlers {
		if !h.CanHandle(ev) {
			continue
		}
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.reportHandlerError(h.Name(), nil, r)
				}
			}()
			if err := h.Handle(ev); err != nil {
				d.reportHandlerError(h.Name(), err, nil)
			}
		}(h)
	}
	wg.Wait()
}

func (d *Dispatcher) reportHandlerError(name string, err error, panicVal interface{}) {
	if d.metrics != nil {
		d.metrics.HandlerErrorsTotal.WithLabelValues(name).Inc()
	}
	if d.log == nil {
		return
	}
	if panicVal != nil {
		d.log.Error("handler %s panicked: %v", name, panicVal)
		return
	}
	d.log.Error("handler %s returned error: %v", name, err)
}
