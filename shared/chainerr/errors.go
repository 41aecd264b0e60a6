// Package chainerr defines the sentinel errors the ingestion core
// uses to classify failures across adapters, listeners, the
// dispatcher, and handlers.
package chainerr

import "errors"

var (
	// ErrConfigMismatch is returned when an adapter's advertised chain
	// id does not match its configured chainId. Fatal for the chain;
	// never retried automatically.
	ErrConfigMismatch = errors.New("chainindexer: chain id mismatch")

	// ErrTransportUnavailable is returned when an operation needs the
	// request/response transport and none is connected.
	ErrTransportUnavailable = errors.New("chainindexer: transport unavailable")

	// ErrStrategyUnavailable is returned by the supervisor's
	// buildListener when asked for a strategy it cannot build a
	// listener for.
	ErrStrategyUnavailable = errors.New("chainindexer: strategy unavailable")

	// ErrTransientRPC wraps network/timeout/5xx class failures that are
	// retryable.
	ErrTransientRPC = errors.New("chainindexer: transient rpc error")

	// ErrDecodeFailed is returned when ABI decoding of a raw log fails.
	ErrDecodeFailed = errors.New("chainindexer: decode failed")

	// ErrDuplicateEvent is returned by the event store when a
	// (chainId, txHash, logIndex) unique-key violation occurs.
	ErrDuplicateEvent = errors.New("chainindexer: duplicate event")

	// ErrHandlerError wraps a panic or error raised from inside a
	// registered handler.
	ErrHandlerError = errors.New("chainindexer: handler error")

	// ErrExhausted is returned when a push listener's reconnect budget
	// is consumed.
	ErrExhausted = errors.New("chainindexer: reconnect attempts exhausted")
)
