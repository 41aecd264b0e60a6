// Package mq publishes dispatched BlockchainEvents to downstream
// analytics and alerting consumers. It is a publish-only concern for
// the ingestion core; Consume exists because MessageQueue plugins are
// bidirectional, but nothing in this module reads from a topic it
// writes.
package mq

import (
	"context"
)

// MessageQueue interface defines the methods for message queue operations
type MessageQueue interface {
	Publish(topic string, message interface{}) error
	Consume(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MessageHandler defines the function signature for handling messages
type MessageHandler func(message []byte) error
