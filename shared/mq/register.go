package mq

import (
	"fmt"
)

func init() {
	// Kafka is the only backend cmd/indexer ever wires a
	// MultiProtocolMQ to (the publish handler's downstream
	// analytics/alerting topic); no second registered plugin would ever
	// be reachable, so this registry is intentionally single-entry.
	if err := GlobalPluginRegistry.RegisterPlugin("kafka", NewKafkaPlugin()); err != nil {
		fmt.Printf("Warning: failed to register Kafka plugin: %v\n", err)
	}
}
