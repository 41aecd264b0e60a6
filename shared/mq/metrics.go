package mq

import (
	"sync"
	"time"
)

// pluginMetrics holds call counters for one MQ plugin.
type pluginMetrics struct {
	Name              string
	TotalRequests     int64
	TotalErrors       int64
	TotalSuccess      int64
	TotalResponseTime time.Duration
	LastError         string
	LastErrorTime     time.Time
	LastRequestTime   time.Time
}

// MetricsCollector aggregates publish/consume call outcomes per
// plugin; Snapshot returns a copy of the counters.
type MetricsCollector struct {
	mu      sync.Mutex
	plugins map[string]*pluginMetrics
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{plugins: make(map[string]*pluginMetrics)}
}

// RecordRequest records one publish/consume outcome for a plugin.
func (mc *MetricsCollector) RecordRequest(plugin string, duration time.Duration, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	pm, ok := mc.plugins[plugin]
	if !ok {
		pm = &pluginMetrics{Name: plugin}
		mc.plugins[plugin] = pm
	}

	pm.TotalRequests++
	pm.TotalResponseTime += duration
	pm.LastRequestTime = time.Now()

	if err != nil {
		pm.TotalErrors++
		pm.LastError = err.Error()
		pm.LastErrorTime = time.Now()
	} else {
		pm.TotalSuccess++
	}
}

// Snapshot returns a copy of the current per-plugin counters.
func (mc *MetricsCollector) Snapshot() map[string]pluginMetrics {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	out := make(map[string]pluginMetrics, len(mc.plugins))
	for name, pm := range mc.plugins {
		out[name] = *pm
	}
	return out
}
