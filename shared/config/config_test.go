package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 5000, cfg.ScanIntervalMs)
	assert.Equal(t, 50, cfg.BlocksPerScan)
	assert.Equal(t, 3, cfg.ContractBatchSize)
	assert.Equal(t, 500, cfg.ContractBatchDelayMs)
	assert.Equal(t, 2, cfg.EventBatchSize)
	assert.Equal(t, 300, cfg.EventBatchDelayMs)
	assert.Equal(t, 5, cfg.BlockBatchSize)
	assert.Equal(t, 200, cfg.BlockBatchDelayMs)
	assert.Equal(t, 5, cfg.WebsocketReconnectAttempts)
	assert.Equal(t, 30, cfg.ContractRefreshInterval)
	assert.Equal(t, 30, cfg.ShutdownGraceSeconds)
	assert.Equal(t, 100000, cfg.DispatcherMaxQueue)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	os.Setenv("SCAN_INTERVAL_MS", "1000")
	os.Setenv("BLOCKS_PER_SCAN", "10")
	os.Setenv("PORT", "9090")
	os.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	defer func() {
		os.Unsetenv("SCAN_INTERVAL_MS")
		os.Unsetenv("BLOCKS_PER_SCAN")
		os.Unsetenv("PORT")
		os.Unsetenv("KAFKA_BROKERS")
	}()

	cfg := Load()
	assert.Equal(t, 1000, cfg.ScanIntervalMs)
	assert.Equal(t, 10, cfg.BlocksPerScan)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
}

func TestChainRPCURLOverride(t *testing.T) {
	os.Setenv("ETH_RPC_URL", "https://eth.example.com")
	defer os.Unsetenv("ETH_RPC_URL")

	assert.Equal(t, "https://eth.example.com", ChainRPCURL("eth"))
	assert.Equal(t, "", ChainRPCURL("bsc"))
}
