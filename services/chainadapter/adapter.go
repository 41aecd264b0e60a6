// Package chainadapter wraps the per-chain RPC transport the
// listeners drive: connect/disconnect lifecycle, chain-id
// verification, and the raw log primitives push and pull listeners
// both need. Only EVM chains have a registered adapter; the registry
// stays open so a future chain family can add one without touching
// callers.
package chainadapter

import (
	"context"
	"fmt"
	"math/big"

	"chainindexer/shared/chainerr"
	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Adapter is the transport seam a listener drives. Connect must be
// called, and must succeed, before any other method is used.
type Adapter interface {
	ChainID() int64
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	LatestBlock(ctx context.Context) (uint64, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	BlockTime(ctx context.Context, blockNumber uint64) (int64, error)
}

// EVMAdapter is the only registered Adapter implementation: an
// ethclient.Client dialed against a ChainConfig's RPC URL, plus a
// second client dialed against StreamURL when configured. Log
// subscriptions ride the stream client rather than the RPC one, since
// a plain-HTTP RPCURL cannot carry eth_subscribe; FilterLogs/receipt
// calls stay on the RPC client.
type EVMAdapter struct {
	cfg    types.ChainConfig
	log    logger.Logger
	metric *metrics.Metrics

	client       *ethclient.Client
	streamClient *ethclient.Client
	connected    bool
}

// NewEVMAdapter builds an adapter for cfg. It does not dial until
// Connect is called.
func NewEVMAdapter(cfg types.ChainConfig, log logger.Logger, m *metrics.Metrics) *EVMAdapter {
	return &EVMAdapter{cfg: cfg, log: log, metric: m}
}

func (a *EVMAdapter) ChainID() int64 { return a.cfg.ChainID }

// Connect dials the chain's RPC endpoint and verifies the reported
// chain id matches the configured one, returning
// chainerr.ErrConfigMismatch on mismatch. The dialed client is
// discarded on mismatch; Connect is not left half-open. When
// cfg.StreamURL is set, a second client is dialed against it for
// subscriptions; if that dial fails the RPC client is closed and
// Connect fails outright rather than silently degrading to polling.
func (a *EVMAdapter) Connect(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, a.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("chainadapter: dial chain %d: %w", a.cfg.ChainID, err)
	}

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("chainadapter: fetch chain id for chain %d: %w", a.cfg.ChainID, err)
	}

	if remoteID.Int64() != a.cfg.ChainID {
		client.Close()
		return fmt.Errorf("chainadapter: configured chain id %d, node reports %d: %w", a.cfg.ChainID, remoteID.Int64(), chainerr.ErrConfigMismatch)
	}

	streamClient := client
	if a.cfg.StreamURL != "" {
		sc, err := ethclient.DialContext(ctx, a.cfg.StreamURL)
		if err != nil {
			client.Close()
			return fmt.Errorf("chainadapter: dial stream transport for chain %d: %w", a.cfg.ChainID, err)
		}
		streamClient = sc
	}

	a.client = client
	a.streamClient = streamClient
	a.connected = true
	if a.log != nil {
		a.log.Info("chainadapter: connected chain=%d name=%s rpc=%s stream=%s", a.cfg.ChainID, a.cfg.Name, a.cfg.RPCURL, a.cfg.StreamURL)
	}
	return nil
}

func (a *EVMAdapter) Disconnect() error {
	if a.streamClient != nil && a.streamClient != a.client {
		a.streamClient.Close()
	}
	if a.client != nil {
		a.client.Close()
	}
	a.client = nil
	a.streamClient = nil
	a.connected = false
	return nil
}

func (a *EVMAdapter) Connected() bool { return a.connected }

func (a *EVMAdapter) LatestBlock(ctx context.Context) (uint64, error) {
	if !a.connected {
		return 0, fmt.Errorf("chainadapter: chain %d not connected: %w", a.cfg.ChainID, chainerr.ErrTransportUnavailable)
	}
	n, err := a.client.BlockNumber(ctx)
	a.recordRPC("eth_blockNumber", err)
	return n, err
}

func (a *EVMAdapter) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error) {
	if !a.connected {
		return nil, fmt.Errorf("chainadapter: chain %d not connected: %w", a.cfg.ChainID, chainerr.ErrTransportUnavailable)
	}
	sub, err := a.streamClient.SubscribeFilterLogs(ctx, q, ch)
	a.recordRPC("eth_subscribe", err)
	return sub, err
}

func (a *EVMAdapter) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	if !a.connected {
		return nil, fmt.Errorf("chainadapter: chain %d not connected: %w", a.cfg.ChainID, chainerr.ErrTransportUnavailable)
	}
	logs, err := a.client.FilterLogs(ctx, q)
	a.recordRPC("eth_getLogs", err)
	return logs, err
}

// TransactionReceipt fetches the receipt for txHash. Pull listeners
// fetch one receipt per transaction rather than per log, so repeated
// logs from the same transaction within a batch should be
// deduplicated by the caller first.
func (a *EVMAdapter) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	if !a.connected {
		return nil, fmt.Errorf("chainadapter: chain %d not connected: %w", a.cfg.ChainID, chainerr.ErrTransportUnavailable)
	}
	receipt, err := a.client.TransactionReceipt(ctx, txHash)
	a.recordRPC("eth_getTransactionReceipt", err)
	return receipt, err
}

// BlockTime resolves the unix-seconds timestamp of blockNumber.
func (a *EVMAdapter) BlockTime(ctx context.Context, blockNumber uint64) (int64, error) {
	if !a.connected {
		return 0, fmt.Errorf("chainadapter: chain %d not connected: %w", a.cfg.ChainID, chainerr.ErrTransportUnavailable)
	}
	header, err := a.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	a.recordRPC("eth_getBlockByNumber", err)
	if err != nil {
		return 0, err
	}
	return int64(header.Time), nil
}

func (a *EVMAdapter) recordRPC(method string, err error) {
	if a.metric == nil {
		return
	}
	chain := fmt.Sprint(a.cfg.ChainID)
	a.metric.RPCCallsTotal.WithLabelValues(chain, method).Inc()
	if err != nil {
		a.metric.ErrorsTotal.WithLabelValues("chainadapter", "rpc_error").Inc()
	}
}

// Factory builds an Adapter for a chain config. Registered per
// types.ChainType.
type Factory func(cfg types.ChainConfig, log logger.Logger, m *metrics.Metrics) Adapter

var registry = map[types.ChainType]Factory{
	types.ChainTypeEVM: func(cfg types.ChainConfig, log logger.Logger, m *metrics.Metrics) Adapter {
		return NewEVMAdapter(cfg, log, m)
	},
}

// New resolves cfg.Type against the adapter registry. Only
// types.ChainTypeEVM has a registered factory; other chain types
// return an error rather than a stub adapter.
func New(cfg types.ChainConfig, log logger.Logger, m *metrics.Metrics) (Adapter, error) {
	factory, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("chainadapter: no adapter registered for chain type %q", cfg.Type)
	}
	return factory(cfg, log, m), nil
}
