// Package listener implements the push and pull ingestion strategies.
// Both strategies produce the same downstream shape: decoded
// BlockchainEvents enqueued on the dispatcher in (blockNumber,
// logIndex) order per contract.
package listener

import (
	"context"
	"strings"

	"chainindexer/services/decoder"
	"chainindexer/shared/store"
	"chainindexer/shared/types"

	"github.com/ethereum/go-ethereum/common"
)

// State is the listener's lifecycle state, exposed to the supervisor
// for status reporting.
type State string

const (
	StateStopped      State = "stopped"
	StateStarting     State = "starting"
	StateRunning      State = "running"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
	StateExhausted    State = "exhausted"
)

// Listener is a long-lived ingestion process for one chain under one
// strategy.
type Listener interface {
	ChainID() int64
	Strategy() types.Strategy
	Start(ctx context.Context) error
	Stop() error
	State() State
}

// contractSnapshot is one enabled contract with its precomputed
// topic-0 -> signature index, cached for the lifetime of a contract
// refresh interval.
type contractSnapshot struct {
	cfg types.ContractConfig
	idx map[common.Hash]string
}

func loadSnapshots(ctx context.Context, configs store.ConfigStore, chainID int64) ([]contractSnapshot, error) {
	contracts, err := configs.EnabledContracts(ctx, chainID)
	if err != nil {
		return nil, err
	}
	out := make([]contractSnapshot, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, contractSnapshot{cfg: c, idx: decoder.BuildIndex(c)})
	}
	return out, nil
}

func buildEvent(chainID int64, cfg types.ContractConfig, log decoder.RawLog, decoded *decoder.Decoded, timestampMs int64, gasUsed uint64, txStatus uint64) *types.BlockchainEvent {
	topics := make([]string, len(log.Topics))
	for i, t := range log.Topics {
		topics[i] = t.Hex()
	}

	return &types.BlockchainEvent{
		ChainID:         chainID,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        log.LogIndex,
		BlockNumber:     int64(log.BlockNumber),
		TimestampMs:     timestampMs,
		EventType:       "contract_log",
		ContractAddress: strings.ToLower(log.Address.Hex()),
		Data: types.EventData{
			Topics:           topics,
			RawData:          common.Bytes2Hex(log.Data),
			LogIndex:         log.LogIndex,
			TransactionIndex: log.TxIndex,
			GasUsed:          gasUsed,
			TxStatus:         txStatus,
			Contract: types.ContractSummary{
				Name:   cfg.Name,
				Symbol: cfg.Symbol,
				Type:   cfg.Type,
			},
			Event: types.DecodedEvent{
				Name:      decoded.Name,
				Signature: decoded.Signature,
				Args:      decoded.ArgsJSON,
			},
		},
	}
}
