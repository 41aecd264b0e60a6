// Package store defines the config store and event store the
// ingestion core reads from and writes to. The core treats both as
// external collaborators, so this package's interfaces are the seam a
// caller can satisfy with a fake in tests.
package store

import (
	"context"

	"chainindexer/shared/types"
)

// ConfigStore exposes the two read-mostly collections the core
// consults: chain_configs and contract_configs. Both are written by
// operator tooling and seeders; the core only reads.
type ConfigStore interface {
	EnabledChains(ctx context.Context) ([]types.ChainConfig, error)
	ChainByID(ctx context.Context, chainID int64) (*types.ChainConfig, error)
	EnabledContracts(ctx context.Context, chainID int64) ([]types.ContractConfig, error)
	ContractByAddress(ctx context.Context, chainID int64, address string) (*types.ContractConfig, error)
}

// ConfigAdmin is the write side of the contract/chain configuration
// the operator HTTP surface exposes. It is kept separate from
// ConfigStore because the ingestion core itself only ever reads
// config; only operator tooling writes it.
type ConfigAdmin interface {
	ContractsBySymbol(ctx context.Context, symbol string) ([]types.ContractConfig, error)
	SetContractEnabledBySymbol(ctx context.Context, symbol string, enabled bool) error
	SetChainEnabled(ctx context.Context, chainID int64, enabled bool) error
}

// EventStore is the append-mostly sink for decoded BlockchainEvents,
// plus the ContractData cache the transfer handler maintains.
type EventStore interface {
	// InsertEvent persists ev. If a record with the same
	// (chainId, transactionHash, logIndex) already exists, it returns
	// chainerr.ErrDuplicateEvent and does not modify the store.
	InsertEvent(ctx context.Context, ev *types.BlockchainEvent) error

	// EventExists reports whether (chainId, txHash, logIndex) is
	// already persisted, without attempting an insert.
	EventExists(ctx context.Context, chainID int64, txHash string, logIndex uint) (bool, error)

	// GetContractData returns the cached runtime facts for a
	// contract, or nil if none have been observed yet.
	GetContractData(ctx context.Context, chainID int64, address string) (*types.ContractData, error)

	// UpsertContractData creates or updates the ContractData row.
	// Callers are responsible for preserving the monotonic
	// lastProcessedBlock invariant before calling this.
	UpsertContractData(ctx context.Context, cd *types.ContractData) error

	// QueryEvents returns one page of persisted events matching filter,
	// ordered by block number.
	QueryEvents(ctx context.Context, filter types.EventFilter) ([]types.BlockchainEvent, error)
}
