package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"chainindexer/shared/cache"
	"chainindexer/shared/chainerr"
	"chainindexer/shared/types"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const contractDataCacheTTL = 5 * time.Minute

func contractDataCacheKey(chainID int64, address string) string {
	return fmt.Sprintf("contractdata:%d:%s", chainID, strings.ToLower(address))
}

// PostgresStore implements both ConfigStore and EventStore over a
// single gorm/Postgres connection, optionally read-through cached via
// Redis for ContractData lookups.
type PostgresStore struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewPostgresStore opens dsn, runs migrations, and returns a store
// backed by it. c may be nil to disable read-through caching.
func NewPostgresStore(dsn string, c *cache.Cache) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &PostgresStore{db: db, cache: c}, nil
}

func (s *PostgresStore) EnabledChains(ctx context.Context) ([]types.ChainConfig, error) {
	var chains []types.ChainConfig
	err := s.db.WithContext(ctx).Where("enabled = ?", true).Find(&chains).Error
	return chains, err
}

func (s *PostgresStore) ChainByID(ctx context.Context, chainID int64) (*types.ChainConfig, error) {
	var cc types.ChainConfig
	err := s.db.WithContext(ctx).Where("chain_id = ?", chainID).First(&cc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (s *PostgresStore) EnabledContracts(ctx context.Context, chainID int64) ([]types.ContractConfig, error) {
	var contracts []types.ContractConfig
	err := s.db.WithContext(ctx).
		Where("chain_id = ? AND enabled = ?", chainID, true).
		Find(&contracts).Error
	return contracts, err
}

func (s *PostgresStore) ContractByAddress(ctx context.Context, chainID int64, address string) (*types.ContractConfig, error) {
	var cc types.ContractConfig
	err := s.db.WithContext(ctx).
		Where("chain_id = ? AND address = ?", chainID, address).
		First(&cc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

func (s *PostgresStore) ContractsBySymbol(ctx context.Context, symbol string) ([]types.ContractConfig, error) {
	var contracts []types.ContractConfig
	err := s.db.WithContext(ctx).Where("symbol = ?", symbol).Find(&contracts).Error
	return contracts, err
}

func (s *PostgresStore) SetContractEnabledBySymbol(ctx context.Context, symbol string, enabled bool) error {
	return s.db.WithContext(ctx).Model(&types.ContractConfig{}).
		Where("symbol = ?", symbol).
		Update("enabled", enabled).Error
}

func (s *PostgresStore) SetChainEnabled(ctx context.Context, chainID int64, enabled bool) error {
	return s.db.WithContext(ctx).Model(&types.ChainConfig{}).
		Where("chain_id = ?", chainID).
		Update("enabled", enabled).Error
}

// InsertEvent matches the teacher's idempotent-insert idiom: an
// OnConflict{DoNothing:true} clause on the unique identity index, with
// the affected-row count distinguishing a fresh insert from a
// silently-skipped duplicate.
func (s *PostgresStore) InsertEvent(ctx context.Context, ev *types.BlockchainEvent) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_id"}, {Name: "transaction_hash"}, {Name: "log_index"}},
		DoNothing: true,
	}).Create(ev)

	if result.Error != nil {
		return fmt.Errorf("store: insert event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return chainerr.ErrDuplicateEvent
	}
	return nil
}

func (s *PostgresStore) EventExists(ctx context.Context, chainID int64, txHash string, logIndex uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&types.BlockchainEvent{}).
		Where("chain_id = ? AND transaction_hash = ? AND log_index = ?", chainID, txHash, logIndex).
		Count(&count).Error
	return count > 0, err
}

// GetContractData is read-through cached when s.cache is set: a hit
// skips the query entirely, a miss falls through to Postgres and
// repopulates the cache for next time.
func (s *PostgresStore) GetContractData(ctx context.Context, chainID int64, address string) (*types.ContractData, error) {
	key := contractDataCacheKey(chainID, address)
	if s.cache != nil {
		var cached types.ContractData
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	var cd types.ContractData
	err := s.db.WithContext(ctx).
		Where("chain_id = ? AND contract_address = ?", chainID, address).
		First(&cd).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, &cd, contractDataCacheTTL)
	}
	return &cd, nil
}

// UpsertContractData writes through the cache after a successful
// write, so a rollup update is visible to the next read without
// waiting for contractDataCacheTTL to expire.
func (s *PostgresStore) UpsertContractData(ctx context.Context, cd *types.ContractData) error {
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_id"}, {Name: "contract_address"}},
		UpdateAll: true,
	}).Create(cd).Error; err != nil {
		return err
	}

	if s.cache != nil {
		key := contractDataCacheKey(cd.ChainID, cd.ContractAddress)
		_ = s.cache.Set(ctx, key, cd, contractDataCacheTTL)
	}
	return nil
}

func (s *PostgresStore) QueryEvents(ctx context.Context, filter types.EventFilter) ([]types.BlockchainEvent, error) {
	q := s.db.WithContext(ctx).Model(&types.BlockchainEvent{})

	if filter.ChainID != 0 {
		q = q.Where("chain_id = ?", filter.ChainID)
	}
	if filter.FromBlock != 0 {
		q = q.Where("block_number >= ?", filter.FromBlock)
	}
	if filter.ToBlock != 0 {
		q = q.Where("block_number <= ?", filter.ToBlock)
	}
	if filter.EventName != "" {
		q = q.Where("event_type = ?", filter.EventName)
	}
	if filter.Contract != "" {
		q = q.Where("contract_address = ?", filter.Contract)
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	var events []types.BlockchainEvent
	err := q.Order("block_number asc, id asc").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&events).Error
	return events, err
}

// Ping verifies the underlying connection is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
