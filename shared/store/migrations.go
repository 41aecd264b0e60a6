package store

import (
	"fmt"
	"time"

	"chainindexer/shared/types"

	"gorm.io/gorm"
)

// migration is a single forward-only schema step, run in order and
// tracked by version in the schema_migrations table.
type migration struct {
	version     string
	description string
	up          func(*gorm.DB) error
}

type schemaMigration struct {
	Version   string `gorm:"primaryKey"`
	AppliedAt int64
}

var migrations = []migration{
	{
		version:     "20240101000001",
		description: "create chain_configs, contract_configs, contract_data, blockchain_events",
		up: func(db *gorm.DB) error {
			return db.AutoMigrate(
				&types.ChainConfig{},
				&types.ContractConfig{},
				&types.ContractData{},
				&types.BlockchainEvent{},
			)
		},
	},
	{
		version:     "20240101000002",
		description: "add secondary indexes for event queries",
		up: func(db *gorm.DB) error {
			statements := []string{
				"CREATE INDEX IF NOT EXISTS idx_events_contract_type ON blockchain_events (contract_address, event_type)",
				"CREATE INDEX IF NOT EXISTS idx_events_processed ON blockchain_events (processed)",
				"CREATE INDEX IF NOT EXISTS idx_events_timestamp ON blockchain_events (timestamp_ms)",
			}
			for _, stmt := range statements {
				if err := db.Exec(stmt).Error; err != nil {
					return fmt.Errorf("%s: %w", stmt, err)
				}
			}
			return nil
		},
	},
}

// RunMigrations applies every migration not yet recorded in
// schema_migrations, in declared order.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&schemaMigration{}); err != nil {
		return fmt.Errorf("migrations table: %w", err)
	}

	var applied []schemaMigration
	if err := db.Find(&applied).Error; err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	for _, m := range migrations {
		if done[m.version] {
			continue
		}
		if err := m.up(db); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.version, m.description, err)
		}
		if err := db.Create(&schemaMigration{Version: m.version, AppliedAt: time.Now().UnixMilli()}).Error; err != nil {
			return fmt.Errorf("recording migration %s: %w", m.version, err)
		}
	}
	return nil
}
