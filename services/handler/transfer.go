// Package handler holds the reference event handlers registered with
// the dispatcher.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainindexer/shared/cache"
	"chainindexer/shared/chainerr"
	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/store"
	"chainindexer/shared/types"

	"chainindexer/services/decoder"
)

// TransferHandler classifies Transfer events, maintains per-contract
// rollup state, and persists the event exactly once.
type TransferHandler struct {
	configs store.ConfigStore
	events  store.EventStore
	cache   *cache.Cache
	log     logger.Logger
	metrics *metrics.Metrics
}

// New builds a TransferHandler. cache may be nil to disable the
// idempotency pre-check (the store's unique index remains the source
// of truth either way).
func New(configs store.ConfigStore, events store.EventStore, c *cache.Cache, log logger.Logger, m *metrics.Metrics) *TransferHandler {
	return &TransferHandler{configs: configs, events: events, cache: c, log: log, metrics: m}
}

func (h *TransferHandler) Name() string { return "transfer" }

// CanHandle matches contract_log events whose first topic is the
// canonical Transfer hash.
func (h *TransferHandler) CanHandle(ev *types.BlockchainEvent) bool {
	if ev.EventType != "contract_log" {
		return false
	}
	if len(ev.Data.Topics) == 0 {
		return false
	}
	return strings.EqualFold(ev.Data.Topics[0], decoder.TransferTopic0.Hex())
}

func (h *TransferHandler) Handle(ev *types.BlockchainEvent) error {
	ctx := context.Background()

	cfg, err := h.configs.ContractByAddress(ctx, ev.ChainID, ev.ContractAddress)
	if err != nil {
		return fmt.Errorf("transfer handler: load contract config: %w", err)
	}
	if cfg == nil {
		return nil
	}

	from, okFrom := ev.Data.Event.Args["from"].(string)
	to, okTo := ev.Data.Event.Args["to"].(string)
	_, okVal := ev.Data.Event.Args["valueRaw"].(string)
	if !okFrom || !okTo || !okVal {
		return nil
	}
	valueFormatted, _ := ev.Data.Event.Args["valueFormatted"].(string)
	isLarge, _ := ev.Data.Event.Args["isLargeTransfer"].(bool)

	h.logTransfer(ev, from, to, valueFormatted, isLarge, cfg.Priority())

	if err := h.upsertContractData(ctx, ev, cfg, isLarge); err != nil {
		h.log.Warn("transfer handler: contract data update failed chain=%d address=%s: %v", ev.ChainID, ev.ContractAddress, err)
	}

	ev.TransferType = classify(from, to)
	ev.TokenAmount = strings.ReplaceAll(valueFormatted, ",", "")

	if already, err := h.alreadyProcessed(ctx, ev); err == nil && already {
		if h.metrics != nil {
			h.metrics.DuplicateEventsTotal.WithLabelValues(fmt.Sprint(ev.ChainID)).Inc()
		}
		return nil
	}

	if err := h.events.InsertEvent(ctx, ev); err != nil {
		if errors.Is(err, chainerr.ErrDuplicateEvent) {
			if h.metrics != nil {
				h.metrics.DuplicateEventsTotal.WithLabelValues(fmt.Sprint(ev.ChainID)).Inc()
			}
			return nil
		}
		h.log.Error("transfer handler: persist failed chain=%d tx=%s logIndex=%d: %v", ev.ChainID, ev.TransactionHash, ev.LogIndex, err)
		return nil
	}

	h.markProcessed(ctx, ev)

	if h.metrics != nil {
		chain := fmt.Sprint(ev.ChainID)
		h.metrics.TransfersTotal.WithLabelValues(chain).Inc()
		if isLarge {
			h.metrics.LargeTransfersTotal.WithLabelValues(chain).Inc()
		}
		if ev.TransferType == "mint" {
			h.metrics.MintsTotal.WithLabelValues(chain).Inc()
		}
		if ev.TransferType == "burn" {
			h.metrics.BurnsTotal.WithLabelValues(chain).Inc()
		}
	}

	return nil
}

func classify(from, to string) string {
	switch {
	case strings.EqualFold(from, decoder.ZeroAddress):
		return "mint"
	case strings.EqualFold(to, decoder.ZeroAddress):
		return "burn"
	default:
		return "transfer"
	}
}

func (h *TransferHandler) logTransfer(ev *types.BlockchainEvent, from, to, valueFormatted string, isLarge bool, priority string) {
	if h.log == nil {
		return
	}

	switch {
	case isLarge:
		h.log.Warn("large transfer: %s from %s to %s on chain %d tx %s", valueFormatted, from, to, ev.ChainID, ev.TransactionHash)
	case priority == "high":
		h.log.Info("priority transfer: %s from %s to %s on chain %d tx %s", valueFormatted, from, to, ev.ChainID, ev.TransactionHash)
	default:
		h.log.Info("transfer: %s from %s to %s on chain %d tx %s", valueFormatted, from, to, ev.ChainID, ev.TransactionHash)
	}

	switch classify(from, to) {
	case "mint":
		h.log.Info("MINT: %s minted to %s on chain %d", valueFormatted, to, ev.ChainID)
	case "burn":
		h.log.Info("BURN: %s burned from %s on chain %d", valueFormatted, from, ev.ChainID)
	}
}

func (h *TransferHandler) upsertContractData(ctx context.Context, ev *types.BlockchainEvent, cfg *types.ContractConfig, isLarge bool) error {
	cd, err := h.events.GetContractData(ctx, ev.ChainID, ev.ContractAddress)
	if err != nil {
		return err
	}

	if cd == nil {
		cd = &types.ContractData{
			ChainID:            ev.ChainID,
			ContractAddress:    ev.ContractAddress,
			ContractType:       cfg.Type,
			CollectionKey:      fmt.Sprintf("%s_%d", cfg.Type, ev.ChainID),
			Name:               cfg.Name,
			Symbol:             cfg.Symbol,
			Decimals:           cfg.Decimals(),
			IsActive:           true,
			LastUpdated:        time.Now(),
			FirstSeenBlock:     ev.BlockNumber,
			LastProcessedBlock: ev.BlockNumber,
			StartFromBlock:     ev.BlockNumber,
			Metadata:           types.JSONMap{},
		}
		cd.IncrementTransferCounts(isLarge)
		return h.events.UpsertContractData(ctx, cd)
	}

	if ev.BlockNumber > cd.LastProcessedBlock {
		cd.LastProcessedBlock = ev.BlockNumber
	}
	if cd.FirstSeenBlock == 0 {
		cd.FirstSeenBlock = ev.BlockNumber
	}
	cd.LastUpdated = time.Now()
	cd.IncrementTransferCounts(isLarge)
	return h.events.UpsertContractData(ctx, cd)
}

func (h *TransferHandler) alreadyProcessed(ctx context.Context, ev *types.BlockchainEvent) (bool, error) {
	if h.cache == nil {
		return false, nil
	}
	key := idempotencyKey(ev)
	var marker bool
	if err := h.cache.Get(ctx, key, &marker); err == nil {
		return marker, nil
	}

	exists, err := h.events.EventExists(ctx, ev.ChainID, ev.TransactionHash, ev.LogIndex)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (h *TransferHandler) markProcessed(ctx context.Context, ev *types.BlockchainEvent) {
	if h.cache == nil {
		return
	}
	_ = h.cache.Set(ctx, idempotencyKey(ev), true, 24*time.Hour)
}

func idempotencyKey(ev *types.BlockchainEvent) string {
	return fmt.Sprintf("processed:%d:%s:%d", ev.ChainID, ev.TransactionHash, ev.LogIndex)
}
