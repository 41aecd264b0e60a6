package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainindexer/services/chainadapter"
	"chainindexer/services/decoder"
	"chainindexer/services/dispatcher"
	"chainindexer/services/reload"
	"chainindexer/shared/chainerr"
	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/store"
	"chainindexer/shared/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

const (
	pushInitialBackoff = time.Second
	pushMaxBackoff     = 32 * time.Second
)

// PushListener subscribes to the chain's streaming transport and
// reacts to log notifications, one logical subscription per
// (contract, event-name) pair.
type PushListener struct {
	chainID              int64
	adapter              chainadapter.Adapter
	configs              store.ConfigStore
	dispatch             *dispatcher.Dispatcher
	log                  logger.Logger
	metric               *metrics.Metrics
	refreshInterval      time.Duration
	maxReconnectAttempts int

	mu          sync.Mutex
	state       State
	cancel      context.CancelFunc
	subs        map[string]subEntry
	subsContext context.Context
}

type subEntry struct {
	address common.Address
	topic   common.Hash
	cancel  context.CancelFunc
}

// NewPushListener builds a push listener for chainID. refreshInterval
// defaults to 30s and maxReconnectAttempts to 5 when <= 0.
func NewPushListener(chainID int64, adapter chainadapter.Adapter, configs store.ConfigStore, dispatch *dispatcher.Dispatcher, log logger.Logger, m *metrics.Metrics, refreshInterval time.Duration, maxReconnectAttempts int) *PushListener {
	if refreshInterval <= 0 {
		refreshInterval = 30 * time.Second
	}
	if maxReconnectAttempts <= 0 {
		maxReconnectAttempts = 5
	}
	return &PushListener{
		chainID:              chainID,
		adapter:              adapter,
		configs:              configs,
		dispatch:             dispatch,
		log:                  log,
		metric:               m,
		refreshInterval:      refreshInterval,
		maxReconnectAttempts: maxReconnectAttempts,
		state:                StateStopped,
		subs:                 map[string]subEntry{},
	}
}

func (l *PushListener) ChainID() int64          { return l.chainID }
func (l *PushListener) Strategy() types.Strategy { return types.StrategyPush }

func (l *PushListener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *PushListener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	if l.metric != nil {
		chain := fmt.Sprint(l.chainID)
		l.metric.ListenerStateGauge.WithLabelValues(chain, string(s)).Set(1)
	}
}

// Start is a no-op warning if already Running.
func (l *PushListener) Start(ctx context.Context) error {
	if l.State() == StateRunning {
		if l.log != nil {
			l.log.Warn("push listener chain=%d already running", l.chainID)
		}
		return nil
	}

	l.setState(StateStarting)
	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.subsContext = runCtx
	l.mu.Unlock()

	if err := l.resubscribeAll(runCtx); err != nil {
		l.setState(StateFailed)
		cancel()
		return err
	}

	l.setState(StateRunning)
	go l.refreshLoop(runCtx)
	return nil
}

// Stop is a no-op warning if already Stopped.
func (l *PushListener) Stop() error {
	if l.State() == StateStopped {
		if l.log != nil {
			l.log.Warn("push listener chain=%d already stopped", l.chainID)
		}
		return nil
	}

	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	l.closeAllSubs()
	l.setState(StateStopped)
	return nil
}

func (l *PushListener) refreshLoop(ctx context.Context) {
	reload.Loop(ctx, l.refreshInterval, l.log, fmt.Sprintf("push listener chain=%d", l.chainID), l.refreshSubscriptions)
}

// refreshSubscriptions diffs the enabled contract set against the
// live subscription set, opening new subscriptions and closing
// removed ones. Best-effort: a load failure is retried on the next
// tick.
func (l *PushListener) refreshSubscriptions(ctx context.Context) error {
	snapshots, err := loadSnapshots(ctx, l.configs, l.chainID)
	if err != nil {
		return err
	}

	wanted := map[string]contractSnapshot{}
	for _, s := range snapshots {
		for topic := range s.idx {
			wanted[subKey(s.cfg.Address, topic)] = s
		}
	}

	l.mu.Lock()
	existing := make(map[string]subEntry, len(l.subs))
	for k, v := range l.subs {
		existing[k] = v
	}
	l.mu.Unlock()

	for key, entry := range existing {
		if _, ok := wanted[key]; !ok {
			entry.cancel()
			l.mu.Lock()
			delete(l.subs, key)
			l.mu.Unlock()
		}
	}

	for key, snap := range wanted {
		if _, ok := existing[key]; ok {
			continue
		}
		for topic, sig := range snap.idx {
			if subKey(snap.cfg.Address, topic) != key {
				continue
			}
			l.openSubscription(ctx, snap.cfg, topic, sig)
		}
	}

	return nil
}

func (l *PushListener) resubscribeAll(ctx context.Context) error {
	l.closeAllSubs()

	snapshots, err := loadSnapshots(ctx, l.configs, l.chainID)
	if err != nil {
		return err
	}

	for _, snap := range snapshots {
		for topic, sig := range snap.idx {
			l.openSubscription(ctx, snap.cfg, topic, sig)
		}
	}
	return nil
}

func (l *PushListener) openSubscription(ctx context.Context, cfg types.ContractConfig, topic common.Hash, sig string) {
	address := common.HexToAddress(cfg.Address)
	query := ethereum.FilterQuery{
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{topic}},
	}

	logs := make(chan gethtypes.Log)
	sub, err := l.adapter.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		if l.log != nil {
			l.log.Warn("push listener chain=%d subscribe failed contract=%s event=%s: %v", l.chainID, cfg.Address, sig, err)
		}
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	key := subKey(cfg.Address, topic)
	l.mu.Lock()
	l.subs[key] = subEntry{address: address, topic: topic, cancel: cancel}
	l.mu.Unlock()

	idx := map[common.Hash]string{topic: sig}
	go l.consume(subCtx, sub, logs, cfg, idx)
}

func (l *PushListener) consume(ctx context.Context, sub ethereum.Subscription, logs chan gethtypes.Log, cfg types.ContractConfig, idx map[common.Hash]string) {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			if err == nil {
				return
			}
			l.handleTransportError(err)
			return
		case vLog := <-logs:
			l.handleLog(ctx, cfg, idx, vLog)
		}
	}
}

func (l *PushListener) handleLog(ctx context.Context, cfg types.ContractConfig, idx map[common.Hash]string, vLog gethtypes.Log) {
	rawLog := decoder.RawLog{
		Address:     vLog.Address,
		Topics:      vLog.Topics,
		Data:        vLog.Data,
		BlockNumber: vLog.BlockNumber,
		TxHash:      vLog.TxHash,
		LogIndex:    vLog.Index,
		TxIndex:     vLog.TxIndex,
	}

	decoded, err := decoder.Decode(rawLog, cfg, idx)
	if err != nil {
		if l.log != nil {
			l.log.Warn("push listener chain=%d decode failed contract=%s: %v", l.chainID, cfg.Address, err)
		}
		if l.metric != nil {
			l.metric.DecodeFailuresTotal.WithLabelValues(fmt.Sprint(l.chainID)).Inc()
		}
		return
	}

	timestampMs := l.blockTimestamp(ctx, vLog.BlockNumber)
	ev := buildEvent(l.chainID, cfg, rawLog, decoded, timestampMs, 0, 0)
	l.dispatch.DispatchEvent(ev)

	if l.metric != nil {
		l.metric.EventsDecodedTotal.WithLabelValues(fmt.Sprint(l.chainID), decoded.Name).Inc()
	}
}

// blockTimestamp resolves the block timestamp for a notification that
// arrived without one. Failures default to 0 rather than blocking
// ingestion.
func (l *PushListener) blockTimestamp(ctx context.Context, blockNumber uint64) int64 {
	ts, err := l.adapter.BlockTime(ctx, blockNumber)
	if err != nil {
		if l.log != nil {
			l.log.Warn("push listener chain=%d block time lookup failed block=%d: %v", l.chainID, blockNumber, err)
		}
		return 0
	}
	return ts * 1000
}

func (l *PushListener) handleTransportError(err error) {
	if l.log != nil {
		l.log.Warn("push listener chain=%d transport error, reconnecting: %v", l.chainID, err)
	}
	l.setState(StateReconnecting)

	l.mu.Lock()
	ctx := l.subsContext
	l.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	l.closeAllSubs()

	backoff := pushInitialBackoff
	for attempt := 1; attempt <= l.maxReconnectAttempts; attempt++ {
		if l.metric != nil {
			l.metric.ListenerReconnectsTotal.WithLabelValues(fmt.Sprint(l.chainID)).Inc()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		l.adapter.Disconnect()
		if dialErr := l.adapter.Connect(ctx); dialErr != nil {
			if l.log != nil {
				l.log.Warn("push listener chain=%d reconnect attempt %d failed: %v", l.chainID, attempt, dialErr)
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if subErr := l.resubscribeAll(ctx); subErr != nil {
			if l.log != nil {
				l.log.Warn("push listener chain=%d resubscribe after reconnect failed: %v", l.chainID, subErr)
			}
			backoff = nextBackoff(backoff)
			continue
		}

		l.setState(StateRunning)
		return
	}

	if l.log != nil {
		l.log.Error("push listener chain=%d exhausted reconnect budget (%d attempts): %v", l.chainID, l.maxReconnectAttempts, chainerr.ErrExhausted)
	}
	l.Stop()
	l.setState(StateExhausted)
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > pushMaxBackoff {
		return pushMaxBackoff
	}
	return next
}

func (l *PushListener) closeAllSubs() {
	l.mu.Lock()
	subs := l.subs
	l.subs = map[string]subEntry{}
	l.mu.Unlock()

	for _, entry := range subs {
		entry.cancel()
	}
}

func subKey(address string, topic common.Hash) string {
	return address + "|" + topic.Hex()
}
