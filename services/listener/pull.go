package listener

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"chainindexer/services/chainadapter"
	"chainindexer/services/decoder"
	"chainindexer/services/dispatcher"
	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/store"
	"chainindexer/shared/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// PullParams configures a PullListener's batching hierarchy. Zero
// values fall back to the defaults applied in NewPullListener.
type PullParams struct {
	ScanInterval       time.Duration
	BlocksPerScan       int
	ContractBatchSize   int
	ContractBatchDelay  time.Duration
	EventBatchSize      int
	EventBatchDelay     time.Duration
	BlockBatchSize      int
	BlockBatchDelay     time.Duration
}

// PullListener range-scans new blocks on a periodic timer, batching
// filtered log queries across a contract/event/block hierarchy.
type PullListener struct {
	chainID  int64
	adapter  chainadapter.Adapter
	configs  store.ConfigStore
	dispatch *dispatcher.Dispatcher
	log      logger.Logger
	metric   *metrics.Metrics
	params   PullParams

	mu     sync.Mutex
	state  State
	cursor int64
	cancel context.CancelFunc

	rpcCalls int64
}

// NewPullListener builds a pull listener starting its cursor at
// startCursor (the last fully-drained block; the next tick scans from
// startCursor+1).
func NewPullListener(chainID int64, adapter chainadapter.Adapter, configs store.ConfigStore, dispatch *dispatcher.Dispatcher, log logger.Logger, m *metrics.Metrics, params PullParams, startCursor int64) *PullListener {
	if params.ScanInterval <= 0 {
		params.ScanInterval = 5 * time.Second
	}
	if params.BlocksPerScan <= 0 {
		params.BlocksPerScan = 50
	}
	if params.ContractBatchSize <= 0 {
		params.ContractBatchSize = 3
	}
	if params.ContractBatchDelay <= 0 {
		params.ContractBatchDelay = 500 * time.Millisecond
	}
	if params.EventBatchSize <= 0 {
		params.EventBatchSize = 2
	}
	if params.EventBatchDelay <= 0 {
		params.EventBatchDelay = 300 * time.Millisecond
	}
	if params.BlockBatchSize <= 0 {
		params.BlockBatchSize = 5
	}
	if params.BlockBatchDelay <= 0 {
		params.BlockBatchDelay = 200 * time.Millisecond
	}

	return &PullListener{
		chainID:  chainID,
		adapter:  adapter,
		configs:  configs,
		dispatch: dispatch,
		log:      log,
		metric:   m,
		params:   params,
		state:    StateStopped,
		cursor:   startCursor,
	}
}

func (l *PullListener) ChainID() int64           { return l.chainID }
func (l *PullListener) Strategy() types.Strategy { return types.StrategyPull }

func (l *PullListener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Cursor reports the highest block number fully drained so far.
func (l *PullListener) Cursor() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

func (l *PullListener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	if l.metric != nil {
		l.metric.ListenerStateGauge.WithLabelValues(fmt.Sprint(l.chainID), string(s)).Set(1)
	}
}

func (l *PullListener) Start(ctx context.Context) error {
	if l.State() == StateRunning {
		if l.log != nil {
			l.log.Warn("pull listener chain=%d already running", l.chainID)
		}
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.cancel = cancel
	l.mu.Unlock()

	l.setState(StateRunning)
	go l.tickLoop(runCtx)
	go l.rateReportLoop(runCtx)
	return nil
}

func (l *PullListener) Stop() error {
	if l.State() == StateStopped {
		if l.log != nil {
			l.log.Warn("pull listener chain=%d already stopped", l.chainID)
		}
		return nil
	}

	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	l.setState(StateStopped)
	return nil
}

func (l *PullListener) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(l.params.ScanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *PullListener) rateReportLoop(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count := atomic.SwapInt64(&l.rpcCalls, 0)
			if count > 0 && l.log != nil {
				l.log.Info("pull listener chain=%d issued %d remote calls in the last 10s", l.chainID, count)
			}
		}
	}
}

// tick runs one scan iteration. A transport-level failure (head
// lookup) aborts without advancing the cursor; the next tick retries
// the same range.
func (l *PullListener) tick(ctx context.Context) {
	head, err := l.adapter.LatestBlock(ctx)
	l.countCall()
	if err != nil {
		if l.log != nil {
			l.log.Warn("pull listener chain=%d latest block lookup failed, aborting tick: %v", l.chainID, err)
		}
		return
	}

	cursor := l.Cursor()
	if int64(head) <= cursor {
		return
	}

	from := uint64(cursor + 1)
	to := head
	if maxTo := from + uint64(l.params.BlocksPerScan) - 1; to > maxTo {
		to = maxTo
	}

	snapshots, err := loadSnapshots(ctx, l.configs, l.chainID)
	if err != nil {
		if l.log != nil {
			l.log.Warn("pull listener chain=%d load contract set failed, aborting tick: %v", l.chainID, err)
		}
		return
	}

	entries := l.scanRange(ctx, snapshots, from, to)

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].log.BlockNumber != entries[j].log.BlockNumber {
			return entries[i].log.BlockNumber < entries[j].log.BlockNumber
		}
		return entries[i].log.Index < entries[j].log.Index
	})

	timestamps := l.resolveTimestamps(ctx, entries)
	l.processEntries(ctx, entries, timestamps)

	if ctx.Err() != nil {
		if l.log != nil {
			l.log.Warn("pull listener chain=%d tick cancelled mid-scan, cursor held at %d", l.chainID, cursor)
		}
		return
	}

	l.mu.Lock()
	l.cursor = int64(to)
	l.mu.Unlock()
	if l.metric != nil {
		l.metric.ChainCursor.WithLabelValues(fmt.Sprint(l.chainID)).Set(float64(to))
		l.metric.ChainLatestBlock.WithLabelValues(fmt.Sprint(l.chainID)).Set(float64(head))
	}
}

type logEntry struct {
	cfg types.ContractConfig
	idx map[common.Hash]string
	log gethtypes.Log
}

// scanRange queries filtered logs for [from, to] across every enabled
// contract/event pair, batching contracts by ContractBatchSize and
// events within a contract by EventBatchSize, sleeping between
// batches. Per-(contract,event) query failures are logged and
// skipped; they never abort the tick.
func (l *PullListener) scanRange(ctx context.Context, snapshots []contractSnapshot, from, to uint64) []logEntry {
	var mu sync.Mutex
	var collected []logEntry

	for i := 0; i < len(snapshots); i += l.params.ContractBatchSize {
		end := i + l.params.ContractBatchSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		batch := snapshots[i:end]

		var wg sync.WaitGroup
		for _, snap := range batch {
			wg.Add(1)
			go func(snap contractSnapshot) {
				defer wg.Done()
				l.scanContract(ctx, snap, from, to, &mu, &collected)
			}(snap)
		}
		wg.Wait()

		if end < len(snapshots) {
			select {
			case <-ctx.Done():
				return collected
			case <-time.After(l.params.ContractBatchDelay):
			}
		}
	}

	return collected
}

func (l *PullListener) scanContract(ctx context.Context, snap contractSnapshot, from, to uint64, mu *sync.Mutex, collected *[]logEntry) {
	topics := make([]common.Hash, 0, len(snap.idx))
	for topic := range snap.idx {
		topics = append(topics, topic)
	}

	for i := 0; i < len(topics); i += l.params.EventBatchSize {
		end := i + l.params.EventBatchSize
		if end > len(topics) {
			end = len(topics)
		}
		batch := topics[i:end]

		var wg sync.WaitGroup
		for _, topic := range batch {
			wg.Add(1)
			go func(topic common.Hash) {
				defer wg.Done()
				l.queryTopic(ctx, snap, topic, from, to, mu, collected)
			}(topic)
		}
		wg.Wait()

		if end < len(topics) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.params.EventBatchDelay):
			}
		}
	}
}

func (l *PullListener) queryTopic(ctx context.Context, snap contractSnapshot, topic common.Hash, from, to uint64, mu *sync.Mutex, collected *[]logEntry) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{common.HexToAddress(snap.cfg.Address)},
		Topics:    [][]common.Hash{{topic}},
	}

	logs, err := l.adapter.FilterLogs(ctx, query)
	l.countCall()
	if err != nil {
		if l.log != nil {
			l.log.Warn("pull listener chain=%d filter logs failed contract=%s topic=%s: %v", l.chainID, snap.cfg.Address, topic.Hex(), err)
		}
		if l.metric != nil {
			l.metric.ErrorsTotal.WithLabelValues("pull_listener", "transient_rpc").Inc()
		}
		return
	}

	mu.Lock()
	for _, vLog := range logs {
		*collected = append(*collected, logEntry{cfg: snap.cfg, idx: snap.idx, log: vLog})
	}
	mu.Unlock()
}

// resolveTimestamps resolves block timestamps for the distinct block
// numbers in entries, batched by BlockBatchSize with BlockBatchDelay
// between batches. Missing timestamps default to 0.
func (l *PullListener) resolveTimestamps(ctx context.Context, entries []logEntry) map[uint64]int64 {
	seen := map[uint64]bool{}
	var blocks []uint64
	for _, e := range entries {
		if !seen[e.log.BlockNumber] {
			seen[e.log.BlockNumber] = true
			blocks = append(blocks, e.log.BlockNumber)
		}
	}

	result := make(map[uint64]int64, len(blocks))
	var mu sync.Mutex

	for i := 0; i < len(blocks); i += l.params.BlockBatchSize {
		end := i + l.params.BlockBatchSize
		if end > len(blocks) {
			end = len(blocks)
		}
		batch := blocks[i:end]

		var wg sync.WaitGroup
		for _, bn := range batch {
			wg.Add(1)
			go func(bn uint64) {
				defer wg.Done()
				ts, err := l.adapter.BlockTime(ctx, bn)
				l.countCall()
				if err != nil {
					ts = 0
				}
				mu.Lock()
				result[bn] = ts * 1000
				mu.Unlock()
			}(bn)
		}
		wg.Wait()

		if end < len(blocks) {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(l.params.BlockBatchDelay):
			}
		}
	}

	return result
}

// processEntries decodes and dispatches each log in sorted order,
// fetching one receipt per distinct transaction.
func (l *PullListener) processEntries(ctx context.Context, entries []logEntry, timestamps map[uint64]int64) {
	receipts := map[common.Hash]*gethtypes.Receipt{}

	for _, e := range entries {
		decoded, err := decoder.Decode(decoder.RawLog{
			Address:     e.log.Address,
			Topics:      e.log.Topics,
			Data:        e.log.Data,
			BlockNumber: e.log.BlockNumber,
			TxHash:      e.log.TxHash,
			LogIndex:    e.log.Index,
			TxIndex:     e.log.TxIndex,
		}, e.cfg, e.idx)
		if err != nil {
			if l.log != nil {
				l.log.Warn("pull listener chain=%d decode failed contract=%s: %v", l.chainID, e.cfg.Address, err)
			}
			if l.metric != nil {
				l.metric.DecodeFailuresTotal.WithLabelValues(fmt.Sprint(l.chainID)).Inc()
			}
			continue
		}

		var gasUsed, txStatus uint64
		if receipt, ok := receipts[e.log.TxHash]; ok {
			gasUsed, txStatus = receipt.GasUsed, receipt.Status
		} else {
			receipt, err := l.adapter.TransactionReceipt(ctx, e.log.TxHash)
			l.countCall()
			if err == nil && receipt != nil {
				receipts[e.log.TxHash] = receipt
				gasUsed, txStatus = receipt.GasUsed, receipt.Status
			}
		}

		rawLog := decoder.RawLog{
			Address:     e.log.Address,
			Topics:      e.log.Topics,
			Data:        e.log.Data,
			BlockNumber: e.log.BlockNumber,
			TxHash:      e.log.TxHash,
			LogIndex:    e.log.Index,
			TxIndex:     e.log.TxIndex,
		}
		ev := buildEvent(l.chainID, e.cfg, rawLog, decoded, timestamps[e.log.BlockNumber], gasUsed, txStatus)
		l.dispatch.DispatchEvent(ev)

		if l.metric != nil {
			l.metric.EventsDecodedTotal.WithLabelValues(fmt.Sprint(l.chainID), decoded.Name).Inc()
		}
	}
}

func (l *PullListener) countCall() {
	atomic.AddInt64(&l.rpcCalls, 1)
}
