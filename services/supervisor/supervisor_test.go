package supervisor

import (
	"context"
	"testing"
	"time"

	"chainindexer/services/chainadapter"
	"chainindexer/services/dispatcher"
	"chainindexer/services/listener"
	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/types"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigStore struct {
	chains    []types.ChainConfig
	contracts map[int64][]types.ContractConfig
}

func (f *fakeConfigStore) EnabledChains(ctx context.Context) ([]types.ChainConfig, error) {
	return f.chains, nil
}

func (f *fakeConfigStore) ChainByID(ctx context.Context, chainID int64) (*types.ChainConfig, error) {
	for _, c := range f.chains {
		if c.ChainID == chainID {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeConfigStore) EnabledContracts(ctx context.Context, chainID int64) ([]types.ContractConfig, error) {
	return f.contracts[chainID], nil
}

func (f *fakeConfigStore) ContractByAddress(ctx context.Context, chainID int64, address string) (*types.ContractConfig, error) {
	for _, c := range f.contracts[chainID] {
		if c.Address == address {
			return &c, nil
		}
	}
	return nil, nil
}

type fakeAdapter struct {
	chainID int64
	head    uint64
}

func (f *fakeAdapter) ChainID() int64                   { return f.chainID }
func (f *fakeAdapter) Connect(ctx context.Context) error { return nil }
func (f *fakeAdapter) Disconnect() error                 { return nil }
func (f *fakeAdapter) Connected() bool                   { return true }
func (f *fakeAdapter) LatestBlock(ctx context.Context) (uint64, error) {
	return f.head, nil
}
func (f *fakeAdapter) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- gethtypes.Log) (ethereum.Subscription, error) {
	return &noopSub{errCh: make(chan error)}, nil
}
func (f *fakeAdapter) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return nil, nil
}
func (f *fakeAdapter) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	return nil, nil
}
func (f *fakeAdapter) BlockTime(ctx context.Context, blockNumber uint64) (int64, error) {
	return 0, nil
}

type noopSub struct{ errCh chan error }

func (s *noopSub) Unsubscribe()        {}
func (s *noopSub) Err() <-chan error   { return s.errCh }

func newTestSupervisor(configs *fakeConfigStore) *Supervisor {
	d := dispatcher.New(nil, nil, 0)
	s := New(configs, d, nil, nil, listener.PullParams{}, time.Minute, 5, time.Second)
	s.newAdapter = func(cfg types.ChainConfig, log logger.Logger, m *metrics.Metrics) (chainadapter.Adapter, error) {
		return &fakeAdapter{chainID: cfg.ChainID, head: 0}, nil
	}
	return s
}

func TestEffectiveStrategyFallsBackToPullWithoutStreamURL(t *testing.T) {
	cfg := types.ChainConfig{Strategy: types.StrategyPush, StreamURL: ""}
	assert.Equal(t, types.StrategyPull, effectiveStrategy(cfg))

	cfg.StreamURL = "wss://example"
	assert.Equal(t, types.StrategyPush, effectiveStrategy(cfg))
}

func TestEffectiveStrategyHybridPrefersPushWhenStreamAvailable(t *testing.T) {
	cfg := types.ChainConfig{Strategy: types.StrategyHybrid, StreamURL: "wss://example"}
	assert.Equal(t, types.StrategyPush, effectiveStrategy(cfg))

	cfg.StreamURL = ""
	assert.Equal(t, types.StrategyPull, effectiveStrategy(cfg))
}

func TestStartChainUsesPullWithoutStreamURL(t *testing.T) {
	configs := &fakeConfigStore{
		chains: []types.ChainConfig{{ChainID: 1, Name: "ethereum", Strategy: types.StrategyPush, StreamURL: ""}},
	}
	s := newTestSupervisor(configs)

	cfg := configs.chains[0]
	adapter := &fakeAdapter{chainID: 1, head: 100}
	strategy := effectiveStrategy(cfg)
	l, err := s.buildListener(context.Background(), cfg, adapter, strategy)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyPull, l.Strategy())
}

func TestStatusReflectsRunningChains(t *testing.T) {
	configs := &fakeConfigStore{
		chains: []types.ChainConfig{{ChainID: 1, Name: "ethereum", Strategy: types.StrategyPull}},
	}
	s := newTestSupervisor(configs)
	require.NoError(t, s.Start(context.Background()))

	status := s.Status(context.Background())
	require.Len(t, status.Chains, 1)
	assert.Equal(t, int64(1), status.Chains[0].ChainID)
	assert.True(t, status.Chains[0].IsRunning)
	assert.Equal(t, uint64(0), status.Chains[0].LatestBlock)

	s.StopAll()
	status = s.Status(context.Background())
	assert.Len(t, status.Chains, 0)
}

func TestRestartListenerReloadsConfig(t *testing.T) {
	configs := &fakeConfigStore{
		chains: []types.ChainConfig{{ChainID: 1, Name: "ethereum", Strategy: types.StrategyPull}},
	}
	s := newTestSupervisor(configs)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.RestartListener(context.Background(), 1))
	cs, err := s.ChainStatus(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, cs.IsRunning)
}

func TestShutdownStopsAllListenersWithinGracePeriod(t *testing.T) {
	configs := &fakeConfigStore{
		chains: []types.ChainConfig{
			{ChainID: 1, Name: "ethereum", Strategy: types.StrategyPull},
			{ChainID: 2, Name: "polygon", Strategy: types.StrategyPull},
		},
	}
	s := newTestSupervisor(configs)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Len(t, s.Status(context.Background()).Chains, 0)
}
