// Package supervisor owns the lifecycle of every chain's listener:
// starting and stopping the set matching the enabled chain configs,
// restarting or switching strategy for one chain, and reporting a
// status snapshot for the operator HTTP surface.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chainindexer/services/chainadapter"
	"chainindexer/services/dispatcher"
	"chainindexer/services/listener"
	"chainindexer/shared/chainerr"
	"chainindexer/shared/logger"
	"chainindexer/shared/metrics"
	"chainindexer/shared/store"
	"chainindexer/shared/types"
)

// ChainStatus is one chain's entry in a status snapshot.
type ChainStatus struct {
	ChainID     int64          `json:"chainId"`
	Name        string         `json:"name"`
	Strategy    types.Strategy `json:"strategy"`
	State       listener.State `json:"state"`
	IsRunning   bool           `json:"isRunning"`
	LatestBlock uint64         `json:"latestBlock"`
	Diagnostic  string         `json:"diagnostic,omitempty"`
}

// Status is the supervisor's full status snapshot.
type Status struct {
	EnabledChains       int           `json:"enabledChains"`
	DispatcherQueueSize int           `json:"dispatcherQueueSize"`
	HandlerCount        int           `json:"handlerCount"`
	Chains              []ChainStatus `json:"chains"`
}

type chainRuntime struct {
	mu       sync.Mutex
	cfg      types.ChainConfig
	adapter  chainadapter.Adapter
	listener listener.Listener
}

// Supervisor starts, stops, and restarts per-chain listeners, and
// reports status. It owns no storage of its own beyond the in-memory
// runtime map; Start and RestartListener read configuration from the
// config store, while SwitchStrategy changes only the in-memory copy.
type Supervisor struct {
	configs     store.ConfigStore
	dispatch    *dispatcher.Dispatcher
	log         logger.Logger
	metric      *metrics.Metrics
	pullParams  listener.PullParams
	refreshMs   time.Duration
	reconnects  int
	gracePeriod time.Duration

	// newAdapter builds the chain adapter for startChain. Defaults to
	// chainadapter.New; overridable in tests to avoid dialing real
	// transports.
	newAdapter func(cfg types.ChainConfig, log logger.Logger, m *metrics.Metrics) (chainadapter.Adapter, error)

	mu     sync.Mutex
	chains map[int64]*chainRuntime
}

// New builds a Supervisor. refreshInterval/reconnectAttempts are
// passed through to every push listener it creates; gracePeriod
// bounds Shutdown.
func New(configs store.ConfigStore, dispatch *dispatcher.Dispatcher, log logger.Logger, m *metrics.Metrics, pullParams listener.PullParams, refreshInterval time.Duration, reconnectAttempts int, gracePeriod time.Duration) *Supervisor {
	if gracePeriod <= 0 {
		gracePeriod = 30 * time.Second
	}
	return &Supervisor{
		configs:     configs,
		dispatch:    dispatch,
		log:         log,
		metric:      m,
		pullParams:  pullParams,
		refreshMs:   refreshInterval,
		reconnects:  reconnectAttempts,
		gracePeriod: gracePeriod,
		newAdapter:  chainadapter.New,
		chains:      map[int64]*chainRuntime{},
	}
}

// Start connects and starts a listener for every enabled chain
// config. A single chain's connect/start failure is logged and does
// not block the others.
func (s *Supervisor) Start(ctx context.Context) error {
	chains, err := s.configs.EnabledChains(ctx)
	if err != nil {
		return fmt.Errorf("supervisor: load enabled chains: %w", err)
	}

	for _, cfg := range chains {
		if err := s.startChain(ctx, cfg); err != nil {
			if s.log != nil {
				s.log.Error("supervisor: chain=%d failed to start: %v", cfg.ChainID, err)
			}
		}
	}
	return nil
}

func (s *Supervisor) startChain(ctx context.Context, cfg types.ChainConfig) error {
	adapter, err := s.newAdapter(cfg, s.log, s.metric)
	if err != nil {
		return err
	}
	if err := adapter.Connect(ctx); err != nil {
		return err
	}

	strategy := effectiveStrategy(cfg)
	l, err := s.buildListener(ctx, cfg, adapter, strategy)
	if err != nil {
		adapter.Disconnect()
		return err
	}
	if err := l.Start(ctx); err != nil {
		adapter.Disconnect()
		return err
	}

	rt := &chainRuntime{cfg: cfg, adapter: adapter, listener: l}
	s.mu.Lock()
	s.chains[cfg.ChainID] = rt
	s.mu.Unlock()

	if s.log != nil {
		s.log.WithChain(cfg.ChainID).Info("listener started strategy=%s", strategy)
	}
	return nil
}

// effectiveStrategy resolves hybrid (and push-without-stream) down to
// a concrete strategy: push only when a streaming URL is configured,
// pull otherwise.
func effectiveStrategy(cfg types.ChainConfig) types.Strategy {
	switch cfg.Strategy {
	case types.StrategyPush, types.StrategyHybrid:
		if cfg.StreamURL != "" {
			return types.StrategyPush
		}
		return types.StrategyPull
	default:
		return types.StrategyPull
	}
}

func (s *Supervisor) buildListener(ctx context.Context, cfg types.ChainConfig, adapter chainadapter.Adapter, strategy types.Strategy) (listener.Listener, error) {
	switch strategy {
	case types.StrategyPush:
		return listener.NewPushListener(cfg.ChainID, adapter, s.configs, s.dispatch, s.log, s.metric, s.refreshMs, s.reconnects), nil
	case types.StrategyPull:
		head, err := adapter.LatestBlock(ctx)
		if err != nil {
			return nil, fmt.Errorf("supervisor: chain=%d head lookup for pull listener: %w", cfg.ChainID, err)
		}
		return listener.NewPullListener(cfg.ChainID, adapter, s.configs, s.dispatch, s.log, s.metric, s.pullParams, int64(head)), nil
	default:
		return nil, fmt.Errorf("supervisor: chain=%d: %w", cfg.ChainID, chainerr.ErrStrategyUnavailable)
	}
}

// RestartListener stops and restarts the listener for chainID,
// reloading its config from the store.
func (s *Supervisor) RestartListener(ctx context.Context, chainID int64) error {
	s.stopChain(chainID)

	cfg, err := s.configs.ChainByID(ctx, chainID)
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("supervisor: chain=%d not found", chainID)
	}
	return s.startChain(ctx, *cfg)
}

// SwitchStrategy stops the chain's current listener and starts a new
// one under newStrategy. A pull listener started this way begins its
// cursor at the chain head observed at switch time, so no event is
// lost or duplicated across the switchover.
func (s *Supervisor) SwitchStrategy(ctx context.Context, chainID int64, newStrategy types.Strategy) error {
	s.mu.Lock()
	rt, ok := s.chains[chainID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: chain=%d not running", chainID)
	}

	rt.mu.Lock()
	cfg := rt.cfg
	adapter := rt.adapter
	rt.mu.Unlock()

	if err := rt.listener.Stop(); err != nil && s.log != nil {
		s.log.Warn("supervisor: chain=%d stop before strategy switch: %v", chainID, err)
	}

	cfg.Strategy = newStrategy
	resolved := effectiveStrategy(cfg)
	l, err := s.buildListener(ctx, cfg, adapter, resolved)
	if err != nil {
		return err
	}
	if err := l.Start(ctx); err != nil {
		return err
	}

	rt.mu.Lock()
	rt.cfg = cfg
	rt.listener = l
	rt.mu.Unlock()
	return nil
}

func (s *Supervisor) stopChain(chainID int64) {
	s.mu.Lock()
	rt, ok := s.chains[chainID]
	if ok {
		delete(s.chains, chainID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	rt.mu.Lock()
	l := rt.listener
	adapter := rt.adapter
	rt.mu.Unlock()

	if err := l.Stop(); err != nil && s.log != nil {
		s.log.Warn("supervisor: chain=%d listener stop failed: %v", chainID, err)
	}
	if err := adapter.Disconnect(); err != nil && s.log != nil {
		s.log.Warn("supervisor: chain=%d adapter disconnect failed: %v", chainID, err)
	}
}

// StartAll / StopAll give the operator HTTP surface bulk control
// without touching per-chain config.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.chains))
	for id := range s.chains {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.stopChain(id)
	}
}

func (s *Supervisor) StartAll(ctx context.Context) error {
	return s.Start(ctx)
}

// Shutdown runs StopAll, which stops each chain's listener and then
// disconnects that chain's adapter, one chain at a time; it does not
// stop every listener before the first adapter is disconnected. It
// returns when StopAll finishes or the grace period (or ctx) expires,
// whichever comes first. Per-component errors are logged and never
// block shutdown.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.gracePeriod)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.StopAll()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		if s.log != nil {
			s.log.Warn("supervisor: shutdown grace period (%s) elapsed, abandoning remaining listeners", s.gracePeriod)
		}
	}
	return nil
}

// Status returns a snapshot of every supervised chain.
func (s *Supervisor) Status(ctx context.Context) Status {
	s.mu.Lock()
	runtimes := make([]*chainRuntime, 0, len(s.chains))
	for _, rt := range s.chains {
		runtimes = append(runtimes, rt)
	}
	s.mu.Unlock()

	status := Status{
		EnabledChains:       len(runtimes),
		DispatcherQueueSize: s.dispatch.QueueSize(),
		HandlerCount:        s.dispatch.HandlerCount(),
	}

	for _, rt := range runtimes {
		status.Chains = append(status.Chains, s.chainStatus(ctx, rt))
	}
	return status
}

// ChainStatus returns the snapshot for a single chain.
func (s *Supervisor) ChainStatus(ctx context.Context, chainID int64) (*ChainStatus, error) {
	s.mu.Lock()
	rt, ok := s.chains[chainID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("supervisor: chain=%d not running", chainID)
	}
	cs := s.chainStatus(ctx, rt)
	return &cs, nil
}

func (s *Supervisor) chainStatus(ctx context.Context, rt *chainRuntime) ChainStatus {
	rt.mu.Lock()
	cfg := rt.cfg
	adapter := rt.adapter
	l := rt.listener
	rt.mu.Unlock()

	state := l.State()
	cs := ChainStatus{
		ChainID:   cfg.ChainID,
		Name:      cfg.Name,
		Strategy:  l.Strategy(),
		State:     state,
		IsRunning: state == listener.StateRunning,
	}

	if head, err := adapter.LatestBlock(ctx); err == nil {
		cs.LatestBlock = head
	}
	if state == listener.StateExhausted {
		cs.Diagnostic = "push reconnect budget exhausted"
	}
	return cs
}
