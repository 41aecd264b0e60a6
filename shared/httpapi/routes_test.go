package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chainindexer/services/dispatcher"
	"chainindexer/services/listener"
	"chainindexer/services/supervisor"
	"chainindexer/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigStore struct {
	chains []types.ChainConfig
}

func (f *fakeConfigStore) EnabledChains(ctx context.Context) ([]types.ChainConfig, error) {
	return f.chains, nil
}
func (f *fakeConfigStore) ChainByID(ctx context.Context, chainID int64) (*types.ChainConfig, error) {
	return nil, nil
}
func (f *fakeConfigStore) EnabledContracts(ctx context.Context, chainID int64) ([]types.ContractConfig, error) {
	return nil, nil
}
func (f *fakeConfigStore) ContractByAddress(ctx context.Context, chainID int64, address string) (*types.ContractConfig, error) {
	return nil, nil
}

type fakeConfigAdmin struct {
	contracts    []types.ContractConfig
	enabledSym   map[string]bool
	enabledChain map[int64]bool
}

func (f *fakeConfigAdmin) ContractsBySymbol(ctx context.Context, symbol string) ([]types.ContractConfig, error) {
	var out []types.ContractConfig
	for _, c := range f.contracts {
		if c.Symbol == symbol {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConfigAdmin) SetContractEnabledBySymbol(ctx context.Context, symbol string, enabled bool) error {
	if f.enabledSym == nil {
		f.enabledSym = map[string]bool{}
	}
	f.enabledSym[symbol] = enabled
	return nil
}

func (f *fakeConfigAdmin) SetChainEnabled(ctx context.Context, chainID int64, enabled bool) error {
	if f.enabledChain == nil {
		f.enabledChain = map[int64]bool{}
	}
	f.enabledChain[chainID] = enabled
	return nil
}

func newTestServer() (*Server, *fakeConfigAdmin) {
	d := dispatcher.New(nil, nil, 0)
	sup := supervisor.New(&fakeConfigStore{}, d, nil, nil, listener.PullParams{}, time.Minute, 5, time.Second)
	admin := &fakeConfigAdmin{contracts: []types.ContractConfig{{ChainID: 1, Address: "0xabc", Symbol: "USDC"}}}
	return New(":0", sup, admin, nil), admin
}

func TestWorkerHealthHandlerReturnsOK(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/worker/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusHandlerEmptySupervisor(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/blockchain/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body supervisor.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.EnabledChains)
}

func TestChainStatusHandlerNotFound(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/blockchain/chains/7/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStrategyHandlerRejectsMalformedBody(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/blockchain/chains/1/strategy", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContractsBySymbolHandler(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/blockchain/contracts/symbol/USDC", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var contracts []types.ContractConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contracts))
	require.Len(t, contracts, 1)
	assert.Equal(t, "0xabc", contracts[0].Address)
}

func TestEnableDisableSymbolHandlers(t *testing.T) {
	s, admin := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/blockchain/contracts/enable-symbol/USDC", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, admin.enabledSym["USDC"])

	req = httptest.NewRequest(http.MethodPost, "/blockchain/contracts/disable-symbol/USDC", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, admin.enabledSym["USDC"])
}

func TestEnableDisableChainHandlers(t *testing.T) {
	s, admin := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/blockchain/contracts/enable-chain/1", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, admin.enabledChain[1])

	req = httptest.NewRequest(http.MethodPost, "/blockchain/contracts/disable-chain/1", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, admin.enabledChain[1])
}
