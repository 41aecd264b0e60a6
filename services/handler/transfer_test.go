package handler

import (
	"context"
	"math/big"
	"testing"

	"chainindexer/services/decoder"
	"chainindexer/shared/chainerr"
	"chainindexer/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigStore struct {
	contracts map[string]*types.ContractConfig
}

func (f *fakeConfigStore) EnabledChains(ctx context.Context) ([]types.ChainConfig, error) {
	return nil, nil
}
func (f *fakeConfigStore) ChainByID(ctx context.Context, chainID int64) (*types.ChainConfig, error) {
	return nil, nil
}
func (f *fakeConfigStore) EnabledContracts(ctx context.Context, chainID int64) ([]types.ContractConfig, error) {
	return nil, nil
}
func (f *fakeConfigStore) ContractByAddress(ctx context.Context, chainID int64, address string) (*types.ContractConfig, error) {
	return f.contracts[address], nil
}

type fakeEventStore struct {
	inserted []*types.BlockchainEvent
	existing map[string]bool
	data     map[string]*types.ContractData
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{existing: map[string]bool{}, data: map[string]*types.ContractData{}}
}

func (f *fakeEventStore) key(chainID int64, tx string, logIndex uint) string {
	return tx
}

func (f *fakeEventStore) InsertEvent(ctx context.Context, ev *types.BlockchainEvent) error {
	k := f.key(ev.ChainID, ev.TransactionHash, ev.LogIndex)
	if f.existing[k] {
		return chainerr.ErrDuplicateEvent
	}
	f.existing[k] = true
	f.inserted = append(f.inserted, ev)
	return nil
}

func (f *fakeEventStore) EventExists(ctx context.Context, chainID int64, txHash string, logIndex uint) (bool, error) {
	return f.existing[f.key(chainID, txHash, logIndex)], nil
}

func (f *fakeEventStore) GetContractData(ctx context.Context, chainID int64, address string) (*types.ContractData, error) {
	return f.data[address], nil
}

func (f *fakeEventStore) UpsertContractData(ctx context.Context, cd *types.ContractData) error {
	f.data[cd.ContractAddress] = cd
	return nil
}

func (f *fakeEventStore) QueryEvents(ctx context.Context, filter types.EventFilter) ([]types.BlockchainEvent, error) {
	return nil, nil
}

func transferEvent(address, from, to string, decimals int, stablecoin bool) *types.BlockchainEvent {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	valueRaw := new(big.Int).Mul(big.NewInt(500_000), scale)
	formatted := decoder.FormatValue(valueRaw, decimals)
	large := decoder.IsLargeTransfer(valueRaw, decimals, stablecoin)

	return &types.BlockchainEvent{
		ChainID:         1,
		TransactionHash: "0xabc",
		LogIndex:        0,
		BlockNumber:     100,
		EventType:       "contract_log",
		ContractAddress: address,
		Data: types.EventData{
			Topics: []string{decoder.TransferTopic0.Hex()},
			Event: types.DecodedEvent{
				Name:      "Transfer",
				Signature: "Transfer(address,address,uint256)",
				Args: map[string]interface{}{
					"from":            from,
					"to":              to,
					"valueRaw":        valueRaw.String(),
					"valueFormatted":  formatted,
					"isLargeTransfer": large,
				},
			},
		},
	}
}

func TestHandleUnknownContractIsSkipped(t *testing.T) {
	configs := &fakeConfigStore{contracts: map[string]*types.ContractConfig{}}
	events := newFakeEventStore()
	h := New(configs, events, nil, nil, nil)

	ev := transferEvent("0xdead", "0x01", "0x02", 18, false)
	err := h.Handle(ev)

	require.NoError(t, err)
	assert.Empty(t, events.inserted)
}

func TestHandlePersistsAndClassifiesMint(t *testing.T) {
	configs := &fakeConfigStore{contracts: map[string]*types.ContractConfig{
		"0xc0ffee": {ChainID: 1, Address: "0xc0ffee", Name: "Coin", Symbol: "COIN", Type: "erc20"},
	}}
	events := newFakeEventStore()
	h := New(configs, events, nil, nil, nil)

	ev := transferEvent("0xc0ffee", decoder.ZeroAddress, "0x02", 18, false)
	err := h.Handle(ev)

	require.NoError(t, err)
	require.Len(t, events.inserted, 1)
	assert.Equal(t, "mint", events.inserted[0].TransferType)

	cd := events.data["0xc0ffee"]
	require.NotNil(t, cd)
	assert.Equal(t, int64(100), cd.LastProcessedBlock)
	assert.EqualValues(t, 1, cd.TransferCount())
}

func TestHandleSkipsDuplicateByStore(t *testing.T) {
	configs := &fakeConfigStore{contracts: map[string]*types.ContractConfig{
		"0xc0ffee": {ChainID: 1, Address: "0xc0ffee"},
	}}
	events := newFakeEventStore()
	h := New(configs, events, nil, nil, nil)

	ev1 := transferEvent("0xc0ffee", "0x01", "0x02", 18, false)
	ev2 := transferEvent("0xc0ffee", "0x01", "0x02", 18, false)

	require.NoError(t, h.Handle(ev1))
	require.NoError(t, h.Handle(ev2))
	assert.Len(t, events.inserted, 1)
}

func TestCanHandleRequiresTransferTopicAndType(t *testing.T) {
	h := New(nil, nil, nil, nil, nil)
	ev := transferEvent("0xc0ffee", "0x01", "0x02", 18, false)
	assert.True(t, h.CanHandle(ev))

	ev.EventType = "native_tx"
	assert.False(t, h.CanHandle(ev))
}
