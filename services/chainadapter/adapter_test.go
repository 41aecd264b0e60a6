package chainadapter

import (
	"testing"

	"chainindexer/shared/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnregisteredChainType(t *testing.T) {
	_, err := New(types.ChainConfig{ChainID: 1, Type: types.ChainTypeSolana}, nil, nil)
	assert.Error(t, err)
}

func TestNewEVMAdapterResolves(t *testing.T) {
	a, err := New(types.ChainConfig{ChainID: 1, Type: types.ChainTypeEVM, RPCURL: "http://127.0.0.1:0"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ChainID())
	assert.False(t, a.Connected())
}
