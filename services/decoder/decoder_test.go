package decoder

import (
	"math/big"
	"testing"

	"chainindexer/shared/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferLog(from, to string, value *big.Int) RawLog {
	data := make([]byte, 32)
	value.FillBytes(data)

	return RawLog{
		Address: common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Topics: []common.Hash{
			transferTopic0,
			common.BytesToHash(common.HexToAddress(from).Bytes()),
			common.BytesToHash(common.HexToAddress(to).Bytes()),
		},
		Data: data,
	}
}

func contractCfg(decimals int, stablecoin bool) types.ContractConfig {
	return types.ContractConfig{
		ChainID: 1,
		Address: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Events:  []string{transferTopic0.Hex()},
		ABI:     []string{transferSignature},
		Enabled: true,
		Metadata: types.JSONMap{
			"decimals":     float64(decimals),
			"isStablecoin": stablecoin,
		},
	}
}

func TestDecodeTransferHappyPath(t *testing.T) {
	cfg := contractCfg(6, true)
	idx := BuildIndex(cfg)

	log := transferLog(
		"0x0100000000000000000000000000000000000000",
		"0x0200000000000000000000000000000000000000",
		big.NewInt(250_000_000_000),
	)

	decoded, err := Decode(log, cfg, idx)
	require.NoError(t, err)
	assert.Equal(t, "Transfer", decoded.Name)

	args, ok := decoded.Args.(types.TransferArgs)
	require.True(t, ok)
	assert.Equal(t, "250,000.000000", args.ValueFormatted)
	assert.True(t, args.IsLargeTransfer)
}

func TestDecodeMintMegaWhale(t *testing.T) {
	cfg := contractCfg(18, false)
	idx := BuildIndex(cfg)

	value := new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)
	log := transferLog(ZeroAddress, "0x0300000000000000000000000000000000000000", value)

	decoded, err := Decode(log, cfg, idx)
	require.NoError(t, err)

	args := decoded.Args.(types.TransferArgs)
	assert.Equal(t, "1,000,000.000000", args.ValueFormatted)
	assert.True(t, args.IsLargeTransfer)
	assert.Equal(t, ZeroAddress, args.From)
}

func TestDecodeUnrecognizedTopicFails(t *testing.T) {
	cfg := contractCfg(18, false)
	idx := BuildIndex(cfg)

	log := transferLog("0x01", "0x02", big.NewInt(1))
	log.Topics[0] = approvalTopic0 // not in this contract's ABI/events list

	_, err := Decode(log, cfg, idx)
	assert.Error(t, err)
}

func TestIsLargeTransferBoundary(t *testing.T) {
	stablecoinThreshold := new(big.Int).Mul(big.NewInt(100_000), pow10(6))
	assert.True(t, IsLargeTransfer(stablecoinThreshold, 6, true))
	assert.False(t, IsLargeTransfer(new(big.Int).Sub(stablecoinThreshold, big.NewInt(1)), 6, true))

	nonStableThreshold := new(big.Int).Mul(big.NewInt(1_000_000), pow10(18))
	assert.True(t, IsLargeTransfer(nonStableThreshold, 18, false))
	assert.False(t, IsLargeTransfer(new(big.Int).Sub(nonStableThreshold, big.NewInt(1)), 18, false))
}
