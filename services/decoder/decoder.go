// Package decoder turns a raw EVM log into a typed decoded-event
// record per a contract's configured ABI.
package decoder

import (
	"fmt"
	"math/big"
	"strings"

	"chainindexer/shared/chainerr"
	"chainindexer/shared/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	transferSignature = "Transfer(address,address,uint256)"
	approvalSignature = "Approval(address,address,uint256)"

	transferTopic0 = crypto.Keccak256Hash([]byte(transferSignature))
	approvalTopic0 = crypto.Keccak256Hash([]byte(approvalSignature))
)

// TransferTopic0 is the canonical topic-0 hash of
// Transfer(address,address,uint256), exported so other packages (the
// transfer handler's CanHandle check) can match on it without
// re-deriving the signature hash.
var TransferTopic0 = transferTopic0

// ZeroAddress is the canonical EVM zero address used to classify
// mint/burn transfers.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// RawLog is the minimal shape the decoder needs from an upstream log
// notification or eth_getLogs result.
type RawLog struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	TxIndex     uint
}

// Decoded is the outcome of a successful decode: the resolved event
// name/signature, the typed argument union, and a JSON-serializable
// projection of the args for storage.
type Decoded struct {
	Name      string
	Signature string
	Args      types.EventArgs
	ArgsJSON  map[string]interface{}
}

// signatureIndex resolves a contract's configured ABI signature list
// into a topic-0 -> signature lookup, built once per ContractConfig.
type signatureIndex map[common.Hash]string

// BuildIndex derives the topic-0 -> signature map for a contract's
// ABI list. Every hash in cfg.Events must resolve to exactly one
// signature in cfg.ABI; callers should validate this at config load
// time (the invariant is enforced by the config store, not re-checked
// here on every decode).
func BuildIndex(cfg types.ContractConfig) signatureIndex {
	idx := make(signatureIndex, len(cfg.ABI))
	for _, sig := range cfg.ABI {
		hash := crypto.Keccak256Hash([]byte(sig))
		idx[hash] = sig
	}
	return idx
}

// Decode decodes log against the contract's ABI, returning
// chainerr.ErrDecodeFailed if the log's topic-0 isn't in the
// contract's signature index or the payload doesn't match the
// expected shape.
func Decode(log RawLog, cfg types.ContractConfig, idx signatureIndex) (*Decoded, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("decoder: log has no topics: %w", chainerr.ErrDecodeFailed)
	}

	sig, ok := idx[log.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("decoder: unrecognized topic0 %s: %w", log.Topics[0].Hex(), chainerr.ErrDecodeFailed)
	}
	name := eventName(sig)

	switch log.Topics[0] {
	case transferTopic0:
		return decodeTransfer(log, cfg, sig, name)
	case approvalTopic0:
		return decodeApproval(log, cfg, sig, name)
	default:
		return decodeRaw(log, sig, name), nil
	}
}

func eventName(signature string) string {
	if i := strings.Index(signature, "("); i >= 0 {
		return signature[:i]
	}
	return signature
}

func decodeTransfer(log RawLog, cfg types.ContractConfig, sig, name string) (*Decoded, error) {
	if len(log.Topics) < 3 || len(log.Data) < 32 {
		return nil, fmt.Errorf("decoder: malformed Transfer log: %w", chainerr.ErrDecodeFailed)
	}

	from := common.HexToAddress(log.Topics[1].Hex()).Hex()
	to := common.HexToAddress(log.Topics[2].Hex()).Hex()
	valueRaw := new(big.Int).SetBytes(log.Data[:32])

	decimals := cfg.Decimals()
	formatted := FormatValue(valueRaw, decimals)
	large := IsLargeTransfer(valueRaw, decimals, cfg.IsStablecoin())

	args := types.TransferArgs{
		From:            strings.ToLower(from),
		To:              strings.ToLower(to),
		ValueRaw:        valueRaw.String(),
		ValueFormatted:  formatted,
		IsLargeTransfer: large,
	}

	return &Decoded{
		Name:      name,
		Signature: sig,
		Args:      args,
		ArgsJSON: map[string]interface{}{
			"from":            args.From,
			"to":              args.To,
			"valueRaw":        args.ValueRaw,
			"valueFormatted":  args.ValueFormatted,
			"isLargeTransfer": args.IsLargeTransfer,
		},
	}, nil
}

func decodeApproval(log RawLog, cfg types.ContractConfig, sig, name string) (*Decoded, error) {
	if len(log.Topics) < 3 || len(log.Data) < 32 {
		return nil, fmt.Errorf("decoder: malformed Approval log: %w", chainerr.ErrDecodeFailed)
	}

	owner := common.HexToAddress(log.Topics[1].Hex()).Hex()
	spender := common.HexToAddress(log.Topics[2].Hex()).Hex()
	valueRaw := new(big.Int).SetBytes(log.Data[:32])

	// Scaled by the contract's configured decimals, as for Transfer
	// (cfg.Decimals falls back to 18 when metadata omits it).
	formatted := FormatValue(valueRaw, cfg.Decimals())

	args := types.ApprovalArgs{
		Owner:          strings.ToLower(owner),
		Spender:        strings.ToLower(spender),
		ValueRaw:       valueRaw.String(),
		ValueFormatted: formatted,
	}

	return &Decoded{
		Name:      name,
		Signature: sig,
		Args:      args,
		ArgsJSON: map[string]interface{}{
			"owner":          args.Owner,
			"spender":        args.Spender,
			"valueRaw":       args.ValueRaw,
			"valueFormatted": args.ValueFormatted,
		},
	}, nil
}

func decodeRaw(log RawLog, sig, name string) *Decoded {
	topics := make([]string, len(log.Topics))
	for i, t := range log.Topics {
		topics[i] = t.Hex()
	}
	args := types.RawArgs{
		Topics: topics,
		Data:   common.Bytes2Hex(log.Data),
	}
	return &Decoded{
		Name:      name,
		Signature: sig,
		Args:      args,
		ArgsJSON: map[string]interface{}{
			"topics": args.Topics,
			"data":   args.Data,
		},
	}
}

// FormatValue implements a deliberately lossy scaling formula:
// multiply by 10^6 before dividing by 10^decimals, integer divide,
// then present the result as a fixed 6-fractional-digit, comma-grouped
// decimal string. This caps precision at 6 fractional digits by
// construction and must not be "improved" — downstream records depend
// on the exact lossy value.
func FormatValue(valueRaw *big.Int, decimals int) string {
	million := big.NewInt(1_000_000)
	scale := pow10(decimals)

	numerator := new(big.Int).Mul(valueRaw, million)
	scaledMicros := new(big.Int).Quo(numerator, scale)

	whole := new(big.Int)
	micros := new(big.Int)
	whole.QuoRem(scaledMicros, million, micros)
	if micros.Sign() < 0 {
		micros.Neg(micros)
	}

	return groupThousands(whole.String()) + "." + fmt.Sprintf("%06d", micros.Int64())
}

// IsLargeTransfer reports whether the scaled amount valueRaw/10^decimals
// meets or exceeds the stablecoin (100,000) or non-stablecoin
// (1,000,000) threshold. The boundary value counts as large.
func IsLargeTransfer(valueRaw *big.Int, decimals int, isStablecoin bool) bool {
	threshold := big.NewInt(1_000_000)
	if isStablecoin {
		threshold = big.NewInt(100_000)
	}
	thresholdRaw := new(big.Int).Mul(threshold, pow10(decimals))
	return valueRaw.Cmp(thresholdRaw) >= 0
}

func pow10(n int) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	n := len(s)
	if n <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	first := n % 3
	if first == 0 {
		first = 3
	}
	b.WriteString(s[:first])
	for i := first; i < n; i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}

	out := b.String()
	if neg {
		return "-" + out
	}
	return out
}
