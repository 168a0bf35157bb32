package interaction

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"twapd/internal/common"
)

var (
	ErrMissingChunkAmount = errors.New("chunk amount is required")
	ErrBlobLength         = errors.New("interactions blob has wrong length")
	ErrWrongHook          = errors.New("interactions blob targets a different hook contract")
)

// EncodedLength is the constant byte length of the interactions blob: the
// 20-byte hook address followed by the ABI-encoded 7-field tuple. The
// contract-side decoder relies on this length never changing; omitted
// optional sections are zero-filled, not dropped.
const EncodedLength = 20 + 7*32

// Params is the fixed-layout parameter record the on-chain TWAP hook decodes.
// Field order and widths are frozen; any change is a breaking wire-format
// change.
type Params struct {
	IntervalSeconds   uint64
	TotalChunks       uint64
	ChunkInAmount     *big.Int
	MinOutPerChunk    *big.Int
	PostFillDeposit   bool
	PostFillRecipient ethcommon.Address
	PostFillPool      ethcommon.Address
}

// tupleArgs describes the ABI layout after the hook address prefix.
var tupleArgs = func() abi.Arguments {
	uint64Type, _ := abi.NewType("uint64", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	boolType, _ := abi.NewType("bool", "", nil)
	addressType, _ := abi.NewType("address", "", nil)

	return abi.Arguments{
		{Type: uint64Type},  // interval
		{Type: uint64Type},  // totalChunks
		{Type: uint256Type}, // chunkInAmount
		{Type: uint256Type}, // minOutPerChunk
		{Type: boolType},    // postFillDeposit
		{Type: addressType}, // postFillRecipient
		{Type: addressType}, // postFillPool
	}
}()

// FromSchedule maps a fill schedule onto the hook parameter record. An
// unbounded schedule encodes totalChunks = 0; the hook treats zero as "no
// chunk cap".
func FromSchedule(sched *common.FillSchedule) Params {
	return Params{
		IntervalSeconds: sched.IntervalSeconds,
		TotalChunks:     sched.TotalCycles,
		ChunkInAmount:   sched.ChunkInAmount,
		MinOutPerChunk:  sched.MinOutPerChunk,
	}
}

// WithPostFillDeposit returns a copy of p with the post-fill deposit section
// populated.
func (p Params) WithPostFillDeposit(recipient, pool ethcommon.Address) Params {
	p.PostFillDeposit = true
	p.PostFillRecipient = recipient
	p.PostFillPool = pool
	return p
}

// Encode serializes the parameter record, prefixed with the hook contract
// address. It is pure and total: identical inputs always produce
// byte-identical output, which is required because the blob becomes part of
// the signed order hash.
func Encode(hook ethcommon.Address, p Params) ([]byte, error) {
	if p.ChunkInAmount == nil || p.ChunkInAmount.Sign() <= 0 {
		return nil, ErrMissingChunkAmount
	}
	minOut := p.MinOutPerChunk
	if minOut == nil {
		minOut = big.NewInt(0)
	}

	packed, err := tupleArgs.Pack(
		p.IntervalSeconds,
		p.TotalChunks,
		p.ChunkInAmount,
		minOut,
		p.PostFillDeposit,
		p.PostFillRecipient,
		p.PostFillPool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack hook params: %w", err)
	}

	blob := make([]byte, 0, EncodedLength)
	blob = append(blob, hook.Bytes()...)
	blob = append(blob, packed...)
	return blob, nil
}

// EncodeSingleFill builds the default record used when no TWAP schedule is
// supplied: one chunk for the full amount, zero minimum output.
func EncodeSingleFill(hook ethcommon.Address, amount *big.Int) ([]byte, error) {
	return Encode(hook, Params{
		IntervalSeconds: 0,
		TotalChunks:     1,
		ChunkInAmount:   amount,
	})
}

// VerifyHook decodes a blob and rejects it unless it targets the given hook
// contract. Orders built elsewhere go through this before being tracked.
func VerifyHook(blob []byte, hook ethcommon.Address) (Params, error) {
	got, p, err := Decode(blob)
	if err != nil {
		return Params{}, err
	}
	if got != hook {
		return Params{}, ErrWrongHook
	}
	return p, nil
}

// Decode recovers the hook address and parameter record from a blob. The
// on-chain hook performs the equivalent parse; this exists for inspection and
// round-trip verification.
func Decode(blob []byte) (ethcommon.Address, Params, error) {
	if len(blob) != EncodedLength {
		return ethcommon.Address{}, Params{}, ErrBlobLength
	}

	hook := ethcommon.BytesToAddress(blob[:20])
	values, err := tupleArgs.Unpack(blob[20:])
	if err != nil {
		return ethcommon.Address{}, Params{}, fmt.Errorf("failed to unpack hook params: %w", err)
	}

	return hook, Params{
		IntervalSeconds:   values[0].(uint64),
		TotalChunks:       values[1].(uint64),
		ChunkInAmount:     values[2].(*big.Int),
		MinOutPerChunk:    values[3].(*big.Int),
		PostFillDeposit:   values[4].(bool),
		PostFillRecipient: values[5].(ethcommon.Address),
		PostFillPool:      values[6].(ethcommon.Address),
	}, nil
}
