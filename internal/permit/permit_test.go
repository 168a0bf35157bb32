package permit

import (
	"math/big"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twapd/internal/common"
)

var permit2Addr = ethcommon.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")

func testPermit(now time.Time) TransferPermit {
	return TransferPermit{
		Owner:    ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		Token:    ethcommon.HexToAddress("0x2222222222222222222222222222222222222222"),
		Spender:  ethcommon.HexToAddress("0x3333333333333333333333333333333333333333"),
		Amount:   big.NewInt(1_000_000),
		Nonce:    7,
		Deadline: now.Add(30 * time.Minute),
	}
}

func TestSignTransferPermitRecoversSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Now()

	p := testPermit(now)
	p.Owner = crypto.PubkeyToAddress(key.PublicKey)

	signed, err := SignTransferPermit(key, common.EthereumMainnet, permit2Addr, p, now)
	require.NoError(t, err)

	typedData := BuildPermitTypedData(common.EthereumMainnet, permit2Addr, p)
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	require.NoError(t, err)

	sig, err := hexutil.Decode(signed.Signature)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	sig[64] -= 27

	pub, err := crypto.SigToPub(hash, sig)
	require.NoError(t, err)
	assert.Equal(t, p.Owner, crypto.PubkeyToAddress(*pub))
}

func TestSignTransferPermitValidation(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	now := time.Now()

	_, err = SignTransferPermit(nil, common.EthereumMainnet, permit2Addr, testPermit(now), now)
	assert.ErrorIs(t, err, ErrMissingSigner)

	expired := testPermit(now)
	expired.Deadline = now.Add(-time.Minute)
	_, err = SignTransferPermit(key, common.EthereumMainnet, permit2Addr, expired, now)
	assert.ErrorIs(t, err, ErrDeadlineNotAhead)

	noAmount := testPermit(now)
	noAmount.Amount = nil
	_, err = SignTransferPermit(key, common.EthereumMainnet, permit2Addr, noAmount, now)
	assert.ErrorIs(t, err, ErrMissingAmount)
}

func TestClampDeadline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// no order expiry: just the window
	assert.Equal(t, now.Add(MaxWindow), ClampDeadline(now, time.Time{}))

	// expiry beyond the window: window wins
	assert.Equal(t, now.Add(MaxWindow), ClampDeadline(now, now.Add(48*time.Hour)))

	// expiry inside the window: expiry wins
	soon := now.Add(10 * time.Minute)
	assert.Equal(t, soon, ClampDeadline(now, soon))
}

func TestPayloadRoundTrip(t *testing.T) {
	now := time.Now()
	p := testPermit(now)
	sp := &SignedPermit{
		Permit:    p,
		Signature: hexutil.Encode(make([]byte, 65)),
	}

	payload, err := sp.Payload()
	require.NoError(t, err)

	values, err := payloadArgs.Unpack(payload)
	require.NoError(t, err)

	assert.Equal(t, p.Token, values[0].(ethcommon.Address))
	assert.Equal(t, p.Owner, values[1].(ethcommon.Address))
	assert.Equal(t, 0, values[2].(*big.Int).Cmp(p.Amount))
	assert.Equal(t, uint64(7), values[3].(*big.Int).Uint64())
}

func TestFromSubmission(t *testing.T) {
	sub := &common.PermitSubmission{
		Owner:     "0x1111111111111111111111111111111111111111",
		Token:     "0x2222222222222222222222222222222222222222",
		Spender:   "0x3333333333333333333333333333333333333333",
		Amount:    "1000000",
		Nonce:     3,
		Deadline:  1750000000,
		Signature: "0xdead",
	}

	sp, err := FromSubmission(sub)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), sp.Permit.Amount.Int64())
	assert.Equal(t, uint64(3), sp.Permit.Nonce)
	assert.Equal(t, int64(1750000000), sp.Permit.Deadline.Unix())

	sub.Amount = "not-a-number"
	_, err = FromSubmission(sub)
	assert.Error(t, err)
}
