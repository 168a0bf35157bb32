package signer

import (
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twapd/internal/common"
	"twapd/internal/eip712"
)

var verifyingContract = ethcommon.HexToAddress("0x1111111254EEB25477B68fb85Ed929f73A960582")

func testParams(maker ethcommon.Address) OrderParams {
	return OrderParams{
		Maker:        maker,
		MakerAsset:   ethcommon.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
		TakerAsset:   ethcommon.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		MakingAmount: big.NewInt(1000),
		TakingAmount: big.NewInt(500),
		Salt:         big.NewInt(42),
	}
}

func TestBuildOrderIsDeterministic(t *testing.T) {
	s := New(common.EthereumMainnet, verifyingContract, nil)
	maker := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

	_, first, err := s.BuildOrder(testParams(maker))
	require.NoError(t, err)
	_, second, err := s.BuildOrder(testParams(maker))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuildOrderSaltChangesHash(t *testing.T) {
	s := New(common.EthereumMainnet, verifyingContract, nil)
	maker := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

	p := testParams(maker)
	_, first, err := s.BuildOrder(p)
	require.NoError(t, err)

	p.Salt = big.NewInt(43)
	_, second, err := s.BuildOrder(p)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestBuildOrderDefaults(t *testing.T) {
	s := New(common.EthereumMainnet, verifyingContract, nil)
	maker := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

	order, _, err := s.BuildOrder(testParams(maker))
	require.NoError(t, err)

	assert.Equal(t, maker.Hex(), order.Receiver, "receiver defaults to maker")
	assert.Equal(t, common.ZeroAddress, order.AllowedSender, "order is public by default")
	assert.Equal(t, "0x", order.Predicate)
	assert.Equal(t, "0x", order.Permit)
	assert.Equal(t, "0x", order.Interactions)
}

func TestBuildOrderGeneratesSaltWhenMissing(t *testing.T) {
	s := New(common.EthereumMainnet, verifyingContract, nil)
	maker := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

	p := testParams(maker)
	p.Salt = nil

	order, _, err := s.BuildOrder(p)
	require.NoError(t, err)
	assert.NotEmpty(t, order.Salt)
	assert.NotEqual(t, "0", order.Salt)
}

func TestBuildOrderValidation(t *testing.T) {
	s := New(common.EthereumMainnet, verifyingContract, nil)
	maker := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

	p := testParams(ethcommon.Address{})
	_, _, err := s.BuildOrder(p)
	assert.ErrorIs(t, err, ErrMissingMaker)

	p = testParams(maker)
	p.MakerAsset = ethcommon.Address{}
	_, _, err = s.BuildOrder(p)
	assert.ErrorIs(t, err, ErrMissingAsset)

	p = testParams(maker)
	p.MakingAmount = big.NewInt(0)
	_, _, err = s.BuildOrder(p)
	assert.ErrorIs(t, err, ErrMissingAmount)

	p = testParams(maker)
	p.TakingAmount = nil
	_, _, err = s.BuildOrder(p)
	assert.ErrorIs(t, err, ErrMissingAmount)
}

func TestSignOrderRecoversMaker(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	maker := crypto.PubkeyToAddress(key.PublicKey)

	s := New(common.EthereumMainnet, verifyingContract, key)
	assert.Equal(t, maker, s.Address())

	order, hash, err := s.BuildOrder(testParams(maker))
	require.NoError(t, err)

	sigHex, err := s.SignOrder(order)
	require.NoError(t, err)

	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	sig[64] -= 27

	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	require.NoError(t, err)
	assert.Equal(t, maker, crypto.PubkeyToAddress(*pub))
}

func TestSignOrderRequiresKey(t *testing.T) {
	s := New(common.EthereumMainnet, verifyingContract, nil)
	maker := ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")

	order, _, err := s.BuildOrder(testParams(maker))
	require.NoError(t, err)

	_, err = s.SignOrder(order)
	assert.ErrorIs(t, err, ErrMissingSigner)
}

func TestDomainMatchesChain(t *testing.T) {
	s := New(common.ArbitrumOne, verifyingContract, nil)

	domain := s.Domain()
	assert.Equal(t, eip712.LimitOrderTypeDataName, domain.Name)
	assert.Equal(t, eip712.LimitOrderTypeDataVersion, domain.Version)
	assert.Equal(t, verifyingContract.Hex(), domain.VerifyingContract)
}

func TestBuildSignedOrder(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	maker := crypto.PubkeyToAddress(key.PublicKey)

	s := New(common.EthereumMainnet, verifyingContract, key)

	sub, hash, err := s.BuildSignedOrder(common.EthereumMainnet, testParams(maker))
	require.NoError(t, err)

	assert.Equal(t, common.EthereumMainnet, sub.ChainID)
	assert.NotEmpty(t, sub.Signature)

	recomputed, err := s.OrderHash(&sub.Order)
	require.NoError(t, err)
	assert.Equal(t, hash, recomputed)
}
