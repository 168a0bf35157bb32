package eip712

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twapd/internal/common"
)

func testOrder() common.LimitOrder {
	return common.LimitOrder{
		Salt:          "42",
		MakerAsset:    "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		TakerAsset:    "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Maker:         "0x1111111111111111111111111111111111111111",
		Receiver:      "0x1111111111111111111111111111111111111111",
		AllowedSender: common.ZeroAddress,
		MakingAmount:  "1000",
		TakingAmount:  "500",
		Predicate:     "0x",
		Permit:        "0x",
		Interactions:  "0x",
	}
}

func hashOnChain(t *testing.T, chainID common.ChainID, order common.LimitOrder) ethcommon.Hash {
	t.Helper()

	contract, err := GetLimitOrderContract(chainID)
	require.NoError(t, err)

	hash, err := GetOrderHash(BuildOrderTypedData(
		chainID, contract, LimitOrderTypeDataName, LimitOrderTypeDataVersion, order))
	require.NoError(t, err)
	return hash
}

func TestGetLimitOrderContract(t *testing.T) {
	contract, err := GetLimitOrderContract(common.EthereumMainnet)
	require.NoError(t, err)
	assert.Equal(t, "0x1111111254EEB25477B68fb85Ed929f73A960582", contract.Hex())

	_, err = GetLimitOrderContract(common.ChainID(999999))
	assert.Error(t, err)
}

func TestGetLimitOrderDomain(t *testing.T) {
	domain, err := GetLimitOrderDomain(common.EthereumMainnet)
	require.NoError(t, err)
	assert.Equal(t, LimitOrderTypeDataName, domain.Name)
	assert.Equal(t, LimitOrderTypeDataVersion, domain.Version)

	_, err = GetLimitOrderDomain(common.ChainID(999999))
	assert.Error(t, err)
}

func TestOrderHashDeterministic(t *testing.T) {
	first := hashOnChain(t, common.EthereumMainnet, testOrder())
	second := hashOnChain(t, common.EthereumMainnet, testOrder())

	assert.Equal(t, first, second)
}

func TestOrderHashBindsChainID(t *testing.T) {
	mainnet := hashOnChain(t, common.EthereumMainnet, testOrder())
	arbitrum := hashOnChain(t, common.ArbitrumOne, testOrder())

	assert.NotEqual(t, mainnet, arbitrum)
}

func TestOrderHashBindsEveryField(t *testing.T) {
	base := hashOnChain(t, common.EthereumMainnet, testOrder())

	mutated := testOrder()
	mutated.Interactions = "0xdeadbeef"
	changed := hashOnChain(t, common.EthereumMainnet, mutated)

	assert.NotEqual(t, base, changed)
}

func TestEmptyBytesFieldsNormalized(t *testing.T) {
	// An absent bytes field and the canonical empty hex string hash the
	// same way.
	implicit := testOrder()
	implicit.Predicate = ""
	implicit.Permit = ""
	implicit.Interactions = ""

	assert.Equal(t,
		hashOnChain(t, common.EthereumMainnet, testOrder()),
		hashOnChain(t, common.EthereumMainnet, implicit))
}
