package eip712

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"twapd/internal/common"
)

// EIP712 domain constants for the limit-order protocol contract
const (
	LimitOrderTypeDataName    = "1inch Limit Order Protocol"
	LimitOrderTypeDataVersion = "3"
)

// Limit-order protocol contract addresses by chain ID
var limitOrderContracts = map[common.ChainID]string{
	common.EthereumMainnet: "0x1111111254EEB25477B68fb85Ed929f73A960582",
	common.ArbitrumOne:     "0x1111111254EEB25477B68fb85Ed929f73A960582",
	common.Polygon:         "0x1111111254EEB25477B68fb85Ed929f73A960582",
	common.BSC:             "0x1111111254EEB25477B68fb85Ed929f73A960582",
	common.Optimism:        "0x1111111254EEB25477B68fb85Ed929f73A960582",
	common.Base:            "0x1111111254EEB25477B68fb85Ed929f73A960582",
}

// GetLimitOrderContract returns the limit-order protocol contract address for
// the given chain ID.
func GetLimitOrderContract(chainID common.ChainID) (ethcommon.Address, error) {
	contractAddress, exists := limitOrderContracts[chainID]
	if !exists {
		return ethcommon.Address{}, fmt.Errorf("unsupported chain ID: %d", chainID)
	}

	return ethcommon.HexToAddress(contractAddress), nil
}
