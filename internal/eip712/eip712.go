package eip712

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"twapd/internal/common"
)

// GetOrderHash computes the EIP712 hash for a given typed data
func GetOrderHash(typedData apitypes.TypedData) (ethcommon.Hash, error) {
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to compute EIP712 hash: %w", err)
	}
	return ethcommon.BytesToHash(hash), nil
}

// BuildOrderTypedData constructs the EIP712 typed data for a limit order
func BuildOrderTypedData(chainID common.ChainID, verifyingContract ethcommon.Address, name, version string, order common.LimitOrder) apitypes.TypedData {
	chainIDHex := math.NewHexOrDecimal256(int64(chainID))

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": EIP712Domain,
			"Order":        Order,
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           chainIDHex,
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          order.Salt,
			"makerAsset":    order.MakerAsset,
			"takerAsset":    order.TakerAsset,
			"maker":         order.Maker,
			"receiver":      order.Receiver,
			"allowedSender": order.AllowedSender,
			"makingAmount":  order.MakingAmount,
			"takingAmount":  order.TakingAmount,
			"predicate":     hexOrEmpty(order.Predicate),
			"permit":        hexOrEmpty(order.Permit),
			"interactions":  hexOrEmpty(order.Interactions),
		},
	}
}

// GetLimitOrderDomain returns the EIP712 domain for limit orders on the given
// chain. Callers compare this against the contract they submit fills to so a
// build/submit mismatch is detected before a transaction is sent.
func GetLimitOrderDomain(chainID common.ChainID) (apitypes.TypedDataDomain, error) {
	contract, err := GetLimitOrderContract(chainID)
	if err != nil {
		return apitypes.TypedDataDomain{}, fmt.Errorf("failed to get contract address: %w", err)
	}

	chainIDHex := math.NewHexOrDecimal256(int64(chainID))

	return apitypes.TypedDataDomain{
		Name:              LimitOrderTypeDataName,
		Version:           LimitOrderTypeDataVersion,
		ChainId:           chainIDHex,
		VerifyingContract: contract.Hex(),
	}, nil
}

// hexOrEmpty normalizes absent bytes fields to the canonical empty hex string
// the typed-data encoder accepts.
func hexOrEmpty(s string) string {
	if s == "" {
		return "0x"
	}
	return s
}
