package eip712

import (
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain defines the EIP712 domain type structure
var EIP712Domain = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// Order defines the Order type structure for EIP712. The field set and order
// must match the verifying contract byte-for-byte; the dynamic bytes fields
// (predicate, permit, interactions) are keccak-hashed into the struct hash
// per the EIP712 rules.
var Order = []apitypes.Type{
	{Name: "salt", Type: "uint256"},
	{Name: "makerAsset", Type: "address"},
	{Name: "takerAsset", Type: "address"},
	{Name: "maker", Type: "address"},
	{Name: "receiver", Type: "address"},
	{Name: "allowedSender", Type: "address"},
	{Name: "makingAmount", Type: "uint256"},
	{Name: "takingAmount", Type: "uint256"},
	{Name: "predicate", Type: "bytes"},
	{Name: "permit", Type: "bytes"},
	{Name: "interactions", Type: "bytes"},
}
