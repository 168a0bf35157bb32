package permit

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"twapd/internal/common"
)

var (
	ErrMissingSigner    = errors.New("no signing key for authorization")
	ErrDeadlineNotAhead = errors.New("authorization deadline must be in the future")
	ErrMissingAmount    = errors.New("authorization amount is required")
)

// DomainName is the authorization contract's EIP712 domain name. The domain
// carries no version field.
const DomainName = "Permit2"

// MaxWindow bounds how long a signed-but-unused authorization stays valid.
const MaxWindow = time.Hour

// EIP712 type tables for the one-time transfer authorization
var (
	eip712Domain = []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}

	permitTransferFrom = []apitypes.Type{
		{Name: "permitted", Type: "TokenPermissions"},
		{Name: "spender", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}

	tokenPermissions = []apitypes.Type{
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
	}
)

// TransferPermit is the structured-data record for a one-time gasless token
// transfer authorization. It is signed independently of any order.
type TransferPermit struct {
	Owner    ethcommon.Address
	Token    ethcommon.Address
	Spender  ethcommon.Address
	Amount   *big.Int
	Nonce    uint64
	Deadline time.Time
}

// SignedPermit pairs a permit with its signature for submission alongside a
// fill.
type SignedPermit struct {
	Permit    TransferPermit
	Signature string
}

// BuildPermitTypedData constructs the EIP712 typed data for a transfer
// authorization.
func BuildPermitTypedData(chainID common.ChainID, verifyingContract ethcommon.Address, p TransferPermit) apitypes.TypedData {
	chainIDHex := math.NewHexOrDecimal256(int64(chainID))

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain":       eip712Domain,
			"PermitTransferFrom": permitTransferFrom,
			"TokenPermissions":   tokenPermissions,
		},
		PrimaryType: "PermitTransferFrom",
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			ChainId:           chainIDHex,
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"permitted": map[string]interface{}{
				"token":  p.Token.Hex(),
				"amount": p.Amount.String(),
			},
			"spender":  p.Spender.Hex(),
			"nonce":    new(big.Int).SetUint64(p.Nonce).String(),
			"deadline": big.NewInt(p.Deadline.Unix()).String(),
		},
	}
}

// SignTransferPermit validates the permit and signs its typed-data hash. The
// deadline must still be ahead of now; an authorization that would be born
// expired is rejected before any hash is computed.
func SignTransferPermit(key *ecdsa.PrivateKey, chainID common.ChainID, verifyingContract ethcommon.Address, p TransferPermit, now time.Time) (*SignedPermit, error) {
	if key == nil {
		return nil, ErrMissingSigner
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, ErrMissingAmount
	}
	if !p.Deadline.After(now) {
		return nil, ErrDeadlineNotAhead
	}

	typedData := BuildPermitTypedData(chainID, verifyingContract, p)
	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to compute authorization hash: %w", err)
	}

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign authorization: %w", err)
	}
	sig[64] += 27

	return &SignedPermit{
		Permit:    p,
		Signature: hexutil.Encode(sig),
	}, nil
}

// ClampDeadline picks the authorization deadline: the lesser of the order
// expiry and a fixed short window from now, bounding the exposure of a
// valid-but-unused authorization. A zero orderExpiry means the order never
// expires and only the window applies.
func ClampDeadline(now, orderExpiry time.Time) time.Time {
	deadline := now.Add(MaxWindow)
	if !orderExpiry.IsZero() && orderExpiry.Before(deadline) {
		deadline = orderExpiry
	}
	return deadline
}

// payloadArgs is the ABI layout of the authorization payload handed to the
// fill transaction.
var payloadArgs = func() abi.Arguments {
	addressType, _ := abi.NewType("address", "", nil)
	uint256Type, _ := abi.NewType("uint256", "", nil)
	bytesType, _ := abi.NewType("bytes", "", nil)

	return abi.Arguments{
		{Type: addressType}, // token
		{Type: addressType}, // owner
		{Type: uint256Type}, // amount
		{Type: uint256Type}, // nonce
		{Type: uint256Type}, // deadline
		{Type: bytesType},   // signature
	}
}()

// Payload serializes the signed authorization into the opaque bytes argument
// the fill transaction carries.
func (sp *SignedPermit) Payload() ([]byte, error) {
	sig, err := hexutil.Decode(sp.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid authorization signature encoding: %w", err)
	}

	return payloadArgs.Pack(
		sp.Permit.Token,
		sp.Permit.Owner,
		sp.Permit.Amount,
		new(big.Int).SetUint64(sp.Permit.Nonce),
		big.NewInt(sp.Permit.Deadline.Unix()),
		sig,
	)
}

// FromSubmission converts the wire form of a signed authorization into its
// typed representation.
func FromSubmission(sub *common.PermitSubmission) (*SignedPermit, error) {
	amount, ok := new(big.Int).SetString(sub.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid authorization amount: %s", sub.Amount)
	}

	return &SignedPermit{
		Permit: TransferPermit{
			Owner:    ethcommon.HexToAddress(sub.Owner),
			Token:    ethcommon.HexToAddress(sub.Token),
			Spender:  ethcommon.HexToAddress(sub.Spender),
			Amount:   amount,
			Nonce:    sub.Nonce,
			Deadline: time.Unix(sub.Deadline, 0),
		},
		Signature: sub.Signature,
	}, nil
}
