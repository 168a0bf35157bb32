package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"twapd/internal/common"
	"twapd/internal/eip712"
)

var (
	ErrMissingSigner = errors.New("no signing key configured")
	ErrMissingMaker  = errors.New("maker address is required")
	ErrMissingAsset  = errors.New("maker and taker assets are required")
	ErrMissingAmount = errors.New("making and taking amounts must be positive")
)

// OrderParams are the inputs for constructing an order. Zero-valued optional
// fields take their documented defaults: receiver falls back to the maker,
// allowedSender to the public-order sentinel, and a nil salt to a time-based
// one.
type OrderParams struct {
	Maker         ethcommon.Address
	Receiver      ethcommon.Address
	MakerAsset    ethcommon.Address
	TakerAsset    ethcommon.Address
	MakingAmount  *big.Int
	TakingAmount  *big.Int
	AllowedSender ethcommon.Address
	Salt          *big.Int
	Predicate     []byte
	Permit        []byte
	Interactions  []byte
}

// Signer builds order records, computes their structured-data hashes and
// produces maker signatures over them. The key may be nil for a build-only
// signer; SignOrder then fails before any hash is computed.
type Signer struct {
	chainID           common.ChainID
	verifyingContract ethcommon.Address
	key               *ecdsa.PrivateKey
}

func New(chainID common.ChainID, verifyingContract ethcommon.Address, key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		chainID:           chainID,
		verifyingContract: verifyingContract,
		key:               key,
	}
}

// Domain exposes the exact EIP712 domain used for hashing so callers can
// detect a chain or contract mismatch before submitting a fill.
func (s *Signer) Domain() apitypes.TypedDataDomain {
	typedData := eip712.BuildOrderTypedData(
		s.chainID,
		s.verifyingContract,
		eip712.LimitOrderTypeDataName,
		eip712.LimitOrderTypeDataVersion,
		common.LimitOrder{},
	)
	return typedData.Domain
}

// Address returns the maker address derived from the signing key, or the zero
// address for a build-only signer.
func (s *Signer) Address() ethcommon.Address {
	if s.key == nil {
		return ethcommon.Address{}
	}
	pub, _ := s.key.Public().(*ecdsa.PublicKey)
	return crypto.PubkeyToAddress(*pub)
}

// BuildOrder constructs the canonical order record and computes its hash.
// Construction is idempotent: the same params with the same salt always yield
// the same hash, while a differing salt yields a differing hash.
func (s *Signer) BuildOrder(p OrderParams) (*common.LimitOrder, ethcommon.Hash, error) {
	if p.Maker == (ethcommon.Address{}) {
		return nil, ethcommon.Hash{}, ErrMissingMaker
	}
	if p.MakerAsset == (ethcommon.Address{}) || p.TakerAsset == (ethcommon.Address{}) {
		return nil, ethcommon.Hash{}, ErrMissingAsset
	}
	if p.MakingAmount == nil || p.MakingAmount.Sign() <= 0 ||
		p.TakingAmount == nil || p.TakingAmount.Sign() <= 0 {
		return nil, ethcommon.Hash{}, ErrMissingAmount
	}

	receiver := p.Receiver
	if receiver == (ethcommon.Address{}) {
		receiver = p.Maker
	}

	salt := p.Salt
	if salt == nil {
		salt = generateSalt()
	}

	order := &common.LimitOrder{
		Salt:          salt.String(),
		MakerAsset:    p.MakerAsset.Hex(),
		TakerAsset:    p.TakerAsset.Hex(),
		Maker:         p.Maker.Hex(),
		Receiver:      receiver.Hex(),
		AllowedSender: p.AllowedSender.Hex(),
		MakingAmount:  p.MakingAmount.String(),
		TakingAmount:  p.TakingAmount.String(),
		Predicate:     hexutil.Encode(p.Predicate),
		Permit:        hexutil.Encode(p.Permit),
		Interactions:  hexutil.Encode(p.Interactions),
	}

	hash, err := s.OrderHash(order)
	if err != nil {
		return nil, ethcommon.Hash{}, err
	}

	return order, hash, nil
}

// OrderHash computes the EIP712 hash of an order over this signer's domain.
func (s *Signer) OrderHash(order *common.LimitOrder) (ethcommon.Hash, error) {
	typedData := eip712.BuildOrderTypedData(
		s.chainID,
		s.verifyingContract,
		eip712.LimitOrderTypeDataName,
		eip712.LimitOrderTypeDataVersion,
		*order,
	)
	return eip712.GetOrderHash(typedData)
}

// SignOrder signs the order's structured-data hash with the maker key. The
// signature is bound to exactly that hash.
func (s *Signer) SignOrder(order *common.LimitOrder) (string, error) {
	if s.key == nil {
		return "", ErrMissingSigner
	}

	hash, err := s.OrderHash(order)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign order: %w", err)
	}
	sig[64] += 27

	return hexutil.Encode(sig), nil
}

// BuildSignedOrder builds an order and signs it in one step.
func (s *Signer) BuildSignedOrder(chainID common.ChainID, p OrderParams) (*common.OrderSubmission, ethcommon.Hash, error) {
	order, hash, err := s.BuildOrder(p)
	if err != nil {
		return nil, ethcommon.Hash{}, err
	}

	sig, err := s.SignOrder(order)
	if err != nil {
		return nil, ethcommon.Hash{}, err
	}

	return &common.OrderSubmission{
		ChainID:   chainID,
		Order:     *order,
		Signature: sig,
	}, hash, nil
}

func generateSalt() *big.Int {
	return big.NewInt(time.Now().UnixNano())
}
