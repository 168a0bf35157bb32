package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"twapd/internal/common"
	"twapd/internal/permit"
)

var ErrReadOnlyClient = errors.New("client has no signing key, cannot submit transactions")

const fillGasLimit = uint64(500000)

// orderTuple mirrors the contract's order struct for ABI packing.
type orderTuple struct {
	Salt          *big.Int          `abi:"salt"`
	MakerAsset    ethcommon.Address `abi:"makerAsset"`
	TakerAsset    ethcommon.Address `abi:"takerAsset"`
	Maker         ethcommon.Address `abi:"maker"`
	Receiver      ethcommon.Address `abi:"receiver"`
	AllowedSender ethcommon.Address `abi:"allowedSender"`
	MakingAmount  *big.Int          `abi:"makingAmount"`
	TakingAmount  *big.Int          `abi:"takingAmount"`
	Predicate     []byte            `abi:"predicate"`
	Permit        []byte            `abi:"permit"`
	Interactions  []byte            `abi:"interactions"`
}

func toOrderTuple(order common.LimitOrder) (orderTuple, error) {
	salt, ok := new(big.Int).SetString(order.Salt, 10)
	if !ok {
		return orderTuple{}, fmt.Errorf("invalid order salt: %s", order.Salt)
	}
	makingAmount, ok := new(big.Int).SetString(order.MakingAmount, 10)
	if !ok {
		return orderTuple{}, fmt.Errorf("invalid making amount: %s", order.MakingAmount)
	}
	takingAmount, ok := new(big.Int).SetString(order.TakingAmount, 10)
	if !ok {
		return orderTuple{}, fmt.Errorf("invalid taking amount: %s", order.TakingAmount)
	}

	predicate, err := decodeHexField(order.Predicate)
	if err != nil {
		return orderTuple{}, fmt.Errorf("invalid predicate encoding: %w", err)
	}
	permitBytes, err := decodeHexField(order.Permit)
	if err != nil {
		return orderTuple{}, fmt.Errorf("invalid permit encoding: %w", err)
	}
	interactions, err := decodeHexField(order.Interactions)
	if err != nil {
		return orderTuple{}, fmt.Errorf("invalid interactions encoding: %w", err)
	}

	return orderTuple{
		Salt:          salt,
		MakerAsset:    ethcommon.HexToAddress(order.MakerAsset),
		TakerAsset:    ethcommon.HexToAddress(order.TakerAsset),
		Maker:         ethcommon.HexToAddress(order.Maker),
		Receiver:      ethcommon.HexToAddress(order.Receiver),
		AllowedSender: ethcommon.HexToAddress(order.AllowedSender),
		MakingAmount:  makingAmount,
		TakingAmount:  takingAmount,
		Predicate:     predicate,
		Permit:        permitBytes,
		Interactions:  interactions,
	}, nil
}

func decodeHexField(s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	return hexutil.Decode(s)
}

// FillRequest describes exactly one fill chunk of a signed order.
type FillRequest struct {
	Order           common.LimitOrder
	Signature       string
	MakingAmount    *big.Int
	TakingAmount    *big.Int
	ThresholdAmount *big.Int
	Permit          *permit.SignedPermit
}

// Submitter sends fill and cancellation transactions. Each call submits
// exactly one transaction and returns as soon as the node accepts it; there
// is no internal retry and no confirmation wait. On-chain rejections are
// surfaced verbatim in the wrapped error.
type Submitter struct {
	client *Client
	logger *log.Logger
}

func NewSubmitter(client *Client, logger *log.Logger) *Submitter {
	return &Submitter{
		client: client,
		logger: logger,
	}
}

// SubmitFill submits one fill transaction for the given chunk. When the
// request carries a gasless authorization, the permit-aware fill entrypoint
// is used and the authorization payload rides along.
func (s *Submitter) SubmitFill(ctx context.Context, req FillRequest) (ethcommon.Hash, error) {
	order, err := toOrderTuple(req.Order)
	if err != nil {
		return ethcommon.Hash{}, err
	}

	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("invalid order signature encoding: %w", err)
	}

	threshold := req.ThresholdAmount
	if threshold == nil {
		threshold = big.NewInt(0)
	}

	// A maker without the chunk on hand would revert anyway; skip the gas.
	if balance, balErr := s.client.ERC20Balance(ctx, order.MakerAsset, order.Maker); balErr == nil &&
		balance.Cmp(req.MakingAmount) < 0 {
		return ethcommon.Hash{}, fmt.Errorf("maker balance %s below fill amount %s", balance, req.MakingAmount)
	}

	var calldata []byte
	if req.Permit != nil {
		payload, err := req.Permit.Payload()
		if err != nil {
			return ethcommon.Hash{}, err
		}
		calldata, err = limitOrderABI.Pack("fillOrderWithPermit",
			order, sig, req.MakingAmount, req.TakingAmount, threshold, payload)
		if err != nil {
			return ethcommon.Hash{}, fmt.Errorf("failed to pack fillOrderWithPermit: %w", err)
		}
	} else {
		calldata, err = limitOrderABI.Pack("fillOrder",
			order, sig, req.MakingAmount, req.TakingAmount, threshold)
		if err != nil {
			return ethcommon.Hash{}, fmt.Errorf("failed to pack fillOrder: %w", err)
		}
	}

	tx, err := s.sendTransaction(ctx, calldata)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("fill transaction rejected: %w", err)
	}

	s.logger.Printf("submitted fill tx %s (making %s)", tx.Hash().Hex(), req.MakingAmount.String())
	return tx.Hash(), nil
}

// CancelOrder invalidates a signed order on-chain. Cancellation is
// independent of whether anything still polls the order.
func (s *Submitter) CancelOrder(ctx context.Context, orderRecord common.LimitOrder) (ethcommon.Hash, error) {
	order, err := toOrderTuple(orderRecord)
	if err != nil {
		return ethcommon.Hash{}, err
	}

	calldata, err := limitOrderABI.Pack("cancelOrder", order)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("failed to pack cancelOrder: %w", err)
	}

	tx, err := s.sendTransaction(ctx, calldata)
	if err != nil {
		return ethcommon.Hash{}, fmt.Errorf("cancel transaction rejected: %w", err)
	}

	s.logger.Printf("submitted cancel tx %s", tx.Hash().Hex())
	return tx.Hash(), nil
}

func (s *Submitter) sendTransaction(ctx context.Context, calldata []byte) (*types.Transaction, error) {
	c := s.client
	if c.key == nil {
		return nil, ErrReadOnlyClient
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.SignerAddress())
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTransaction(
		nonce,
		c.limitOrderAddr,
		big.NewInt(0),
		fillGasLimit,
		gasPrice,
		calldata,
	)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return nil, err
	}

	return signedTx, nil
}

// IsNonceUsed reports whether a submission failure is the specific
// authorization-nonce-already-consumed rejection. Only this condition should
// trigger a retry of allocation plus submission as a unit; blind retry on
// other failures can waste gas.
func IsNonceUsed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalidnonce") || strings.Contains(msg, "nonce already used")
}
