package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"
)

// Minimal ABI fragments for the contracts this daemon talks to. Only the
// functions actually called are declared.
const limitOrderABIJSON = `[
	{
		"inputs": [{"name": "orderHash", "type": "bytes32"}],
		"name": "remaining",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"name": "salt", "type": "uint256"},
					{"name": "makerAsset", "type": "address"},
					{"name": "takerAsset", "type": "address"},
					{"name": "maker", "type": "address"},
					{"name": "receiver", "type": "address"},
					{"name": "allowedSender", "type": "address"},
					{"name": "makingAmount", "type": "uint256"},
					{"name": "takingAmount", "type": "uint256"},
					{"name": "predicate", "type": "bytes"},
					{"name": "permit", "type": "bytes"},
					{"name": "interactions", "type": "bytes"}
				],
				"name": "order",
				"type": "tuple"
			},
			{"name": "signature", "type": "bytes"},
			{"name": "makingAmount", "type": "uint256"},
			{"name": "takingAmount", "type": "uint256"},
			{"name": "thresholdAmount", "type": "uint256"}
		],
		"name": "fillOrder",
		"outputs": [
			{"name": "", "type": "uint256"},
			{"name": "", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"name": "salt", "type": "uint256"},
					{"name": "makerAsset", "type": "address"},
					{"name": "takerAsset", "type": "address"},
					{"name": "maker", "type": "address"},
					{"name": "receiver", "type": "address"},
					{"name": "allowedSender", "type": "address"},
					{"name": "makingAmount", "type": "uint256"},
					{"name": "takingAmount", "type": "uint256"},
					{"name": "predicate", "type": "bytes"},
					{"name": "permit", "type": "bytes"},
					{"name": "interactions", "type": "bytes"}
				],
				"name": "order",
				"type": "tuple"
			},
			{"name": "signature", "type": "bytes"},
			{"name": "makingAmount", "type": "uint256"},
			{"name": "takingAmount", "type": "uint256"},
			{"name": "thresholdAmount", "type": "uint256"},
			{"name": "authorization", "type": "bytes"}
		],
		"name": "fillOrderWithPermit",
		"outputs": [
			{"name": "", "type": "uint256"},
			{"name": "", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{
				"components": [
					{"name": "salt", "type": "uint256"},
					{"name": "makerAsset", "type": "address"},
					{"name": "takerAsset", "type": "address"},
					{"name": "maker", "type": "address"},
					{"name": "receiver", "type": "address"},
					{"name": "allowedSender", "type": "address"},
					{"name": "makingAmount", "type": "uint256"},
					{"name": "takingAmount", "type": "uint256"},
					{"name": "predicate", "type": "bytes"},
					{"name": "permit", "type": "bytes"},
					{"name": "interactions", "type": "bytes"}
				],
				"name": "order",
				"type": "tuple"
			}
		],
		"name": "cancelOrder",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const permit2ABIJSON = `[
	{
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "wordIndex", "type": "uint256"}
		],
		"name": "nonceBitmap",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const erc20ABIJSON = `[
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

var (
	limitOrderABI = mustParseABI(limitOrderABIJSON)
	permit2ABI    = mustParseABI(permit2ABIJSON)
	erc20ABI      = mustParseABI(erc20ABIJSON)
)

func mustParseABI(json string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(json))
	if err != nil {
		panic("failed to parse ABI: " + err.Error())
	}
	return parsed
}

// Client wraps the EVM node connection plus the contract addresses and
// signing key the daemon operates with.
type Client struct {
	eth            *ethclient.Client
	chainID        *big.Int
	key            *ecdsa.PrivateKey
	limitOrderAddr ethcommon.Address
	permit2Addr    ethcommon.Address
	logger         *log.Logger
}

func Dial(ctx context.Context, rpcURL, privateKeyHex string, limitOrderAddr, permit2Addr ethcommon.Address, logger *log.Logger) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	var key *ecdsa.PrivateKey
	if privateKeyHex != "" {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
	}

	return &Client{
		eth:            eth,
		chainID:        chainID,
		key:            key,
		limitOrderAddr: limitOrderAddr,
		permit2Addr:    permit2Addr,
		logger:         logger,
	}, nil
}

// ChainID returns the connected chain's ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// SignerAddress returns the address of the transaction signing key, or the
// zero address when running read-only.
func (c *Client) SignerAddress() ethcommon.Address {
	if c.key == nil {
		return ethcommon.Address{}
	}
	pub, _ := c.key.Public().(*ecdsa.PublicKey)
	return crypto.PubkeyToAddress(*pub)
}

// Remaining reads the unfilled making amount for an order hash from the
// limit-order contract.
func (c *Client) Remaining(ctx context.Context, orderHash ethcommon.Hash) (*big.Int, error) {
	contract := bind.NewBoundContract(c.limitOrderAddr, limitOrderABI, c.eth, c.eth, c.eth)

	var out []any
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "remaining", orderHash)
	if err != nil {
		return nil, fmt.Errorf("failed to read remaining amount: %w", err)
	}

	return out[0].(*big.Int), nil
}

// NonceBitmap reads one 256-bit word of the per-owner authorization nonce
// bitmap from the authorization contract.
func (c *Client) NonceBitmap(ctx context.Context, owner ethcommon.Address, wordIndex *big.Int) (*uint256.Int, error) {
	contract := bind.NewBoundContract(c.permit2Addr, permit2ABI, c.eth, c.eth, c.eth)

	var out []any
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "nonceBitmap", owner, wordIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to read nonce bitmap: %w", err)
	}

	word, overflow := uint256.FromBig(out[0].(*big.Int))
	if overflow {
		return nil, fmt.Errorf("nonce bitmap word overflows uint256")
	}
	return word, nil
}

// ERC20Balance reads an account's token balance.
func (c *Client) ERC20Balance(ctx context.Context, token, account ethcommon.Address) (*big.Int, error) {
	contract := bind.NewBoundContract(token, erc20ABI, c.eth, c.eth, c.eth)

	var out []any
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to read token balance: %w", err)
	}

	return out[0].(*big.Int), nil
}

// Close closes the node connection.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}
