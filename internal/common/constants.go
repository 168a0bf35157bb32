package common

// ChainID identifies the EVM network an order is built on and filled
// against. Only networks with a deployed limit-order protocol contract are
// listed.
type ChainID int64

const (
	EthereumMainnet ChainID = 1
	Optimism        ChainID = 10
	BSC             ChainID = 56
	Polygon         ChainID = 137
	Base            ChainID = 8453
	ArbitrumOne     ChainID = 42161
)
