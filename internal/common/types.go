package common

import (
	"math/big"
	"time"
)

// ZeroAddress is the public-order sentinel: an order whose allowedSender is
// the zero address may be filled by any taker.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// LimitOrder is the canonical order record consumed by the limit-order
// protocol contract. It is immutable once signed: the EIP712 signature is
// bound to the hash over every field, so any later mutation invalidates it.
//
// Amounts are decimal strings, addresses and byte blobs are 0x-hex strings,
// matching the contract-facing JSON wire format.
type LimitOrder struct {
	Salt          string `json:"salt"`
	MakerAsset    string `json:"makerAsset"`
	TakerAsset    string `json:"takerAsset"`
	Maker         string `json:"maker"`
	Receiver      string `json:"receiver"`
	AllowedSender string `json:"allowedSender"`
	MakingAmount  string `json:"makingAmount"`
	TakingAmount  string `json:"takingAmount"`
	Predicate     string `json:"predicate"`
	Permit        string `json:"permit"`
	Interactions  string `json:"interactions"`
}

// StopCondition selects which cap bounds a fill schedule. Exactly one of the
// two caps may be active; a schedule with neither runs forever.
type StopCondition string

const (
	StopTotalAmount StopCondition = "totalAmount"
	StopEndDate     StopCondition = "endDate"
	StopNone        StopCondition = "none"
)

// FillSchedule is the derived TWAP execution plan for an order. It is never
// persisted on-chain; the on-chain hook consumes its encoded form.
type FillSchedule struct {
	Stop            StopCondition `json:"stop"`
	TotalCycles     uint64        `json:"totalCycles"`
	IntervalSeconds uint64        `json:"intervalSeconds"`
	ChunkInAmount   *big.Int      `json:"chunkInAmount"`
	MinOutPerChunk  *big.Int      `json:"minOutPerChunk"`
	WillRunForever  bool          `json:"willRunForever"`
	EstimatedDays   uint64        `json:"estimatedDays"`
	CreatedAt       time.Time     `json:"createdAt"`
	CompletesAt     time.Time     `json:"completesAt,omitempty"`
}

// TotalInAmount returns the full making amount committed by the schedule, or
// nil for an unbounded schedule.
func (s *FillSchedule) TotalInAmount() *big.Int {
	if s.WillRunForever {
		return nil
	}
	total := new(big.Int).SetUint64(s.TotalCycles)
	return total.Mul(total, s.ChunkInAmount)
}

// StateSource tags how an ExecutionState was derived so callers never
// conflate confidence levels.
type StateSource string

const (
	StateOnChainConfirmed StateSource = "onchain"
	StateTimeEstimated    StateSource = "estimated"
)

// ExecutionState is an immutable snapshot of order progress, recomputed on
// every poll tick and replaced atomically. A TimeEstimated snapshot exists
// only to avoid a blank state before the first successful on-chain read.
type ExecutionState struct {
	OrderHash       string      `json:"orderHash"`
	Source          StateSource `json:"source"`
	RemainingAmount *big.Int    `json:"remainingAmount"`
	FilledAmount    *big.Int    `json:"filledAmount"`
	ProgressPercent float64     `json:"progressPercent"`
	CyclesElapsed   uint64      `json:"cyclesElapsed"`
	NextFillDueAt   time.Time   `json:"nextFillDueAt"`
	Complete        bool        `json:"complete"`
	PolledAt        time.Time   `json:"polledAt"`
}

// ScheduleSpec is the wire form of the schedule parameters. Query-string
// decoding (schedule preview) uses the schema tags, JSON bodies the json tags.
type ScheduleSpec struct {
	ChunkAmount     string  `json:"chunkAmount" schema:"chunkAmount"`
	IntervalSeconds uint64  `json:"intervalSeconds" schema:"intervalSeconds"`
	SlippagePercent float64 `json:"slippagePercent" schema:"slippagePercent"`
	TotalAmount     string  `json:"totalAmount,omitempty" schema:"totalAmount"`
	EndDate         int64   `json:"endDate,omitempty" schema:"endDate"`
	QuotedChunkOut  string  `json:"quotedChunkOut,omitempty" schema:"quotedChunkOut"`
}

// PostFillSpec is the wire form of the optional post-fill deposit section of
// the interactions blob.
type PostFillSpec struct {
	Deposit   bool   `json:"deposit"`
	Recipient string `json:"recipient,omitempty"`
	Pool      string `json:"pool,omitempty"`
}

// PermitSubmission carries a signed gasless transfer authorization alongside
// an order. The permit signature is independent of the order signature.
type PermitSubmission struct {
	Owner     string `json:"owner"`
	Token     string `json:"token"`
	Spender   string `json:"spender"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Deadline  int64  `json:"deadline"`
	Signature string `json:"signature"`
}

// BuildOrderRequest asks the daemon to construct (but not sign) an order
// together with its interactions blob. Omitting the schedule makes a one-shot
// order: MakingAmount and TakingAmount then size it directly and the blob
// carries a single full-amount chunk.
type BuildOrderRequest struct {
	Maker         string        `json:"maker"`
	Receiver      string        `json:"receiver,omitempty"`
	MakerAsset    string        `json:"makerAsset"`
	TakerAsset    string        `json:"takerAsset"`
	AllowedSender string        `json:"allowedSender,omitempty"`
	MakingAmount  string        `json:"makingAmount,omitempty"`
	TakingAmount  string        `json:"takingAmount,omitempty"`
	Schedule      ScheduleSpec  `json:"schedule,omitempty"`
	PostFill      *PostFillSpec `json:"postFill,omitempty"`
}

// OrderSubmission is a fully signed order handed over for tracked execution.
type OrderSubmission struct {
	ChainID   ChainID           `json:"chainId"`
	Order     LimitOrder        `json:"order"`
	Signature string            `json:"signature"`
	Schedule  ScheduleSpec      `json:"schedule"`
	Permit    *PermitSubmission `json:"permit,omitempty"`
}
