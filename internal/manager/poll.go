package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"twapd/internal/chain"
	"twapd/internal/common"
)

// Run drives the cooperative poll loop until the context is cancelled. One
// tick recomputes every tracked order's snapshot and submits at most one due
// fill per order, keeping fills in non-decreasing cycle order. A missed cycle
// delays subsequent ones; the schedule is never compressed.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	m.logger.Printf("poll loop running every %s", m.pollInterval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Println("poll loop stopped")
			return
		case now := <-ticker.C:
			m.pollOnce(ctx, now)
		}
	}
}

func (m *Manager) pollOnce(ctx context.Context, now time.Time) {
	for _, hash := range m.trackedHashes() {
		entry, err := m.GetOrder(hash)
		if err != nil {
			continue
		}
		m.pollEntry(ctx, entry, now)
	}
}

// PollEntry recomputes one order's snapshot, broadcasts it, and submits a
// fill when one is due. Exported so a caller owning its own timer can drive a
// single order.
func (m *Manager) PollEntry(ctx context.Context, entry *OrderEntry, now time.Time) *common.ExecutionState {
	return m.pollEntry(ctx, entry, now)
}

func (m *Manager) pollEntry(ctx context.Context, entry *OrderEntry, now time.Time) *common.ExecutionState {
	original, ok := new(big.Int).SetString(entry.Submission.Order.MakingAmount, 10)
	if !ok {
		m.logger.Printf("unreadable making amount for %s", entry.OrderHash.Hex())
		return nil
	}

	state := m.tracker.Poll(ctx, entry.OrderHash, original, entry.Schedule, now)
	entry.replaceState(state)
	m.broadcastState(state)

	if m.fillDue(entry, state) {
		m.submitDueFill(ctx, entry)
	}

	return state
}

// fillDue reports whether the next cycle's fill should be submitted: at
// least one more cycle has elapsed than fills were sent, and a bounded
// schedule still has cycles left. Only a confirmed on-chain completion stops
// fills; a time-estimated one during a read outage can mask cycles that were
// never actually submitted.
func (m *Manager) fillDue(entry *OrderEntry, state *common.ExecutionState) bool {
	if state.Complete && state.Source == common.StateOnChainConfirmed {
		return false
	}
	fills := entry.FillCount()
	if !entry.Schedule.WillRunForever && fills >= entry.Schedule.TotalCycles {
		return false
	}
	return fills < state.CyclesElapsed
}

func (m *Manager) submitDueFill(ctx context.Context, entry *OrderEntry) {
	req := chain.FillRequest{
		Order:           entry.Submission.Order,
		Signature:       entry.Submission.Signature,
		MakingAmount:    entry.Schedule.ChunkInAmount,
		TakingAmount:    big.NewInt(0),
		ThresholdAmount: entry.Schedule.MinOutPerChunk,
		Permit:          entry.Permit,
	}

	txHash, err := m.submitter.SubmitFill(ctx, req)
	if err != nil && chain.IsNonceUsed(err) && m.refreshPermit != nil && entry.Permit != nil {
		// The authorization nonce lost a race. Retry allocation plus
		// submission as a unit, exactly once; any other failure waits
		// for the next tick.
		fresh, refreshErr := m.refreshPermit(ctx, ethcommon.HexToAddress(entry.Submission.Order.Maker), entry.Permit)
		if refreshErr != nil {
			m.broadcastError(entry.OrderHash, fmt.Errorf("authorization refresh failed: %w", refreshErr))
			return
		}
		entry.replacePermit(fresh)
		req.Permit = fresh
		txHash, err = m.submitter.SubmitFill(ctx, req)
	}
	if err != nil {
		// Reported per cycle; the remaining schedule is not aborted.
		m.broadcastError(entry.OrderHash, err)
		return
	}

	entry.recordFill()
	m.logger.Printf("fill %d submitted for %s: %s", entry.FillCount(), entry.OrderHash.Hex(), txHash.Hex())
	m.Broadcast([]byte(FILL_EVENT + " " + entry.OrderHash.Hex() + " " + txHash.Hex()))
}

// CancelOrder submits the on-chain cancellation for a tracked order. It is
// independent of polling: the entry keeps being polled so the cancellation
// becomes visible through the remaining-amount read.
func (m *Manager) CancelOrder(ctx context.Context, orderHash string) (ethcommon.Hash, error) {
	entry, err := m.GetOrder(orderHash)
	if err != nil {
		return ethcommon.Hash{}, err
	}

	txHash, err := m.submitter.CancelOrder(ctx, entry.Submission.Order)
	if err != nil {
		return ethcommon.Hash{}, err
	}

	m.Broadcast([]byte(CANCEL_EVENT + " " + entry.OrderHash.Hex() + " " + txHash.Hex()))
	return txHash, nil
}

func (m *Manager) broadcastState(state *common.ExecutionState) {
	payload, err := json.Marshal(state)
	if err != nil {
		m.logger.Printf("failed to marshal execution state: %v", err)
		return
	}
	m.Broadcast(append([]byte(STATE_EVENT+" "), payload...))
}

func (m *Manager) broadcastError(orderHash ethcommon.Hash, err error) {
	m.logger.Printf("fill failed for %s: %v", orderHash.Hex(), err)
	m.Broadcast([]byte(ERROR_EVENT + " " + orderHash.Hex() + " " + err.Error()))
}
