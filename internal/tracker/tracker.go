package tracker

import (
	"context"
	"log"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"twapd/internal/common"
)

// RemainingReader reads the unfilled making amount for an order hash. The
// chain client satisfies this; tests substitute their own.
type RemainingReader interface {
	Remaining(ctx context.Context, orderHash ethcommon.Hash) (*big.Int, error)
}

// Tracker derives execution-state snapshots for signed orders. Each Poll
// returns a fresh immutable snapshot; the caller owns the poll timer and
// replaces its previous snapshot atomically.
type Tracker struct {
	reader RemainingReader
	logger *log.Logger
}

func New(reader RemainingReader, logger *log.Logger) *Tracker {
	return &Tracker{
		reader: reader,
		logger: logger,
	}
}

// Poll computes the current execution state for an order. The on-chain
// remaining amount is authoritative; if the read fails, a time-based estimate
// is produced instead so the very first poll and transient read failures
// never yield a blank state. A failed read is never reported as zero
// progress.
func (t *Tracker) Poll(ctx context.Context, orderHash ethcommon.Hash, originalAmount *big.Int, sched *common.FillSchedule, now time.Time) *common.ExecutionState {
	cycles := cyclesElapsed(sched, now)

	state := &common.ExecutionState{
		OrderHash:     orderHash.Hex(),
		CyclesElapsed: cycles,
		NextFillDueAt: nextFillDueAt(sched, cycles),
		PolledAt:      now,
	}

	remaining, err := t.readRemaining(ctx, orderHash)
	if err == nil {
		state.Source = common.StateOnChainConfirmed
		state.RemainingAmount = remaining
		state.FilledAmount = clampedSub(originalAmount, remaining)
		state.Complete = remaining.Sign() == 0
	} else {
		if t.logger != nil {
			t.logger.Printf("remaining read failed for %s, using time estimate: %v", orderHash.Hex(), err)
		}
		state.Source = common.StateTimeEstimated
		state.FilledAmount = estimateFilled(sched, cycles, originalAmount)
		state.RemainingAmount = clampedSub(originalAmount, state.FilledAmount)
		state.Complete = !sched.WillRunForever && cycles >= sched.TotalCycles
	}

	state.ProgressPercent = progressPercent(state.FilledAmount, originalAmount)
	return state
}

func (t *Tracker) readRemaining(ctx context.Context, orderHash ethcommon.Hash) (*big.Int, error) {
	if t.reader == nil {
		return nil, context.Canceled
	}
	return t.reader.Remaining(ctx, orderHash)
}

// cyclesElapsed floors the elapsed time since schedule creation to whole
// intervals. A zero interval means a single immediate fill: every chunk is
// due at once.
func cyclesElapsed(sched *common.FillSchedule, now time.Time) uint64 {
	if sched.IntervalSeconds == 0 {
		return sched.TotalCycles
	}
	elapsed := now.Sub(sched.CreatedAt)
	if elapsed <= 0 {
		return 0
	}
	return uint64(elapsed.Seconds()) / sched.IntervalSeconds
}

func nextFillDueAt(sched *common.FillSchedule, cycles uint64) time.Time {
	interval := time.Duration(sched.IntervalSeconds) * time.Second
	return sched.CreatedAt.Add(time.Duration(cycles+1) * interval)
}

// estimateFilled is the fallback when no on-chain reading is available:
// cycles elapsed times the chunk amount, clamped to [0, original]. It exists
// purely to avoid a blank state and is superseded by any on-chain read.
func estimateFilled(sched *common.FillSchedule, cycles uint64, original *big.Int) *big.Int {
	if !sched.WillRunForever && cycles > sched.TotalCycles {
		cycles = sched.TotalCycles
	}
	filled := new(big.Int).SetUint64(cycles)
	filled.Mul(filled, sched.ChunkInAmount)
	if filled.Cmp(original) > 0 {
		return new(big.Int).Set(original)
	}
	return filled
}

func clampedSub(a, b *big.Int) *big.Int {
	diff := new(big.Int).Sub(a, b)
	if diff.Sign() < 0 {
		return big.NewInt(0)
	}
	return diff
}

func progressPercent(filled, original *big.Int) float64 {
	if original == nil || original.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(filled), new(big.Float).SetInt(original))
	pct, _ := new(big.Float).Mul(ratio, big.NewFloat(100)).Float64()
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
