package schedule

import (
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"twapd/internal/common"
)

// Input-contract violations, rejected synchronously before any network call.
var (
	ErrNonPositiveChunk    = errors.New("chunk amount must be positive")
	ErrNonPositiveInterval = errors.New("interval must be positive")
	ErrNonPositiveTotal    = errors.New("total amount must be positive")
	ErrSlippageOutOfRange  = errors.New("slippage tolerance must be between 0 and 100 percent")
	ErrBothStopConditions  = errors.New("total-amount and end-date stop conditions are mutually exclusive")
	ErrScheduleTooLong     = errors.New("schedule does not fit the supported time range")
)

const secondsPerDay = 86400

// Params are the raw schedule inputs. TotalAmount and EndDate are the two
// stop conditions; at most one may be set. A nil QuotedChunkOut yields a zero
// minimum output per fill.
type Params struct {
	ChunkAmount     *big.Int
	IntervalSeconds uint64
	SlippagePercent float64
	TotalAmount     *big.Int
	EndDate         time.Time
	QuotedChunkOut  *big.Int
}

// Calculate derives the fill schedule for the given inputs. Supplying neither
// stop condition is a valid unbounded schedule, not an error. An end date
// already in the past produces zero cycles and an inert schedule.
func Calculate(p Params, now time.Time) (*common.FillSchedule, error) {
	if p.ChunkAmount == nil || p.ChunkAmount.Sign() <= 0 {
		return nil, ErrNonPositiveChunk
	}
	if p.IntervalSeconds == 0 {
		return nil, ErrNonPositiveInterval
	}
	if p.SlippagePercent < 0 || p.SlippagePercent > 100 {
		return nil, ErrSlippageOutOfRange
	}
	hasTotal := p.TotalAmount != nil
	hasEnd := !p.EndDate.IsZero()
	if hasTotal && hasEnd {
		return nil, ErrBothStopConditions
	}
	if hasTotal && p.TotalAmount.Sign() <= 0 {
		return nil, ErrNonPositiveTotal
	}

	minOut := big.NewInt(0)
	if p.QuotedChunkOut != nil {
		var err error
		minOut, err = MinOutPerFill(p.QuotedChunkOut, p.SlippagePercent)
		if err != nil {
			return nil, err
		}
	}

	sched := &common.FillSchedule{
		IntervalSeconds: p.IntervalSeconds,
		ChunkInAmount:   new(big.Int).Set(p.ChunkAmount),
		MinOutPerChunk:  minOut,
		CreatedAt:       now,
	}

	interval := time.Duration(p.IntervalSeconds) * time.Second

	switch {
	case hasTotal:
		sched.Stop = common.StopTotalAmount
		cycles, err := ceilDiv(p.TotalAmount, p.ChunkAmount)
		if err != nil {
			return nil, err
		}
		if err := checkSpan(cycles, p.IntervalSeconds); err != nil {
			return nil, err
		}
		sched.TotalCycles = cycles
		sched.CompletesAt = now.Add(time.Duration(sched.TotalCycles) * interval)
	case hasEnd:
		sched.Stop = common.StopEndDate
		remaining := p.EndDate.Sub(now)
		if remaining <= 0 {
			// Already past the end date: inert schedule, treated as
			// complete rather than an error.
			sched.CompletesAt = p.EndDate
			return sched, nil
		}
		sched.TotalCycles = uint64(remaining.Seconds()) / p.IntervalSeconds
		if err := checkSpan(sched.TotalCycles, p.IntervalSeconds); err != nil {
			return nil, err
		}
		sched.CompletesAt = now.Add(time.Duration(sched.TotalCycles) * interval)
	default:
		sched.Stop = common.StopNone
		sched.WillRunForever = true
		return sched, nil
	}

	sched.EstimatedDays = estimatedDays(sched.TotalCycles, p.IntervalSeconds)
	return sched, nil
}

// MinOutPerFill applies the slippage tolerance to a quoted chunk output:
// quoted * (100 - tolerance) / 100, truncated toward zero at integer
// precision. Truncation (never rounding up) guarantees the minimum-output
// floor is never loosened.
func MinOutPerFill(quoted *big.Int, slippagePercent float64) (*big.Int, error) {
	if slippagePercent < 0 || slippagePercent > 100 {
		return nil, ErrSlippageOutOfRange
	}
	if quoted == nil || quoted.Sign() <= 0 {
		return big.NewInt(0), nil
	}

	factor := decimal.NewFromInt(100).Sub(decimal.NewFromFloat(slippagePercent))
	out := decimal.NewFromBigInt(quoted, 0).
		Mul(factor).
		Div(decimal.NewFromInt(100)).
		Floor()

	return out.BigInt(), nil
}

// maxScheduleSeconds bounds the total schedule span so the projected
// completion and cycle arithmetic stay inside time.Duration's range.
const maxScheduleSeconds = uint64(math.MaxInt64 / int64(time.Second))

// checkSpan rejects a cycle count whose total span cannot be represented.
func checkSpan(cycles, intervalSeconds uint64) error {
	if cycles > 0 && cycles > maxScheduleSeconds/intervalSeconds {
		return ErrScheduleTooLong
	}
	return nil
}

// ceilDiv returns ceil(total / chunk) for positive inputs. A count past the
// uint64 range is rejected rather than truncated.
func ceilDiv(total, chunk *big.Int) (uint64, error) {
	sum := new(big.Int).Add(total, chunk)
	sum.Sub(sum, big.NewInt(1))
	sum.Div(sum, chunk)
	if !sum.IsUint64() {
		return 0, ErrScheduleTooLong
	}
	return sum.Uint64(), nil
}

func estimatedDays(cycles, intervalSeconds uint64) uint64 {
	if cycles == 0 {
		return 0
	}
	total := cycles * intervalSeconds
	return (total + secondsPerDay - 1) / secondsPerDay
}
