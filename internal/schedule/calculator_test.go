package schedule

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twapd/internal/common"
)

func TestCalculateTotalAmountCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sched, err := Calculate(Params{
		ChunkAmount:     big.NewInt(100),
		IntervalSeconds: 3600,
		TotalAmount:     big.NewInt(1000),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, common.StopTotalAmount, sched.Stop)
	assert.Equal(t, uint64(10), sched.TotalCycles)
	assert.Equal(t, uint64(1), sched.EstimatedDays)
	assert.False(t, sched.WillRunForever)
	assert.Equal(t, now.Add(10*time.Hour), sched.CompletesAt)
	assert.Equal(t, big.NewInt(1000), sched.TotalInAmount())
}

func TestCalculateRoundsCyclesUp(t *testing.T) {
	// 1000 / 300 = 3.33 chunks, so a fourth partial cycle is needed to
	// cover the full total.
	sched, err := Calculate(Params{
		ChunkAmount:     big.NewInt(300),
		IntervalSeconds: 60,
		TotalAmount:     big.NewInt(1000),
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, uint64(4), sched.TotalCycles)
	assert.True(t, sched.TotalInAmount().Cmp(big.NewInt(1000)) >= 0)
}

func TestCalculateEndDateCap(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// 90 minutes of runway at a 1 hour interval fits exactly one full
	// cycle; the partial second interval is dropped.
	sched, err := Calculate(Params{
		ChunkAmount:     big.NewInt(50),
		IntervalSeconds: 3600,
		EndDate:         now.Add(90 * time.Minute),
	}, now)
	require.NoError(t, err)

	assert.Equal(t, common.StopEndDate, sched.Stop)
	assert.Equal(t, uint64(1), sched.TotalCycles)
	assert.Equal(t, now.Add(time.Hour), sched.CompletesAt)
}

func TestCalculatePastEndDateIsInert(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	sched, err := Calculate(Params{
		ChunkAmount:     big.NewInt(50),
		IntervalSeconds: 60,
		EndDate:         past,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), sched.TotalCycles)
	assert.Equal(t, past, sched.CompletesAt)
	assert.Equal(t, int64(0), sched.TotalInAmount().Int64())
}

func TestCalculateUnbounded(t *testing.T) {
	sched, err := Calculate(Params{
		ChunkAmount:     big.NewInt(100),
		IntervalSeconds: 3600,
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, common.StopNone, sched.Stop)
	assert.True(t, sched.WillRunForever)
	assert.Nil(t, sched.TotalInAmount())
}

func TestCalculateRejectsBadInput(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		p    Params
		want error
	}{
		{
			name: "zero chunk",
			p:    Params{ChunkAmount: big.NewInt(0), IntervalSeconds: 60},
			want: ErrNonPositiveChunk,
		},
		{
			name: "nil chunk",
			p:    Params{IntervalSeconds: 60},
			want: ErrNonPositiveChunk,
		},
		{
			name: "zero interval",
			p:    Params{ChunkAmount: big.NewInt(1)},
			want: ErrNonPositiveInterval,
		},
		{
			name: "negative slippage",
			p:    Params{ChunkAmount: big.NewInt(1), IntervalSeconds: 60, SlippagePercent: -1},
			want: ErrSlippageOutOfRange,
		},
		{
			name: "slippage above 100",
			p:    Params{ChunkAmount: big.NewInt(1), IntervalSeconds: 60, SlippagePercent: 101},
			want: ErrSlippageOutOfRange,
		},
		{
			name: "both stop conditions",
			p: Params{
				ChunkAmount:     big.NewInt(1),
				IntervalSeconds: 60,
				TotalAmount:     big.NewInt(10),
				EndDate:         now.Add(time.Hour),
			},
			want: ErrBothStopConditions,
		},
		{
			name: "non-positive total",
			p:    Params{ChunkAmount: big.NewInt(1), IntervalSeconds: 60, TotalAmount: big.NewInt(0)},
			want: ErrNonPositiveTotal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.p, now)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCalculateRejectsOversizedCycleCount(t *testing.T) {
	// 2^70 single-unit chunks: the true cycle count does not fit uint64
	// and must be rejected, never truncated to a smaller bounded
	// schedule.
	huge := new(big.Int).Lsh(big.NewInt(1), 70)

	_, err := Calculate(Params{
		ChunkAmount:     big.NewInt(1),
		IntervalSeconds: 3600,
		TotalAmount:     huge,
	}, time.Now())
	assert.ErrorIs(t, err, ErrScheduleTooLong)
}

func TestCalculateRejectsUnrepresentableSpan(t *testing.T) {
	// The count fits uint64 but cycles x interval overflows a Duration.
	_, err := Calculate(Params{
		ChunkAmount:     big.NewInt(1),
		IntervalSeconds: 3600,
		TotalAmount:     new(big.Int).SetUint64(1 << 40),
	}, time.Now())
	assert.ErrorIs(t, err, ErrScheduleTooLong)
}

func TestMinOutPerFill(t *testing.T) {
	tests := []struct {
		name     string
		quoted   *big.Int
		slippage float64
		want     *big.Int
	}{
		{"one percent", big.NewInt(1_000_000), 1, big.NewInt(990_000)},
		{"zero slippage is exact", big.NewInt(1_000_000), 0, big.NewInt(1_000_000)},
		{"truncates toward zero", big.NewInt(999), 0.1, big.NewInt(998)},
		{"full slippage", big.NewInt(1_000_000), 100, big.NewInt(0)},
		{"nil quote", nil, 1, big.NewInt(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MinOutPerFill(tt.quoted, tt.slippage)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Cmp(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestMinOutPerFillRejectsBadSlippage(t *testing.T) {
	_, err := MinOutPerFill(big.NewInt(100), 150)
	assert.ErrorIs(t, err, ErrSlippageOutOfRange)
}

func TestCalculateAppliesSlippageToQuote(t *testing.T) {
	sched, err := Calculate(Params{
		ChunkAmount:     big.NewInt(100),
		IntervalSeconds: 60,
		SlippagePercent: 2.5,
		QuotedChunkOut:  big.NewInt(400_000),
	}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(390_000), sched.MinOutPerChunk.Int64())
}
