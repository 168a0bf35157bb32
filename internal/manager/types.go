package manager

import (
	"context"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"twapd/internal/chain"
	"twapd/internal/common"
	"twapd/internal/permit"
)

// FillSubmitter is the slice of the chain layer the poll loop needs.
type FillSubmitter interface {
	SubmitFill(ctx context.Context, req chain.FillRequest) (ethcommon.Hash, error)
	CancelOrder(ctx context.Context, order common.LimitOrder) (ethcommon.Hash, error)
}

// PermitRefresher re-allocates and re-signs a transfer authorization after
// the on-chain contract rejected the previous nonce. Wired only when the
// daemon holds the maker key.
type PermitRefresher func(ctx context.Context, owner ethcommon.Address, previous *permit.SignedPermit) (*permit.SignedPermit, error)

// OrderEntry tracks one signed order through its fill schedule. State is the
// latest immutable snapshot, replaced atomically under the mutex so
// concurrent readers never observe a partial update.
type OrderEntry struct {
	ID         uuid.UUID
	OrderHash  ethcommon.Hash
	Submission *common.OrderSubmission
	Schedule   *common.FillSchedule
	Permit     *permit.SignedPermit

	OrderMutMutex *sync.Mutex

	state     *common.ExecutionState
	fillCount uint64
}

// State returns the latest snapshot, which may be nil before the first poll.
func (e *OrderEntry) State() *common.ExecutionState {
	e.OrderMutMutex.Lock()
	defer e.OrderMutMutex.Unlock()
	return e.state
}

func (e *OrderEntry) replaceState(state *common.ExecutionState) {
	e.OrderMutMutex.Lock()
	defer e.OrderMutMutex.Unlock()
	e.state = state
}

// FillCount reports how many fills the daemon has submitted for this order.
func (e *OrderEntry) FillCount() uint64 {
	e.OrderMutMutex.Lock()
	defer e.OrderMutMutex.Unlock()
	return e.fillCount
}

func (e *OrderEntry) recordFill() {
	e.OrderMutMutex.Lock()
	defer e.OrderMutMutex.Unlock()
	e.fillCount++
}

func (e *OrderEntry) replacePermit(p *permit.SignedPermit) {
	e.OrderMutMutex.Lock()
	defer e.OrderMutMutex.Unlock()
	e.Permit = p
}
