package manager

import (
	"time"
)

const (
	// DefaultPollInterval is the fixed cadence of the cooperative poll loop.
	// Staleness up to one interval is expected and acceptable.
	DefaultPollInterval = 30 * time.Second

	// OrderTTLBuffer keeps a completed order's entry readable for a while
	// after its projected completion.
	OrderTTLBuffer = 24 * time.Hour

	// UnboundedOrderTTL caps how long an entry for a runs-forever order is
	// retained. Resubmitting the order restarts the clock.
	UnboundedOrderTTL = 30 * 24 * time.Hour
)

const (
	// Daemon -> stream clients

	// Execution snapshot event: STATE <STATE_JSON>
	STATE_EVENT = "STATE"
	// Fill submitted event: FILLED <ORDER_HASH_HEX> <TX_HASH_HEX>
	FILL_EVENT = "FILLED"
	// Cancel submitted event: CANCEL <ORDER_HASH_HEX> <TX_HASH_HEX>
	CANCEL_EVENT = "CANCEL"
	// Per-cycle failure event: ERROR <ORDER_HASH_HEX> <MESSAGE>
	ERROR_EVENT = "ERROR"
)
