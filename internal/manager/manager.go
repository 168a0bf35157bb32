package manager

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/imkira/go-ttlmap"

	"twapd/internal/common"
	"twapd/internal/tracker"
)

// Manager owns the tracked-order store and the poll loop driving fills. It
// also fans execution snapshots out to stream clients.
type Manager struct {
	orders  *ttlmap.Map
	tracker *tracker.Tracker

	submitter     FillSubmitter
	refreshPermit PermitRefresher

	broadcaster  *common.Broadcaster
	pollInterval time.Duration
	logger       *log.Logger

	mu     sync.Mutex
	hashes map[string]struct{}
}

func NewManager(trk *tracker.Tracker, submitter FillSubmitter, pollInterval time.Duration, logger *log.Logger) *Manager {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	m := &Manager{
		tracker:      trk,
		submitter:    submitter,
		broadcaster:  common.NewBroadcaster(),
		pollInterval: pollInterval,
		logger:       logger,
		hashes:       make(map[string]struct{}),
	}

	options := &ttlmap.Options{
		InitialCapacity: 32,
		OnWillExpire: func(key string, item ttlmap.Item) {
			m.dropHash(key)
			m.logger.Printf("order entry expired: %s", key)
		},
		OnWillEvict: func(key string, item ttlmap.Item) {
			m.dropHash(key)
		},
	}
	m.orders = ttlmap.New(options)

	return m
}

// SetRefreshPermit wires the authorization re-allocation path used when a
// fill is rejected because its nonce was already consumed.
func (m *Manager) SetRefreshPermit(refresh PermitRefresher) {
	m.refreshPermit = refresh
}

// SetOrder starts tracking an order entry. Entries of bounded schedules live
// until projected completion plus a read-back buffer; unbounded ones carry a
// long fixed TTL.
func (m *Manager) SetOrder(entry *OrderEntry) error {
	key := entry.OrderHash.Hex()

	if err := m.orders.Set(key, ttlmap.NewItem(entry, ttlmap.WithTTL(m.entryTTL(entry))), nil); err != nil {
		return fmt.Errorf("failed to store order entry: %w", err)
	}

	m.mu.Lock()
	m.hashes[key] = struct{}{}
	m.mu.Unlock()

	return nil
}

// GetOrder looks up a tracked order by its hash hex.
func (m *Manager) GetOrder(orderHash string) (*OrderEntry, error) {
	item, err := m.orders.Get(orderHash)
	if err != nil {
		return nil, fmt.Errorf("order not found: %s", orderHash)
	}

	entry, ok := (item.Value()).(*OrderEntry)
	if !ok || entry == nil {
		return nil, fmt.Errorf("invalid order entry for hash: %s", orderHash)
	}

	return entry, nil
}

func (m *Manager) entryTTL(entry *OrderEntry) time.Duration {
	if entry.Schedule.WillRunForever {
		return UnboundedOrderTTL
	}
	ttl := time.Until(entry.Schedule.CompletesAt) + OrderTTLBuffer
	if ttl < OrderTTLBuffer {
		ttl = OrderTTLBuffer
	}
	return ttl
}

func (m *Manager) trackedHashes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	hashes := make([]string, 0, len(m.hashes))
	for h := range m.hashes {
		hashes = append(hashes, h)
	}
	return hashes
}

func (m *Manager) dropHash(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
}

// RegisterReceiver subscribes a stream client to broadcast events.
func (m *Manager) RegisterReceiver(receiver chan []byte) uint64 {
	return m.broadcaster.RegisterReceiver(receiver)
}

// UnregisterReceiver removes a stream client.
func (m *Manager) UnregisterReceiver(id uint64) {
	m.broadcaster.UnregisterReceiver(id)
}

// Broadcast sends a raw event to every stream client.
func (m *Manager) Broadcast(message []byte) {
	m.broadcaster.Broadcast(message)
}

// Close tears down the broadcaster. The order store needs no teardown; its
// items simply stop being polled.
func (m *Manager) Close() {
	m.broadcaster.Close()
}
