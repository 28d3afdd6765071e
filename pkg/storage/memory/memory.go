// Package memory provides an in-memory implementation of the storage interface.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dishpatch/dishpatch/pkg/storage"
)

var errNilOrder = errors.New("nil order record")

// MemoryStorage implements the Storage interface using in-memory maps. It is
// used by tests and by deployments that accept losing saga state on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	orders  map[string]*storage.OrderRecord
	history map[string][]storage.HistoryEvent
	seq     map[string]uint64
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		orders:  make(map[string]*storage.OrderRecord),
		history: make(map[string][]storage.HistoryEvent),
		seq:     make(map[string]uint64),
	}
}

// SaveOrder saves an order snapshot.
func (m *MemoryStorage) SaveOrder(_ context.Context, order *storage.OrderRecord) error {
	if order == nil {
		return &storage.SerializationError{Operation: "marshal", Cause: errNilOrder}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *order
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	m.orders[order.ID] = &copied
	return nil
}

// GetOrder retrieves an order snapshot by ID.
func (m *MemoryStorage) GetOrder(_ context.Context, id string) (*storage.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, exists := m.orders[id]
	if !exists {
		return nil, &storage.NotFoundError{EntityType: "order", ID: id}
	}
	copied := *order
	return &copied, nil
}

// ListOrders lists order snapshots with optional state filter and pagination.
func (m *MemoryStorage) ListOrders(_ context.Context, filter *storage.OrderFilter) ([]*storage.OrderRecord, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var states map[string]struct{}
	limit, offset := 0, 0
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
		if len(filter.States) > 0 {
			states = make(map[string]struct{}, len(filter.States))
			for _, s := range filter.States {
				states[s] = struct{}{}
			}
		}
	}

	all := make([]*storage.OrderRecord, 0, len(m.orders))
	for _, order := range m.orders {
		if states != nil {
			if _, ok := states[order.State]; !ok {
				continue
			}
		}
		copied := *order
		all = append(all, &copied)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// DeleteOrder removes an order snapshot and its history.
func (m *MemoryStorage) DeleteOrder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.orders[id]; !exists {
		return &storage.NotFoundError{EntityType: "order", ID: id}
	}
	delete(m.orders, id)
	delete(m.history, id)
	delete(m.seq, id)
	return nil
}

// AppendHistory appends one journal event and returns its sequence number.
func (m *MemoryStorage) AppendHistory(_ context.Context, event storage.HistoryEvent) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq[event.OrderID]++
	event.Sequence = m.seq[event.OrderID]
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	m.history[event.OrderID] = append(m.history[event.OrderID], event)
	return event.Sequence, nil
}

// History returns the journal for one order in append order.
func (m *MemoryStorage) History(_ context.Context, orderID string) ([]storage.HistoryEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := m.history[orderID]
	out := make([]storage.HistoryEvent, len(events))
	copy(out, events)
	return out, nil
}

// Close is a no-op for memory storage.
func (m *MemoryStorage) Close() error {
	return nil
}
