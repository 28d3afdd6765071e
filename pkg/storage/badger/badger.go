// Package badger provides a Badger-based implementation of the storage interface.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dishpatch/dishpatch/pkg/storage"
)

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// BadgerStorage implements the Storage interface using Badger.
type BadgerStorage struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStorage creates a new Badger storage instance.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	opts.SyncWrites = config.SyncWrites
	opts.ValueLogFileSize = config.ValueLogFileSize
	opts.NumVersionsToKeep = config.NumVersionsToKeep

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStorage{
		db:     db,
		config: config,
	}, nil
}

// Key generation functions
func orderKey(id string) []byte {
	return []byte(fmt.Sprintf("order:%s", id))
}

func orderIndexStateKey(state, id string) []byte {
	return []byte(fmt.Sprintf("order:index:state:%s:%s", state, id))
}

func historyKey(orderID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("history:%s:%020d", orderID, seq))
}

func historySeqKey(orderID string) []byte {
	return []byte(fmt.Sprintf("history:seq:%s", orderID))
}

// update runs fn in a read-write transaction, retrying on optimistic
// concurrency conflicts. Writes here read the previous snapshot or the
// sequence counter, so concurrent updates to the same order can conflict.
func (b *BadgerStorage) update(fn func(txn *badger.Txn) error) error {
	for {
		err := b.db.Update(fn)
		if err != badger.ErrConflict {
			return err
		}
	}
}

// Serialization helpers
func serialize(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &storage.SerializationError{
			Operation: "marshal",
			Cause:     err,
		}
	}
	return data, nil
}

func deserialize(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &storage.SerializationError{
			Operation: "unmarshal",
			Cause:     err,
		}
	}
	return nil
}

// SaveOrder saves an order snapshot to Badger.
func (b *BadgerStorage) SaveOrder(ctx context.Context, order *storage.OrderRecord) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	data, err := serialize(order)
	if err != nil {
		return err
	}

	return b.update(func(txn *badger.Txn) error {
		// Drop the old state index entry when the state changed
		prev, err := b.getOrderInTxn(txn, order.ID)
		if err == nil && prev.State != order.State {
			if err := txn.Delete(orderIndexStateKey(prev.State, order.ID)); err != nil {
				return err
			}
		}

		if err := txn.Set(orderKey(order.ID), data); err != nil {
			return err
		}

		return txn.Set(orderIndexStateKey(order.State, order.ID), []byte{})
	})
}

// GetOrder retrieves an order snapshot by ID.
func (b *BadgerStorage) GetOrder(ctx context.Context, id string) (*storage.OrderRecord, error) {
	var order *storage.OrderRecord

	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		order, err = b.getOrderInTxn(txn, id)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// getOrderInTxn retrieves an order within a transaction.
func (b *BadgerStorage) getOrderInTxn(txn *badger.Txn, id string) (*storage.OrderRecord, error) {
	var order storage.OrderRecord

	item, err := txn.Get(orderKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, &storage.NotFoundError{
				EntityType: "order",
				ID:         id,
			}
		}
		return nil, err
	}

	err = item.Value(func(val []byte) error {
		return deserialize(val, &order)
	})

	if err != nil {
		return nil, err
	}

	return &order, nil
}

// ListOrders lists order snapshots with optional filtering and pagination.
func (b *BadgerStorage) ListOrders(ctx context.Context, filter *storage.OrderFilter) ([]*storage.OrderRecord, int, error) {
	var orders []*storage.OrderRecord

	err := b.db.View(func(txn *badger.Txn) error {
		// If a state filter is specified, use the state index
		if filter != nil && len(filter.States) > 0 {
			for _, state := range filter.States {
				prefix := []byte(fmt.Sprintf("order:index:state:%s:", state))
				opts := badger.DefaultIteratorOptions
				opts.Prefix = prefix
				opts.PrefetchValues = false

				it := txn.NewIterator(opts)
				defer it.Close()

				for it.Rewind(); it.Valid(); it.Next() {
					key := string(it.Item().Key())
					// Extract order ID from index key: order:index:state:{state}:{id}
					parts := strings.Split(key, ":")
					if len(parts) >= 5 {
						orderID := strings.Join(parts[4:], ":")
						order, err := b.getOrderInTxn(txn, orderID)
						if err != nil {
							continue // Skip stale index entries
						}
						orders = append(orders, order)
					}
				}
			}
		} else {
			// No filter, scan all orders
			prefix := []byte("order:")
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				key := string(item.Key())

				// Skip index keys
				if strings.Contains(key, ":index:") {
					continue
				}

				var order storage.OrderRecord
				err := item.Value(func(val []byte) error {
					return deserialize(val, &order)
				})
				if err != nil {
					continue
				}

				orders = append(orders, &order)
			}
		}

		return nil
	})

	if err != nil {
		return nil, 0, err
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })

	total := len(orders)

	// Apply pagination
	if filter != nil && filter.Limit > 0 {
		start := filter.Offset
		end := filter.Offset + filter.Limit

		if start > len(orders) {
			start = len(orders)
		}
		if end > len(orders) {
			end = len(orders)
		}

		orders = orders[start:end]
	}

	return orders, total, nil
}

// DeleteOrder deletes an order and its history journal.
func (b *BadgerStorage) DeleteOrder(ctx context.Context, id string) error {
	return b.update(func(txn *badger.Txn) error {
		order, err := b.getOrderInTxn(txn, id)
		if err != nil {
			return err
		}

		if err := txn.Delete(orderKey(id)); err != nil {
			return err
		}
		if err := txn.Delete(orderIndexStateKey(order.State, id)); err != nil {
			return err
		}
		if err := txn.Delete(historySeqKey(id)); err != nil && err != badger.ErrKeyNotFound {
			return err
		}

		prefix := []byte(fmt.Sprintf("history:%s:", id))
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}

		return nil
	})
}

// AppendHistory appends one journal event and returns its sequence number.
func (b *BadgerStorage) AppendHistory(ctx context.Context, event storage.HistoryEvent) (uint64, error) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var seq uint64
	err := b.update(func(txn *badger.Txn) error {
		seq = 1
		item, err := txn.Get(historySeqKey(event.OrderID))
		if err == nil {
			err = item.Value(func(val []byte) error {
				var prev uint64
				if derr := deserialize(val, &prev); derr != nil {
					return derr
				}
				seq = prev + 1
				return nil
			})
			if err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		event.Sequence = seq
		data, err := serialize(event)
		if err != nil {
			return err
		}

		if err := txn.Set(historyKey(event.OrderID, seq), data); err != nil {
			return err
		}

		seqData, err := serialize(seq)
		if err != nil {
			return err
		}
		return txn.Set(historySeqKey(event.OrderID), seqData)
	})

	if err != nil {
		return 0, err
	}

	return seq, nil
}

// History returns the journal for one order in append order. Zero-padded
// sequence numbers in the keys make Badger's lexicographic iteration match
// append order.
func (b *BadgerStorage) History(ctx context.Context, orderID string) ([]storage.HistoryEvent, error) {
	var events []storage.HistoryEvent

	err := b.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("history:%s:", orderID))
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var event storage.HistoryEvent
			err := it.Item().Value(func(val []byte) error {
				return deserialize(val, &event)
			})
			if err != nil {
				continue
			}

			events = append(events, event)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return events, nil
}

// Close closes the Badger database.
func (b *BadgerStorage) Close() error {
	// Run garbage collection before closing
	if err := b.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		// Log error but don't fail close
	}

	return b.db.Close()
}
