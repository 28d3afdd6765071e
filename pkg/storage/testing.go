package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// StorageTestSuite defines a test suite that can be run against any Storage implementation.
type StorageTestSuite struct {
	NewStorage func(t *testing.T) Storage
}

// RunAllTests runs all storage tests against the provided storage implementation.
func (s *StorageTestSuite) RunAllTests(t *testing.T) {
	t.Run("OrderCRUD", s.TestOrderCRUD)
	t.Run("ListOrdersWithFilter", s.TestListOrdersWithFilter)
	t.Run("ListOrdersWithPagination", s.TestListOrdersWithPagination)
	t.Run("HistoryJournal", s.TestHistoryJournal)
	t.Run("DeleteOrderCascade", s.TestDeleteOrderCascade)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
	t.Run("OrderNotFound", s.TestOrderNotFound)
}

// TestOrderCRUD tests basic order snapshot CRUD operations.
func (s *StorageTestSuite) TestOrderCRUD(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	order := &OrderRecord{
		ID:             "order-1",
		ProductID:      1,
		ProductName:    "Margherita Pizza",
		PriceAmount:    29900,
		State:          "charging",
		StateEnteredAt: time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}

	if err := store.SaveOrder(ctx, order); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}

	retrieved, err := store.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}

	if retrieved.ID != order.ID {
		t.Errorf("expected ID %s, got %s", order.ID, retrieved.ID)
	}
	if retrieved.ProductName != order.ProductName {
		t.Errorf("expected ProductName %s, got %s", order.ProductName, retrieved.ProductName)
	}
	if retrieved.State != order.State {
		t.Errorf("expected State %s, got %s", order.State, retrieved.State)
	}

	// Update to a new state
	retrieved.State = "paid"
	retrieved.StateEnteredAt = time.Now().UTC()

	if err := store.SaveOrder(ctx, retrieved); err != nil {
		t.Fatalf("SaveOrder (update) failed: %v", err)
	}

	updated, err := store.GetOrder(ctx, "order-1")
	if err != nil {
		t.Fatalf("GetOrder (after update) failed: %v", err)
	}

	if updated.State != "paid" {
		t.Errorf("expected State paid, got %s", updated.State)
	}

	if err := store.DeleteOrder(ctx, "order-1"); err != nil {
		t.Fatalf("DeleteOrder failed: %v", err)
	}

	if _, err := store.GetOrder(ctx, "order-1"); err == nil {
		t.Error("expected error when getting deleted order")
	}
}

// TestListOrdersWithFilter tests order listing with state filter. The state
// index must follow an order as it transitions, so the old-state entry of an
// updated order must not leak into filtered results.
func (s *StorageTestSuite) TestListOrdersWithFilter(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	states := []string{"charging", "paid", "completed", "failed"}
	for i, state := range states {
		order := &OrderRecord{
			ID:             fmt.Sprintf("order-%d", i),
			ProductID:      i + 1,
			State:          state,
			StateEnteredAt: time.Now().UTC(),
			CreatedAt:      time.Now().UTC(),
		}
		if err := store.SaveOrder(ctx, order); err != nil {
			t.Fatalf("SaveOrder failed: %v", err)
		}
	}

	filter := &OrderFilter{
		States: []string{"charging", "paid"},
		Limit:  10,
		Offset: 0,
	}

	orders, total, err := store.ListOrders(ctx, filter)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}

	if total != 2 {
		t.Errorf("expected total 2, got %d", total)
	}
	if len(orders) != 2 {
		t.Errorf("expected 2 orders, got %d", len(orders))
	}
	for _, order := range orders {
		if order.State != "charging" && order.State != "paid" {
			t.Errorf("unexpected state %s in filtered results", order.State)
		}
	}

	// Transition order-0 out of charging and verify the index followed
	moved, err := store.GetOrder(ctx, "order-0")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	moved.State = "failed"
	if err := store.SaveOrder(ctx, moved); err != nil {
		t.Fatalf("SaveOrder (transition) failed: %v", err)
	}

	orders, total, err = store.ListOrders(ctx, &OrderFilter{States: []string{"charging"}})
	if err != nil {
		t.Fatalf("ListOrders (after transition) failed: %v", err)
	}
	if total != 0 || len(orders) != 0 {
		t.Errorf("expected no charging orders after transition, got %d", total)
	}
}

// TestListOrdersWithPagination tests order listing with pagination.
func (s *StorageTestSuite) TestListOrdersWithPagination(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 10; i++ {
		order := &OrderRecord{
			ID:             fmt.Sprintf("order-%02d", i),
			ProductID:      1,
			State:          "paid",
			StateEnteredAt: base,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := store.SaveOrder(ctx, order); err != nil {
			t.Fatalf("SaveOrder failed: %v", err)
		}
	}

	filter := &OrderFilter{
		Limit:  3,
		Offset: 0,
	}

	orders, total, err := store.ListOrders(ctx, filter)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}

	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}
	if len(orders) != 3 {
		t.Errorf("expected 3 orders, got %d", len(orders))
	}

	filter.Offset = 9
	orders, total, err = store.ListOrders(ctx, filter)
	if err != nil {
		t.Fatalf("ListOrders (last page) failed: %v", err)
	}
	if total != 10 {
		t.Errorf("expected total 10, got %d", total)
	}
	if len(orders) != 1 {
		t.Errorf("expected 1 order on last page, got %d", len(orders))
	}
}

// TestHistoryJournal tests appending and reading the per-order journal.
func (s *StorageTestSuite) TestHistoryJournal(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	types := []HistoryEventType{
		HistoryEventSagaStarted,
		HistoryEventStateChanged,
		HistoryEventSignalReceived,
		HistoryEventSagaCompleted,
	}

	for i, typ := range types {
		seq, err := store.AppendHistory(ctx, HistoryEvent{
			OrderID: "order-journal",
			Type:    typ,
			Detail:  fmt.Sprintf("event %d", i),
		})
		if err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
		if seq != uint64(i+1) {
			t.Errorf("expected sequence %d, got %d", i+1, seq)
		}
	}

	// Second order gets an independent sequence
	seq, err := store.AppendHistory(ctx, HistoryEvent{
		OrderID: "order-other",
		Type:    HistoryEventSagaStarted,
	})
	if err != nil {
		t.Fatalf("AppendHistory (other order) failed: %v", err)
	}
	if seq != 1 {
		t.Errorf("expected sequence 1 for fresh order, got %d", seq)
	}

	events, err := store.History(ctx, "order-journal")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	if len(events) != len(types) {
		t.Fatalf("expected %d events, got %d", len(types), len(events))
	}
	for i, event := range events {
		if event.Sequence != uint64(i+1) {
			t.Errorf("event %d: expected sequence %d, got %d", i, i+1, event.Sequence)
		}
		if event.Type != types[i] {
			t.Errorf("event %d: expected type %s, got %s", i, types[i], event.Type)
		}
		if event.Timestamp.IsZero() {
			t.Errorf("event %d: expected timestamp to be set", i)
		}
	}
}

// TestDeleteOrderCascade tests that deleting an order also deletes its journal.
func (s *StorageTestSuite) TestDeleteOrderCascade(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	order := &OrderRecord{
		ID:             "order-cascade",
		ProductID:      2,
		State:          "paid",
		StateEnteredAt: time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.SaveOrder(ctx, order); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.AppendHistory(ctx, HistoryEvent{
			OrderID: "order-cascade",
			Type:    HistoryEventStateChanged,
		}); err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
	}

	if err := store.DeleteOrder(ctx, "order-cascade"); err != nil {
		t.Fatalf("DeleteOrder failed: %v", err)
	}

	events, err := store.History(ctx, "order-cascade")
	if err != nil {
		t.Fatalf("History after delete failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected empty journal after delete, got %d events", len(events))
	}
}

// TestConcurrentAccess tests concurrent read/write operations.
func (s *StorageTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	order := &OrderRecord{
		ID:             "order-concurrent",
		ProductID:      3,
		State:          "paid",
		StateEnteredAt: time.Now().UTC(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.SaveOrder(ctx, order); err != nil {
		t.Fatalf("SaveOrder failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			retrieved, err := store.GetOrder(ctx, "order-concurrent")
			if err != nil {
				errs <- err
				return
			}

			retrieved.FailureReason = fmt.Sprintf("iteration %d", idx)

			if err := store.SaveOrder(ctx, retrieved); err != nil {
				errs <- err
			}
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AppendHistory(ctx, HistoryEvent{
				OrderID: "order-concurrent",
				Type:    HistoryEventStateChanged,
			}); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent operation failed: %v", err)
	}

	events, err := store.History(ctx, "order-concurrent")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	seen := make(map[uint64]bool, len(events))
	for _, event := range events {
		if seen[event.Sequence] {
			t.Errorf("duplicate sequence %d in journal", event.Sequence)
		}
		seen[event.Sequence] = true
	}
}

// TestOrderNotFound tests NotFoundError for orders.
func (s *StorageTestSuite) TestOrderNotFound(t *testing.T) {
	store := s.NewStorage(t)
	defer store.Close()

	ctx := context.Background()

	_, err := store.GetOrder(ctx, "missing-order")
	if err == nil {
		t.Fatal("expected error for missing order")
	}

	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError, got %T", err)
	}

	if err := store.DeleteOrder(ctx, "missing-order"); err == nil {
		t.Error("expected error when deleting missing order")
	}
}
