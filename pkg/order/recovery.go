package order

import (
	"context"
	"fmt"

	"github.com/dishpatch/dishpatch/pkg/catalog"
	"github.com/dishpatch/dishpatch/pkg/storage"
)

// Resume scans persisted snapshots for orders stranded in a non-terminal
// state by a crash and relaunches their sagas. Wait deadlines resume from
// each snapshot's StateEnteredAt, so an order that already burned half its
// pickup window before the crash only gets the remainder. Returns the number
// of sagas relaunched.
func (s *Service) Resume(ctx context.Context) (int, error) {
	records, _, err := s.store.ListOrders(ctx, &storage.OrderFilter{States: NonTerminalStates()})
	if err != nil {
		return 0, fmt.Errorf("scan stranded orders: %w", err)
	}

	s.log.Info("order recovery scan started", "candidates", len(records))

	resumed := 0
	for _, record := range records {
		product, err := catalog.ByID(record.ProductID)
		if err != nil {
			// Snapshot references a product no longer in the catalog.
			// The saga cannot run; mark the order failed instead of
			// leaving it stranded forever.
			s.log.Warn("skipping recovery, unknown product", "order_id", record.ID, "product_id", record.ProductID)
			s.failStranded(ctx, record, "Product no longer available.")
			continue
		}

		saga := ResumeSaga(record, product, s.timings, WithObserver(s))
		if err := s.launch(ctx, saga); err != nil {
			s.log.Error("resume failed", "order_id", record.ID, "error", err)
			continue
		}

		s.log.Info("order resumed", "order_id", record.ID, "state", record.State)
		resumed++
	}

	return resumed, nil
}

func (s *Service) failStranded(ctx context.Context, record *storage.OrderRecord, reason string) {
	now := s.engine.Clock().Now()
	record.State = string(StateFailed)
	record.StateEnteredAt = now
	record.FailureReason = reason
	record.Result = "Order failed: " + reason
	record.UpdatedAt = now
	record.CompletedAt = &now
	if err := s.store.SaveOrder(ctx, record); err != nil {
		s.log.Error("persist stranded order failed", "order_id", record.ID, "error", err)
	}
}
