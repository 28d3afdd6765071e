package order

import "github.com/dishpatch/dishpatch/pkg/engine"

// compensate runs the abort path: refund when the charge had succeeded,
// notify with the abort reason, land in Failed, then send the courtesy
// feedback request. The whole sequence is shielded so a second cancellation
// cannot truncate it, and no side-effect failure inside it prevents reaching
// the terminal state.
func (s *Saga) compensate(sc *engine.Context, reason string) {
	s.setReason(reason)

	_ = sc.Shielded(func() error {
		state := s.State()
		refundDue := (state == StatePaid || state == StateRefunding) && !s.isRefunded()

		note := reason
		if refundDue {
			if _, err := sc.Execute(ActivityRefundOrder, s.product); err != nil {
				sc.Logger().Error("refund failed", "order_id", s.orderID, "error", err)
			} else {
				s.markRefunded()
			}
			note = reason + noteRefunded
		} else if s.isRefunded() {
			// Resumed after a crash that happened post-refund.
			note = reason + noteRefunded
		}
		s.notify(sc, note)

		s.transition(sc, StateFailed)

		if err := sc.Sleep(s.timings.FeedbackDelay); err != nil {
			sc.Logger().Warn("feedback delay interrupted", "order_id", s.orderID, "error", err)
		}
		s.notify(sc, noteFeedback)
		return nil
	})
}

func (s *Saga) isRefunded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refunded
}

// notify fires the notification activity. Notifications are best effort;
// failures are logged and never surfaced to the saga's control flow.
func (s *Saga) notify(sc *engine.Context, text string) {
	if _, err := sc.Execute(ActivitySendNotification, text); err != nil {
		sc.Logger().Warn("notification failed", "order_id", s.orderID, "text", text, "error", err)
	}
}
