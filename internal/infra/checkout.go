package infra

import (
	"log/slog"
	"time"
)

// CheckoutTracker measures how long a store holds a checked-out database
// transaction. Holding one past the configured threshold is logged as a leak
// signal; the tracker never interrupts the transaction itself.
type CheckoutTracker struct {
	logger    *slog.Logger
	threshold time.Duration
}

// NewCheckoutTracker builds a tracker. A zero threshold disables the warning.
func NewCheckoutTracker(logger *slog.Logger, threshold time.Duration) *CheckoutTracker {
	return &CheckoutTracker{logger: logger, threshold: threshold}
}

// Track records the start of a checkout for the named operation and returns a
// release func to defer on every exit path.
func (t *CheckoutTracker) Track(op string) func() {
	if t == nil || t.threshold <= 0 {
		return func() {}
	}
	start := time.Now()
	return func() {
		if held := time.Since(start); held > t.threshold {
			t.logger.Warn("transaction held past threshold",
				slog.String("op", op),
				slog.Duration("held", held),
				slog.Duration("threshold", t.threshold))
		}
	}
}
