// Package admission enforces the per-signer ceiling on concurrently open
// orders. The count is read from the repository strictly before the write
// that would increase it; the read is deliberately not atomic with the
// write, so a small overshoot under heavy concurrency is accepted.
package admission

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Ceiling maps an offerer address to the maximum number of open orders it
// may hold. Injected as a pure function so tiering is testable and swappable
// without touching the service orchestration.
type Ceiling func(offerer string) int

// TieredCeiling builds a Ceiling from a default limit and an allow-list of
// elevated offerers with their own limit. Addresses are matched
// case-insensitively. An elevated limit of zero disables the route for
// allow-listed offerers; a default of zero disables it for everyone else.
func TieredCeiling(defaultLimit int, elevated []string, elevatedLimit int) Ceiling {
	allow := make(map[string]struct{}, len(elevated))
	for _, addr := range elevated {
		allow[strings.ToLower(addr)] = struct{}{}
	}
	return func(offerer string) int {
		if _, ok := allow[strings.ToLower(offerer)]; ok {
			return elevatedLimit
		}
		return defaultLimit
	}
}

// FixedCeiling applies the same limit to every offerer.
func FixedCeiling(limit int) Ceiling {
	return func(string) int { return limit }
}

// OpenOrderCounter is the slice of the repository the controller needs.
type OpenOrderCounter interface {
	CountByOffererAndStatus(ctx context.Context, offerer string, status domain.OrderStatus) (int, error)
}

// Controller decides whether an offerer may open another order.
type Controller struct {
	counter OpenOrderCounter
	ceiling Ceiling
}

// NewController creates a Controller over the given counter and ceiling.
func NewController(counter OpenOrderCounter, ceiling Ceiling) *Controller {
	return &Controller{counter: counter, ceiling: ceiling}
}

// Check returns nil if the offerer is below its ceiling,
// domain.ErrTooManyOpenOrders if not, and a wrapped repository error when
// the count cannot be read.
func (c *Controller) Check(ctx context.Context, offerer string) error {
	n, err := c.counter.CountByOffererAndStatus(ctx, offerer, domain.OrderStatusOpen)
	if err != nil {
		return fmt.Errorf("admission: count open orders for %s: %w", offerer, err)
	}
	limit := c.ceiling(offerer)
	if n >= limit {
		return fmt.Errorf("%w: %d open orders at ceiling %d", domain.ErrTooManyOpenOrders, n, limit)
	}
	return nil
}
