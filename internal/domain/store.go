package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OrderRepository is the transactional persistence boundary for orders.
type OrderRepository interface {
	// PutOrderAndUpdateNonce inserts the order keyed by hash and
	// asserts-and-updates the (offerer, chainID, nonce) ledger entry in a
	// single transaction. It returns ErrNonceConflict when the nonce has
	// already been consumed by a different order hash; resubmitting the
	// same hash is a no-op success.
	PutOrderAndUpdateNonce(ctx context.Context, order *Order) error

	// CountByOffererAndStatus returns the number of the offerer's orders
	// currently in the given status, across all chains.
	CountByOffererAndStatus(ctx context.Context, offerer string, status OrderStatus) (int, error)

	GetByHash(ctx context.Context, hash string) (Order, error)

	// UpdateStatus transitions an order's status. Transitions out of a
	// terminal status return ErrTerminalStatus.
	UpdateStatus(ctx context.Context, hash string, status OrderStatus) error

	ListByOfferer(ctx context.Context, offerer string, status OrderStatus, opts ListOpts) ([]Order, error)
}

// QuoteMetadataRepository looks up pricing/route enrichment deposited by the
// quoting system. Absence of metadata for a quote id is ErrNotFound and is
// never fatal to order submission.
type QuoteMetadataRepository interface {
	GetByQuoteID(ctx context.Context, quoteID string) (QuoteMetadata, error)
	Put(ctx context.Context, meta QuoteMetadata) error
}
