package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// OrderStore implements domain.OrderRepository using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// variantPayload is the JSONB shape of the decoded variant data. Scalar and
// frequently-queried fields live in dedicated columns; the rest rides here
// so reads never re-decode the ABI blob.
type variantPayload struct {
	AdditionalValidationContract string               `json:"additionalValidationContract,omitempty"`
	AdditionalValidationData     []byte               `json:"additionalValidationData,omitempty"`
	Dutch                        *domain.DutchData    `json:"dutch,omitempty"`
	DutchV2                      *domain.DutchV2Data  `json:"dutchV2,omitempty"`
	DutchV3                      *domain.DutchV3Data  `json:"dutchV3,omitempty"`
	Priority                     *domain.PriorityData `json:"priority,omitempty"`
	Relay                        *domain.RelayData    `json:"relay,omitempty"`
}

// PutOrderAndUpdateNonce inserts the order and asserts-and-updates the
// offerer's nonce ledger entry in one transaction. A nonce already consumed
// by a different order hash fails the whole transaction with
// domain.ErrNonceConflict; resubmitting the same hash is an idempotent
// overwrite. The claim is a single conditional upsert so concurrent
// submissions for the same (offerer, chain, nonce) serialize on the ledger's
// primary key and exactly one write wins.
func (s *OrderStore) PutOrderAndUpdateNonce(ctx context.Context, o *domain.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin put order %s: %w", o.Hash, err)
	}
	defer tx.Rollback(ctx)

	// The DO UPDATE only fires when the existing claim carries the same
	// hash; a claim held by a different hash yields zero rows.
	var claimedHash string
	err = tx.QueryRow(ctx,
		`INSERT INTO order_nonces (offerer, chain_id, nonce, order_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (offerer, chain_id, nonce)
		 DO UPDATE SET updated_at = NOW()
		 WHERE order_nonces.order_hash = EXCLUDED.order_hash
		 RETURNING order_hash`,
		o.Offerer, o.ChainID, o.Nonce.String(), o.Hash,
	).Scan(&claimedHash)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("postgres: offerer %s nonce %s: %w",
			o.Offerer, o.Nonce.String(), domain.ErrNonceConflict)
	case err != nil:
		return fmt.Errorf("postgres: update nonce ledger: %w", err)
	}

	payload, err := json.Marshal(variantPayload{
		AdditionalValidationContract: o.AdditionalValidationContract,
		AdditionalValidationData:     o.AdditionalValidationData,
		Dutch:                        o.Dutch,
		DutchV2:                      o.DutchV2,
		DutchV3:                      o.DutchV3,
		Priority:                     o.Priority,
		Relay:                        o.Relay,
	})
	if err != nil {
		return fmt.Errorf("postgres: marshal order payload: %w", err)
	}

	var route, settled []byte
	if o.Route != nil {
		route = o.Route
	}
	if o.SettledAmounts != nil {
		settled, err = json.Marshal(o.SettledAmounts)
		if err != nil {
			return fmt.Errorf("postgres: marshal settled amounts: %w", err)
		}
	}

	var decayStart, decayEnd *int64
	if start, end, ok := o.DecayWindow(); ok {
		decayStart, decayEnd = &start, &end
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO orders (
			order_hash, order_type, encoded_order, signature, chain_id,
			offerer, reactor, nonce, deadline, order_status, filler,
			decay_start, decay_end, decoded,
			quote_id, request_id, reference_price, price_impact, pair, route,
			tx_hash, settled_amounts, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18, $19, $20,
			$21, $22, NOW()
		)
		ON CONFLICT (order_hash) DO UPDATE SET
			encoded_order = EXCLUDED.encoded_order,
			signature     = EXCLUDED.signature,
			decoded       = EXCLUDED.decoded,
			quote_id      = EXCLUDED.quote_id,
			request_id    = EXCLUDED.request_id,
			reference_price = EXCLUDED.reference_price,
			price_impact  = EXCLUDED.price_impact,
			pair          = EXCLUDED.pair,
			route         = EXCLUDED.route,
			updated_at    = NOW()`,
		o.Hash, string(o.Type), o.EncodedOrder, o.Signature, o.ChainID,
		o.Offerer, o.Reactor, o.Nonce.String(), o.Deadline, string(o.Status), nullable(o.ExclusiveFiller()),
		decayStart, decayEnd, payload,
		nullable(o.QuoteID), nullable(o.RequestID), nullable(o.ReferencePrice), o.PriceImpact, nullable(o.Pair), route,
		nullable(o.TxHash), settled,
	); err != nil {
		return fmt.Errorf("postgres: put order %s: %w", o.Hash, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit put order %s: %w", o.Hash, err)
	}
	return nil
}

// CountByOffererAndStatus returns the offerer's order count in the given
// status across all chains.
func (s *OrderStore) CountByOffererAndStatus(ctx context.Context, offerer string, status domain.OrderStatus) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE offerer = $1 AND order_status = $2`,
		offerer, string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count orders for %s: %w", offerer, err)
	}
	return n, nil
}

const orderSelectCols = `order_hash, order_type, encoded_order, signature, chain_id,
	offerer, reactor, nonce, deadline, order_status,
	decoded, quote_id, request_id, reference_price, price_impact, pair, route,
	tx_hash, settled_amounts, created_at`

func scanOrderFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Order, error) {
	var (
		o                        domain.Order
		orderType, status        string
		nonceStr                 string
		payload                  []byte
		quoteID, requestID       *string
		refPrice, pair, txHash   *string
		priceImpact              *float64
		route, settled           []byte
	)

	err := scanner.Scan(
		&o.Hash, &orderType, &o.EncodedOrder, &o.Signature, &o.ChainID,
		&o.Offerer, &o.Reactor, &nonceStr, &o.Deadline, &status,
		&payload, &quoteID, &requestID, &refPrice, &priceImpact, &pair, &route,
		&txHash, &settled, &o.CreatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)

	o.Nonce = new(big.Int)
	if _, ok := o.Nonce.SetString(nonceStr, 10); !ok {
		return domain.Order{}, fmt.Errorf("postgres: bad nonce %q", nonceStr)
	}

	var vp variantPayload
	if err := json.Unmarshal(payload, &vp); err != nil {
		return domain.Order{}, fmt.Errorf("postgres: unmarshal order payload: %w", err)
	}
	o.AdditionalValidationContract = vp.AdditionalValidationContract
	o.AdditionalValidationData = vp.AdditionalValidationData
	o.Dutch = vp.Dutch
	o.DutchV2 = vp.DutchV2
	o.DutchV3 = vp.DutchV3
	o.Priority = vp.Priority
	o.Relay = vp.Relay

	o.QuoteID = deref(quoteID)
	o.RequestID = deref(requestID)
	o.ReferencePrice = deref(refPrice)
	if priceImpact != nil {
		o.PriceImpact = *priceImpact
	}
	o.Pair = deref(pair)
	o.TxHash = deref(txHash)
	if route != nil {
		o.Route = json.RawMessage(route)
	}
	if settled != nil {
		if err := json.Unmarshal(settled, &o.SettledAmounts); err != nil {
			return domain.Order{}, fmt.Errorf("postgres: unmarshal settled amounts: %w", err)
		}
	}

	return o, nil
}

// GetByHash retrieves a single order by its canonical hash.
func (s *OrderStore) GetByHash(ctx context.Context, hash string) (domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderSelectCols+` FROM orders WHERE order_hash = $1`, hash)

	o, err := scanOrderFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order %s: %w", hash, err)
	}
	return o, nil
}

// UpdateStatus transitions an order's status. Status transitions are
// monotonic-terminal: once filled, cancelled or expired the order is
// immutable except for enrichment fields.
func (s *OrderStore) UpdateStatus(ctx context.Context, hash string, status domain.OrderStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin status update %s: %w", hash, err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT order_status FROM orders WHERE order_hash = $1 FOR UPDATE`, hash,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: read status %s: %w", hash, err)
	}

	if domain.OrderStatus(current).Terminal() {
		return fmt.Errorf("postgres: order %s is %s: %w", hash, current, domain.ErrTerminalStatus)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET order_status = $1, updated_at = NOW() WHERE order_hash = $2`,
		string(status), hash,
	); err != nil {
		return fmt.Errorf("postgres: update status %s: %w", hash, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit status update %s: %w", hash, err)
	}
	return nil
}

// ListByOfferer returns the offerer's orders in the given status, newest
// first, with pagination.
func (s *OrderStore) ListByOfferer(ctx context.Context, offerer string, status domain.OrderStatus, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderSelectCols + ` FROM orders WHERE offerer = $1 AND order_status = $2 ORDER BY created_at DESC`
	args := []any{offerer, string(status)}
	argIdx := 3

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for %s: %w", offerer, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ListTerminalBefore returns all orders in a terminal status created
// strictly before the cutoff. Used by the archiver.
func (s *OrderStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM orders
		 WHERE order_status IN ($1, $2, $3) AND created_at < $4
		 ORDER BY created_at ASC`,
		string(domain.OrderStatusFilled),
		string(domain.OrderStatusCancelled),
		string(domain.OrderStatusExpired),
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrderFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Compile-time interface check.
var _ domain.OrderRepository = (*OrderStore)(nil)

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
