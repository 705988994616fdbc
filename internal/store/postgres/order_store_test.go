package postgres

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Integration tests run against a live database when
// ORDERPOOL_TEST_DATABASE_URL is set and are skipped otherwise.
func testStore(t *testing.T) *OrderStore {
	t.Helper()
	dsn := os.Getenv("ORDERPOOL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("ORDERPOOL_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	client, err := New(ctx, ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, client.RunMigrations(ctx))
	_, err = client.Pool().Exec(ctx, `TRUNCATE orders, order_nonces`)
	require.NoError(t, err)

	return NewOrderStore(client.Pool())
}

func storedOrder(hash string, nonce int64) *domain.Order {
	return &domain.Order{
		Hash:         hash,
		Type:         domain.OrderTypeDutch,
		EncodedOrder: "0x1122",
		Signature:    "0x3344",
		ChainID:      1,
		Offerer:      "0xd8da6bf26964af9d7eed9e03e53415d37aa96045",
		Reactor:      "0x6000da47483062a0d734ba3dc7576ce6a0b645c4",
		Nonce:        big.NewInt(nonce),
		Deadline:     time.Now().Unix() + 600,
		Status:       domain.OrderStatusOpen,
		Dutch: &domain.DutchData{
			Input: domain.DutchInput{
				Token:       "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
				StartAmount: big.NewInt(1000),
				EndAmount:   big.NewInt(900),
			},
		},
	}
}

func TestPutOrderAndUpdateNonce(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutOrderAndUpdateNonce(ctx, storedOrder("0xaaa", 7)))

	// Resubmitting the same hash is an idempotent overwrite.
	require.NoError(t, store.PutOrderAndUpdateNonce(ctx, storedOrder("0xaaa", 7)))

	// A different order on the consumed nonce must lose.
	err := store.PutOrderAndUpdateNonce(ctx, storedOrder("0xbbb", 7))
	require.ErrorIs(t, err, domain.ErrNonceConflict)

	// The losing order must not have been persisted.
	_, err = store.GetByHash(ctx, "0xbbb")
	require.ErrorIs(t, err, domain.ErrNotFound)

	n, err := store.CountByOffererAndStatus(ctx, "0xd8da6bf26964af9d7eed9e03e53415d37aa96045", domain.OrderStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPutOrderAndUpdateNonceConcurrent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	// Two different orders race for the same (offerer, chain, nonce).
	// Exactly one write must win; the other must fail with a nonce
	// conflict, never commit a second open order.
	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.PutOrderAndUpdateNonce(ctx, storedOrder(fmt.Sprintf("0xrace%02d", i), 99))
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, domain.ErrNonceConflict)
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)

	n, err := store.CountByOffererAndStatus(ctx, "0xd8da6bf26964af9d7eed9e03e53415d37aa96045", domain.OrderStatusOpen)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var ledgerCount int
	// The winner's claim is the only ledger row for the nonce.
	row := store.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_nonces WHERE nonce = 99`)
	require.NoError(t, row.Scan(&ledgerCount))
	assert.Equal(t, 1, ledgerCount)
}
