package service

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

type fakeStatusSink struct {
	cancelled    []string
	insufficient []string
}

func (s *fakeStatusSink) OrderCancelled(_ context.Context, o *domain.Order) {
	s.cancelled = append(s.cancelled, o.Hash)
}

func (s *fakeStatusSink) InsufficientFunds(_ context.Context, o *domain.Order) {
	s.insufficient = append(s.insufficient, o.Hash)
}

func seedOrder(t *testing.T, repo *fakeRepo, status domain.OrderStatus) string {
	t.Helper()
	const hash = "0xaaaa000000000000000000000000000000000000000000000000000000000001"
	repo.orders[hash] = &domain.Order{Hash: hash, Status: status}
	return hash
}

func TestStatusServiceUpdateStatus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("open to filled", func(t *testing.T) {
		repo := newFakeRepo()
		hash := seedOrder(t, repo, domain.OrderStatusOpen)
		svc := NewStatusService(repo, nil, logger)

		require.NoError(t, svc.UpdateStatus(context.Background(), hash, domain.OrderStatusFilled))
		assert.Equal(t, domain.OrderStatusFilled, repo.orders[hash].Status)
	})

	t.Run("terminal status is immutable", func(t *testing.T) {
		repo := newFakeRepo()
		hash := seedOrder(t, repo, domain.OrderStatusFilled)
		svc := NewStatusService(repo, nil, logger)

		err := svc.UpdateStatus(context.Background(), hash, domain.OrderStatusCancelled)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrTerminalStatus)
	})

	t.Run("unknown order", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewStatusService(repo, nil, logger)

		err := svc.UpdateStatus(context.Background(), "0xmissing", domain.OrderStatusFilled)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("cancellation emits event", func(t *testing.T) {
		repo := newFakeRepo()
		hash := seedOrder(t, repo, domain.OrderStatusOpen)
		sink := &fakeStatusSink{}
		svc := NewStatusService(repo, sink, logger)

		require.NoError(t, svc.UpdateStatus(context.Background(), hash, domain.OrderStatusCancelled))
		assert.Equal(t, []string{hash}, sink.cancelled)
		assert.Empty(t, sink.insufficient)
	})

	t.Run("insufficient funds emits event", func(t *testing.T) {
		repo := newFakeRepo()
		hash := seedOrder(t, repo, domain.OrderStatusOpen)
		sink := &fakeStatusSink{}
		svc := NewStatusService(repo, sink, logger)

		require.NoError(t, svc.UpdateStatus(context.Background(), hash, domain.OrderStatusInsufficientFunds))
		assert.Equal(t, []string{hash}, sink.insufficient)
	})

	t.Run("fill emits no event", func(t *testing.T) {
		repo := newFakeRepo()
		hash := seedOrder(t, repo, domain.OrderStatusOpen)
		sink := &fakeStatusSink{}
		svc := NewStatusService(repo, sink, logger)

		require.NoError(t, svc.UpdateStatus(context.Background(), hash, domain.OrderStatusFilled))
		assert.Empty(t, sink.cancelled)
		assert.Empty(t, sink.insufficient)
	})
}
