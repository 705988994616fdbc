package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// StatusSink receives status transition events. Satisfied by
// analytics.Logger.
type StatusSink interface {
	OrderCancelled(ctx context.Context, order *domain.Order)
	InsufficientFunds(ctx context.Context, order *domain.Order)
}

// StatusService applies status transitions reported by the external
// lifecycle tracker. The repository enforces the monotonic-terminal rule;
// this service only adds event emission on top.
type StatusService struct {
	repo   domain.OrderRepository
	events StatusSink
	logger *slog.Logger
}

// NewStatusService creates a StatusService. events may be nil.
func NewStatusService(repo domain.OrderRepository, events StatusSink, logger *slog.Logger) *StatusService {
	return &StatusService{repo: repo, events: events, logger: logger}
}

// UpdateStatus transitions the order to the given status and emits the
// matching analytics event.
func (s *StatusService) UpdateStatus(ctx context.Context, hash string, status domain.OrderStatus) error {
	if err := s.repo.UpdateStatus(ctx, hash, status); err != nil {
		return fmt.Errorf("update status of %s: %w", hash, err)
	}

	s.logger.Info("order status updated",
		slog.String("order_hash", hash),
		slog.String("order_status", string(status)))

	if s.events == nil {
		return nil
	}
	switch status {
	case domain.OrderStatusCancelled, domain.OrderStatusInsufficientFunds:
		order, err := s.repo.GetByHash(ctx, hash)
		if err != nil {
			s.logger.Warn("status event lookup failed",
				slog.String("order_hash", hash), slog.Any("error", err))
			return nil
		}
		if status == domain.OrderStatusCancelled {
			s.events.OrderCancelled(ctx, &order)
		} else {
			s.events.InsufficientFunds(ctx, &order)
		}
	}
	return nil
}
