package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/orderpool/internal/codec"
	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Dispatcher routes an incoming submission to the order service registered
// for its order type. Pure routing, no side effects of its own. The registry
// is assembled once at startup and read-only afterwards.
type Dispatcher struct {
	services map[domain.OrderType]*OrderService
}

// NewDispatcher creates a Dispatcher over the given type registry.
func NewDispatcher(services map[domain.OrderType]*OrderService) *Dispatcher {
	reg := make(map[domain.OrderType]*OrderService, len(services))
	for t, svc := range services {
		reg[t.Normalize()] = svc
	}
	return &Dispatcher{services: reg}
}

// Submit selects the handling service and runs the submission pipeline.
// An explicit order-type hint must match a registered service; with no hint
// the type is inferred from the encoded order's structural shape.
func (d *Dispatcher) Submit(ctx context.Context, req domain.SubmissionRequest) (SubmissionResult, error) {
	if req.OrderType != "" {
		t := req.OrderType.Normalize()
		svc, ok := d.services[t]
		if !ok {
			return SubmissionResult{}, fmt.Errorf("order type %q: %w", req.OrderType, domain.ErrNoHandlerConfigured)
		}
		req.OrderType = t
		return svc.ProcessNewOrder(ctx, req)
	}

	order, err := codec.Detect(req.EncodedOrder, req.ChainID)
	if err != nil {
		return SubmissionResult{}, err
	}
	svc, ok := d.services[order.Type]
	if !ok {
		return SubmissionResult{}, fmt.Errorf("inferred order type %q: %w", order.Type, domain.ErrUnexpectedOrderType)
	}
	req.OrderType = order.Type
	return svc.ProcessNewOrder(ctx, req)
}
