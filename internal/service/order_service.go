package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/orderpool/internal/admission"
	"github.com/alanyoungcy/orderpool/internal/codec"
	"github.com/alanyoungcy/orderpool/internal/domain"
	"github.com/alanyoungcy/orderpool/internal/lifecycle"
	"github.com/alanyoungcy/orderpool/internal/validate"
)

// Attester populates cosigner-attested fields on an order. Satisfied by
// cosign.Cosigner.
type Attester interface {
	Attest(ctx context.Context, order *domain.Order) error
}

// EventSink receives intake events. Satisfied by analytics.Logger.
type EventSink interface {
	OrderPosted(ctx context.Context, order *domain.Order)
}

// SubmissionResult is the client-visible outcome of a successful submission.
type SubmissionResult struct {
	Hash   string
	Status domain.OrderStatus
}

// OrderService runs the submission pipeline for one order family. Two
// instances exist side by side, one for the Dutch/Priority family and one
// for Relay orders, differing in validators, admission ceiling and cosigner.
type OrderService struct {
	offchain  *validate.OffChainValidator
	onchain   *validate.ValidatorMap
	admission *admission.Controller
	cosigner  Attester
	repo      domain.OrderRepository
	quotes    domain.QuoteMetadataRepository
	kickoff   lifecycle.Kickoff
	events    EventSink
	now       func() time.Time
	logger    *slog.Logger
}

// NewOrderService creates an OrderService. cosigner may be nil for families
// with no cosigned variants; quotes, kickoff and events may be nil when the
// corresponding backend is not configured.
func NewOrderService(
	offchain *validate.OffChainValidator,
	onchain *validate.ValidatorMap,
	adm *admission.Controller,
	cosigner Attester,
	repo domain.OrderRepository,
	quotes domain.QuoteMetadataRepository,
	kickoff lifecycle.Kickoff,
	events EventSink,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		offchain:  offchain,
		onchain:   onchain,
		admission: adm,
		cosigner:  cosigner,
		repo:      repo,
		quotes:    quotes,
		kickoff:   kickoff,
		events:    events,
		now:       time.Now,
		logger:    logger,
	}
}

// ProcessNewOrder runs the full submission pipeline, terminal at the first
// failure: parse, off-chain validation, on-chain validation, admission
// control, cosigning for variants that need it, the transactional repository
// write, best-effort quote enrichment, and the lifecycle kickoff.
func (s *OrderService) ProcessNewOrder(ctx context.Context, req domain.SubmissionRequest) (SubmissionResult, error) {
	order, err := codec.Decode(req.OrderType, req.EncodedOrder, req.ChainID)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("parse encoded order: %s: %w", err, domain.ErrInvalidOrder)
	}
	order.Signature = req.Signature
	order.QuoteID = req.QuoteID
	order.RequestID = req.RequestID

	log := s.logger.With(
		slog.String("order_hash", order.Hash),
		slog.String("order_type", string(order.Type)),
		slog.Uint64("chain_id", order.ChainID),
		slog.String("offerer", order.Offerer),
	)

	if err := s.offchain.Validate(order); err != nil {
		return SubmissionResult{}, err
	}

	validator, err := s.onchain.Get(order.ChainID)
	if err != nil {
		// Missing chain entry is a configuration fault, not a client error.
		return SubmissionResult{}, fmt.Errorf("on-chain validator: %w", err)
	}
	outcome, err := validator.Validate(ctx, order)
	if err != nil {
		log.Warn("on-chain validation errored", slog.Any("error", err))
		return SubmissionResult{}, fmt.Errorf("on-chain validation: %s: %w", outcome, domain.ErrInvalidOrder)
	}
	if outcome != validate.ValidationOK {
		return SubmissionResult{}, fmt.Errorf("on-chain validation: %s: %w", outcome, domain.ErrInvalidOrder)
	}

	if err := s.admission.Check(ctx, order.Offerer); err != nil {
		return SubmissionResult{}, err
	}

	if order.Type.RequiresCosigning() {
		if s.cosigner == nil {
			return SubmissionResult{}, fmt.Errorf("no cosigner configured for %s orders", order.Type)
		}
		if err := s.cosigner.Attest(ctx, order); err != nil {
			return SubmissionResult{}, fmt.Errorf("cosign: %w", err)
		}
	}

	order.Status = domain.OrderStatusOpen
	order.CreatedAt = s.now().UTC()

	if err := s.repo.PutOrderAndUpdateNonce(ctx, order); err != nil {
		if errors.Is(err, domain.ErrNonceConflict) {
			return SubmissionResult{}, err
		}
		log.Error("order persistence failed", slog.Any("error", err))
		return SubmissionResult{}, fmt.Errorf("persist order: %w", err)
	}

	// Persistence is the commit point. Everything past here is advisory and
	// never fails the submission.
	s.enrich(ctx, order, log)

	if s.kickoff != nil {
		if err := s.kickoff.Start(ctx, order); err != nil {
			log.Warn("lifecycle kickoff failed", slog.Any("error", err))
		}
	}
	if s.events != nil {
		s.events.OrderPosted(ctx, order)
	}

	log.Info("order accepted")
	return SubmissionResult{Hash: order.Hash, Status: order.Status}, nil
}

// enrich attaches quote metadata by quote id and rewrites the persisted
// record with the extra fields. Missing metadata is the common case and is
// not logged.
func (s *OrderService) enrich(ctx context.Context, order *domain.Order, log *slog.Logger) {
	if s.quotes == nil || order.QuoteID == "" {
		return
	}

	meta, err := s.quotes.GetByQuoteID(ctx, order.QuoteID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn("quote metadata lookup failed", slog.Any("error", err))
		}
		return
	}

	order.ReferencePrice = meta.ReferencePrice
	order.PriceImpact = meta.PriceImpact
	order.Pair = meta.Pair
	order.Route = meta.Route

	if err := s.repo.PutOrderAndUpdateNonce(ctx, order); err != nil {
		log.Warn("quote enrichment write failed", slog.Any("error", err))
	}
}
