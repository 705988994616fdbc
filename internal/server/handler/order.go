package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/alanyoungcy/orderpool/internal/domain"
	"github.com/alanyoungcy/orderpool/internal/service"
)

// maxEncodedOrderLen bounds the encoded order hex string accepted at the
// edge. Orders beyond this are rejected before any decoding happens.
const maxEncodedOrderLen = 4000

var (
	hexRe       = regexp.MustCompile(`^0x[0-9a-fA-F]+$`)
	signatureRe = regexp.MustCompile(`^0x[0-9a-fA-F]{130}$`)
)

// validOrderTypes is the set of order type strings accepted on input.
var validOrderTypes = map[domain.OrderType]bool{
	domain.OrderTypeDutch:      true,
	domain.OrderTypeLimit:      true,
	domain.OrderTypeDutchV2:    true,
	domain.OrderTypeDutchV3:    true,
	domain.OrderTypePriority:   true,
	domain.OrderTypeRelay:      true,
	domain.OrderTypeDutchLimit: true,
}

// Submitter routes a shape-valid submission into the intake pipeline.
// Satisfied by service.Dispatcher.
type Submitter interface {
	Submit(ctx context.Context, req domain.SubmissionRequest) (service.SubmissionResult, error)
}

// OrderLister provides the read side for GET /api/orders. Satisfied by the
// order repository.
type OrderLister interface {
	GetByHash(ctx context.Context, hash string) (domain.Order, error)
	ListByOfferer(ctx context.Context, offerer string, status domain.OrderStatus, opts domain.ListOpts) ([]domain.Order, error)
}

// OrderHandler serves order submission and retrieval endpoints.
type OrderHandler struct {
	submitter Submitter
	orders    OrderLister
	chainIDs  map[uint64]bool
	logger    *slog.Logger
}

// NewOrderHandler creates an OrderHandler. chainIDs is the set of chains the
// service is configured for; submissions for other chains are rejected at
// the edge.
func NewOrderHandler(submitter Submitter, orders OrderLister, chainIDs []uint64, logger *slog.Logger) *OrderHandler {
	set := make(map[uint64]bool, len(chainIDs))
	for _, id := range chainIDs {
		set[id] = true
	}
	return &OrderHandler{
		submitter: submitter,
		orders:    orders,
		chainIDs:  set,
		logger:    logHandler(logger, "orders"),
	}
}

// postOrderRequest is the submission payload.
type postOrderRequest struct {
	EncodedOrder string `json:"encodedOrder"`
	Signature    string `json:"signature"`
	ChainID      uint64 `json:"chainId"`
	QuoteID      string `json:"quoteId,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
	OrderType    string `json:"orderType,omitempty"`
}

// postOrderResponse is returned on a successful submission.
type postOrderResponse struct {
	Hash        string `json:"hash"`
	OrderStatus string `json:"orderStatus"`
}

// PostOrder accepts a new order submission.
// POST /api/orders
func (h *OrderHandler) PostOrder(w http.ResponseWriter, r *http.Request) {
	var req postOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if msg := h.checkShape(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := h.submitter.Submit(r.Context(), domain.SubmissionRequest{
		EncodedOrder: req.EncodedOrder,
		Signature:    req.Signature,
		ChainID:      req.ChainID,
		QuoteID:      req.QuoteID,
		RequestID:    req.RequestID,
		OrderType:    domain.OrderType(req.OrderType),
	})
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, postOrderResponse{
		Hash:        result.Hash,
		OrderStatus: string(result.Status),
	})
}

// checkShape validates field shape only. Semantic validation belongs to the
// pipeline, not the edge.
func (h *OrderHandler) checkShape(req postOrderRequest) string {
	if req.EncodedOrder == "" || !hexRe.MatchString(req.EncodedOrder) {
		return "encodedOrder must be a 0x-prefixed hex string"
	}
	if len(req.EncodedOrder) > maxEncodedOrderLen {
		return "encodedOrder exceeds maximum length"
	}
	if !signatureRe.MatchString(req.Signature) {
		return "signature must be a 65-byte 0x-prefixed hex string"
	}
	if !h.chainIDs[req.ChainID] {
		return "unsupported chainId"
	}
	if req.OrderType != "" && !validOrderTypes[domain.OrderType(req.OrderType)] {
		return "unknown orderType"
	}
	if req.QuoteID != "" {
		if _, err := uuid.Parse(req.QuoteID); err != nil {
			return "quoteId must be a UUID"
		}
	}
	if req.RequestID != "" {
		if _, err := uuid.Parse(req.RequestID); err != nil {
			return "requestId must be a UUID"
		}
	}
	return ""
}

// writeSubmitError maps pipeline errors onto HTTP status classes.
func (h *OrderHandler) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrTooManyOpenOrders):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNoHandlerConfigured),
		errors.Is(err, domain.ErrUnexpectedOrderType),
		errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInvalidTokenIn),
		errors.Is(err, domain.ErrNonceConflict):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "handler: order submission failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to process order")
	}
}

// listOrdersResponse wraps the list orders response.
type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
}

// orderResponse is the read-side projection of a persisted order.
type orderResponse struct {
	Hash           string                 `json:"orderHash"`
	OrderType      string                 `json:"orderType"`
	OrderStatus    string                 `json:"orderStatus"`
	ChainID        uint64                 `json:"chainId"`
	Offerer        string                 `json:"offerer"`
	Reactor        string                 `json:"reactor"`
	Nonce          string                 `json:"nonce"`
	Deadline       int64                  `json:"deadline"`
	EncodedOrder   string                 `json:"encodedOrder"`
	Signature      string                 `json:"signature"`
	QuoteID        string                 `json:"quoteId,omitempty"`
	TxHash         string                 `json:"txHash,omitempty"`
	SettledAmounts []domain.SettledAmount `json:"settledAmounts,omitempty"`
	CreatedAt      int64                  `json:"createdAt"`
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		Hash:           o.Hash,
		OrderType:      string(o.Type),
		OrderStatus:    string(o.Status),
		ChainID:        o.ChainID,
		Offerer:        o.Offerer,
		Reactor:        o.Reactor,
		Nonce:          o.Nonce.String(),
		Deadline:       o.Deadline,
		EncodedOrder:   o.EncodedOrder,
		Signature:      o.Signature,
		QuoteID:        o.QuoteID,
		TxHash:         o.TxHash,
		SettledAmounts: o.SettledAmounts,
		CreatedAt:      o.CreatedAt.Unix(),
	}
}

// GetOrders returns orders by hash, or by offerer and status.
// GET /api/orders?orderHash=0x...
// GET /api/orders?offerer=0x...&orderStatus=open&limit=50&offset=0
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if hash := q.Get("orderHash"); hash != "" {
		order, err := h.orders.GetByHash(r.Context(), hash)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeJSON(w, http.StatusOK, listOrdersResponse{Orders: []orderResponse{}})
				return
			}
			h.logger.ErrorContext(r.Context(), "handler: get order failed",
				slog.String("order_hash", hash),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to get order")
			return
		}
		writeJSON(w, http.StatusOK, listOrdersResponse{Orders: []orderResponse{toOrderResponse(order)}})
		return
	}

	offerer := q.Get("offerer")
	if offerer == "" {
		writeError(w, http.StatusBadRequest, "orderHash or offerer query parameter required")
		return
	}
	status := domain.OrderStatus(q.Get("orderStatus"))
	if status == "" {
		status = domain.OrderStatusOpen
	}

	orders, err := h.orders.ListByOfferer(r.Context(), offerer, status, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list orders failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}

	resp := listOrdersResponse{Orders: make([]orderResponse, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}
