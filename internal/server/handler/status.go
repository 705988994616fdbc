package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// StatusUpdater applies lifecycle status transitions. Satisfied by
// service.StatusService.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, hash string, status domain.OrderStatus) error
}

// validStatuses is the set of statuses the tracker may report.
var validStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusOpen:              true,
	domain.OrderStatusFilled:            true,
	domain.OrderStatusCancelled:         true,
	domain.OrderStatusExpired:           true,
	domain.OrderStatusError:             true,
	domain.OrderStatusInsufficientFunds: true,
}

// StatusHandler serves the status callback used by the external lifecycle
// tracker.
type StatusHandler struct {
	updater StatusUpdater
	logger  *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(updater StatusUpdater, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{updater: updater, logger: logHandler(logger, "status")}
}

type updateStatusRequest struct {
	OrderStatus string `json:"orderStatus"`
}

// UpdateStatus transitions an order's status.
// POST /api/orders/{hash}/status
func (h *StatusHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	hash := pathParam(r, "hash")
	if !hexRe.MatchString(hash) {
		writeError(w, http.StatusBadRequest, "invalid order hash")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	status := domain.OrderStatus(req.OrderStatus)
	if !validStatuses[status] {
		writeError(w, http.StatusBadRequest, "unknown orderStatus")
		return
	}

	if err := h.updater.UpdateStatus(r.Context(), hash, status); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrTerminalStatus):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "handler: status update failed",
				slog.String("order_hash", hash),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"orderHash":   hash,
		"orderStatus": string(status),
	})
}
