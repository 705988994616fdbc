package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNoHandlerConfigured = errors.New("no handler configured for order type")
	ErrUnexpectedOrderType = errors.New("unexpected order type")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrInvalidTokenIn      = errors.New("invalid tokenIn address")
	ErrTooManyOpenOrders   = errors.New("too many open orders")
	ErrNonceConflict       = errors.New("nonce already used by a different order")
	ErrTerminalStatus      = errors.New("order status is terminal")
)
