package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderpool/internal/domain"
	"github.com/alanyoungcy/orderpool/internal/service"
)

const (
	testHash    = "0xaaaa000000000000000000000000000000000000000000000000000000000001"
	testOfferer = "0xd8da6bf26964af9d7eed9e03e53415d37aa96045"
)

var testSignature = "0x" + strings.Repeat("ab", 65)

type fakeSubmitter struct {
	got domain.SubmissionRequest
	res service.SubmissionResult
	err error
}

func (f *fakeSubmitter) Submit(_ context.Context, req domain.SubmissionRequest) (service.SubmissionResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeLister struct {
	order   domain.Order
	getErr  error
	list    []domain.Order
	listErr error
}

func (f *fakeLister) GetByHash(context.Context, string) (domain.Order, error) {
	return f.order, f.getErr
}

func (f *fakeLister) ListByOfferer(context.Context, string, domain.OrderStatus, domain.ListOpts) ([]domain.Order, error) {
	return f.list, f.listErr
}

func newOrderHandler(sub *fakeSubmitter, lister *fakeLister) *OrderHandler {
	return NewOrderHandler(sub, lister, []uint64{1, 137}, slog.New(slog.DiscardHandler))
}

func postOrderBody(mutate func(m map[string]any)) string {
	m := map[string]any{
		"encodedOrder": "0xdeadbeef",
		"signature":    testSignature,
		"chainId":      1,
	}
	if mutate != nil {
		mutate(m)
	}
	data, _ := json.Marshal(m)
	return string(data)
}

func TestPostOrderSuccess(t *testing.T) {
	sub := &fakeSubmitter{res: service.SubmissionResult{Hash: testHash, Status: domain.OrderStatusOpen}}
	h := newOrderHandler(sub, &fakeLister{})

	body := postOrderBody(func(m map[string]any) {
		m["orderType"] = "Dutch"
		m["quoteId"] = "0b1f1b56-7c3e-4a16-9d3b-2f84f2c7f8a1"
	})
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.PostOrder(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Hash        string `json:"hash"`
		OrderStatus string `json:"orderStatus"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testHash, resp.Hash)
	assert.Equal(t, "open", resp.OrderStatus)

	assert.Equal(t, domain.OrderTypeDutch, sub.got.OrderType)
	assert.Equal(t, uint64(1), sub.got.ChainID)
}

func TestPostOrderShapeValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"missing encoded order", func(m map[string]any) { delete(m, "encodedOrder") }},
		{"encoded order not hex", func(m map[string]any) { m["encodedOrder"] = "0xzz" }},
		{"encoded order without prefix", func(m map[string]any) { m["encodedOrder"] = "deadbeef" }},
		{"encoded order too long", func(m map[string]any) {
			m["encodedOrder"] = "0x" + strings.Repeat("ab", 2100)
		}},
		{"signature wrong length", func(m map[string]any) { m["signature"] = "0xabcd" }},
		{"unsupported chain", func(m map[string]any) { m["chainId"] = 10 }},
		{"unknown order type", func(m map[string]any) { m["orderType"] = "Spooky" }},
		{"quote id not a uuid", func(m map[string]any) { m["quoteId"] = "not-a-uuid" }},
		{"request id not a uuid", func(m map[string]any) { m["requestId"] = "not-a-uuid" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			h := newOrderHandler(sub, &fakeLister{})

			req := httptest.NewRequest(http.MethodPost, "/api/orders",
				strings.NewReader(postOrderBody(tc.mutate)))
			rec := httptest.NewRecorder()

			h.PostOrder(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, sub.got.EncodedOrder, "submitter must not be called")
		})
	}
}

func TestPostOrderDeprecatedAliasAccepted(t *testing.T) {
	sub := &fakeSubmitter{res: service.SubmissionResult{Hash: testHash, Status: domain.OrderStatusOpen}}
	h := newOrderHandler(sub, &fakeLister{})

	body := postOrderBody(func(m map[string]any) { m["orderType"] = "DutchLimit" })
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.PostOrder(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPostOrderErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"too many open orders", domain.ErrTooManyOpenOrders, http.StatusForbidden},
		{"no handler configured", domain.ErrNoHandlerConfigured, http.StatusBadRequest},
		{"unexpected order type", domain.ErrUnexpectedOrderType, http.StatusBadRequest},
		{"invalid order", domain.ErrInvalidOrder, http.StatusBadRequest},
		{"invalid token in", domain.ErrInvalidTokenIn, http.StatusBadRequest},
		{"nonce conflict", domain.ErrNonceConflict, http.StatusBadRequest},
		{"wrapped invalid order", errors.New("x"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub := &fakeSubmitter{err: tc.err}
			h := newOrderHandler(sub, &fakeLister{})

			req := httptest.NewRequest(http.MethodPost, "/api/orders",
				strings.NewReader(postOrderBody(nil)))
			rec := httptest.NewRecorder()

			h.PostOrder(rec, req)
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

func storedOrder() domain.Order {
	return domain.Order{
		Hash:         testHash,
		Type:         domain.OrderTypeDutch,
		Status:       domain.OrderStatusOpen,
		ChainID:      1,
		Offerer:      testOfferer,
		Reactor:      "0x6000da47483062a0d734ba3dc7576ce6a0b645c4",
		Nonce:        big.NewInt(1993),
		Deadline:     1790000000,
		EncodedOrder: "0xdeadbeef",
		Signature:    testSignature,
		CreatedAt:    time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestGetOrders(t *testing.T) {
	t.Run("by hash", func(t *testing.T) {
		h := newOrderHandler(&fakeSubmitter{}, &fakeLister{order: storedOrder()})

		req := httptest.NewRequest(http.MethodGet, "/api/orders?orderHash="+testHash, nil)
		rec := httptest.NewRecorder()
		h.GetOrders(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Orders []map[string]any `json:"orders"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Orders, 1)
		assert.Equal(t, testHash, resp.Orders[0]["orderHash"])
		assert.Equal(t, "1993", resp.Orders[0]["nonce"])
		assert.Equal(t, "open", resp.Orders[0]["orderStatus"])
	})

	t.Run("unknown hash returns empty list", func(t *testing.T) {
		h := newOrderHandler(&fakeSubmitter{}, &fakeLister{getErr: domain.ErrNotFound})

		req := httptest.NewRequest(http.MethodGet, "/api/orders?orderHash="+testHash, nil)
		rec := httptest.NewRecorder()
		h.GetOrders(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"orders":[]}`, rec.Body.String())
	})

	t.Run("by offerer", func(t *testing.T) {
		h := newOrderHandler(&fakeSubmitter{}, &fakeLister{list: []domain.Order{storedOrder()}})

		req := httptest.NewRequest(http.MethodGet, "/api/orders?offerer="+testOfferer, nil)
		rec := httptest.NewRecorder()
		h.GetOrders(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Orders []map[string]any `json:"orders"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Orders, 1)
	})

	t.Run("no selector", func(t *testing.T) {
		h := newOrderHandler(&fakeSubmitter{}, &fakeLister{})

		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		rec := httptest.NewRecorder()
		h.GetOrders(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		h := newOrderHandler(&fakeSubmitter{}, &fakeLister{listErr: errors.New("down")})

		req := httptest.NewRequest(http.MethodGet, "/api/orders?offerer="+testOfferer, nil)
		rec := httptest.NewRecorder()
		h.GetOrders(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
