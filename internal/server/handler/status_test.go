package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

type fakeUpdater struct {
	gotHash   string
	gotStatus domain.OrderStatus
	err       error
}

func (f *fakeUpdater) UpdateStatus(_ context.Context, hash string, status domain.OrderStatus) error {
	f.gotHash = hash
	f.gotStatus = status
	return f.err
}

func statusRequest(hash, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/orders/"+hash+"/status", strings.NewReader(body))
	req.SetPathValue("hash", hash)
	return req
}

func TestUpdateStatus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("success", func(t *testing.T) {
		updater := &fakeUpdater{}
		h := NewStatusHandler(updater, logger)

		rec := httptest.NewRecorder()
		h.UpdateStatus(rec, statusRequest(testHash, `{"orderStatus":"filled"}`))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, testHash, updater.gotHash)
		assert.Equal(t, domain.OrderStatusFilled, updater.gotStatus)
	})

	t.Run("invalid hash", func(t *testing.T) {
		h := NewStatusHandler(&fakeUpdater{}, logger)

		rec := httptest.NewRecorder()
		h.UpdateStatus(rec, statusRequest("not-a-hash", `{"orderStatus":"filled"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		h := NewStatusHandler(&fakeUpdater{}, logger)

		rec := httptest.NewRecorder()
		h.UpdateStatus(rec, statusRequest(testHash, `{"orderStatus":"vanished"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("order not found", func(t *testing.T) {
		h := NewStatusHandler(&fakeUpdater{err: domain.ErrNotFound}, logger)

		rec := httptest.NewRecorder()
		h.UpdateStatus(rec, statusRequest(testHash, `{"orderStatus":"filled"}`))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("terminal status conflict", func(t *testing.T) {
		h := NewStatusHandler(&fakeUpdater{err: domain.ErrTerminalStatus}, logger)

		rec := httptest.NewRecorder()
		h.UpdateStatus(rec, statusRequest(testHash, `{"orderStatus":"cancelled"}`))

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		h := NewStatusHandler(&fakeUpdater{err: errors.New("down")}, logger)

		rec := httptest.NewRecorder()
		h.UpdateStatus(rec, statusRequest(testHash, `{"orderStatus":"filled"}`))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
