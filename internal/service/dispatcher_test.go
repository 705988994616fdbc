package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

func TestDispatcherSubmit(t *testing.T) {
	deps := &serviceDeps{repo: newFakeRepo()}
	svc := newService(t, deps)
	d := NewDispatcher(map[domain.OrderType]*OrderService{
		domain.OrderTypeDutch: svc,
		domain.OrderTypeLimit: svc,
	})

	t.Run("routes by explicit hint", func(t *testing.T) {
		res, err := d.Submit(context.Background(), domain.SubmissionRequest{
			EncodedOrder: encodedDutch(t),
			Signature:    testSig,
			ChainID:      1,
			OrderType:    domain.OrderTypeDutch,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusOpen, res.Status)
	})

	t.Run("deprecated alias resolves to dutch", func(t *testing.T) {
		res, err := d.Submit(context.Background(), domain.SubmissionRequest{
			EncodedOrder: encodedDutch(t),
			Signature:    testSig,
			ChainID:      1,
			OrderType:    domain.OrderTypeDutchLimit,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Hash)
	})

	t.Run("hint without registered service", func(t *testing.T) {
		_, err := d.Submit(context.Background(), domain.SubmissionRequest{
			EncodedOrder: encodedDutch(t),
			Signature:    testSig,
			ChainID:      1,
			OrderType:    domain.OrderTypeRelay,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNoHandlerConfigured)
	})

	t.Run("no hint infers the type", func(t *testing.T) {
		res, err := d.Submit(context.Background(), domain.SubmissionRequest{
			EncodedOrder: encodedDutch(t),
			Signature:    testSig,
			ChainID:      1,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Hash)
	})

	t.Run("undecodable order without hint", func(t *testing.T) {
		_, err := d.Submit(context.Background(), domain.SubmissionRequest{
			EncodedOrder: "0xdeadbeef",
			Signature:    testSig,
			ChainID:      1,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnexpectedOrderType)
	})

	t.Run("inferred type without registered service", func(t *testing.T) {
		empty := NewDispatcher(map[domain.OrderType]*OrderService{})
		_, err := empty.Submit(context.Background(), domain.SubmissionRequest{
			EncodedOrder: encodedDutch(t),
			Signature:    testSig,
			ChainID:      1,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnexpectedOrderType)
	})
}
