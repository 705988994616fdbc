package validate

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

var testNow = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return testNow }

func validDutchOrder() *domain.Order {
	now := testNow.Unix()
	return &domain.Order{
		Type:     domain.OrderTypeDutch,
		Offerer:  "0xd8da6bf26964af9d7eed9e03e53415d37aa96045",
		Reactor:  "0x6000da47483062a0d734ba3dc7576ce6a0b645c4",
		Nonce:    big.NewInt(7),
		Deadline: now + 600,
		Dutch: &domain.DutchData{
			DecayStartTime: now + 60,
			DecayEndTime:   now + 300,
			Input: domain.DutchInput{
				Token:       "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
				StartAmount: big.NewInt(1000),
				EndAmount:   big.NewInt(900),
			},
			Outputs: []domain.DutchOutput{{
				Token:       "0x6b175474e89094c44da98b954eedeac495271d0f",
				StartAmount: big.NewInt(2000),
				EndAmount:   big.NewInt(1900),
				Recipient:   "0xd8da6bf26964af9d7eed9e03e53415d37aa96045",
			}},
		},
	}
}

func TestOffChainValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *domain.Order)
		wantErr error
	}{
		{
			name:   "valid order passes",
			mutate: func(o *domain.Order) {},
		},
		{
			name:    "zero offerer",
			mutate:  func(o *domain.Order) { o.Offerer = zeroAddress },
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name:    "empty reactor",
			mutate:  func(o *domain.Order) { o.Reactor = "" },
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name:    "zero input token",
			mutate:  func(o *domain.Order) { o.Dutch.Input.Token = zeroAddress },
			wantErr: domain.ErrInvalidTokenIn,
		},
		{
			name:    "zero input amount",
			mutate:  func(o *domain.Order) { o.Dutch.Input.StartAmount = big.NewInt(0) },
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name:    "nil nonce",
			mutate:  func(o *domain.Order) { o.Nonce = nil },
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name:    "negative nonce",
			mutate:  func(o *domain.Order) { o.Nonce = big.NewInt(-1) },
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name: "nonce too large",
			mutate: func(o *domain.Order) {
				o.Nonce = new(big.Int).Lsh(big.NewInt(1), 256)
			},
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name:    "deadline in the past",
			mutate:  func(o *domain.Order) { o.Deadline = testNow.Unix() - 1 },
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name: "deadline beyond horizon",
			mutate: func(o *domain.Order) {
				o.Deadline = testNow.Add(48 * time.Hour).Unix()
			},
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name: "decay start after end",
			mutate: func(o *domain.Order) {
				o.Dutch.DecayStartTime = o.Dutch.DecayEndTime + 1
			},
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name: "decay end after deadline",
			mutate: func(o *domain.Order) {
				o.Dutch.DecayEndTime = o.Deadline + 1
			},
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name: "decay start in the past",
			mutate: func(o *domain.Order) {
				o.Dutch.DecayStartTime = testNow.Unix() - 30
			},
			wantErr: domain.ErrInvalidOrder,
		},
		{
			name: "output token equals input token",
			mutate: func(o *domain.Order) {
				o.Dutch.Outputs[0].Token = o.Dutch.Input.Token
			},
			wantErr: domain.ErrInvalidOrder,
		},
	}

	v := NewOffChainValidator(fixedClock, OffChainConfig{MaxDeadline: 24 * time.Hour})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			order := validDutchOrder()
			tc.mutate(order)

			err := v.Validate(order)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func validRelayOrder() *domain.Order {
	now := testNow.Unix()
	return &domain.Order{
		Type:     domain.OrderTypeRelay,
		Offerer:  "0xd8da6bf26964af9d7eed9e03e53415d37aa96045",
		Reactor:  "0x6000da47483062a0d734ba3dc7576ce6a0b645c4",
		Nonce:    big.NewInt(8),
		Deadline: now + 600,
		Relay: &domain.RelayData{
			Input: domain.RelayInput{
				Token:     "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
				Amount:    big.NewInt(1000),
				Recipient: "0x6000da47483062a0d734ba3dc7576ce6a0b645c4",
			},
			Fee: domain.RelayFee{
				Token:       "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
				StartAmount: big.NewInt(10),
				EndAmount:   big.NewInt(20),
				StartTime:   now + 60,
				EndTime:     now + 300,
			},
		},
	}
}

// Relay fees are commonly paid in the input token, so the relay route's
// validator must not apply the token-overlap rule.
func TestOffChainValidateRelayFeeInInputToken(t *testing.T) {
	order := validRelayOrder()

	standard := NewOffChainValidator(fixedClock, OffChainConfig{MaxDeadline: 24 * time.Hour})
	assert.ErrorIs(t, standard.Validate(order), domain.ErrInvalidOrder)

	relay := NewOffChainValidator(fixedClock, OffChainConfig{
		MaxDeadline:      24 * time.Hour,
		SkipTokenOverlap: true,
	})
	assert.NoError(t, relay.Validate(order))
}

func TestOffChainValidateSkipDecayStart(t *testing.T) {
	v := NewOffChainValidator(fixedClock, OffChainConfig{SkipDecayStartTime: true})

	order := validDutchOrder()
	order.Dutch.DecayStartTime = testNow.Unix() - 30

	assert.NoError(t, v.Validate(order))
}

func TestOffChainValidateNoDeadlineBound(t *testing.T) {
	v := NewOffChainValidator(fixedClock, OffChainConfig{})

	order := validDutchOrder()
	order.Deadline = testNow.AddDate(1, 0, 0).Unix()
	order.Dutch.DecayEndTime = order.Deadline - 1

	assert.NoError(t, v.Validate(order))
}

func TestValidatorMap(t *testing.T) {
	m := NewValidatorMap()
	_, err := m.Get(1)
	require.Error(t, err)

	m.Set(1, stubValidator{outcome: ValidationOK})
	v, err := m.Get(1)
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.ElementsMatch(t, []uint64{1}, m.ChainIDs())
}

type stubValidator struct {
	outcome OrderValidation
}

func (s stubValidator) Validate(context.Context, *domain.Order) (OrderValidation, error) {
	return s.outcome, nil
}
