// Package validate implements the two validation stages of order intake:
// stateless off-chain checks and per-chain on-chain validation against the
// order quoter contract.
package validate

import (
	"fmt"
	"math/big"
	"time"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Clock supplies the current time; injected so validation is testable.
type Clock func() time.Time

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const zeroAddress = "0x0000000000000000000000000000000000000000"

// OffChainConfig tunes the stateless validator.
type OffChainConfig struct {
	// MaxDeadline bounds how far in the future an order deadline may be.
	// Zero disables the bound.
	MaxDeadline time.Duration

	// SkipDecayStartTime disables the decay-start-in-the-future check, for
	// order classes whose decay begins in the past by design.
	SkipDecayStartTime bool

	// SkipTokenOverlap disables the output-token-distinct-from-input rule.
	// Relay orders report their fee leg as the only output, and the fee is
	// commonly paid in the input token.
	SkipTokenOverlap bool
}

// OffChainValidator runs structural and temporal checks that need no I/O.
type OffChainValidator struct {
	now Clock
	cfg OffChainConfig
}

// NewOffChainValidator creates a validator reading time from now. A nil
// clock falls back to time.Now.
func NewOffChainValidator(now Clock, cfg OffChainConfig) *OffChainValidator {
	if now == nil {
		now = time.Now
	}
	return &OffChainValidator{now: now, cfg: cfg}
}

// Validate returns nil when the order passes every stateless check, or an
// error wrapping domain.ErrInvalidOrder (or domain.ErrInvalidTokenIn for a
// zero input token) describing the first violated rule.
func (v *OffChainValidator) Validate(order *domain.Order) error {
	now := v.now().Unix()

	if order.Offerer == "" || order.Offerer == zeroAddress {
		return fmt.Errorf("%w: offerer is the zero address", domain.ErrInvalidOrder)
	}
	if order.Reactor == "" || order.Reactor == zeroAddress {
		return fmt.Errorf("%w: reactor is the zero address", domain.ErrInvalidOrder)
	}

	if token := order.InputToken(); token == "" || token == zeroAddress {
		return domain.ErrInvalidTokenIn
	}

	amount := order.InputStartAmount()
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: input amount must be positive", domain.ErrInvalidOrder)
	}

	if order.Nonce == nil || order.Nonce.Sign() < 0 {
		return fmt.Errorf("%w: nonce must be a non-negative integer", domain.ErrInvalidOrder)
	}
	if order.Nonce.Cmp(maxUint256) >= 0 {
		return fmt.Errorf("%w: nonce is larger than max uint256", domain.ErrInvalidOrder)
	}

	if order.Deadline <= now {
		return fmt.Errorf("%w: deadline %d is in the past", domain.ErrInvalidOrder, order.Deadline)
	}
	if v.cfg.MaxDeadline > 0 {
		max := now + int64(v.cfg.MaxDeadline/time.Second)
		if order.Deadline > max {
			return fmt.Errorf("%w: deadline %d exceeds max horizon", domain.ErrInvalidOrder, order.Deadline)
		}
	}

	if start, end, ok := order.DecayWindow(); ok {
		if start > end {
			return fmt.Errorf("%w: decay start %d after decay end %d", domain.ErrInvalidOrder, start, end)
		}
		if end > order.Deadline {
			return fmt.Errorf("%w: decay end %d after deadline %d", domain.ErrInvalidOrder, end, order.Deadline)
		}
		if !v.cfg.SkipDecayStartTime && start != 0 && start < now {
			return fmt.Errorf("%w: decay start %d is in the past", domain.ErrInvalidOrder, start)
		}
	}

	if !v.cfg.SkipTokenOverlap {
		input := order.InputToken()
		for _, token := range order.OutputTokens() {
			if token == input {
				return fmt.Errorf("%w: output token equals input token %s", domain.ErrInvalidOrder, token)
			}
		}
	}

	return nil
}
