package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRevert(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want OrderValidation
	}{
		{"nonce used", "execution reverted: InvalidNonce()", NonceUsed},
		{"invalid signer", "execution reverted: InvalidSigner()", InvalidSignature},
		{"invalid cosignature", "execution reverted: InvalidCosignature()", InvalidSignature},
		{"insufficient funds", "execution reverted: TRANSFER_FROM_FAILED", InsufficientFunds},
		{"deadline passed", "execution reverted: DeadlinePassed()", OrderExpired},
		{"signature expired", "execution reverted: SignatureExpired(1700000000)", OrderExpired},
		{"bad decay window", "execution reverted: OrderEndTimeBeforeStartTime()", InvalidOrderFields},
		{"deadline before end time", "execution reverted: DeadlineBeforeEndTime()", ExceedsDecayTime},
		{"invalid reactor", "execution reverted: InvalidReactor()", InvalidReactor},
		{"plain revert", "execution reverted", ValidationFailed},
		{"transport failure", "connection refused", ValidationFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyRevert(errors.New(tc.msg))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOrderValidationString(t *testing.T) {
	assert.Equal(t, "OK", ValidationOK.String())
	assert.Equal(t, "NonceUsed", NonceUsed.String())
	assert.Equal(t, "UnknownError", OrderValidation(99).String())
}
