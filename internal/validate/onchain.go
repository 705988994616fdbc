package validate

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// OrderValidation is the outcome of validating an order against live
// contract state. Only ValidationOK admits the order.
type OrderValidation int

const (
	ValidationOK OrderValidation = iota
	ValidationFailed
	NonceUsed
	InvalidSignature
	InsufficientFunds
	OrderExpired
	ExceedsDecayTime
	InvalidOrderFields
	InvalidReactor
	UnknownError
)

func (v OrderValidation) String() string {
	switch v {
	case ValidationOK:
		return "OK"
	case ValidationFailed:
		return "ValidationFailed"
	case NonceUsed:
		return "NonceUsed"
	case InvalidSignature:
		return "InvalidSignature"
	case InsufficientFunds:
		return "InsufficientFunds"
	case OrderExpired:
		return "OrderExpired"
	case ExceedsDecayTime:
		return "ExceedsDecayTime"
	case InvalidOrderFields:
		return "InvalidOrderFields"
	case InvalidReactor:
		return "InvalidReactor"
	default:
		return "UnknownError"
	}
}

// OnChainValidator checks an order against live contract state. The result
// is authoritative; off-chain validation cannot substitute for it.
type OnChainValidator interface {
	Validate(ctx context.Context, order *domain.Order) (OrderValidation, error)
}

// ValidatorMap maps a chain id to its on-chain validator. A missing entry is
// a configuration fault, surfaced as an error and never retried.
type ValidatorMap struct {
	validators map[uint64]OnChainValidator
}

// NewValidatorMap creates an empty ValidatorMap.
func NewValidatorMap() *ValidatorMap {
	return &ValidatorMap{validators: make(map[uint64]OnChainValidator)}
}

// Set registers the validator for a chain.
func (m *ValidatorMap) Set(chainID uint64, v OnChainValidator) {
	m.validators[chainID] = v
}

// Get returns the validator for a chain, or an error if none is configured.
func (m *ValidatorMap) Get(chainID uint64) (OnChainValidator, error) {
	v, ok := m.validators[chainID]
	if !ok {
		return nil, fmt.Errorf("validate: no on-chain validator configured for chain %d", chainID)
	}
	return v, nil
}

// ChainIDs returns every configured chain id.
func (m *ValidatorMap) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(m.validators))
	for id := range m.validators {
		ids = append(ids, id)
	}
	return ids
}

// quoteArgs is the argument list of the quoter's quote(bytes,bytes) method.
var quoteArgs = abi.Arguments{
	{Type: mustType("bytes")},
	{Type: mustType("bytes")},
}

var quoteSelector = crypto.Keccak256([]byte("quote(bytes,bytes)"))[:4]

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// QuoterValidator validates orders by simulating them through the per-chain
// order quoter contract with eth_call. A clean return is OK; revert reasons
// map onto the OrderValidation taxonomy.
type QuoterValidator struct {
	client  *ethclient.Client
	quoter  common.Address
	timeout time.Duration
}

// NewQuoterValidator creates a QuoterValidator calling the quoter contract
// at the given address. timeout bounds each eth_call.
func NewQuoterValidator(client *ethclient.Client, quoter common.Address, timeout time.Duration) *QuoterValidator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &QuoterValidator{client: client, quoter: quoter, timeout: timeout}
}

// Validate simulates the order through the quoter. Transport-level failures
// (including timeouts) report ValidationFailed; only encoding failures
// return a non-nil error.
func (q *QuoterValidator) Validate(ctx context.Context, order *domain.Order) (OrderValidation, error) {
	encoded, err := hexToBytes(order.EncodedOrder)
	if err != nil {
		return UnknownError, fmt.Errorf("validate: encoded order: %w", err)
	}
	sig, err := hexToBytes(order.Signature)
	if err != nil {
		return UnknownError, fmt.Errorf("validate: signature: %w", err)
	}

	packed, err := quoteArgs.Pack(encoded, sig)
	if err != nil {
		return UnknownError, fmt.Errorf("validate: pack quote call: %w", err)
	}
	calldata := append(append([]byte{}, quoteSelector...), packed...)

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	_, err = q.client.CallContract(ctx, ethereum.CallMsg{
		To:   &q.quoter,
		Data: calldata,
	}, nil)
	if err != nil {
		return classifyRevert(err), nil
	}
	return ValidationOK, nil
}

// classifyRevert maps a quoter revert (or transport failure) onto the
// validation taxonomy. Reason strings follow the reactor contract errors.
func classifyRevert(err error) OrderValidation {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "InvalidNonce"):
		return NonceUsed
	case strings.Contains(msg, "InvalidSigner"), strings.Contains(msg, "InvalidSignature"),
		strings.Contains(msg, "InvalidCosignature"):
		return InvalidSignature
	case strings.Contains(msg, "TRANSFER_FROM_FAILED"), strings.Contains(msg, "TransferFromFailed"):
		return InsufficientFunds
	case strings.Contains(msg, "DeadlinePassed"), strings.Contains(msg, "SignatureExpired"):
		return OrderExpired
	case strings.Contains(msg, "EndTimeBeforeStartTime"), strings.Contains(msg, "OrderEndTimeBeforeStartTime"),
		strings.Contains(msg, "IncorrectAmounts"):
		return InvalidOrderFields
	case strings.Contains(msg, "DeadlineBeforeEndTime"):
		return ExceedsDecayTime
	case strings.Contains(msg, "InvalidReactor"):
		return InvalidReactor
	case strings.Contains(msg, "execution reverted"):
		return ValidationFailed
	default:
		// Timeouts and transport failures count as failed validation, never
		// as admission.
		return ValidationFailed
	}
}

func hexToBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
