package domain

import (
	"encoding/json"
	"math/big"
	"time"
)

// OrderType tags the structural variant of a submitted order. The tag
// selects the codec used to decode/encode the order and the service that
// handles its submission.
type OrderType string

const (
	OrderTypeDutch    OrderType = "Dutch"
	OrderTypeLimit    OrderType = "Limit"
	OrderTypeDutchV2  OrderType = "Dutch_V2"
	OrderTypeDutchV3  OrderType = "Dutch_V3"
	OrderTypePriority OrderType = "Priority"
	OrderTypeRelay    OrderType = "Relay"

	// OrderTypeDutchLimit is a deprecated alias still accepted on input for
	// backwards compatibility with old clients.
	OrderTypeDutchLimit OrderType = "DutchLimit"
)

// Normalize maps deprecated aliases onto their canonical order type.
func (t OrderType) Normalize() OrderType {
	if t == OrderTypeDutchLimit {
		return OrderTypeDutch
	}
	return t
}

// RequiresCosigning reports whether submission of this variant must pass
// through the cosigner before persistence.
func (t OrderType) RequiresCosigning() bool {
	switch t.Normalize() {
	case OrderTypeDutchV2, OrderTypeDutchV3, OrderTypePriority:
		return true
	default:
		return false
	}
}

// OrderStatus tracks the order lifecycle. Transitions out of open are owned
// by the external status tracker, not by the intake pipeline.
type OrderStatus string

const (
	OrderStatusOpen              OrderStatus = "open"
	OrderStatusFilled            OrderStatus = "filled"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusExpired           OrderStatus = "expired"
	OrderStatusError             OrderStatus = "error"
	OrderStatusInsufficientFunds OrderStatus = "insufficient-funds"
)

// Terminal reports whether the status permits no further status transitions.
// Terminal orders remain mutable only through enrichment fields.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// DutchInput is the linear-decay input of a Dutch or Dutch_V2 order.
type DutchInput struct {
	Token       string
	StartAmount *big.Int
	EndAmount   *big.Int
}

// DutchOutput is one linear-decay output of a Dutch or Dutch_V2 order.
type DutchOutput struct {
	Token       string
	StartAmount *big.Int
	EndAmount   *big.Int
	Recipient   string
}

// DutchData holds the Dutch/Limit variant payload. Limit orders share this
// encoding with start == end amounts and no decay.
type DutchData struct {
	DecayStartTime         int64
	DecayEndTime           int64
	ExclusiveFiller        string
	ExclusivityOverrideBps *big.Int
	Input                  DutchInput
	Outputs                []DutchOutput
}

// DutchCosignerData is the cosigner-attested parameter block of a Dutch_V2
// order. It is populated exclusively by the cosigner at submission time.
type DutchCosignerData struct {
	DecayStartTime  int64
	DecayEndTime    int64
	ExclusiveFiller string
	InputOverride   *big.Int
	OutputOverrides []*big.Int
}

// DutchV2Data holds the cosigned Dutch_V2 variant payload.
type DutchV2Data struct {
	Cosigner     string
	Input        DutchInput
	Outputs      []DutchOutput
	CosignerData DutchCosignerData
	Cosignature  []byte
}

// NonlinearDecay is the multi-segment decay curve of a Dutch_V3 order.
// RelativeBlocks packs up to 16 uint16 block offsets; RelativeAmounts holds
// the signed amount delta at each breakpoint.
type NonlinearDecay struct {
	RelativeBlocks  *big.Int
	RelativeAmounts []*big.Int
}

// V3Input is the curve-decayed input of a Dutch_V3 order.
type V3Input struct {
	Token                    string
	StartAmount              *big.Int
	Curve                    NonlinearDecay
	MaxAmount                *big.Int
	AdjustmentPerGweiBaseFee *big.Int
}

// V3Output is one curve-decayed output of a Dutch_V3 order.
type V3Output struct {
	Token                    string
	StartAmount              *big.Int
	Curve                    NonlinearDecay
	MinAmount                *big.Int
	AdjustmentPerGweiBaseFee *big.Int
	Recipient                string
}

// V3CosignerData is the cosigner-attested parameter block of a Dutch_V3
// order. Decay is block-anchored rather than time-anchored.
type V3CosignerData struct {
	DecayStartBlock uint64
	ExclusiveFiller string
	InputOverride   *big.Int
	OutputOverrides []*big.Int
}

// DutchV3Data holds the cosigned Dutch_V3 variant payload.
type DutchV3Data struct {
	Cosigner        string
	StartingBaseFee *big.Int
	Input           V3Input
	Outputs         []V3Output
	CosignerData    V3CosignerData
	Cosignature     []byte
}

// PriorityInput is the input of a Priority order. Amounts scale with the
// priority fee above the baseline.
type PriorityInput struct {
	Token                string
	Amount               *big.Int
	MpsPerPriorityFeeWei *big.Int
}

// PriorityOutput is one output of a Priority order.
type PriorityOutput struct {
	Token                string
	Amount               *big.Int
	MpsPerPriorityFeeWei *big.Int
	Recipient            string
}

// PriorityCosignerData carries the cosigner-attested auction target block of
// a Priority order, computed as chain head plus a per-chain buffer.
type PriorityCosignerData struct {
	AuctionTargetBlock uint64
}

// PriorityData holds the Priority variant payload.
type PriorityData struct {
	Cosigner               string
	AuctionStartBlock      uint64
	BaselinePriorityFeeWei *big.Int
	Input                  PriorityInput
	Outputs                []PriorityOutput
	CosignerData           PriorityCosignerData
	Cosignature            []byte
}

// RelayInput is the single input of a Relay order.
type RelayInput struct {
	Token     string
	Amount    *big.Int
	Recipient string
}

// RelayFee is the escalating fee of a Relay order.
type RelayFee struct {
	Token       string
	StartAmount *big.Int
	EndAmount   *big.Int
	StartTime   int64
	EndTime     int64
}

// RelayData holds the Relay variant payload.
type RelayData struct {
	Input                   RelayInput
	Fee                     RelayFee
	UniversalRouterCalldata []byte
}

// SettledAmount is one settled leg recorded once an order is filled.
type SettledAmount struct {
	TokenIn   string `json:"tokenIn"`
	AmountIn  string `json:"amountIn"`
	TokenOut  string `json:"tokenOut"`
	AmountOut string `json:"amountOut"`
}

// Order is the decoded, persisted representation of a submitted order. The
// Type tag selects which variant payload pointer is populated; exactly one
// of Dutch/DutchV2/DutchV3/Priority/Relay is non-nil.
type Order struct {
	Hash         string
	Type         OrderType
	EncodedOrder string
	Signature    string
	ChainID      uint64
	Offerer      string
	Reactor      string
	Nonce        *big.Int
	Deadline     int64
	Status       OrderStatus

	// AdditionalValidation* carry the optional external validation hook of
	// the Dutch family encodings; Relay orders have neither.
	AdditionalValidationContract string
	AdditionalValidationData     []byte

	Dutch    *DutchData
	DutchV2  *DutchV2Data
	DutchV3  *DutchV3Data
	Priority *PriorityData
	Relay    *RelayData

	// Enrichment: attached opportunistically, never required for validity.
	QuoteID        string
	RequestID      string
	ReferencePrice string
	PriceImpact    float64
	Pair           string
	Route          json.RawMessage
	TxHash         string
	SettledAmounts []SettledAmount

	CreatedAt time.Time
}

// InputToken returns the input token address for any variant.
func (o *Order) InputToken() string {
	switch {
	case o.Dutch != nil:
		return o.Dutch.Input.Token
	case o.DutchV2 != nil:
		return o.DutchV2.Input.Token
	case o.DutchV3 != nil:
		return o.DutchV3.Input.Token
	case o.Priority != nil:
		return o.Priority.Input.Token
	case o.Relay != nil:
		return o.Relay.Input.Token
	}
	return ""
}

// InputStartAmount returns the input amount at decay start (or the flat
// amount for non-decaying variants).
func (o *Order) InputStartAmount() *big.Int {
	switch {
	case o.Dutch != nil:
		return o.Dutch.Input.StartAmount
	case o.DutchV2 != nil:
		return o.DutchV2.Input.StartAmount
	case o.DutchV3 != nil:
		return o.DutchV3.Input.StartAmount
	case o.Priority != nil:
		return o.Priority.Input.Amount
	case o.Relay != nil:
		return o.Relay.Input.Amount
	}
	return nil
}

// OutputTokens returns the token address of every output leg.
func (o *Order) OutputTokens() []string {
	var tokens []string
	switch {
	case o.Dutch != nil:
		for _, out := range o.Dutch.Outputs {
			tokens = append(tokens, out.Token)
		}
	case o.DutchV2 != nil:
		for _, out := range o.DutchV2.Outputs {
			tokens = append(tokens, out.Token)
		}
	case o.DutchV3 != nil:
		for _, out := range o.DutchV3.Outputs {
			tokens = append(tokens, out.Token)
		}
	case o.Priority != nil:
		for _, out := range o.Priority.Outputs {
			tokens = append(tokens, out.Token)
		}
	case o.Relay != nil:
		// Relay orders pay a fee rather than listing swap outputs.
		tokens = append(tokens, o.Relay.Fee.Token)
	}
	return tokens
}

// DecayWindow returns the time-based decay window when the variant has one.
// Dutch_V3 decays by block and Priority by priority fee, so neither reports
// a window here.
func (o *Order) DecayWindow() (start, end int64, ok bool) {
	switch {
	case o.Dutch != nil:
		return o.Dutch.DecayStartTime, o.Dutch.DecayEndTime, true
	case o.DutchV2 != nil:
		return o.DutchV2.CosignerData.DecayStartTime, o.DutchV2.CosignerData.DecayEndTime, true
	case o.Relay != nil:
		return o.Relay.Fee.StartTime, o.Relay.Fee.EndTime, true
	}
	return 0, 0, false
}

// ExclusiveFiller returns the exclusive filler address, if the variant
// carries one.
func (o *Order) ExclusiveFiller() string {
	switch {
	case o.Dutch != nil:
		return o.Dutch.ExclusiveFiller
	case o.DutchV2 != nil:
		return o.DutchV2.CosignerData.ExclusiveFiller
	case o.DutchV3 != nil:
		return o.DutchV3.CosignerData.ExclusiveFiller
	}
	return ""
}
