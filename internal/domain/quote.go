package domain

import "encoding/json"

// QuoteMetadata is the pricing/route context deposited by the quoting system
// and attached to orders by quote id during submission.
type QuoteMetadata struct {
	QuoteID        string          `json:"quoteId"`
	ReferencePrice string          `json:"referencePrice"`
	PriceImpact    float64         `json:"priceImpact"`
	Pair           string          `json:"pair"`
	BlockNumber    int64           `json:"blockNumber,omitempty"`
	Route          json.RawMessage `json:"route,omitempty"`
}

// SubmissionRequest is the shape-validated submission payload handed to the
// dispatcher by the network edge. OrderType is optional; when empty the
// dispatcher infers the type from the encoded order.
type SubmissionRequest struct {
	EncodedOrder string
	Signature    string
	ChainID      uint64
	QuoteID      string
	RequestID    string
	OrderType    OrderType
}
