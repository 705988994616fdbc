// Package codec decodes and encodes the hex ABI representation of every
// supported order variant and computes the canonical order hash. It is the
// only package that knows the wire layout of orders; the rest of the
// pipeline works with domain.Order.
package codec

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// detectionOrder fixes the priority in which variants are tried when the
// submission carries no explicit order type. Limit orders share the Dutch
// encoding, so they are only reachable through an explicit type hint.
var detectionOrder = []domain.OrderType{
	domain.OrderTypeDutchV3,
	domain.OrderTypeDutchV2,
	domain.OrderTypePriority,
	domain.OrderTypeRelay,
	domain.OrderTypeDutch,
}

// Decode parses a hex-encoded order of the given type into a domain.Order.
// The returned order has Hash, Type, EncodedOrder and ChainID populated in
// addition to the decoded fields.
func Decode(orderType domain.OrderType, encoded string, chainID uint64) (*domain.Order, error) {
	data, err := hexBytes(encoded)
	if err != nil {
		return nil, fmt.Errorf("codec: %w", err)
	}

	var order *domain.Order
	switch orderType.Normalize() {
	case domain.OrderTypeDutch, domain.OrderTypeLimit:
		order, err = decodeDutch(data)
	case domain.OrderTypeDutchV2:
		order, err = decodeDutchV2(data)
	case domain.OrderTypeDutchV3:
		order, err = decodeDutchV3(data)
	case domain.OrderTypePriority:
		order, err = decodePriority(data)
	case domain.OrderTypeRelay:
		order, err = decodeRelay(data)
	default:
		return nil, fmt.Errorf("codec: %w: %q", domain.ErrUnexpectedOrderType, orderType)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: decode %s: %w", orderType, err)
	}

	order.Type = orderType.Normalize()
	order.ChainID = chainID
	order.EncodedOrder = normalizeHex(encoded)

	hash, err := Hash(order)
	if err != nil {
		return nil, err
	}
	order.Hash = hash
	return order, nil
}

// Detect infers the order type of an encoded order by attempting to decode
// it against each variant in a fixed priority order. It returns
// domain.ErrUnexpectedOrderType when no variant matches.
func Detect(encoded string, chainID uint64) (*domain.Order, error) {
	for _, t := range detectionOrder {
		order, err := Decode(t, encoded, chainID)
		if err == nil {
			return order, nil
		}
	}
	return nil, fmt.Errorf("codec: %w: encoded order matches no known variant", domain.ErrUnexpectedOrderType)
}

// Encode serializes the order back to its hex ABI representation.
func Encode(order *domain.Order) (string, error) {
	data, err := encodeBytes(order)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(data), nil
}

func encodeBytes(order *domain.Order) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch order.Type.Normalize() {
	case domain.OrderTypeDutch, domain.OrderTypeLimit:
		data, err = encodeDutch(order)
	case domain.OrderTypeDutchV2:
		data, err = encodeDutchV2(order)
	case domain.OrderTypeDutchV3:
		data, err = encodeDutchV3(order)
	case domain.OrderTypePriority:
		data, err = encodePriority(order)
	case domain.OrderTypeRelay:
		data, err = encodeRelay(order)
	default:
		return nil, fmt.Errorf("codec: %w: %q", domain.ErrUnexpectedOrderType, order.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: encode %s: %w", order.Type, err)
	}
	return data, nil
}

// Hash computes the canonical order hash: keccak256 over the variant tag and
// the ABI encoding of the order with cosigner-attested fields cleared, so
// the hash is stable across cosigning.
func Hash(order *domain.Order) (string, error) {
	core := *order
	switch {
	case core.DutchV2 != nil:
		d := *core.DutchV2
		d.CosignerData = domain.DutchCosignerData{
			InputOverride:   big.NewInt(0),
			ExclusiveFiller: zeroAddr,
		}
		d.Cosignature = nil
		core.DutchV2 = &d
	case core.DutchV3 != nil:
		d := *core.DutchV3
		d.CosignerData = domain.V3CosignerData{
			InputOverride:   big.NewInt(0),
			ExclusiveFiller: zeroAddr,
		}
		d.Cosignature = nil
		core.DutchV3 = &d
	case core.Priority != nil:
		d := *core.Priority
		d.CosignerData = domain.PriorityCosignerData{}
		d.Cosignature = nil
		core.Priority = &d
	}

	data, err := encodeBytes(&core)
	if err != nil {
		return "", err
	}

	tag := []byte(core.Type.Normalize())
	digest := crypto.Keccak256(tag, data)
	return "0x" + hex.EncodeToString(digest), nil
}

// rawOrderInfo is the shared order info tuple of the Dutch family encodings.
type rawOrderInfo struct {
	Reactor                      common.Address
	Swapper                      common.Address
	Nonce                        *big.Int
	Deadline                     *big.Int
	AdditionalValidationContract common.Address
	AdditionalValidationData     []byte
}

var orderInfoComponents = []abi.ArgumentMarshaling{
	{Name: "reactor", Type: "address"},
	{Name: "swapper", Type: "address"},
	{Name: "nonce", Type: "uint256"},
	{Name: "deadline", Type: "uint256"},
	{Name: "additionalValidationContract", Type: "address"},
	{Name: "additionalValidationData", Type: "bytes"},
}

const zeroAddr = "0x0000000000000000000000000000000000000000"

func mustTuple(components []abi.ArgumentMarshaling) abi.Type {
	t, err := abi.NewType("tuple", "", components)
	if err != nil {
		panic(err)
	}
	return t
}

func addrHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func hexBytes(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	data, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty encoded order")
	}
	return data, nil
}

func normalizeHex(s string) string {
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return strings.ToLower(s)
}

func infoFromOrder(order *domain.Order) rawOrderInfo {
	return rawOrderInfo{
		Reactor:                      common.HexToAddress(order.Reactor),
		Swapper:                      common.HexToAddress(order.Offerer),
		Nonce:                        order.Nonce,
		Deadline:                     big.NewInt(order.Deadline),
		AdditionalValidationContract: common.HexToAddress(order.AdditionalValidationContract),
		AdditionalValidationData:     order.AdditionalValidationData,
	}
}

func applyInfo(order *domain.Order, info rawOrderInfo) {
	order.Reactor = addrHex(info.Reactor)
	order.Offerer = addrHex(info.Swapper)
	order.Nonce = info.Nonce
	order.Deadline = info.Deadline.Int64()
	order.AdditionalValidationContract = addrHex(info.AdditionalValidationContract)
	order.AdditionalValidationData = info.AdditionalValidationData
}
