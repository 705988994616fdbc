package codec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Relay order layout: a single input, an escalating fee and the router
// calldata to execute. No cosigner and no external validation hook.
var relayOrderType = mustTuple([]abi.ArgumentMarshaling{
	{Name: "info", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "reactor", Type: "address"},
		{Name: "swapper", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}},
	{Name: "input", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	}},
	{Name: "fee", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "endAmount", Type: "uint256"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
	}},
	{Name: "universalRouterCalldata", Type: "bytes"},
})

var relayArgs = abi.Arguments{{Type: relayOrderType}}

type rawRelayInfo struct {
	Reactor  common.Address
	Swapper  common.Address
	Nonce    *big.Int
	Deadline *big.Int
}

type rawRelayOrder struct {
	Info rawRelayInfo
	Input struct {
		Token     common.Address
		Amount    *big.Int
		Recipient common.Address
	}
	Fee struct {
		Token       common.Address
		StartAmount *big.Int
		EndAmount   *big.Int
		StartTime   *big.Int
		EndTime     *big.Int
	}
	UniversalRouterCalldata []byte
}

func decodeRelay(data []byte) (*domain.Order, error) {
	vals, err := relayArgs.Unpack(data)
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(vals[0], new(rawRelayOrder)).(*rawRelayOrder)

	order := &domain.Order{
		Reactor:  addrHex(raw.Info.Reactor),
		Offerer:  addrHex(raw.Info.Swapper),
		Nonce:    raw.Info.Nonce,
		Deadline: raw.Info.Deadline.Int64(),
		Relay: &domain.RelayData{
			Input: domain.RelayInput{
				Token:     addrHex(raw.Input.Token),
				Amount:    raw.Input.Amount,
				Recipient: addrHex(raw.Input.Recipient),
			},
			Fee: domain.RelayFee{
				Token:       addrHex(raw.Fee.Token),
				StartAmount: raw.Fee.StartAmount,
				EndAmount:   raw.Fee.EndAmount,
				StartTime:   raw.Fee.StartTime.Int64(),
				EndTime:     raw.Fee.EndTime.Int64(),
			},
			UniversalRouterCalldata: raw.UniversalRouterCalldata,
		},
	}
	return order, nil
}

func encodeRelay(order *domain.Order) ([]byte, error) {
	d := order.Relay
	var raw rawRelayOrder
	raw.Info = rawRelayInfo{
		Reactor:  common.HexToAddress(order.Reactor),
		Swapper:  common.HexToAddress(order.Offerer),
		Nonce:    order.Nonce,
		Deadline: big.NewInt(order.Deadline),
	}
	raw.Input.Token = common.HexToAddress(d.Input.Token)
	raw.Input.Amount = d.Input.Amount
	raw.Input.Recipient = common.HexToAddress(d.Input.Recipient)
	raw.Fee.Token = common.HexToAddress(d.Fee.Token)
	raw.Fee.StartAmount = orZero(d.Fee.StartAmount)
	raw.Fee.EndAmount = orZero(d.Fee.EndAmount)
	raw.Fee.StartTime = big.NewInt(d.Fee.StartTime)
	raw.Fee.EndTime = big.NewInt(d.Fee.EndTime)
	raw.UniversalRouterCalldata = orEmptyBytes(d.UniversalRouterCalldata)
	return relayArgs.Pack(raw)
}
