package codec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Dutch (v1) order layout, shared by legacy Limit orders.
var dutchOrderType = mustTuple([]abi.ArgumentMarshaling{
	{Name: "info", Type: "tuple", Components: orderInfoComponents},
	{Name: "decayStartTime", Type: "uint256"},
	{Name: "decayEndTime", Type: "uint256"},
	{Name: "exclusiveFiller", Type: "address"},
	{Name: "exclusivityOverrideBps", Type: "uint256"},
	{Name: "inputToken", Type: "address"},
	{Name: "inputStartAmount", Type: "uint256"},
	{Name: "inputEndAmount", Type: "uint256"},
	{Name: "outputs", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "endAmount", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	}},
})

var dutchArgs = abi.Arguments{{Type: dutchOrderType}}

type rawDutchOutput struct {
	Token       common.Address
	StartAmount *big.Int
	EndAmount   *big.Int
	Recipient   common.Address
}

type rawDutchOrder struct {
	Info                   rawOrderInfo
	DecayStartTime         *big.Int
	DecayEndTime           *big.Int
	ExclusiveFiller        common.Address
	ExclusivityOverrideBps *big.Int
	InputToken             common.Address
	InputStartAmount       *big.Int
	InputEndAmount         *big.Int
	Outputs                []rawDutchOutput
}

func decodeDutch(data []byte) (*domain.Order, error) {
	vals, err := dutchArgs.Unpack(data)
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(vals[0], new(rawDutchOrder)).(*rawDutchOrder)

	order := &domain.Order{
		Dutch: &domain.DutchData{
			DecayStartTime:         raw.DecayStartTime.Int64(),
			DecayEndTime:           raw.DecayEndTime.Int64(),
			ExclusiveFiller:        addrHex(raw.ExclusiveFiller),
			ExclusivityOverrideBps: raw.ExclusivityOverrideBps,
			Input: domain.DutchInput{
				Token:       addrHex(raw.InputToken),
				StartAmount: raw.InputStartAmount,
				EndAmount:   raw.InputEndAmount,
			},
			Outputs: dutchOutputsFromRaw(raw.Outputs),
		},
	}
	applyInfo(order, raw.Info)
	return order, nil
}

func encodeDutch(order *domain.Order) ([]byte, error) {
	d := order.Dutch
	raw := rawDutchOrder{
		Info:                   infoFromOrder(order),
		DecayStartTime:         big.NewInt(d.DecayStartTime),
		DecayEndTime:           big.NewInt(d.DecayEndTime),
		ExclusiveFiller:        common.HexToAddress(d.ExclusiveFiller),
		ExclusivityOverrideBps: orZero(d.ExclusivityOverrideBps),
		InputToken:             common.HexToAddress(d.Input.Token),
		InputStartAmount:       d.Input.StartAmount,
		InputEndAmount:         d.Input.EndAmount,
		Outputs:                dutchOutputsToRaw(d.Outputs),
	}
	return dutchArgs.Pack(raw)
}

func dutchOutputsFromRaw(raws []rawDutchOutput) []domain.DutchOutput {
	outs := make([]domain.DutchOutput, len(raws))
	for i, r := range raws {
		outs[i] = domain.DutchOutput{
			Token:       addrHex(r.Token),
			StartAmount: r.StartAmount,
			EndAmount:   r.EndAmount,
			Recipient:   addrHex(r.Recipient),
		}
	}
	return outs
}

func dutchOutputsToRaw(outs []domain.DutchOutput) []rawDutchOutput {
	raws := make([]rawDutchOutput, len(outs))
	for i, o := range outs {
		raws[i] = rawDutchOutput{
			Token:       common.HexToAddress(o.Token),
			StartAmount: o.StartAmount,
			EndAmount:   o.EndAmount,
			Recipient:   common.HexToAddress(o.Recipient),
		}
	}
	return raws
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

func orEmptyBigs(v []*big.Int) []*big.Int {
	if v == nil {
		return []*big.Int{}
	}
	return v
}
