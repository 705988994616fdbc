package codec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Cosigned Dutch_V3 order layout. Decay is block-anchored with a
// multi-segment curve; relativeAmounts are signed deltas.
var curveComponents = []abi.ArgumentMarshaling{
	{Name: "relativeBlocks", Type: "uint256"},
	{Name: "relativeAmounts", Type: "int256[]"},
}

var dutchV3OrderType = mustTuple([]abi.ArgumentMarshaling{
	{Name: "info", Type: "tuple", Components: orderInfoComponents},
	{Name: "cosigner", Type: "address"},
	{Name: "startingBaseFee", Type: "uint256"},
	{Name: "input", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "curve", Type: "tuple", Components: curveComponents},
		{Name: "maxAmount", Type: "uint256"},
		{Name: "adjustmentPerGweiBaseFee", Type: "uint256"},
	}},
	{Name: "outputs", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "curve", Type: "tuple", Components: curveComponents},
		{Name: "minAmount", Type: "uint256"},
		{Name: "adjustmentPerGweiBaseFee", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	}},
	{Name: "cosignerData", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "decayStartBlock", Type: "uint256"},
		{Name: "exclusiveFiller", Type: "address"},
		{Name: "inputOverride", Type: "uint256"},
		{Name: "outputOverrides", Type: "uint256[]"},
	}},
	{Name: "cosignature", Type: "bytes"},
})

var dutchV3Args = abi.Arguments{{Type: dutchV3OrderType}}

type rawCurve struct {
	RelativeBlocks  *big.Int
	RelativeAmounts []*big.Int
}

type rawV3Input struct {
	Token                    common.Address
	StartAmount              *big.Int
	Curve                    rawCurve
	MaxAmount                *big.Int
	AdjustmentPerGweiBaseFee *big.Int
}

type rawV3Output struct {
	Token                    common.Address
	StartAmount              *big.Int
	Curve                    rawCurve
	MinAmount                *big.Int
	AdjustmentPerGweiBaseFee *big.Int
	Recipient                common.Address
}

type rawV3CosignerData struct {
	DecayStartBlock *big.Int
	ExclusiveFiller common.Address
	InputOverride   *big.Int
	OutputOverrides []*big.Int
}

type rawDutchV3Order struct {
	Info            rawOrderInfo
	Cosigner        common.Address
	StartingBaseFee *big.Int
	Input           rawV3Input
	Outputs         []rawV3Output
	CosignerData    rawV3CosignerData
	Cosignature     []byte
}

func decodeDutchV3(data []byte) (*domain.Order, error) {
	vals, err := dutchV3Args.Unpack(data)
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(vals[0], new(rawDutchV3Order)).(*rawDutchV3Order)

	outs := make([]domain.V3Output, len(raw.Outputs))
	for i, o := range raw.Outputs {
		outs[i] = domain.V3Output{
			Token:       addrHex(o.Token),
			StartAmount: o.StartAmount,
			Curve: domain.NonlinearDecay{
				RelativeBlocks:  o.Curve.RelativeBlocks,
				RelativeAmounts: o.Curve.RelativeAmounts,
			},
			MinAmount:                o.MinAmount,
			AdjustmentPerGweiBaseFee: o.AdjustmentPerGweiBaseFee,
			Recipient:                addrHex(o.Recipient),
		}
	}

	order := &domain.Order{
		DutchV3: &domain.DutchV3Data{
			Cosigner:        addrHex(raw.Cosigner),
			StartingBaseFee: raw.StartingBaseFee,
			Input: domain.V3Input{
				Token:       addrHex(raw.Input.Token),
				StartAmount: raw.Input.StartAmount,
				Curve: domain.NonlinearDecay{
					RelativeBlocks:  raw.Input.Curve.RelativeBlocks,
					RelativeAmounts: raw.Input.Curve.RelativeAmounts,
				},
				MaxAmount:                raw.Input.MaxAmount,
				AdjustmentPerGweiBaseFee: raw.Input.AdjustmentPerGweiBaseFee,
			},
			Outputs: outs,
			CosignerData: domain.V3CosignerData{
				DecayStartBlock: raw.CosignerData.DecayStartBlock.Uint64(),
				ExclusiveFiller: addrHex(raw.CosignerData.ExclusiveFiller),
				InputOverride:   raw.CosignerData.InputOverride,
				OutputOverrides: raw.CosignerData.OutputOverrides,
			},
			Cosignature: raw.Cosignature,
		},
	}
	applyInfo(order, raw.Info)
	return order, nil
}

func encodeDutchV3(order *domain.Order) ([]byte, error) {
	d := order.DutchV3

	outs := make([]rawV3Output, len(d.Outputs))
	for i, o := range d.Outputs {
		outs[i] = rawV3Output{
			Token:       common.HexToAddress(o.Token),
			StartAmount: o.StartAmount,
			Curve: rawCurve{
				RelativeBlocks:  orZero(o.Curve.RelativeBlocks),
				RelativeAmounts: orEmptyBigs(o.Curve.RelativeAmounts),
			},
			MinAmount:                o.MinAmount,
			AdjustmentPerGweiBaseFee: orZero(o.AdjustmentPerGweiBaseFee),
			Recipient:                common.HexToAddress(o.Recipient),
		}
	}

	raw := rawDutchV3Order{
		Info:            infoFromOrder(order),
		Cosigner:        common.HexToAddress(d.Cosigner),
		StartingBaseFee: orZero(d.StartingBaseFee),
		Input: rawV3Input{
			Token:       common.HexToAddress(d.Input.Token),
			StartAmount: d.Input.StartAmount,
			Curve: rawCurve{
				RelativeBlocks:  orZero(d.Input.Curve.RelativeBlocks),
				RelativeAmounts: orEmptyBigs(d.Input.Curve.RelativeAmounts),
			},
			MaxAmount:                orZero(d.Input.MaxAmount),
			AdjustmentPerGweiBaseFee: orZero(d.Input.AdjustmentPerGweiBaseFee),
		},
		Outputs: outs,
		CosignerData: rawV3CosignerData{
			DecayStartBlock: new(big.Int).SetUint64(d.CosignerData.DecayStartBlock),
			ExclusiveFiller: common.HexToAddress(d.CosignerData.ExclusiveFiller),
			InputOverride:   orZero(d.CosignerData.InputOverride),
			OutputOverrides: orEmptyBigs(d.CosignerData.OutputOverrides),
		},
		Cosignature: orEmptyBytes(d.Cosignature),
	}
	return dutchV3Args.Pack(raw)
}
