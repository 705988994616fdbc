package codec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Cosigned Dutch_V2 order layout. Relative to v1, decay parameters move
// into the cosigner data block and a cosignature trails the order.
var dutchV2OrderType = mustTuple([]abi.ArgumentMarshaling{
	{Name: "info", Type: "tuple", Components: orderInfoComponents},
	{Name: "cosigner", Type: "address"},
	{Name: "inputToken", Type: "address"},
	{Name: "inputStartAmount", Type: "uint256"},
	{Name: "inputEndAmount", Type: "uint256"},
	{Name: "outputs", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "endAmount", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	}},
	{Name: "cosignerData", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "decayStartTime", Type: "uint256"},
		{Name: "decayEndTime", Type: "uint256"},
		{Name: "exclusiveFiller", Type: "address"},
		{Name: "inputOverride", Type: "uint256"},
		{Name: "outputOverrides", Type: "uint256[]"},
	}},
	{Name: "cosignature", Type: "bytes"},
})

var dutchV2Args = abi.Arguments{{Type: dutchV2OrderType}}

type rawDutchV2CosignerData struct {
	DecayStartTime  *big.Int
	DecayEndTime    *big.Int
	ExclusiveFiller common.Address
	InputOverride   *big.Int
	OutputOverrides []*big.Int
}

type rawDutchV2Order struct {
	Info             rawOrderInfo
	Cosigner         common.Address
	InputToken       common.Address
	InputStartAmount *big.Int
	InputEndAmount   *big.Int
	Outputs          []rawDutchOutput
	CosignerData     rawDutchV2CosignerData
	Cosignature      []byte
}

func decodeDutchV2(data []byte) (*domain.Order, error) {
	vals, err := dutchV2Args.Unpack(data)
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(vals[0], new(rawDutchV2Order)).(*rawDutchV2Order)

	order := &domain.Order{
		DutchV2: &domain.DutchV2Data{
			Cosigner: addrHex(raw.Cosigner),
			Input: domain.DutchInput{
				Token:       addrHex(raw.InputToken),
				StartAmount: raw.InputStartAmount,
				EndAmount:   raw.InputEndAmount,
			},
			Outputs: dutchOutputsFromRaw(raw.Outputs),
			CosignerData: domain.DutchCosignerData{
				DecayStartTime:  raw.CosignerData.DecayStartTime.Int64(),
				DecayEndTime:    raw.CosignerData.DecayEndTime.Int64(),
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

func encodeDutchV2(order *domain.Order) ([]byte, error) {
	d := order.DutchV2
	raw := rawDutchV2Order{
		Info:             infoFromOrder(order),
		Cosigner:         common.HexToAddress(d.Cosigner),
		InputToken:       common.HexToAddress(d.Input.Token),
		InputStartAmount: d.Input.StartAmount,
		InputEndAmount:   d.Input.EndAmount,
		Outputs:          dutchOutputsToRaw(d.Outputs),
		CosignerData: rawDutchV2CosignerData{
			DecayStartTime:  big.NewInt(d.CosignerData.DecayStartTime),
			DecayEndTime:    big.NewInt(d.CosignerData.DecayEndTime),
			ExclusiveFiller: common.HexToAddress(d.CosignerData.ExclusiveFiller),
			InputOverride:   orZero(d.CosignerData.InputOverride),
			OutputOverrides: orEmptyBigs(d.CosignerData.OutputOverrides),
		},
		Cosignature: orEmptyBytes(d.Cosignature),
	}
	return dutchV2Args.Pack(raw)
}

func orEmptyBytes(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	return v
}
