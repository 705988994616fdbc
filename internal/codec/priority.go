package codec

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// Cosigned Priority order layout. The auction is keyed to a target block
// attested by the cosigner rather than to timestamps.
var priorityOrderType = mustTuple([]abi.ArgumentMarshaling{
	{Name: "info", Type: "tuple", Components: orderInfoComponents},
	{Name: "cosigner", Type: "address"},
	{Name: "auctionStartBlock", Type: "uint256"},
	{Name: "baselinePriorityFeeWei", Type: "uint256"},
	{Name: "input", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "mpsPerPriorityFeeWei", Type: "uint256"},
	}},
	{Name: "outputs", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "mpsPerPriorityFeeWei", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	}},
	{Name: "cosignerData", Type: "tuple", Components: []abi.ArgumentMarshaling{
		{Name: "auctionTargetBlock", Type: "uint256"},
	}},
	{Name: "cosignature", Type: "bytes"},
})

var priorityArgs = abi.Arguments{{Type: priorityOrderType}}

type rawPriorityInput struct {
	Token                common.Address
	Amount               *big.Int
	MpsPerPriorityFeeWei *big.Int
}

type rawPriorityOutput struct {
	Token                common.Address
	Amount               *big.Int
	MpsPerPriorityFeeWei *big.Int
	Recipient            common.Address
}

type rawPriorityCosignerData struct {
	AuctionTargetBlock *big.Int
}

type rawPriorityOrder struct {
	Info                   rawOrderInfo
	Cosigner               common.Address
	AuctionStartBlock      *big.Int
	BaselinePriorityFeeWei *big.Int
	Input                  rawPriorityInput
	Outputs                []rawPriorityOutput
	CosignerData           rawPriorityCosignerData
	Cosignature            []byte
}

func decodePriority(data []byte) (*domain.Order, error) {
	vals, err := priorityArgs.Unpack(data)
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(vals[0], new(rawPriorityOrder)).(*rawPriorityOrder)

	outs := make([]domain.PriorityOutput, len(raw.Outputs))
	for i, o := range raw.Outputs {
		outs[i] = domain.PriorityOutput{
			Token:                addrHex(o.Token),
			Amount:               o.Amount,
			MpsPerPriorityFeeWei: o.MpsPerPriorityFeeWei,
			Recipient:            addrHex(o.Recipient),
		}
	}

	order := &domain.Order{
		Priority: &domain.PriorityData{
			Cosigner:               addrHex(raw.Cosigner),
			AuctionStartBlock:      raw.AuctionStartBlock.Uint64(),
			BaselinePriorityFeeWei: raw.BaselinePriorityFeeWei,
			Input: domain.PriorityInput{
				Token:                addrHex(raw.Input.Token),
				Amount:               raw.Input.Amount,
				MpsPerPriorityFeeWei: raw.Input.MpsPerPriorityFeeWei,
			},
			Outputs: outs,
			CosignerData: domain.PriorityCosignerData{
				AuctionTargetBlock: raw.CosignerData.AuctionTargetBlock.Uint64(),
			},
			Cosignature: raw.Cosignature,
		},
	}
	applyInfo(order, raw.Info)
	return order, nil
}

func encodePriority(order *domain.Order) ([]byte, error) {
	d := order.Priority

	outs := make([]rawPriorityOutput, len(d.Outputs))
	for i, o := range d.Outputs {
		outs[i] = rawPriorityOutput{
			Token:                common.HexToAddress(o.Token),
			Amount:               o.Amount,
			MpsPerPriorityFeeWei: orZero(o.MpsPerPriorityFeeWei),
			Recipient:            common.HexToAddress(o.Recipient),
		}
	}

	raw := rawPriorityOrder{
		Info:                   infoFromOrder(order),
		Cosigner:               common.HexToAddress(d.Cosigner),
		AuctionStartBlock:      new(big.Int).SetUint64(d.AuctionStartBlock),
		BaselinePriorityFeeWei: orZero(d.BaselinePriorityFeeWei),
		Input: rawPriorityInput{
			Token:                common.HexToAddress(d.Input.Token),
			Amount:               d.Input.Amount,
			MpsPerPriorityFeeWei: orZero(d.Input.MpsPerPriorityFeeWei),
		},
		Outputs: outs,
		CosignerData: rawPriorityCosignerData{
			AuctionTargetBlock: new(big.Int).SetUint64(d.CosignerData.AuctionTargetBlock),
		},
		Cosignature: orEmptyBytes(d.Cosignature),
	}
	return priorityArgs.Pack(raw)
}
