package codec

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

const (
	testReactor   = "0x6000da47483062a0d734ba3dc7576ce6a0b645c4"
	testOfferer   = "0xd8da6bf26964af9d7eed9e03e53415d37aa96045"
	testTokenIn   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	testTokenOut  = "0x6b175474e89094c44da98b954eedeac495271d0f"
	testRecipient = "0xd8da6bf26964af9d7eed9e03e53415d37aa96045"
)

func baseOrder() domain.Order {
	return domain.Order{
		Reactor:                      testReactor,
		Offerer:                      testOfferer,
		Nonce:                        big.NewInt(1993),
		Deadline:                     1790000000,
		AdditionalValidationContract: "0x0000000000000000000000000000000000000000",
	}
}

func dutchOrder() *domain.Order {
	o := baseOrder()
	o.Type = domain.OrderTypeDutch
	o.Dutch = &domain.DutchData{
		DecayStartTime:         1789990000,
		DecayEndTime:           1789995000,
		ExclusiveFiller:        "0x0000000000000000000000000000000000000000",
		ExclusivityOverrideBps: big.NewInt(100),
		Input: domain.DutchInput{
			Token:       testTokenIn,
			StartAmount: big.NewInt(1_000_000),
			EndAmount:   big.NewInt(900_000),
		},
		Outputs: []domain.DutchOutput{{
			Token:       testTokenOut,
			StartAmount: big.NewInt(2_000_000),
			EndAmount:   big.NewInt(1_900_000),
			Recipient:   testRecipient,
		}},
	}
	return &o
}

func dutchV2Order() *domain.Order {
	o := baseOrder()
	o.Type = domain.OrderTypeDutchV2
	o.DutchV2 = &domain.DutchV2Data{
		Cosigner: "0x4449cd34d1eb1fedcf02a1be3834ffde8e6a6180",
		Input: domain.DutchInput{
			Token:       testTokenIn,
			StartAmount: big.NewInt(5_000_000),
			EndAmount:   big.NewInt(5_000_000),
		},
		Outputs: []domain.DutchOutput{{
			Token:       testTokenOut,
			StartAmount: big.NewInt(10_000_000),
			EndAmount:   big.NewInt(9_500_000),
			Recipient:   testRecipient,
		}},
		CosignerData: domain.DutchCosignerData{
			InputOverride:   big.NewInt(0),
			OutputOverrides: []*big.Int{big.NewInt(0)},
		},
	}
	return &o
}

func dutchV3Order() *domain.Order {
	o := baseOrder()
	o.Type = domain.OrderTypeDutchV3
	o.DutchV3 = &domain.DutchV3Data{
		Cosigner:        "0x4449cd34d1eb1fedcf02a1be3834ffde8e6a6180",
		StartingBaseFee: big.NewInt(15_000_000_000),
		Input: domain.V3Input{
			Token:       testTokenIn,
			StartAmount: big.NewInt(7_000_000),
			Curve: domain.NonlinearDecay{
				RelativeBlocks:  big.NewInt(10),
				RelativeAmounts: []*big.Int{big.NewInt(-500)},
			},
			MaxAmount:                big.NewInt(7_100_000),
			AdjustmentPerGweiBaseFee: big.NewInt(0),
		},
		Outputs: []domain.V3Output{{
			Token:       testTokenOut,
			StartAmount: big.NewInt(14_000_000),
			Curve: domain.NonlinearDecay{
				RelativeBlocks:  big.NewInt(10),
				RelativeAmounts: []*big.Int{big.NewInt(1000)},
			},
			MinAmount:                big.NewInt(13_000_000),
			AdjustmentPerGweiBaseFee: big.NewInt(0),
			Recipient:                testRecipient,
		}},
		CosignerData: domain.V3CosignerData{
			InputOverride:   big.NewInt(0),
			OutputOverrides: []*big.Int{big.NewInt(0)},
		},
	}
	return &o
}

func priorityOrder() *domain.Order {
	o := baseOrder()
	o.Type = domain.OrderTypePriority
	o.Priority = &domain.PriorityData{
		Cosigner:               "0x4449cd34d1eb1fedcf02a1be3834ffde8e6a6180",
		AuctionStartBlock:      19000000,
		BaselinePriorityFeeWei: big.NewInt(1_000_000_000),
		Input: domain.PriorityInput{
			Token:                testTokenIn,
			Amount:               big.NewInt(3_000_000),
			MpsPerPriorityFeeWei: big.NewInt(0),
		},
		Outputs: []domain.PriorityOutput{{
			Token:                testTokenOut,
			Amount:               big.NewInt(6_000_000),
			MpsPerPriorityFeeWei: big.NewInt(5),
			Recipient:            testRecipient,
		}},
	}
	return &o
}

func relayOrder() *domain.Order {
	o := baseOrder()
	o.Type = domain.OrderTypeRelay
	o.Relay = &domain.RelayData{
		Input: domain.RelayInput{
			Token:     testTokenIn,
			Amount:    big.NewInt(1_500_000),
			Recipient: testRecipient,
		},
		Fee: domain.RelayFee{
			Token:       testTokenOut,
			StartAmount: big.NewInt(10_000),
			EndAmount:   big.NewInt(20_000),
			StartTime:   1789990000,
			EndTime:     1789995000,
		},
		UniversalRouterCalldata: []byte{0xde, 0xad, 0xbe, 0xef},
	}
	return &o
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		typ   domain.OrderType
		order *domain.Order
	}{
		{"dutch", domain.OrderTypeDutch, dutchOrder()},
		{"dutch_v2", domain.OrderTypeDutchV2, dutchV2Order()},
		{"dutch_v3", domain.OrderTypeDutchV3, dutchV3Order()},
		{"priority", domain.OrderTypePriority, priorityOrder()},
		{"relay", domain.OrderTypeRelay, relayOrder()},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tc.order)
			require.NoError(t, err)

			decoded, err := Decode(tc.typ, encoded, 1)
			require.NoError(t, err)

			assert.Equal(t, tc.typ, decoded.Type)
			assert.Equal(t, uint64(1), decoded.ChainID)
			assert.Equal(t, testOfferer, decoded.Offerer)
			assert.Equal(t, testReactor, decoded.Reactor)
			assert.Equal(t, 0, decoded.Nonce.Cmp(tc.order.Nonce))
			assert.Equal(t, tc.order.Deadline, decoded.Deadline)
			assert.Equal(t, testTokenIn, decoded.InputToken())
			assert.NotEmpty(t, decoded.Hash)

			wantHash, err := Hash(tc.order)
			require.NoError(t, err)
			assert.Equal(t, wantHash, decoded.Hash)

			reencoded, err := Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, encoded, reencoded)
		})
	}
}

func TestDecodeLimitSharesDutchEncoding(t *testing.T) {
	o := dutchOrder()
	o.Dutch.Input.EndAmount = o.Dutch.Input.StartAmount
	o.Dutch.DecayStartTime = o.Dutch.DecayEndTime

	encoded, err := Encode(o)
	require.NoError(t, err)

	decoded, err := Decode(domain.OrderTypeLimit, encoded, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderTypeLimit, decoded.Type)
	require.NotNil(t, decoded.Dutch)
}

func TestDecodeNormalizesDutchLimitAlias(t *testing.T) {
	encoded, err := Encode(dutchOrder())
	require.NoError(t, err)

	decoded, err := Decode(domain.OrderTypeDutchLimit, encoded, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderTypeDutch, decoded.Type)
}

func TestDecodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
	}{
		{"not hex", "0xzz"},
		{"empty", "0x"},
		{"truncated", "0xdeadbeef"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(domain.OrderTypeDutch, tc.encoded, 1)
			assert.Error(t, err)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	encoded, err := Encode(dutchOrder())
	require.NoError(t, err)

	_, err = Decode(domain.OrderType("Spooky"), encoded, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnexpectedOrderType)
}

func TestDetect(t *testing.T) {
	t.Run("detects dutch v3 first", func(t *testing.T) {
		encoded, err := Encode(dutchV3Order())
		require.NoError(t, err)

		detected, err := Detect(encoded, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderTypeDutchV3, detected.Type)
	})

	t.Run("no variant matches", func(t *testing.T) {
		_, err := Detect("0xdeadbeef", 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnexpectedOrderType)
	})
}

func TestHashStableAcrossCosigning(t *testing.T) {
	tests := []struct {
		name   string
		order  *domain.Order
		attest func(o *domain.Order)
	}{
		{
			name:  "dutch_v2",
			order: dutchV2Order(),
			attest: func(o *domain.Order) {
				o.DutchV2.CosignerData = domain.DutchCosignerData{
					DecayStartTime: 1789991000,
					DecayEndTime:   1790000000,
					InputOverride:  big.NewInt(0),
				}
				o.DutchV2.Cosignature = make([]byte, 65)
			},
		},
		{
			name:  "priority",
			order: priorityOrder(),
			attest: func(o *domain.Order) {
				o.Priority.CosignerData = domain.PriorityCosignerData{AuctionTargetBlock: 19000100}
				o.Priority.Cosignature = make([]byte, 65)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before, err := Hash(tc.order)
			require.NoError(t, err)

			tc.attest(tc.order)

			after, err := Hash(tc.order)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestHashDiffersAcrossVariants(t *testing.T) {
	dutchHash, err := Hash(dutchOrder())
	require.NoError(t, err)

	v2Hash, err := Hash(dutchV2Order())
	require.NoError(t, err)

	assert.NotEqual(t, dutchHash, v2Hash)
}
