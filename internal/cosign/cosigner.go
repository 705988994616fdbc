// Package cosign produces the cosigner attestation for order variants that
// carry third-party attested auction parameters. It is the only component
// permitted to populate cosigner fields; anything the client supplied is
// discarded and recomputed here.
package cosign

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/orderpool/internal/codec"
	"github.com/alanyoungcy/orderpool/internal/domain"
)

// HeadReader reads the current head block number of a chain.
type HeadReader interface {
	BlockNumber(ctx context.Context, chainID uint64) (uint64, error)
}

// ChainParams are the per-chain attestation parameters.
type ChainParams struct {
	// TargetBlockBuffer is added to the chain head to produce the priority
	// auction target block (and the v3 decay start block).
	TargetBlockBuffer uint64

	// DecayStartBuffer is added to the current time to produce the v2 decay
	// start, in seconds.
	DecayStartBuffer int64
}

// Cosigner attests auction parameters with a managed signing key.
type Cosigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	heads   HeadReader
	params  map[uint64]ChainParams
	now     func() time.Time
}

// New creates a Cosigner. params must contain an entry for every chain the
// cosigner will attest on; a missing entry fails the attestation.
func New(key *ecdsa.PrivateKey, heads HeadReader, params map[uint64]ChainParams, now func() time.Time) *Cosigner {
	if now == nil {
		now = time.Now
	}
	return &Cosigner{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		heads:   heads,
		params:  params,
		now:     now,
	}
}

// Address returns the attestation address derived from the managed key.
func (c *Cosigner) Address() common.Address {
	return c.address
}

// Attest recomputes the order's cosigner-attested fields from live chain
// state, signs them, and refreshes the order's encoded form so the persisted
// record reflects the attested values. The order hash is unchanged: the
// canonical hash excludes attested fields.
func (c *Cosigner) Attest(ctx context.Context, order *domain.Order) error {
	params, ok := c.params[order.ChainID]
	if !ok {
		return fmt.Errorf("cosign: no attestation parameters for chain %d", order.ChainID)
	}

	var attested []byte
	switch {
	case order.Priority != nil:
		head, err := c.heads.BlockNumber(ctx, order.ChainID)
		if err != nil {
			return fmt.Errorf("cosign: %w", err)
		}
		target := head + params.TargetBlockBuffer
		order.Priority.CosignerData = domain.PriorityCosignerData{AuctionTargetBlock: target}
		attested = packUint64(target)

	case order.DutchV2 != nil:
		// Re-anchor the decay window at attestation time, preserving the
		// submitted window length. A missing window decays until the
		// deadline; a window past the deadline is clamped to it.
		start := c.now().Unix() + params.DecayStartBuffer
		end := order.Deadline
		if sub := order.DutchV2.CosignerData; sub.DecayEndTime > sub.DecayStartTime {
			end = start + (sub.DecayEndTime - sub.DecayStartTime)
		}
		if end > order.Deadline {
			end = order.Deadline
		}
		if start > end {
			return fmt.Errorf("cosign: attested decay start %d after end %d", start, end)
		}
		order.DutchV2.CosignerData = domain.DutchCosignerData{
			DecayStartTime: start,
			DecayEndTime:   end,
			InputOverride:  big.NewInt(0),
		}
		attested = append(packInt64(start), packInt64(end)...)

	case order.DutchV3 != nil:
		head, err := c.heads.BlockNumber(ctx, order.ChainID)
		if err != nil {
			return fmt.Errorf("cosign: %w", err)
		}
		start := head + params.TargetBlockBuffer
		order.DutchV3.CosignerData = domain.V3CosignerData{
			DecayStartBlock: start,
			InputOverride:   big.NewInt(0),
		}
		attested = packUint64(start)

	default:
		return fmt.Errorf("cosign: order type %s does not require cosigning", order.Type)
	}

	digest, err := c.digest(order, attested)
	if err != nil {
		return err
	}
	sig, err := ethcrypto.Sign(digest, c.key)
	if err != nil {
		return fmt.Errorf("cosign: sign digest: %w", err)
	}

	switch {
	case order.Priority != nil:
		order.Priority.Cosignature = sig
	case order.DutchV2 != nil:
		order.DutchV2.Cosignature = sig
	case order.DutchV3 != nil:
		order.DutchV3.Cosignature = sig
	}

	encoded, err := codec.Encode(order)
	if err != nil {
		return fmt.Errorf("cosign: re-encode attested order: %w", err)
	}
	order.EncodedOrder = encoded
	return nil
}

// digest computes keccak256(orderHash || uint256(chainId) || attested).
func (c *Cosigner) digest(order *domain.Order, attested []byte) ([]byte, error) {
	hashBytes, err := hexToBytes(order.Hash)
	if err != nil {
		return nil, fmt.Errorf("cosign: order hash: %w", err)
	}
	chainWord := common.LeftPadBytes(new(big.Int).SetUint64(order.ChainID).Bytes(), 32)
	return ethcrypto.Keccak256(hashBytes, chainWord, attested), nil
}

func packUint64(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}

func packInt64(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

func hexToBytes(s string) ([]byte, error) {
	return hexutil.Decode(s)
}
