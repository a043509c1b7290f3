package eventparser

import (
	"encoding/base64"
	"strings"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/model"
)

// Raydium CLMM event discriminators, grounded on models/raydium/clmm.rs in
// the reference implementation.
var (
	raydiumCreatePositionDiscriminator = [8]byte{226, 245, 162, 196, 229, 232, 248, 211}
	raydiumIncreaseLiquidityDiscriminator = [8]byte{200, 185, 247, 226, 211, 165, 182, 193}
	raydiumDecreaseLiquidityDiscriminator = [8]byte{93, 127, 154, 27, 44, 62, 77, 95}
)

// Raydium's CLMM position-lifecycle events don't carry a pool address on
// the Increase/Decrease variants, only a position NFT mint (see
// RaydiumCLMMIncreaseLiquidityEvent / RaydiumCLMMDecreaseLiquidityEvent in
// the reference model). This parser treats the position mint as the
// pool-membership key for those two variants, and the pool_state pubkey for
// CreatePosition; the engine's monitored set for the Raydium DEX is
// therefore a set of position mints plus pool addresses, not pool
// addresses alone.
const (
	raydiumCreatePositionBodyLen    = 32 + 32 + 32 + 4 + 4 + 16 + 8 + 8 + 8 + 8 // 152
	raydiumIncreaseLiquidityBodyLen = 32 + 16 + 8 + 8 + 8 + 8                   // 80
	// raydiumDecreaseLiquidityBodyLen additionally carries reward_amounts
	// ([3]u64) and a second pair of transfer fees the Increase variant
	// doesn't have (models/raydium/clmm.rs RaydiumCLMMDecreaseLiquidityEvent):
	// position_nft_mint(32) + liquidity(16) + decrease_amount_0(8) +
	// decrease_amount_1(8) + fee_amount_0(8) + fee_amount_1(8) +
	// reward_amounts(24) + transfer_fee_0(8) + transfer_fee_1(8).
	raydiumDecreaseLiquidityBodyLen = 32 + 16 + 8 + 8 + 8 + 8 + 24 + 8 + 8 // 120
)

// Raydium is the Event Parser for the Raydium concentrated-liquidity
// program.
type Raydium struct {
	ProgramIDs     []string
	MonitoredPools map[string]struct{}
	Log            func(message string, fields map[string]interface{})
}

// NewRaydium builds a Raydium parser scoped to the given program ids and
// monitored pool/position set.
func NewRaydium(programIDs []string, monitored []string) *Raydium {
	set := make(map[string]struct{}, len(monitored))
	for _, p := range monitored {
		set[p] = struct{}{}
	}
	return &Raydium{ProgramIDs: programIDs, MonitoredPools: set}
}

// Parse follows the same algorithm as the Orca parser (spec.md §4.6),
// adapted to Raydium's discriminators and keyword set.
func (p *Raydium) Parse(bundle chainrpc.LogBundle) []model.ParsedEvent {
	if !containsAny(bundle.Logs, p.ProgramIDs) {
		return nil
	}
	if !containsAny(bundle.Logs, []string{"CreatePosition", "IncreaseLiquidity", "DecreaseLiquidity"}) {
		return nil
	}

	var out []model.ParsedEvent
	for _, line := range bundle.Logs {
		idx := strings.Index(line, dataLinePrefix)
		if idx < 0 {
			continue
		}
		payload := strings.TrimSpace(line[idx+len(dataLinePrefix):])
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			p.logSkip("base64 decode failed", err)
			continue
		}
		if len(data) < 8 {
			p.logSkip("payload shorter than discriminator", nil)
			continue
		}
		var disc [8]byte
		copy(disc[:], data[:8])
		body := data[8:]

		ev, err := p.decode(disc, body)
		if err != nil {
			p.logSkip("decode failed", err)
			continue
		}
		if ev == nil {
			continue
		}
		if _, ok := p.MonitoredPools[ev.Pool]; !ok {
			continue
		}
		out = append(out, *ev)
	}
	return out
}

func (p *Raydium) logSkip(message string, err error) {
	if p.Log == nil {
		return
	}
	fields := map[string]interface{}{}
	if err != nil {
		fields["error"] = err.Error()
	}
	p.Log(message, fields)
}

func (p *Raydium) decode(disc [8]byte, body []byte) (*model.ParsedEvent, error) {
	switch disc {
	case raydiumCreatePositionDiscriminator:
		return decodeRaydiumCreatePosition(body)
	case raydiumIncreaseLiquidityDiscriminator:
		return decodeRaydiumIncreaseLiquidity(body)
	case raydiumDecreaseLiquidityDiscriminator:
		return decodeRaydiumDecreaseLiquidity(body)
	default:
		return nil, nil
	}
}

func decodeRaydiumCreatePosition(body []byte) (*model.ParsedEvent, error) {
	if len(body) != raydiumCreatePositionBodyLen {
		return nil, errBadLength("raydium create-position", raydiumCreatePositionBodyLen, len(body))
	}
	r := newReader(body)
	poolState := r.pubkey()
	_ = r.pubkey() // minter
	_ = r.pubkey() // nft_owner
	tickLower := r.i32()
	tickUpper := r.i32()
	liquidityLo, liquidityHi := r.u128()
	deposit0 := r.u64()
	deposit1 := r.u64()
	_ = r.u64() // deposit_amount_0_transfer_fee
	_ = r.u64() // deposit_amount_1_transfer_fee
	if r.err != nil {
		return nil, r.err
	}

	return &model.ParsedEvent{
		Kind: model.EventLiquidityIncreased,
		Pool: poolState,
		Liquidity: &model.LiquidityDetail{
			Position:       poolState,
			TickLower:      tickLower,
			TickUpper:      tickUpper,
			LiquidityDelta: model.NarrowU128Low64(liquidityLo, liquidityHi),
			TokenAAmount:   int64(deposit0),
			TokenBAmount:   int64(deposit1),
		},
	}, nil
}

func decodeRaydiumIncreaseLiquidity(body []byte) (*model.ParsedEvent, error) {
	if len(body) != raydiumIncreaseLiquidityBodyLen {
		return nil, errBadLength("IncreaseLiquidity raydium", raydiumIncreaseLiquidityBodyLen, len(body))
	}
	r := newReader(body)
	positionMint := r.pubkey()
	liquidityLo, liquidityHi := r.u128()
	amount0 := r.u64()
	amount1 := r.u64()
	fee0 := r.u64()
	fee1 := r.u64()
	if r.err != nil {
		return nil, r.err
	}

	return &model.ParsedEvent{
		Kind: model.EventLiquidityIncreased,
		Pool: positionMint,
		Liquidity: &model.LiquidityDetail{
			Position:          positionMint,
			LiquidityDelta:    model.NarrowU128Low64(liquidityLo, liquidityHi),
			TokenAAmount:      int64(amount0),
			TokenBAmount:      int64(amount1),
			TokenATransferFee: int64(fee0),
			TokenBTransferFee: int64(fee1),
		},
	}, nil
}

// decodeRaydiumDecreaseLiquidity reads the wider Decrease payload
// (raydiumDecreaseLiquidityBodyLen). reward_amounts and fee_amount_0/1 have
// no corresponding column in model.LiquidityDetail (the shared table also
// backs Orca's narrower layout) and are consumed to keep the reader
// aligned but otherwise dropped; transfer_fee_0/transfer_fee_1 fill the
// same TokenA/TokenBTransferFee fields the Increase variant's
// amount_0/1_transfer_fee do.
func decodeRaydiumDecreaseLiquidity(body []byte) (*model.ParsedEvent, error) {
	if len(body) != raydiumDecreaseLiquidityBodyLen {
		return nil, errBadLength("DecreaseLiquidity raydium", raydiumDecreaseLiquidityBodyLen, len(body))
	}
	r := newReader(body)
	positionMint := r.pubkey()
	liquidityLo, liquidityHi := r.u128()
	decreaseAmount0 := r.u64()
	decreaseAmount1 := r.u64()
	_ = r.u64() // fee_amount_0
	_ = r.u64() // fee_amount_1
	_ = r.u64() // reward_amounts[0]
	_ = r.u64() // reward_amounts[1]
	_ = r.u64() // reward_amounts[2]
	transferFee0 := r.u64()
	transferFee1 := r.u64()
	if r.err != nil {
		return nil, r.err
	}

	return &model.ParsedEvent{
		Kind: model.EventLiquidityDecreased,
		Pool: positionMint,
		Liquidity: &model.LiquidityDetail{
			Position:          positionMint,
			LiquidityDelta:    model.NarrowU128Low64(liquidityLo, liquidityHi),
			TokenAAmount:      int64(decreaseAmount0),
			TokenBAmount:      int64(decreaseAmount1),
			TokenATransferFee: int64(transferFee0),
			TokenBTransferFee: int64(transferFee1),
		},
	}, nil
}
