// Package eventparser is the pure, synchronous decoder from a log bundle to
// a list of parsed events (spec.md §4.6). It never touches the database or
// the signature store; the Indexer Engine is solely responsible for what
// happens with its output. Field layouts and discriminator constants are
// grounded on models/orca/whirlpool.rs in the reference implementation this
// indexer's wire format descends from.
package eventparser

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/model"
)

// Orca Whirlpool event discriminators (8-byte constant prefixes).
var (
	tradedDiscriminator             = [8]byte{225, 202, 73, 175, 147, 43, 160, 150}
	liquidityIncreasedDiscriminator = [8]byte{30, 7, 144, 181, 102, 254, 155, 161}
	liquidityDecreasedDiscriminator = [8]byte{166, 1, 36, 71, 112, 202, 181, 171}
)

// dataLinePrefix is the sentinel the parser scans log lines for.
const dataLinePrefix = "Program data: "

// tradedBodyLen is the byte length after the discriminator for a Traded
// payload: whirlpool(32) + a_to_b(1) + input_amount(8) + output_amount(8) +
// input_transfer_fee(8) + output_transfer_fee(8) + protocol_fee(8) +
// lp_fee(8) + pre_sqrt_price(16) + post_sqrt_price(16) = 113.
const tradedBodyLen = 113

// liquidityBodyLen is the byte length after the discriminator for a
// LiquidityIncreased/LiquidityDecreased payload: whirlpool(32) +
// position(32) + tick_lower_index(4) + tick_upper_index(4) + liquidity(16)
// + token_a_amount(8) + token_b_amount(8) + token_a_transfer_fee(8) +
// token_b_transfer_fee(8) = 120.
const liquidityBodyLen = 120

// eventKeywords is the DEX-specific keyword set used for the parser's
// second quick-reject (spec.md §4.6 step 2).
var eventKeywords = []string{"Swap", "IncreaseLiquidity", "DecreaseLiquidity"}

// Orca is the Event Parser for the Orca Whirlpool protocol.
type Orca struct {
	ProgramIDs     []string
	MonitoredPools map[string]struct{}
	Log            func(message string, fields map[string]interface{})
}

// NewOrca builds an Orca parser scoped to the given program ids and
// monitored pool set.
func NewOrca(programIDs []string, monitoredPools []string) *Orca {
	set := make(map[string]struct{}, len(monitoredPools))
	for _, p := range monitoredPools {
		set[p] = struct{}{}
	}
	return &Orca{ProgramIDs: programIDs, MonitoredPools: set}
}

// Parse implements the algorithm in spec.md §4.6.
func (o *Orca) Parse(bundle chainrpc.LogBundle) []model.ParsedEvent {
	if !containsAny(bundle.Logs, o.ProgramIDs) {
		return nil
	}
	if !containsAny(bundle.Logs, eventKeywords) {
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
			o.logSkip("base64 decode failed", err)
			continue
		}
		if len(data) < 8 {
			o.logSkip("payload shorter than discriminator", nil)
			continue
		}
		var disc [8]byte
		copy(disc[:], data[:8])
		body := data[8:]

		ev, err := decodeByDiscriminator(disc, body)
		if err != nil {
			o.logSkip("decode failed", err)
			continue
		}
		if ev == nil {
			continue // unrecognized discriminator, not an error
		}
		if _, ok := o.MonitoredPools[ev.Pool]; !ok {
			continue
		}
		out = append(out, *ev)
	}
	return out
}

func (o *Orca) logSkip(message string, err error) {
	if o.Log == nil {
		return
	}
	fields := map[string]interface{}{}
	if err != nil {
		fields["error"] = err.Error()
	}
	o.Log(message, fields)
}

func containsAny(lines []string, needles []string) bool {
	for _, line := range lines {
		for _, n := range needles {
			if strings.Contains(line, n) {
				return true
			}
		}
	}
	return false
}

func decodeByDiscriminator(disc [8]byte, body []byte) (*model.ParsedEvent, error) {
	switch disc {
	case tradedDiscriminator:
		return decodeTraded(body)
	case liquidityIncreasedDiscriminator:
		return decodeLiquidity(body, model.EventLiquidityIncreased)
	case liquidityDecreasedDiscriminator:
		return decodeLiquidity(body, model.EventLiquidityDecreased)
	default:
		return nil, nil
	}
}

func decodeTraded(body []byte) (*model.ParsedEvent, error) {
	if len(body) != tradedBodyLen {
		return nil, errBadLength("traded", tradedBodyLen, len(body))
	}
	r := newReader(body)
	pool := r.pubkey()
	aToB := r.boolean()
	inputAmount := r.u64()
	outputAmount := r.u64()
	inputFee := r.u64()
	outputFee := r.u64()
	protocolFee := r.u64()
	lpFee := r.u64()
	preSqrtLo, preSqrtHi := r.u128()
	postSqrtLo, postSqrtHi := r.u128()
	if r.err != nil {
		return nil, r.err
	}

	return &model.ParsedEvent{
		Kind: model.EventTraded,
		Pool: pool,
		Traded: &model.TradedDetail{
			AToB:              aToB,
			PreSqrtPrice:      model.NarrowU128Low64(preSqrtLo, preSqrtHi),
			PostSqrtPrice:     model.NarrowU128Low64(postSqrtLo, postSqrtHi),
			InputAmount:       int64(inputAmount),
			OutputAmount:      int64(outputAmount),
			InputTransferFee:  int64(inputFee),
			OutputTransferFee: int64(outputFee),
			LPFee:             int64(lpFee),
			ProtocolFee:       int64(protocolFee),
		},
	}, nil
}

func decodeLiquidity(body []byte, kind model.EventKind) (*model.ParsedEvent, error) {
	if len(body) != liquidityBodyLen {
		return nil, errBadLength(string(kind), liquidityBodyLen, len(body))
	}
	r := newReader(body)
	pool := r.pubkey()
	position := r.pubkey()
	tickLower := r.i32()
	tickUpper := r.i32()
	liquidityLo, liquidityHi := r.u128()
	tokenAAmount := r.u64()
	tokenBAmount := r.u64()
	tokenAFee := r.u64()
	tokenBFee := r.u64()
	if r.err != nil {
		return nil, r.err
	}

	return &model.ParsedEvent{
		Kind: kind,
		Pool: pool,
		Liquidity: &model.LiquidityDetail{
			Position:          position,
			TickLower:         tickLower,
			TickUpper:         tickUpper,
			LiquidityDelta:    model.NarrowU128Low64(liquidityLo, liquidityHi),
			TokenAAmount:      int64(tokenAAmount),
			TokenBAmount:      int64(tokenBAmount),
			TokenATransferFee: int64(tokenAFee),
			TokenBTransferFee: int64(tokenBFee),
		},
	}, nil
}

// binReader sequentially consumes little-endian fields from a fixed-offset
// payload, matching spec.md §6 "Binary payload format". Once an error
// occurs every subsequent read is a no-op so callers can fetch every field
// unconditionally and check err once at the end.
type binReader struct {
	buf []byte
	off int
	err error
}

func newReader(buf []byte) *binReader { return &binReader{buf: buf} }

func (r *binReader) take(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.off+n > len(r.buf) {
		r.err = errShortRead
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *binReader) pubkey() string {
	b := r.take(32)
	return base58.Encode(b)
}

func (r *binReader) boolean() bool {
	b := r.take(1)
	return b[0] != 0
}

func (r *binReader) i32() int32 {
	return int32(binary.LittleEndian.Uint32(r.take(4)))
}

func (r *binReader) u64() uint64 {
	return binary.LittleEndian.Uint64(r.take(8))
}

func (r *binReader) u128() (lo, hi uint64) {
	b := r.take(16)
	lo = binary.LittleEndian.Uint64(b[:8])
	hi = binary.LittleEndian.Uint64(b[8:])
	return lo, hi
}

var errShortRead = fmt.Errorf("payload: short read")

func errBadLength(kind string, want, got int) error {
	return fmt.Errorf("%s: expected %d bytes, got %d", kind, want, got)
}
