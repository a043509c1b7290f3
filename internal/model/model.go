// Package model holds the data types shared across the indexer's
// components: the entities described in spec.md §3 (Pool, Token, Cursor,
// EventHeader, TradedDetail, LiquidityDetail) and the tagged-variant
// ParsedEvent the Event Parser produces.
//
// Per SPEC_FULL.md's design notes, the three event variants are modeled as
// one tagged-variant type dispatched by discriminator, not as a class
// hierarchy — Go has no class hierarchy to borrow here, but the tagged
// union keeps the Event Parser and the Indexer Engine from needing a type
// switch over concrete structs scattered across packages.
package model

import "time"

// DEXTag is a short string identifier distinguishing one protocol family
// from another in the signature and pool tables (spec.md glossary).
type DEXTag string

// EventKind enumerates the three captured event variants.
type EventKind string

const (
	EventTraded              EventKind = "Traded"
	EventLiquidityIncreased  EventKind = "LiquidityIncreased"
	EventLiquidityDecreased  EventKind = "LiquidityDecreased"
)

// Pool is a tracked liquidity pool (spec.md §3).
type Pool struct {
	Address     string // ledger public key, base58, 32 bytes decoded
	DEX         DEXTag
	Name        string
	TokenAMint  string
	TokenBMint  string
}

// Token is an SPL-like token mint (spec.md §3).
type Token struct {
	Mint     string
	Symbol   string
	Name     string
	Decimals uint8 // invariant: 0-18; unknown defaults to 6 with a warning
}

// DefaultDecimals is substituted, with a logged warning, whenever a token's
// decimals are unknown or out of the valid [0, 18] range (spec.md
// invariant 4).
const DefaultDecimals uint8 = 6

// NormalizeDecimals enforces spec.md's decimals invariant, returning the
// value unchanged when valid and DefaultDecimals otherwise.
func NormalizeDecimals(d int) (uint8, bool) {
	if d >= 0 && d <= 18 {
		return uint8(d), true
	}
	return DefaultDecimals, false
}

// Cursor is the last-processed signature for one (pool, dex) pair
// (spec.md §3).
type Cursor struct {
	PoolAddress string
	DEX         DEXTag
	Signature   string
	LastUpdated time.Time
}

// EventHeader is the common row written for every captured event
// (spec.md §3). ID is assigned by the Event Repository on insert.
type EventHeader struct {
	ID        int64
	Signature string
	Pool      string
	Kind      EventKind
	Version   int32
	Timestamp time.Time
}

// TradedDetail is the swap-specific row (spec.md §3). SqrtPrice and other
// 128-bit on-chain fields are narrowed to 64 bits at this boundary; see
// NarrowU128Low64.
type TradedDetail struct {
	HeaderID           int64
	AToB               bool
	PreSqrtPrice       int64
	PostSqrtPrice      int64
	InputAmount        int64
	OutputAmount       int64
	InputTransferFee   int64
	OutputTransferFee  int64
	LPFee              int64
	ProtocolFee        int64
}

// LiquidityDetail is the add/remove-specific row (spec.md §3). The same
// shape backs both LiquidityIncreased and LiquidityDecreased; they are
// written to distinct tables by the Event Repository.
type LiquidityDetail struct {
	HeaderID            int64
	Position            string
	TickLower           int32
	TickUpper           int32
	LiquidityDelta      int64
	TokenAAmount        int64
	TokenBAmount        int64
	TokenATransferFee   int64
	TokenBTransferFee   int64
}

// ParsedEvent is the Event Parser's output: a tagged union over the three
// captured variants, plus the pool each decoded payload claims to belong
// to (used for the monitored-pool filter, spec.md §4.6 step 6).
type ParsedEvent struct {
	Kind      EventKind
	Pool      string // the on-chain "whirlpool"-equivalent field
	Traded    *TradedDetail
	Liquidity *LiquidityDetail
}

// NarrowU128Low64 narrows a 128-bit little-endian on-chain integer to its
// low 64 bits, matching the on-chain wire layout's byte order. Per
// SPEC_FULL.md's design notes, overflow silently wraps; this is the
// specification's normative (not merely expedient) behavior.
func NarrowU128Low64(lo, hi uint64) int64 {
	_ = hi // intentionally discarded: narrowing drops the high 64 bits
	return int64(lo)
}
