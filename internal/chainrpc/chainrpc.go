// Package chainrpc defines the external ledger RPC/WebSocket surface the
// indexer core consumes. The transport library itself
// (a Solana JSON-RPC/WS client) is treated as an external collaborator — this
// package only names the operations the indexer needs from it, so the
// Subscription Client, Backfill Client, and the external pool-metadata
// loader can all be driven by a fake in tests.
package chainrpc

import (
	"context"
	"time"
)

// Commitment mirrors the ledger's commitment levels. Only "confirmed" is
// used anywhere in this indexer (spec.md's "confirmed" glossary entry);
// the type exists so call sites are self-documenting rather than passing
// bare strings.
type Commitment string

const CommitmentConfirmed Commitment = "confirmed"

// SignatureInfo is one entry returned by GetSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	Err       bool
	BlockTime *time.Time
}

// GetSignaturesForAddressParams mirrors the ledger RPC's paging knobs.
// Before/Until are signature strings, or empty for unbounded.
type GetSignaturesForAddressParams struct {
	Limit      int
	Before     string
	Until      string
	Commitment Commitment
}

// LogMessages is the parsed log output of a single transaction, in program
// emission order.
type LogMessages []string

// Transaction is the subset of a confirmed transaction the indexer reads:
// its log messages (which carry the base64 "Program data: " payloads the
// Event Parser scans) and whether the transaction itself failed.
type Transaction struct {
	Signature   string
	Slot        uint64
	Err         bool
	LogMessages LogMessages
}

// LogBundle is one notification from logs_subscribe: the signature of the
// transaction that produced it, whether it errored, and its log lines.
// Both the Subscription Client and the Backfill Client (via
// TransactionToBundle) produce values of this shape, so the Event Parser
// never needs to know which path an event arrived on.
type LogBundle struct {
	Signature string
	Err       bool
	Logs      []string
}

// TransactionToBundle adapts a fetched Transaction into the same LogBundle
// shape the live subscription delivers, so Phase C/E of the Indexer Engine
// can share one code path through the Event Parser (spec.md §4.7).
func TransactionToBundle(tx Transaction) LogBundle {
	return LogBundle{Signature: tx.Signature, Err: tx.Err, Logs: tx.LogMessages}
}

// AccountInfo is the subset of a ledger account the external pool-metadata
// loader (§4.8) reads: raw account bytes plus the owning program.
type AccountInfo struct {
	Owner string
	Data  []byte
}

// Client is the opaque RPC surface consumed by the Backfill Client and the
// external pool-metadata loader.
type Client interface {
	// GetSignaturesForAddress returns signatures touching pubkey, newest
	// first.
	GetSignaturesForAddress(ctx context.Context, pubkey string, params GetSignaturesForAddressParams) ([]SignatureInfo, error)
	// GetTransaction fetches one confirmed transaction with JSON-parsed
	// instructions and log messages.
	GetTransaction(ctx context.Context, signature string) (Transaction, error)
	// GetAccountWithCommitment fetches a raw account. Used only by the
	// external pool-metadata loader (§4.8).
	GetAccountWithCommitment(ctx context.Context, pubkey string, commitment Commitment) (AccountInfo, error)
}

// LogsFilter is a disjunction of program identifiers to match in a log
// bundle — logs_subscribe's Mentions([program_ids...]) filter.
type LogsFilter struct {
	ProgramIDs []string
}

// Subscriber is the opaque push-subscription surface consumed by the
// Subscription Client. A real implementation dials a WebSocket endpoint
// with logs_subscribe; Client in internal/subscription is the only
// concrete implementation this repo ships, but the interface lets tests
// drive the Subscription Client's state machine without a network.
type Subscriber interface {
	// LogsSubscribe opens one subscription and returns a channel of
	// bundles plus a function to close it. The channel is closed (and the
	// error returned via the third return, if non-nil at connect time)
	// when the subscription cannot be established.
	LogsSubscribe(ctx context.Context, filter LogsFilter, commitment Commitment) (<-chan LogBundle, func() error, error)
}
