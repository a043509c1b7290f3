package backfill

import (
	"context"
	"testing"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/internal/signaturestore"
)

// fakeRPC is a scripted chainrpc.Client for exercising the Backfill Client
// without a network dependency.
type fakeRPC struct {
	signaturesByUntil map[string][]chainrpc.SignatureInfo
	unconditional     []chainrpc.SignatureInfo
}

func (f *fakeRPC) GetSignaturesForAddress(_ context.Context, _ string, params chainrpc.GetSignaturesForAddressParams) ([]chainrpc.SignatureInfo, error) {
	if params.Until == "" {
		return f.unconditional, nil
	}
	return f.signaturesByUntil[params.Until], nil
}

func (f *fakeRPC) GetTransaction(_ context.Context, signature string) (chainrpc.Transaction, error) {
	return chainrpc.Transaction{Signature: signature}, nil
}

func (f *fakeRPC) GetAccountWithCommitment(_ context.Context, _ string, _ chainrpc.Commitment) (chainrpc.AccountInfo, error) {
	return chainrpc.AccountInfo{}, nil
}

func TestInitialBackfillRecordsOldestThenNewest(t *testing.T) {
	rpc := &fakeRPC{unconditional: []chainrpc.SignatureInfo{
		{Signature: "sig3"}, {Signature: "sig2"}, {Signature: "sig1"},
	}}
	store := signaturestore.NewMemory()
	c := New(Config{MaxSignaturesPerRequest: 100, DEX: model.DEXTag("orca")}, rpc, store, nil)
	ctx := context.Background()

	sigs, err := c.InitialBackfill(ctx, "poolP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 3 {
		t.Fatalf("expected 3 signatures, got %d", len(sigs))
	}

	got, ok, err := store.Get(ctx, "poolP", model.DEXTag("orca"))
	if err != nil || !ok {
		t.Fatalf("expected cursor recorded, err=%v ok=%v", err, ok)
	}
	if got != "sig3" {
		t.Fatalf("expected cursor to land on newest signature sig3, got %q", got)
	}
}

func TestSinceLastSignatureAdvancesCursor(t *testing.T) {
	rpc := &fakeRPC{
		unconditional: []chainrpc.SignatureInfo{{Signature: "sig3"}, {Signature: "sig2"}, {Signature: "sig1"}},
		signaturesByUntil: map[string][]chainrpc.SignatureInfo{
			"sig3": {{Signature: "sig5"}, {Signature: "sig4"}},
		},
	}
	store := signaturestore.NewMemory()
	c := New(Config{MaxSignaturesPerRequest: 100, DEX: model.DEXTag("orca")}, rpc, store, nil)
	ctx := context.Background()

	if _, err := c.InitialBackfill(ctx, "poolP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sigs, err := c.SinceLastSignature(ctx, "poolP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("expected 2 new signatures, got %d", len(sigs))
	}
	got, _, _ := store.Get(ctx, "poolP", model.DEXTag("orca"))
	if got != "sig5" {
		t.Fatalf("expected cursor advanced to sig5, got %q", got)
	}
}

func TestSinceLastSignatureLeavesCursorWhenEmpty(t *testing.T) {
	rpc := &fakeRPC{
		unconditional:     []chainrpc.SignatureInfo{{Signature: "sig3"}, {Signature: "sig2"}, {Signature: "sig1"}},
		signaturesByUntil: map[string][]chainrpc.SignatureInfo{}, // "sig3" -> no new signatures
	}
	store := signaturestore.NewMemory()
	c := New(Config{MaxSignaturesPerRequest: 100, DEX: model.DEXTag("orca")}, rpc, store, nil)
	ctx := context.Background()

	if _, err := c.InitialBackfill(ctx, "poolP"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sigs, err := c.SinceLastSignature(ctx, "poolP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 0 {
		t.Fatalf("expected zero new signatures, got %d", len(sigs))
	}
	got, _, _ := store.Get(ctx, "poolP", model.DEXTag("orca"))
	if got != "sig3" {
		t.Fatalf("expected cursor unchanged at sig3, got %q", got)
	}
}

func TestSinceLastSignatureDelegatesToInitialWhenNoCursor(t *testing.T) {
	rpc := &fakeRPC{unconditional: []chainrpc.SignatureInfo{{Signature: "sig1"}}}
	store := signaturestore.NewMemory()
	c := New(Config{MaxSignaturesPerRequest: 100, DEX: model.DEXTag("orca")}, rpc, store, nil)
	ctx := context.Background()

	sigs, err := c.SinceLastSignature(ctx, "poolP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected delegation to initial backfill, got %d signatures", len(sigs))
	}
}
