package signaturestore

import (
	"context"
	"testing"

	"github.com/apestrong/amm-indexer/internal/model"
)

func TestMemoryStoreUnseenReturnsNotOK(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "poolA", "orca")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for unseen pool")
	}
	has, err := s.Has(ctx, "poolA", "orca")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if has {
		t.Fatal("expected has=false for unseen pool")
	}
}

func TestMemoryStoreUpdateOverwrites(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if err := s.Update(ctx, "poolA", model.DEXTag("orca"), "sig1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Update(ctx, "poolA", model.DEXTag("orca"), "sig2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sig, ok, err := s.Get(ctx, "poolA", model.DEXTag("orca"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || sig != "sig2" {
		t.Fatalf("expected last-writer-wins sig2, got %q ok=%v", sig, ok)
	}
}

func TestMemoryStoreTrackedPoolsScopedByDEX(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_ = s.Update(ctx, "poolA", model.DEXTag("orca"), "sig1")
	_ = s.Update(ctx, "poolB", model.DEXTag("raydium"), "sig2")

	pools, err := s.TrackedPools(ctx, model.DEXTag("orca"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pools) != 1 || pools[0] != "poolA" {
		t.Fatalf("expected [poolA], got %v", pools)
	}
}
