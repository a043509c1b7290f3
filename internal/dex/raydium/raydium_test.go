package raydium

import (
	"context"
	"testing"

	"github.com/apestrong/amm-indexer/internal/model"
)

type fakeRegistry struct {
	pools []model.Pool
}

func (f *fakeRegistry) AllPools(_ context.Context, _ model.DEXTag) ([]model.Pool, error) {
	return f.pools, nil
}

func (f *fakeRegistry) GetPool(_ context.Context, _ model.DEXTag, addr string) (model.Pool, bool, error) {
	return model.Pool{}, false, nil
}

func (f *fakeRegistry) UpsertPool(_ context.Context, _ model.Pool, _, _ model.Token) error {
	return nil
}

func (f *fakeRegistry) EffectivePubkeys(_ context.Context, _ model.DEXTag, provided []string, def string) ([]string, error) {
	if len(provided) > 0 {
		return provided, nil
	}
	return []string{def}, nil
}

func TestNewBuildsIndexerWithRaydiumProgramID(t *testing.T) {
	reg := &fakeRegistry{}
	idx, err := New(context.Background(), reg, nil, nil, "defaultPool")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Name() != model.DEXTag("raydium") {
		t.Fatalf("expected raydium DEX tag, got %q", idx.Name())
	}
	if idx.ProgramIDs()[0] != ProgramID {
		t.Fatalf("expected the Raydium CLMM program id, got %+v", idx.ProgramIDs())
	}
	if idx.PoolPubkeys()[0] != "defaultPool" {
		t.Fatalf("expected default pool fallback, got %+v", idx.PoolPubkeys())
	}
}
