package orca

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
	for _, p := range f.pools {
		if p.Address == addr {
			return p, true, nil
		}
	}
	return model.Pool{}, false, nil
}

func (f *fakeRegistry) UpsertPool(_ context.Context, _ model.Pool, _, _ model.Token) error {
	return nil
}

func (f *fakeRegistry) EffectivePubkeys(_ context.Context, _ model.DEXTag, provided []string, def string) ([]string, error) {
	if len(provided) > 0 {
		return provided, nil
	}
	if len(f.pools) > 0 {
		out := make([]string, len(f.pools))
		for i, p := range f.pools {
			out[i] = p.Address
		}
		return out, nil
	}
	return []string{def}, nil
}

func TestNewBuildsIndexerFromRegistryFallback(t *testing.T) {
	reg := &fakeRegistry{pools: []model.Pool{{Address: "poolA", DEX: model.DEXTag("orca")}}}
	idx, err := New(context.Background(), reg, nil, nil, "poolDefault")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Name() != model.DEXTag("orca") {
		t.Fatalf("expected orca DEX tag, got %q", idx.Name())
	}
	if len(idx.PoolPubkeys()) != 1 || idx.PoolPubkeys()[0] != "poolA" {
		t.Fatalf("expected registry pool to be resolved, got %+v", idx.PoolPubkeys())
	}
	if len(idx.ProgramIDs()) != 1 || idx.ProgramIDs()[0] != ProgramID {
		t.Fatalf("expected the Orca Whirlpool program id, got %+v", idx.ProgramIDs())
	}
}

func TestNewPrefersProvidedPools(t *testing.T) {
	reg := &fakeRegistry{pools: []model.Pool{{Address: "poolA"}}}
	idx, err := New(context.Background(), reg, nil, []string{"poolB"}, "poolDefault")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.PoolPubkeys()) != 1 || idx.PoolPubkeys()[0] != "poolB" {
		t.Fatalf("expected provided pool to win over registry rows, got %+v", idx.PoolPubkeys())
	}
}
