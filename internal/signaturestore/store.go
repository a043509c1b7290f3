// Package signaturestore is the durable key-value mapping from (pool, dex)
// to the newest processed transaction signature. It ships two interchangeable
// backings, an in-memory one for tests and a relational one for production,
// both satisfying the same Store interface, grounded on the mutex-guarded
// map idiom in core/liquidity_pools.go and the pooled-resource shape of
// core/connection_pool.go in the wider Synnergy codebase.
package signaturestore

import (
	"context"
	"sync"

	"github.com/apestrong/amm-indexer/internal/model"
)

// Key identifies one tracked pool within one DEX.
type Key struct {
	Pool string
	DEX  model.DEXTag
}

// Store is the contract the Indexer Engine and Backfill Client depend on.
// Every method may suspend on network I/O for the relational variant; the
// in-memory variant never suspends (spec.md §5 "suspension points").
type Store interface {
	// Update unconditionally overwrites the signature recorded for (pool,
	// dex). Last writer wins; the caller is responsible for only supplying
	// signatures in wall-clock-processed order.
	Update(ctx context.Context, pool string, dex model.DEXTag, signature string) error
	// Get returns the recorded signature, or ok=false if unseen.
	Get(ctx context.Context, pool string, dex model.DEXTag) (signature string, ok bool, err error)
	// Has reports whether a signature has been recorded for (pool, dex).
	Has(ctx context.Context, pool string, dex model.DEXTag) (bool, error)
	// TrackedPools returns every pool address with a recorded cursor for dex.
	TrackedPools(ctx context.Context, dex model.DEXTag) ([]string, error)
}

// memoryStore is the in-memory Store variant. It is purely synchronous and
// must never suspend; the engine is allowed to hold its lock without
// acquiring any other lock underneath it (spec.md §4.1 "discipline").
type memoryStore struct {
	mu   sync.Mutex
	data map[Key]string
}

// NewMemory builds an empty in-memory signature store, suitable for tests
// and for single-process runs that don't need cursor durability across
// restarts.
func NewMemory() Store {
	return &memoryStore{data: make(map[Key]string)}
}

func (m *memoryStore) Update(_ context.Context, pool string, dex model.DEXTag, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[Key{Pool: pool, DEX: dex}] = signature
	return nil
}

func (m *memoryStore) Get(_ context.Context, pool string, dex model.DEXTag) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.data[Key{Pool: pool, DEX: dex}]
	return sig, ok, nil
}

func (m *memoryStore) Has(ctx context.Context, pool string, dex model.DEXTag) (bool, error) {
	_, ok, err := m.Get(ctx, pool, dex)
	return ok, err
}

func (m *memoryStore) TrackedPools(_ context.Context, dex model.DEXTag) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pools := make([]string, 0, len(m.data))
	for k := range m.data {
		if k.DEX == dex {
			pools = append(pools, k.Pool)
		}
	}
	return pools, nil
}
