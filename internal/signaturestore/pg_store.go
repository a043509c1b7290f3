package signaturestore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/pkg/obserr"
)

// pgStore is the relational Store variant, backed by the last_signatures
// table (spec.md §6). It holds no per-key lock of its own; the pgxpool
// mediates contention, and writes rely on INSERT ... ON CONFLICT DO UPDATE
// for atomicity (spec.md §5 "shared resources").
//
// Every operation here is exposed purely as an async (context-driven)
// call — no synchronous wrapper is offered over a background runtime. A
// prior implementation of this store spawned a nested runtime to provide
// blocking callers a synchronous facade; that is a known defect and is
// deliberately not reproduced here.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool as a Store.
func NewPostgres(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) Update(ctx context.Context, pool string, dex model.DEXTag, signature string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO last_signatures (pool_address, signature, dex_type, last_updated)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (pool_address) DO UPDATE
		SET signature = EXCLUDED.signature,
		    dex_type = EXCLUDED.dex_type,
		    last_updated = NOW()
	`, pool, signature, string(dex))
	if err != nil {
		return obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "signature store: update"))
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, pool string, dex model.DEXTag) (string, bool, error) {
	var sig string
	err := s.pool.QueryRow(ctx, `
		SELECT signature FROM last_signatures WHERE pool_address = $1 AND dex_type = $2
	`, pool, string(dex)).Scan(&sig)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "signature store: get"))
	}
	return sig, true, nil
}

func (s *pgStore) Has(ctx context.Context, pool string, dex model.DEXTag) (bool, error) {
	_, ok, err := s.Get(ctx, pool, dex)
	return ok, err
}

func (s *pgStore) TrackedPools(ctx context.Context, dex model.DEXTag) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_address FROM last_signatures WHERE dex_type = $1
	`, string(dex))
	if err != nil {
		return nil, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "signature store: tracked pools"))
	}
	defer rows.Close()

	var pools []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, obserr.Wrap(err, "signature store: scan tracked pool")
		}
		pools = append(pools, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "signature store: tracked pools rows"))
	}
	return pools, nil
}
