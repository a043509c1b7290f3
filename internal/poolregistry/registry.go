// Package poolregistry is the read-through view over the persisted list of
// monitored pools per DEX. It follows the same read-through-over-a-pool
// shape the signature store uses, grounded on the singleton-manager /
// mutex-guarded-map idiom in core/liquidity_pools.go.
package poolregistry

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mr-tron/base58"

	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/pkg/obserr"
)

// Registry is the contract the Indexer Engine's startup path and the
// external pool-metadata loader depend on.
type Registry interface {
	AllPools(ctx context.Context, dex model.DEXTag) ([]model.Pool, error)
	GetPool(ctx context.Context, dex model.DEXTag, addr string) (model.Pool, bool, error)
	UpsertPool(ctx context.Context, pool model.Pool, tokenA, tokenB model.Token) error
	// EffectivePubkeys resolves the three-tier fallback described in
	// spec.md §4.2: provided addresses, else registry rows, else default.
	EffectivePubkeys(ctx context.Context, dex model.DEXTag, provided []string, def string) ([]string, error)
}

type pgRegistry struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool as a Registry.
func New(pool *pgxpool.Pool) Registry {
	return &pgRegistry{pool: pool}
}

func (r *pgRegistry) AllPools(ctx context.Context, dex model.DEXTag) ([]model.Pool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.pool_mint, p.dex, p.pool_name, p.token_a_mint, p.token_b_mint
		FROM subscribed_pools p
		WHERE p.dex = $1
	`, string(dex))
	if err != nil {
		return nil, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "pool registry: all pools"))
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		var p model.Pool
		var dexStr string
		if err := rows.Scan(&p.Address, &dexStr, &p.Name, &p.TokenAMint, &p.TokenBMint); err != nil {
			return nil, obserr.Wrap(err, "pool registry: scan pool")
		}
		p.DEX = model.DEXTag(dexStr)
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "pool registry: all pools rows"))
	}
	return pools, nil
}

func (r *pgRegistry) GetPool(ctx context.Context, dex model.DEXTag, addr string) (model.Pool, bool, error) {
	var p model.Pool
	var dexStr string
	err := r.pool.QueryRow(ctx, `
		SELECT pool_mint, dex, pool_name, token_a_mint, token_b_mint
		FROM subscribed_pools
		WHERE dex = $1 AND pool_mint = $2
	`, string(dex), addr).Scan(&p.Address, &dexStr, &p.Name, &p.TokenAMint, &p.TokenBMint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, false, nil
		}
		return model.Pool{}, false, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "pool registry: get pool"))
	}
	p.DEX = model.DEXTag(dexStr)
	return p, true, nil
}

// UpsertPool inserts or updates both token rows and the pool row in one
// transaction (spec.md §4.2). On conflict by pool address it overwrites
// name and token bindings; it never orphans a token row because both
// tokens are written before the pool row that references them.
func (r *pgRegistry) UpsertPool(ctx context.Context, pool model.Pool, tokenA, tokenB model.Token) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "pool registry: begin upsert"))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, tok := range []model.Token{tokenA, tokenB} {
		decimals, ok := model.NormalizeDecimals(int(tok.Decimals))
		if !ok {
			decimals = model.DefaultDecimals
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO token_metadata (mint, token_name, symbol, decimals, last_updated)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (mint) DO UPDATE
			SET token_name = EXCLUDED.token_name,
			    symbol = EXCLUDED.symbol,
			    decimals = EXCLUDED.decimals,
			    last_updated = NOW()
		`, tok.Mint, tok.Name, tok.Symbol, decimals); err != nil {
			return obserr.Wrap(err, "pool registry: upsert token")
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO subscribed_pools (pool_mint, pool_name, dex, token_a_mint, token_b_mint, last_updated)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (pool_mint) DO UPDATE
		SET pool_name = EXCLUDED.pool_name,
		    token_a_mint = EXCLUDED.token_a_mint,
		    token_b_mint = EXCLUDED.token_b_mint,
		    last_updated = NOW()
	`, pool.Address, pool.Name, string(pool.DEX), pool.TokenAMint, pool.TokenBMint); err != nil {
		return obserr.Wrap(err, "pool registry: upsert pool")
	}

	if err := tx.Commit(ctx); err != nil {
		return obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "pool registry: commit upsert"))
	}
	return nil
}

func (r *pgRegistry) EffectivePubkeys(ctx context.Context, dex model.DEXTag, provided []string, def string) ([]string, error) {
	if len(provided) > 0 {
		return validateAddresses(provided)
	}

	pools, err := r.AllPools(ctx, dex)
	if err != nil {
		return nil, err
	}
	if len(pools) > 0 {
		out := make([]string, len(pools))
		for i, p := range pools {
			out[i] = p.Address
		}
		return out, nil
	}

	return []string{def}, nil
}

// validateAddresses checks each provided address decodes as base58,
// failing with BadAddress on the first syntactic error (spec.md §4.2).
func validateAddresses(provided []string) ([]string, error) {
	out := make([]string, 0, len(provided))
	for _, addr := range provided {
		if _, err := base58.Decode(addr); err != nil {
			return nil, obserr.New(obserr.KindBadAddress, "pool registry: invalid address %q: %v", addr, err)
		}
		out = append(out, addr)
	}
	return out, nil
}
