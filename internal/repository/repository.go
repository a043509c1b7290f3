// Package repository is the typed writer for the three captured event
// variants and their shared header row (spec.md §4.3). It is the only
// package that issues INSERT statements against the orca_whirlpool_events
// family of tables; the Indexer Engine never writes SQL directly.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/pkg/obserr"
)

// Repository is the writer contract consumed by the Indexer Engine.
type Repository interface {
	InsertTraded(ctx context.Context, header model.EventHeader, detail model.TradedDetail) (int64, error)
	InsertLiquidityIncreased(ctx context.Context, header model.EventHeader, detail model.LiquidityDetail) (int64, error)
	InsertLiquidityDecreased(ctx context.Context, header model.EventHeader, detail model.LiquidityDetail) (int64, error)

	BatchInsertTraded(ctx context.Context, events []TradedEvent) ([]int64, error)
	BatchInsertLiquidityIncreased(ctx context.Context, events []LiquidityEvent) ([]int64, error)
	BatchInsertLiquidityDecreased(ctx context.Context, events []LiquidityEvent) ([]int64, error)
}

// TradedEvent pairs one header with its traded detail, for batched insert.
type TradedEvent struct {
	Header model.EventHeader
	Detail model.TradedDetail
}

// LiquidityEvent pairs one header with its liquidity detail, for batched
// insert. The same shape serves both LiquidityIncreased and
// LiquidityDecreased; which table is targeted is decided by which batch
// method is called.
type LiquidityEvent struct {
	Header model.EventHeader
	Detail model.LiquidityDetail
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool as a Repository.
func New(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const insertHeaderSQL = `
	INSERT INTO orca_whirlpool_events (signature, whirlpool, event_type, version, timestamp)
	VALUES ($1, $2, $3, $4, NOW())
	RETURNING id
`

func insertHeader(ctx context.Context, tx pgx.Tx, h model.EventHeader) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, insertHeaderSQL, h.Signature, h.Pool, string(h.Kind), h.Version).Scan(&id)
	if err != nil {
		return 0, obserr.Wrap(err, "event repository: insert header")
	}
	return id, nil
}

func (r *pgRepository) InsertTraded(ctx context.Context, header model.EventHeader, detail model.TradedDetail) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: begin traded"))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := insertHeader(ctx, tx, header)
	if err != nil {
		return 0, obserr.Classify(obserr.KindStorageFault, err)
	}

	detail.HeaderID = id
	if _, err := tx.Exec(ctx, `
		INSERT INTO orca_traded_events (
			event_id, a_to_b, pre_sqrt_price, post_sqrt_price,
			input_amount, output_amount, input_transfer_fee, output_transfer_fee,
			lp_fee, protocol_fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, detail.HeaderID, detail.AToB, detail.PreSqrtPrice, detail.PostSqrtPrice,
		detail.InputAmount, detail.OutputAmount, detail.InputTransferFee, detail.OutputTransferFee,
		detail.LPFee, detail.ProtocolFee); err != nil {
		return 0, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: insert traded detail"))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: commit traded"))
	}
	return id, nil
}

func (r *pgRepository) insertLiquidity(ctx context.Context, table string, header model.EventHeader, detail model.LiquidityDetail) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: begin liquidity"))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := insertHeader(ctx, tx, header)
	if err != nil {
		return 0, obserr.Classify(obserr.KindStorageFault, err)
	}

	detail.HeaderID = id
	if _, err := tx.Exec(ctx, `
		INSERT INTO `+table+` (
			event_id, position, tick_lower_index, tick_upper_index, liquidity,
			token_a_amount, token_b_amount, token_a_transfer_fee, token_b_transfer_fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, detail.HeaderID, detail.Position, detail.TickLower, detail.TickUpper, detail.LiquidityDelta,
		detail.TokenAAmount, detail.TokenBAmount, detail.TokenATransferFee, detail.TokenBTransferFee); err != nil {
		return 0, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: insert liquidity detail"))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: commit liquidity"))
	}
	return id, nil
}

func (r *pgRepository) InsertLiquidityIncreased(ctx context.Context, header model.EventHeader, detail model.LiquidityDetail) (int64, error) {
	return r.insertLiquidity(ctx, "orca_liquidity_increased_events", header, detail)
}

func (r *pgRepository) InsertLiquidityDecreased(ctx context.Context, header model.EventHeader, detail model.LiquidityDetail) (int64, error) {
	return r.insertLiquidity(ctx, "orca_liquidity_decreased_events", header, detail)
}

// BatchInsertTraded groups N headers and N details in a single transaction.
// Headers are issued one-at-a-time to capture each returned surrogate id,
// then details are issued (spec.md §4.3). An empty batch is a no-op.
func (r *pgRepository) BatchInsertTraded(ctx context.Context, events []TradedEvent) ([]int64, error) {
	if len(events) == 0 {
		return nil, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: begin batch traded"))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, len(events))
	for i, e := range events {
		id, err := insertHeader(ctx, tx, e.Header)
		if err != nil {
			return nil, obserr.Classify(obserr.KindStorageFault, err)
		}
		ids[i] = id
	}
	for i, e := range events {
		d := e.Detail
		d.HeaderID = ids[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO orca_traded_events (
				event_id, a_to_b, pre_sqrt_price, post_sqrt_price,
				input_amount, output_amount, input_transfer_fee, output_transfer_fee,
				lp_fee, protocol_fee
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, d.HeaderID, d.AToB, d.PreSqrtPrice, d.PostSqrtPrice,
			d.InputAmount, d.OutputAmount, d.InputTransferFee, d.OutputTransferFee,
			d.LPFee, d.ProtocolFee); err != nil {
			return nil, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: batch insert traded detail"))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: commit batch traded"))
	}
	return ids, nil
}

func (r *pgRepository) batchInsertLiquidity(ctx context.Context, table string, events []LiquidityEvent) ([]int64, error) {
	if len(events) == 0 {
		return nil, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: begin batch liquidity"))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, len(events))
	for i, e := range events {
		id, err := insertHeader(ctx, tx, e.Header)
		if err != nil {
			return nil, obserr.Classify(obserr.KindStorageFault, err)
		}
		ids[i] = id
	}
	for i, e := range events {
		d := e.Detail
		d.HeaderID = ids[i]
		if _, err := tx.Exec(ctx, `
			INSERT INTO `+table+` (
				event_id, position, tick_lower_index, tick_upper_index, liquidity,
				token_a_amount, token_b_amount, token_a_transfer_fee, token_b_transfer_fee
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, d.HeaderID, d.Position, d.TickLower, d.TickUpper, d.LiquidityDelta,
			d.TokenAAmount, d.TokenBAmount, d.TokenATransferFee, d.TokenBTransferFee); err != nil {
			return nil, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: batch insert liquidity detail"))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, obserr.Classify(obserr.KindStorageFault, obserr.Wrap(err, "event repository: commit batch liquidity"))
	}
	return ids, nil
}

func (r *pgRepository) BatchInsertLiquidityIncreased(ctx context.Context, events []LiquidityEvent) ([]int64, error) {
	return r.batchInsertLiquidity(ctx, "orca_liquidity_increased_events", events)
}

func (r *pgRepository) BatchInsertLiquidityDecreased(ctx context.Context, events []LiquidityEvent) ([]int64, error) {
	return r.batchInsertLiquidity(ctx, "orca_liquidity_decreased_events", events)
}
