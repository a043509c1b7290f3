// Package backfill is the pull-based signature enumerator and transaction
// fetcher, parameterized by a per-pool cursor obtained from the Signature
// Store (spec.md §4.5). Its operations are grounded on
// backfill_manager.rs in the reference implementation.
package backfill

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/internal/obslog"
	"github.com/apestrong/amm-indexer/internal/signaturestore"
	"github.com/apestrong/amm-indexer/pkg/obserr"
)

// Config mirrors spec.md §4.5's backfill parameters.
type Config struct {
	MaxSignaturesPerRequest int
	DEX                     model.DEXTag
}

// Client is the Backfill Client.
type Client struct {
	cfg    Config
	rpc    chainrpc.Client
	store  signaturestore.Store
	log    *logrus.Entry
}

// New builds a Backfill Client over the given RPC client and signature
// store.
func New(cfg Config, rpc chainrpc.Client, store signaturestore.Store, log *logrus.Entry) *Client {
	return &Client{cfg: cfg, rpc: rpc, store: store, log: log}
}

// InitialBackfill enumerates recent signatures for pool with no lower
// bound, records the oldest signature first (a stable lower cursor) and
// then the newest (the moving upper cursor), and returns the full
// newest-first list (spec.md §4.5).
func (c *Client) InitialBackfill(ctx context.Context, pool string) ([]chainrpc.SignatureInfo, error) {
	obslog.Activity(c.log, "initial backfill", logrus.Fields{"pool": pool})

	sigs, err := c.rpc.GetSignaturesForAddress(ctx, pool, chainrpc.GetSignaturesForAddressParams{
		Limit:      c.cfg.MaxSignaturesPerRequest,
		Commitment: chainrpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "backfill: initial get_signatures_for_address"))
	}
	if len(sigs) == 0 {
		return nil, nil
	}

	oldest := sigs[len(sigs)-1]
	if err := c.store.Update(ctx, pool, c.cfg.DEX, oldest.Signature); err != nil {
		return nil, err
	}

	newest := sigs[0]
	if err := c.store.Update(ctx, pool, c.cfg.DEX, newest.Signature); err != nil {
		return nil, err
	}

	obslog.Stats(c.log, "initial backfill complete", logrus.Fields{"pool": pool, "count": len(sigs)})
	return sigs, nil
}

// SinceLastSignature reads the cursor for pool; if absent it delegates to
// InitialBackfill. Otherwise it fetches signatures strictly newer than the
// cursor, advances the cursor to the newest returned signature (leaving it
// untouched if none were returned), and returns the list (spec.md §4.5).
func (c *Client) SinceLastSignature(ctx context.Context, pool string) ([]chainrpc.SignatureInfo, error) {
	cursor, ok, err := c.store.Get(ctx, pool, c.cfg.DEX)
	if err != nil {
		return nil, err
	}
	if !ok {
		obslog.Activity(c.log, "no cursor for pool, falling back to initial backfill", logrus.Fields{"pool": pool})
		return c.InitialBackfill(ctx, pool)
	}

	sigs, err := c.rpc.GetSignaturesForAddress(ctx, pool, chainrpc.GetSignaturesForAddressParams{
		Limit:      c.cfg.MaxSignaturesPerRequest,
		Until:      cursor,
		Commitment: chainrpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "backfill: since_last_signature get_signatures_for_address"))
	}
	if len(sigs) == 0 {
		return nil, nil
	}

	newest := sigs[0]
	if err := c.store.Update(ctx, pool, c.cfg.DEX, newest.Signature); err != nil {
		return nil, err
	}
	return sigs, nil
}

// FetchTransaction fetches a single confirmed transaction (spec.md §4.5).
func (c *Client) FetchTransaction(ctx context.Context, signature string) (chainrpc.Transaction, error) {
	tx, err := c.rpc.GetTransaction(ctx, signature)
	if err != nil {
		return chainrpc.Transaction{}, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "backfill: fetch_transaction"))
	}
	return tx, nil
}
