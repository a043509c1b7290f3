// Package raydium wires the Raydium CLMM Event Parser and a pool registry
// snapshot into the engine.DEXIndexer capability set.
package raydium

import (
	"context"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/eventparser"
	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/internal/poolregistry"
	"github.com/apestrong/amm-indexer/internal/repository"
)

// ProgramID is the deployed Raydium concentrated-liquidity program address.
const ProgramID = "CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK"

// Indexer satisfies engine.DEXIndexer for the Raydium CLMM protocol.
//
// Raydium's Increase/Decrease events key on a position NFT mint rather
// than a pool address (the comment on eventparser's Raydium body-length
// constants explains why), so
// the monitored set passed to the registry's fallback here is a DEX-local
// notion that mixes pool addresses and position mints; the registry itself
// only ever stores pool addresses.
type Indexer struct {
	programIDs []string
	pools      []string
	parser     *eventparser.Raydium
	repo       repository.Repository
}

// New resolves the effective pool set via the registry's three-tier
// fallback and builds a Raydium Indexer bound to it.
func New(ctx context.Context, registry poolregistry.Registry, repo repository.Repository, provided []string, defaultPool string) (*Indexer, error) {
	pools, err := registry.EffectivePubkeys(ctx, model.DEXTag("raydium"), provided, defaultPool)
	if err != nil {
		return nil, err
	}
	programIDs := []string{ProgramID}
	return &Indexer{
		programIDs: programIDs,
		pools:      pools,
		parser:     eventparser.NewRaydium(programIDs, pools),
		repo:       repo,
	}, nil
}

func (i *Indexer) Name() model.DEXTag    { return model.DEXTag("raydium") }
func (i *Indexer) ProgramIDs() []string  { return i.programIDs }
func (i *Indexer) PoolPubkeys() []string { return i.pools }
func (i *Indexer) Repository() repository.Repository {
	return i.repo
}
func (i *Indexer) ParseLogEvents(bundle chainrpc.LogBundle) []model.ParsedEvent {
	return i.parser.Parse(bundle)
}
