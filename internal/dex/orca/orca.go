// Package orca wires the Orca Whirlpool Event Parser and a pool registry
// snapshot into the engine.DEXIndexer capability set, so one Engine can
// index the Orca Whirlpool program without the engine package knowing
// anything about discriminators or log formats.
package orca

import (
	"context"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/eventparser"
	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/internal/poolregistry"
	"github.com/apestrong/amm-indexer/internal/repository"
)

// ProgramID is the deployed Orca Whirlpool program address.
const ProgramID = "whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc"

// Indexer satisfies engine.DEXIndexer for the Orca Whirlpool protocol.
type Indexer struct {
	programIDs []string
	pools      []string
	parser     *eventparser.Orca
	repo       repository.Repository
}

// New resolves the effective pool set via the registry's three-tier
// fallback (spec.md §4.2) and builds an Orca Indexer bound to it.
func New(ctx context.Context, registry poolregistry.Registry, repo repository.Repository, provided []string, defaultPool string) (*Indexer, error) {
	pools, err := registry.EffectivePubkeys(ctx, model.DEXTag("orca"), provided, defaultPool)
	if err != nil {
		return nil, err
	}
	programIDs := []string{ProgramID}
	return &Indexer{
		programIDs: programIDs,
		pools:      pools,
		parser:     eventparser.NewOrca(programIDs, pools),
		repo:       repo,
	}, nil
}

func (i *Indexer) Name() model.DEXTag    { return model.DEXTag("orca") }
func (i *Indexer) ProgramIDs() []string  { return i.programIDs }
func (i *Indexer) PoolPubkeys() []string { return i.pools }
func (i *Indexer) Repository() repository.Repository {
	return i.repo
}
func (i *Indexer) ParseLogEvents(bundle chainrpc.LogBundle) []model.ParsedEvent {
	return i.parser.Parse(bundle)
}
