// Package loader is the external, one-shot pool-metadata loader: given a
// pool address, it fetches the pool account and its two token mint
// accounts over the ledger RPC, decodes the fields the indexer core needs,
// and upserts the result through the Pool Registry. It runs outside the
// Indexer Engine's always-on control flow (spec.md §4.8), grounded on
// database/load_orca_pool.rs in the reference implementation.
//
// Token metadata (symbol/name) resolution via the Metaplex metadata
// program is not reproduced here: the reference implementation's own
// fallback path leaves these fields blank when metadata lookup fails, and
// no Borsh-based Metaplex account decoder is available anywhere in the
// library stack this indexer draws from. Only decimals, which are read
// directly off the SPL mint account, are resolved.
package loader

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/internal/obslog"
	"github.com/apestrong/amm-indexer/internal/poolregistry"
	"github.com/apestrong/amm-indexer/pkg/obserr"
)

// whirlpoolDiscriminatorLen is the 8-byte Anchor account discriminator
// every Whirlpool account is prefixed with.
const whirlpoolDiscriminatorLen = 8

// mintDecimalsOffset is the byte offset of the decimals field within an
// SPL token mint account (mint_authority option+pubkey 36 + supply u64 8).
const mintDecimalsOffset = 44

// Loader resolves and upserts one pool's metadata.
type Loader struct {
	rpc      chainrpc.Client
	registry poolregistry.Registry
	log      *logrus.Entry
}

// New builds a Loader.
func New(rpc chainrpc.Client, registry poolregistry.Registry, log *logrus.Entry) *Loader {
	return &Loader{rpc: rpc, registry: registry, log: log}
}

// LoadOrcaPool fetches and upserts metadata for a single Orca Whirlpool
// pool address (spec.md §4.8).
func (l *Loader) LoadOrcaPool(ctx context.Context, poolAddress string) error {
	if _, err := base58.Decode(poolAddress); err != nil {
		return obserr.Classify(obserr.KindBadAddress, obserr.Wrap(err, "loader: invalid pool address"))
	}

	account, err := l.rpc.GetAccountWithCommitment(ctx, poolAddress, chainrpc.CommitmentConfirmed)
	if err != nil {
		return obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "loader: fetch pool account"))
	}

	mintA, mintB, err := decodeWhirlpoolMints(account.Data)
	if err != nil {
		return obserr.Classify(obserr.KindPermanentSkip, err)
	}

	tokenA, err := l.fetchTokenInfo(ctx, mintA)
	if err != nil {
		return err
	}
	tokenB, err := l.fetchTokenInfo(ctx, mintB)
	if err != nil {
		return err
	}

	pool := model.Pool{
		Address:    poolAddress,
		DEX:        model.DEXTag("orca"),
		Name:       fmt.Sprintf("%s/%s", tokenA.Mint, tokenB.Mint),
		TokenAMint: tokenA.Mint,
		TokenBMint: tokenB.Mint,
	}

	obslog.Activity(l.log, "loader: upserting pool", logrus.Fields{
		"pool": poolAddress, "token_a": tokenA.Mint, "token_b": tokenB.Mint,
	})
	return l.registry.UpsertPool(ctx, pool, tokenA, tokenB)
}

// decodeWhirlpoolMints extracts token_mint_a and token_mint_b from a raw
// Whirlpool account's data, skipping the 8-byte Anchor discriminator.
func decodeWhirlpoolMints(data []byte) (mintA, mintB string, err error) {
	body := data
	if len(body) >= whirlpoolDiscriminatorLen {
		body = body[whirlpoolDiscriminatorLen:]
	}

	// Layout after the discriminator: whirlpools_config(32) + bump(1) +
	// tick_spacing(2) + tick_spacing_seed(2) + fee_rate(2) +
	// protocol_fee_rate(2) + liquidity(16) + sqrt_price(16) +
	// tick_current_index(4) + protocol_fee_owed_a(8) +
	// protocol_fee_owed_b(8) = 93 bytes, then token_mint_a(32).
	const mintAOffset = 32 + 1 + 2 + 2 + 2 + 2 + 16 + 16 + 4 + 8 + 8
	const tokenVaultALen = 32
	const mintBOffset = mintAOffset + 32 + tokenVaultALen + 16 // + fee_growth_global_a(16)

	if len(body) < mintBOffset+32 {
		return "", "", fmt.Errorf("loader: whirlpool account too short: %d bytes", len(body))
	}

	return base58.Encode(body[mintAOffset : mintAOffset+32]), base58.Encode(body[mintBOffset : mintBOffset+32]), nil
}

// fetchTokenInfo fetches an SPL mint account and extracts its decimals,
// normalizing out-of-range values per model.NormalizeDecimals.
func (l *Loader) fetchTokenInfo(ctx context.Context, mint string) (model.Token, error) {
	account, err := l.rpc.GetAccountWithCommitment(ctx, mint, chainrpc.CommitmentConfirmed)
	if err != nil {
		return model.Token{}, obserr.Classify(obserr.KindTransient, obserr.Wrap(err, "loader: fetch mint account"))
	}

	decimals := model.DefaultDecimals
	if len(account.Data) > mintDecimalsOffset {
		if d, ok := model.NormalizeDecimals(int(account.Data[mintDecimalsOffset])); ok {
			decimals = d
		} else {
			obslog.Activity(l.log, "loader: mint decimals out of range, defaulting", logrus.Fields{"mint": mint})
		}
	} else {
		obslog.Activity(l.log, "loader: mint account too short to read decimals, defaulting", logrus.Fields{"mint": mint})
	}

	return model.Token{Mint: mint, Decimals: decimals}, nil
}
