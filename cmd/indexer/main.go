// Command indexer is the CLI entrypoint: it loads configuration, wires the
// core collaborators together, and runs the Indexer Engine for one or more
// DEX families. Its shape — a cobra root command, per-subcommand flags,
// and an early-exit on startup failure — follows cmd/synnergy/main.go and
// cmd/explorer/main.go in the reference codebase.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/apestrong/amm-indexer/internal/backfill"
	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/config"
	"github.com/apestrong/amm-indexer/internal/dex/orca"
	"github.com/apestrong/amm-indexer/internal/dex/raydium"
	"github.com/apestrong/amm-indexer/internal/engine"
	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/internal/obslog"
	"github.com/apestrong/amm-indexer/internal/poolregistry"
	"github.com/apestrong/amm-indexer/internal/repository"
	"github.com/apestrong/amm-indexer/internal/signaturestore"
	"github.com/apestrong/amm-indexer/internal/statusapi"
	"github.com/apestrong/amm-indexer/internal/subscription"
)

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{Use: "indexer", Short: "Concurrent-liquidity AMM event indexer"}

	var pools []string
	var statusAddr string

	orcaCmd := &cobra.Command{
		Use:   "orca",
		Short: "index Orca Whirlpool events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), model.DEXTag("orca"), pools, statusAddr)
		},
	}
	raydiumCmd := &cobra.Command{
		Use:   "raydium",
		Short: "index Raydium CLMM events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), model.DEXTag("raydium"), pools, statusAddr)
		},
	}
	allCmd := &cobra.Command{
		Use:   "all",
		Short: "index every supported DEX concurrently",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), "", pools, statusAddr)
		},
	}

	for _, c := range []*cobra.Command{orcaCmd, raydiumCmd, allCmd} {
		c.Flags().StringSliceVar(&pools, "pools", nil, "explicit pool addresses to monitor (overrides registry rows)")
		c.Flags().StringVar(&statusAddr, "status-addr", ":8090", "bind address for the liveness/status HTTP server")
	}

	root.AddCommand(orcaCmd, raydiumCmd, allCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run builds every collaborator and starts one Engine per requested DEX.
// dex == "" means every supported DEX. It blocks until ctx is cancelled or
// a startup step fails fatally.
func run(ctx context.Context, dex model.DEXTag, pools []string, statusAddr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := obslog.New(cfg.LogLevel)
	log := obslog.ForComponent(logger, "indexer")
	log.WithField("config", cfg.String()).Info("starting indexer")

	pgPool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("database: connect: %w", err)
	}
	defer pgPool.Close()

	rpcClient := chainrpc.NewHTTPClient(cfg.Solana.RPCURL)
	registry := poolregistry.New(pgPool)
	repo := repository.New(pgPool)

	var indexers []engine.DEXIndexer
	if dex == "" || dex == model.DEXTag("orca") {
		idx, err := orca.New(ctx, registry, repo, pools, "")
		if err != nil {
			return fmt.Errorf("orca: build indexer: %w", err)
		}
		indexers = append(indexers, idx)
	}
	if dex == "" || dex == model.DEXTag("raydium") {
		idx, err := raydium.New(ctx, registry, repo, pools, "")
		if err != nil {
			return fmt.Errorf("raydium: build indexer: %w", err)
		}
		indexers = append(indexers, idx)
	}

	errCh := make(chan error, len(indexers))
	for _, idx := range indexers {
		go func(idx engine.DEXIndexer) {
			store := signaturestore.NewPostgres(pgPool)
			bf := backfill.New(backfill.Config{
				MaxSignaturesPerRequest: cfg.Backfill.MaxSignaturesPerRequest,
				DEX:                     idx.Name(),
			}, rpcClient, store, obslog.ForComponent(logger, "backfill"))

			sub := subscription.New(cfg.Solana.WSURL, chainrpc.LogsFilter{ProgramIDs: idx.ProgramIDs()}, subscription.Policy{
				MaxAttempts: cfg.Reconnect.MaxAttempts,
				BaseDelay:   cfg.Reconnect.BaseDelay,
				MaxDelay:    cfg.Reconnect.MaxDelay,
			}, obslog.ForComponent(logger, "subscription"), nil)

			e := engine.New(idx, store, bf, sub, engine.DefaultTimings(), obslog.ForComponent(logger, "engine"))
			errCh <- e.Run(ctx)
		}(idx)
	}

	statusSrv := &http.Server{Addr: statusAddr, Handler: statusapi.New(&statusapi.EngineSource{IsLiveFunc: func() bool { return true }}, obslog.ForComponent(logger, "statusapi"))}
	go func() {
		if err := statusSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("status server stopped")
		}
	}()

	for range indexers {
		if err := <-errCh; err != nil && ctx.Err() == nil {
			log.WithError(err).Error("engine stopped unexpectedly")
		}
	}

	_ = statusSrv.Close()
	return nil
}
