// Package engine is the Indexer Engine: the orchestrator that ties the
// Signature Store, Pool Registry, Event Repository, Subscription Client,
// Backfill Client, and Event Parser together into the five-phase startup
// sequence and steady-state loop described in spec.md §4.7. Its control
// flow is grounded on the start()/process_log() pair in
// src/indexers/orca.rs in the reference implementation.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/apestrong/amm-indexer/internal/backfill"
	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/internal/obslog"
	"github.com/apestrong/amm-indexer/internal/repository"
	"github.com/apestrong/amm-indexer/internal/signaturestore"
)

// Parser is the pure decoding collaborator (internal/eventparser's Orca and
// Raydium types both satisfy this).
type Parser interface {
	Parse(bundle chainrpc.LogBundle) []model.ParsedEvent
}

// DEXIndexer is the capability set spec.md §9 calls the source's "DEX
// indexer trait": everything the engine needs to know about one protocol
// to index it. One concrete Engine is instantiated per DEX, each
// collaborating with a distinct DEXIndexer implementation — this is the
// Go substitute for the source's dynamic polymorphism across DEXes.
type DEXIndexer interface {
	Name() model.DEXTag
	ProgramIDs() []string
	PoolPubkeys() []string
	Repository() repository.Repository
	ParseLogEvents(bundle chainrpc.LogBundle) []model.ParsedEvent
}

// Timings bundles the steady-state loop's thresholds (spec.md §4.7 Phase
// E), broken out so tests can shrink them.
type Timings struct {
	BufferPoll           time.Duration // Phase B poll interval, default 100ms
	SteadyStateTick      time.Duration // default 300s
	LivenessThreshold    time.Duration // default 60s
	ScheduledBackfillGap time.Duration // default 120s
}

// DefaultTimings matches spec.md §4.7/§5 verbatim.
func DefaultTimings() Timings {
	return Timings{
		BufferPoll:           100 * time.Millisecond,
		SteadyStateTick:      300 * time.Second,
		LivenessThreshold:    60 * time.Second,
		ScheduledBackfillGap: 120 * time.Second,
	}
}

// Subscriber is the narrow slice of chainrpc.Subscriber plus liveness
// tracking the engine needs; internal/subscription.Client satisfies it.
type Subscriber interface {
	chainrpc.Subscriber
	TimeSinceLastReceived() (time.Duration, bool)
}

// Engine is the concrete orchestrator. One Engine serves one DEXIndexer.
type Engine struct {
	dex      DEXIndexer
	store    signaturestore.Store
	backfill *backfill.Client
	sub      Subscriber
	timings  Timings
	log      *logrus.Entry
}

// New builds an Engine. sub must additionally implement
// TimeSinceLastReceived (internal/subscription.Client does).
func New(dex DEXIndexer, store signaturestore.Store, bf *backfill.Client, sub Subscriber, timings Timings, log *logrus.Entry) *Engine {
	return &Engine{dex: dex, store: store, backfill: bf, sub: sub, timings: timings, log: log}
}

// Run executes the five-phase startup sequence and then the steady-state
// loop, blocking until ctx is cancelled (spec.md §4.7).
func (e *Engine) Run(ctx context.Context) error {
	e.announce()

	buf, backfilling, closeFirstSub := e.beginLiveCapture(ctx)

	e.initialCatchUp(ctx)

	drained := e.drain(ctx, buf, backfilling, closeFirstSub)
	for _, b := range drained {
		e.processLog(ctx, b, false)
	}

	return e.steadyState(ctx)
}

// announce is Phase A (spec.md §4.7).
func (e *Engine) announce() {
	obslog.Activity(e.log, "indexer: announcing monitored pools", logrus.Fields{"dex": string(e.dex.Name())})
	for _, p := range e.dex.PoolPubkeys() {
		obslog.Activity(e.log, "indexer: monitoring pool", logrus.Fields{"pool": p})
	}
}

// beginLiveCapture is Phase B: start the subscription and spawn the buffer
// task, which appends every received bundle to an in-memory slice while
// backfilling is true, polling every BufferPoll so it notices the flag
// flip promptly.
func (e *Engine) beginLiveCapture(ctx context.Context) (*bufferTask, *atomic.Bool, func() error) {
	backfilling := &atomic.Bool{}
	backfilling.Store(true)

	stream, closeSub, err := e.sub.LogsSubscribe(ctx, chainrpc.LogsFilter{ProgramIDs: e.dex.ProgramIDs()}, chainrpc.CommitmentConfirmed)
	if err != nil {
		obslog.Error(e.log, "indexer: failed to start live subscription", err, nil)
	}

	bt := &bufferTask{done: make(chan struct{})}
	go bt.run(stream, backfilling, e.timings.BufferPoll)
	return bt, backfilling, closeSub
}

// bufferTask owns the unbounded buffer exclusively during Phase B; the
// engine takes ownership only after join() returns (spec.md §5 "shared
// resources").
type bufferTask struct {
	mu   sync.Mutex
	buf  []chainrpc.LogBundle
	done chan struct{}
}

func (bt *bufferTask) run(stream <-chan chainrpc.LogBundle, backfilling *atomic.Bool, poll time.Duration) {
	defer close(bt.done)
	for backfilling.Load() {
		select {
		case b, ok := <-stream:
			if !ok {
				return
			}
			bt.mu.Lock()
			bt.buf = append(bt.buf, b)
			bt.mu.Unlock()
		case <-time.After(poll):
		}
	}
}

// join blocks until the buffer task has observed backfilling=false and
// exited, then returns (and clears) the buffered bundles.
func (bt *bufferTask) join() []chainrpc.LogBundle {
	<-bt.done
	bt.mu.Lock()
	defer bt.mu.Unlock()
	out := bt.buf
	bt.buf = nil
	return out
}

// initialCatchUp is Phase C: sequential per-pool backfill, batched insert
// per pool per event kind (spec.md §4.3's batched shape, chosen here per
// the Open Question decision that the engine may pick per phase).
func (e *Engine) initialCatchUp(ctx context.Context) {
	for _, pool := range e.dex.PoolPubkeys() {
		sigs, err := e.backfill.InitialBackfill(ctx, pool)
		if err != nil {
			obslog.Error(e.log, "indexer: initial backfill failed for pool", err, logrus.Fields{"pool": pool})
			continue
		}

		processed, succeeded := e.catchUpPool(ctx, pool, sigs)
		obslog.Stats(e.log, "indexer: initial catch-up complete for pool", logrus.Fields{
			"pool": pool, "processed": processed, "succeeded": succeeded,
		})
	}
}

// catchUpPool fetches and processes each signature sequentially
// (newest-first, as returned), batching inserts by event kind at the end
// of the pool's signature list.
func (e *Engine) catchUpPool(ctx context.Context, pool string, sigs []chainrpc.SignatureInfo) (processed, succeeded int) {
	var traded []repository.TradedEvent
	var increased, decreased []repository.LiquidityEvent

	for _, sig := range sigs {
		processed++
		tx, err := e.backfill.FetchTransaction(ctx, sig.Signature)
		if err != nil {
			obslog.Error(e.log, "indexer: fetch transaction failed", err, logrus.Fields{"signature": sig.Signature})
			continue
		}
		bundle := chainrpc.TransactionToBundle(tx)
		events := e.dex.ParseLogEvents(bundle)
		if len(events) > 0 {
			succeeded++
		}
		for _, ev := range events {
			header := model.EventHeader{Signature: bundle.Signature, Pool: ev.Pool, Kind: ev.Kind, Version: 1, Timestamp: time.Now()}
			switch ev.Kind {
			case model.EventTraded:
				traded = append(traded, repository.TradedEvent{Header: header, Detail: *ev.Traded})
			case model.EventLiquidityIncreased:
				increased = append(increased, repository.LiquidityEvent{Header: header, Detail: *ev.Liquidity})
			case model.EventLiquidityDecreased:
				decreased = append(decreased, repository.LiquidityEvent{Header: header, Detail: *ev.Liquidity})
			}
		}
	}

	repo := e.dex.Repository()
	if _, err := repo.BatchInsertTraded(ctx, traded); err != nil {
		obslog.Error(e.log, "indexer: batch insert traded failed", err, logrus.Fields{"pool": pool})
	}
	if _, err := repo.BatchInsertLiquidityIncreased(ctx, increased); err != nil {
		obslog.Error(e.log, "indexer: batch insert liquidity-increased failed", err, logrus.Fields{"pool": pool})
	}
	if _, err := repo.BatchInsertLiquidityDecreased(ctx, decreased); err != nil {
		obslog.Error(e.log, "indexer: batch insert liquidity-decreased failed", err, logrus.Fields{"pool": pool})
	}
	return processed, succeeded
}

// drain is Phase D: flip backfilling false, join the buffer task, and
// return its contents for the caller to process through the live path.
// closeFirstSub shuts down Phase B's subscription once it has been fully
// consumed, so its producer goroutine and channel don't outlive the phase
// (a second, independent subscription is opened for steady state).
func (e *Engine) drain(_ context.Context, bt *bufferTask, backfilling *atomic.Bool, closeFirstSub func() error) []chainrpc.LogBundle {
	backfilling.Store(false)
	buffered := bt.join()
	if closeFirstSub != nil {
		if err := closeFirstSub(); err != nil {
			obslog.Error(e.log, "indexer: failed to close buffering subscription", err, nil)
		}
	}
	obslog.Activity(e.log, "indexer: drained buffered events", logrus.Fields{"count": len(buffered)})
	return buffered
}

// processLog is the shared live-path entry point (Parser -> handle_event),
// used both to drain buffered bundles and in the steady-state loop. Errors
// are logged and swallowed; the caller must never propagate them (spec.md
// §4.7, §7).
func (e *Engine) processLog(ctx context.Context, bundle chainrpc.LogBundle, isBackfill bool) {
	events := e.dex.ParseLogEvents(bundle)
	for _, ev := range events {
		if err := e.handleEvent(ctx, bundle.Signature, ev, isBackfill); err != nil {
			obslog.Error(e.log, "indexer: handle_event failed", err, logrus.Fields{
				"signature": bundle.Signature, "pool": ev.Pool, "is_backfill": isBackfill,
			})
		}
	}
}

// handleEvent constructs a header and calls the appropriate repository
// insert. is_backfill is observable for logging only; it never changes
// persistence semantics (spec.md §4.7 "handle_event contract").
func (e *Engine) handleEvent(ctx context.Context, signature string, ev model.ParsedEvent, isBackfill bool) error {
	header := model.EventHeader{Signature: signature, Pool: ev.Pool, Kind: ev.Kind, Version: 1, Timestamp: time.Now()}
	repo := e.dex.Repository()

	switch ev.Kind {
	case model.EventTraded:
		_, err := repo.InsertTraded(ctx, header, *ev.Traded)
		return err
	case model.EventLiquidityIncreased:
		_, err := repo.InsertLiquidityIncreased(ctx, header, *ev.Liquidity)
		return err
	case model.EventLiquidityDecreased:
		_, err := repo.InsertLiquidityDecreased(ctx, header, *ev.Liquidity)
		return err
	}
	return nil
}

// steadyState is Phase E: a second subscription plus a select loop that
// interleaves live processing with a periodic liveness/scheduled-backfill
// check (spec.md §4.7).
func (e *Engine) steadyState(ctx context.Context) error {
	stream, _, err := e.sub.LogsSubscribe(ctx, chainrpc.LogsFilter{ProgramIDs: e.dex.ProgramIDs()}, chainrpc.CommitmentConfirmed)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(e.timings.SteadyStateTick)
	defer ticker.Stop()
	lastScheduledBackfill := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-stream:
			if !ok {
				return nil
			}
			e.processLog(ctx, b, false)
		case <-ticker.C:
			since, ok := e.sub.TimeSinceLastReceived()
			stale := ok && since > e.timings.LivenessThreshold
			if stale && time.Since(lastScheduledBackfill) > e.timings.ScheduledBackfillGap {
				e.scheduledBackfill(ctx)
				lastScheduledBackfill = time.Now()
			}
		}
	}
}

// scheduledBackfill processes every pool identically to Phase C but with
// is_backfill=true, via since_last_signature rather than initial_backfill
// (spec.md §4.7 Phase E).
func (e *Engine) scheduledBackfill(ctx context.Context) {
	obslog.Activity(e.log, "indexer: running scheduled backfill", nil)
	for _, pool := range e.dex.PoolPubkeys() {
		sigs, err := e.backfill.SinceLastSignature(ctx, pool)
		if err != nil {
			obslog.Error(e.log, "indexer: scheduled backfill failed for pool", err, logrus.Fields{"pool": pool})
			continue
		}
		processed, succeeded := e.catchUpPool(ctx, pool, sigs)
		obslog.Stats(e.log, "indexer: scheduled backfill complete for pool", logrus.Fields{
			"pool": pool, "processed": processed, "succeeded": succeeded,
		})
	}
}
