package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apestrong/amm-indexer/internal/backfill"
	"github.com/apestrong/amm-indexer/internal/chainrpc"
	"github.com/apestrong/amm-indexer/internal/model"
	"github.com/apestrong/amm-indexer/internal/repository"
	"github.com/apestrong/amm-indexer/internal/signaturestore"
)

// fakeRepo is an in-memory Repository recording every insert, used to
// assert the handle_event contract without a database.
type fakeRepo struct {
	mu        sync.Mutex
	traded    []repository.TradedEvent
	increased []repository.LiquidityEvent
	decreased []repository.LiquidityEvent
	nextID    int64
}

func (r *fakeRepo) InsertTraded(_ context.Context, h model.EventHeader, d model.TradedDetail) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.traded = append(r.traded, repository.TradedEvent{Header: h, Detail: d})
	return r.nextID, nil
}

func (r *fakeRepo) InsertLiquidityIncreased(_ context.Context, h model.EventHeader, d model.LiquidityDetail) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.increased = append(r.increased, repository.LiquidityEvent{Header: h, Detail: d})
	return r.nextID, nil
}

func (r *fakeRepo) InsertLiquidityDecreased(_ context.Context, h model.EventHeader, d model.LiquidityDetail) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.decreased = append(r.decreased, repository.LiquidityEvent{Header: h, Detail: d})
	return r.nextID, nil
}

func (r *fakeRepo) BatchInsertTraded(ctx context.Context, events []repository.TradedEvent) ([]int64, error) {
	ids := make([]int64, len(events))
	for i, e := range events {
		id, _ := r.InsertTraded(ctx, e.Header, e.Detail)
		ids[i] = id
	}
	return ids, nil
}

func (r *fakeRepo) BatchInsertLiquidityIncreased(ctx context.Context, events []repository.LiquidityEvent) ([]int64, error) {
	ids := make([]int64, len(events))
	for i, e := range events {
		id, _ := r.InsertLiquidityIncreased(ctx, e.Header, e.Detail)
		ids[i] = id
	}
	return ids, nil
}

func (r *fakeRepo) BatchInsertLiquidityDecreased(ctx context.Context, events []repository.LiquidityEvent) ([]int64, error) {
	ids := make([]int64, len(events))
	for i, e := range events {
		id, _ := r.InsertLiquidityDecreased(ctx, e.Header, e.Detail)
		ids[i] = id
	}
	return ids, nil
}

// fakeDEX is a scripted DEXIndexer. ParseLogEvents returns one Traded
// event per bundle whose signature is present in the wantedSignatures set,
// tagging every produced event with pool "poolP".
type fakeDEX struct {
	repo             repository.Repository
	wantedSignatures map[string]bool
}

func (d *fakeDEX) Name() model.DEXTag    { return model.DEXTag("orca") }
func (d *fakeDEX) ProgramIDs() []string  { return []string{"progA"} }
func (d *fakeDEX) PoolPubkeys() []string { return []string{"poolP"} }
func (d *fakeDEX) Repository() repository.Repository {
	return d.repo
}
func (d *fakeDEX) ParseLogEvents(bundle chainrpc.LogBundle) []model.ParsedEvent {
	if !d.wantedSignatures[bundle.Signature] {
		return nil
	}
	return []model.ParsedEvent{{Kind: model.EventTraded, Pool: "poolP", Traded: &model.TradedDetail{InputAmount: 1}}}
}

// fakeSub is a scripted Subscriber: LogsSubscribe always returns the same
// pre-populated (and then closed) channel, so beginLiveCapture's buffer
// task observes a fixed, finite stream.
type fakeSub struct {
	bundles []chainrpc.LogBundle
}

func (s *fakeSub) LogsSubscribe(_ context.Context, _ chainrpc.LogsFilter, _ chainrpc.Commitment) (<-chan chainrpc.LogBundle, func() error, error) {
	ch := make(chan chainrpc.LogBundle, len(s.bundles))
	for _, b := range s.bundles {
		ch <- b
	}
	close(ch)
	return ch, func() error { return nil }, nil
}

func (s *fakeSub) TimeSinceLastReceived() (time.Duration, bool) {
	return 0, false
}

// fakeRPC scripts GetSignaturesForAddress/GetTransaction for the backfill
// client embedded in the engine under test.
type fakeRPC struct {
	sigs []chainrpc.SignatureInfo
}

func (f *fakeRPC) GetSignaturesForAddress(_ context.Context, _ string, params chainrpc.GetSignaturesForAddressParams) ([]chainrpc.SignatureInfo, error) {
	if params.Until != "" {
		return nil, nil
	}
	return f.sigs, nil
}

func (f *fakeRPC) GetTransaction(_ context.Context, signature string) (chainrpc.Transaction, error) {
	return chainrpc.Transaction{Signature: signature}, nil
}

func (f *fakeRPC) GetAccountWithCommitment(_ context.Context, _ string, _ chainrpc.Commitment) (chainrpc.AccountInfo, error) {
	return chainrpc.AccountInfo{}, nil
}

func TestHandleEventInsertsTradedRegardlessOfBackfillFlag(t *testing.T) {
	repo := &fakeRepo{}
	dex := &fakeDEX{repo: repo}
	e := &Engine{dex: dex, timings: DefaultTimings()}

	ev := model.ParsedEvent{Kind: model.EventTraded, Pool: "poolP", Traded: &model.TradedDetail{InputAmount: 42}}
	if err := e.handleEvent(context.Background(), "sigLive", ev, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.handleEvent(context.Background(), "sigBackfill", ev, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.traded) != 2 {
		t.Fatalf("expected 2 traded rows regardless of is_backfill, got %d", len(repo.traded))
	}
	if repo.traded[0].Header.Signature != "sigLive" || repo.traded[1].Header.Signature != "sigBackfill" {
		t.Fatalf("unexpected signatures recorded: %+v", repo.traded)
	}
}

func TestCatchUpPoolBatchesInsertsByEventKind(t *testing.T) {
	repo := &fakeRepo{}
	dex := &fakeDEX{repo: repo, wantedSignatures: map[string]bool{"sig1": true, "sig2": true}}
	e := &Engine{dex: dex, timings: DefaultTimings(), backfill: backfill.New(
		backfill.Config{MaxSignaturesPerRequest: 10, DEX: model.DEXTag("orca")},
		&fakeRPC{}, signaturestore.NewMemory(), nil,
	)}

	sigs := []chainrpc.SignatureInfo{{Signature: "sig1"}, {Signature: "sig2"}, {Signature: "sig3"}}
	processed, succeeded := e.catchUpPool(context.Background(), "poolP", sigs)

	if processed != 3 {
		t.Fatalf("expected 3 processed, got %d", processed)
	}
	if succeeded != 2 {
		t.Fatalf("expected 2 succeeded (sig1, sig2 match), got %d", succeeded)
	}
	if len(repo.traded) != 2 {
		t.Fatalf("expected batch of 2 traded rows, got %d", len(repo.traded))
	}
}

func TestBufferTaskCollectsUntilBackfillingFalse(t *testing.T) {
	sub := &fakeSub{bundles: []chainrpc.LogBundle{
		{Signature: "a"}, {Signature: "b"}, {Signature: "c"},
	}}
	stream, _, err := sub.LogsSubscribe(context.Background(), chainrpc.LogsFilter{}, chainrpc.CommitmentConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	backfilling := &atomic.Bool{}
	backfilling.Store(true)

	bt := &bufferTask{done: make(chan struct{})}
	go bt.run(stream, backfilling, time.Millisecond)

	// Give the task a moment to drain the closed channel, then flip and join.
	time.Sleep(20 * time.Millisecond)
	backfilling.Store(false)

	got := bt.join()
	if len(got) != 3 {
		t.Fatalf("expected 3 buffered bundles, got %d: %+v", len(got), got)
	}
}

func TestDrainFlipsFlagAndReturnsBufferedEvents(t *testing.T) {
	sub := &fakeSub{bundles: []chainrpc.LogBundle{{Signature: "x"}}}
	stream, _, _ := sub.LogsSubscribe(context.Background(), chainrpc.LogsFilter{}, chainrpc.CommitmentConfirmed)

	repo := &fakeRepo{}
	dex := &fakeDEX{repo: repo, wantedSignatures: map[string]bool{"x": true}}
	e := &Engine{dex: dex, timings: DefaultTimings()}

	backfilling := &atomic.Bool{}
	backfilling.Store(true)
	bt := &bufferTask{done: make(chan struct{})}
	go bt.run(stream, backfilling, time.Millisecond)
	time.Sleep(10 * time.Millisecond)

	closed := false
	drained := e.drain(context.Background(), bt, backfilling, func() error { closed = true; return nil })
	if len(drained) != 1 || drained[0].Signature != "x" {
		t.Fatalf("expected the single buffered bundle to survive drain, got %+v", drained)
	}
	if !closed {
		t.Fatal("expected drain to close the Phase B subscription")
	}

	for _, b := range drained {
		e.processLog(context.Background(), b, false)
	}
	if len(repo.traded) != 1 {
		t.Fatalf("expected drained bundle processed into one traded row, got %d", len(repo.traded))
	}
}
