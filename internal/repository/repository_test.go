package repository

import (
	"context"
	"testing"
)

// An empty batch must be a no-op and must never touch the pool (spec.md
// §4.3); a nil pool here would panic if that contract were violated.
func TestBatchInsertEmptyIsNoOp(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	ids, err := r.BatchInsertTraded(ctx, nil)
	if err != nil || ids != nil {
		t.Fatalf("expected nil, nil for empty traded batch, got %v, %v", ids, err)
	}
	ids, err = r.BatchInsertLiquidityIncreased(ctx, nil)
	if err != nil || ids != nil {
		t.Fatalf("expected nil, nil for empty liquidity-increased batch, got %v, %v", ids, err)
	}
	ids, err = r.BatchInsertLiquidityDecreased(ctx, nil)
	if err != nil || ids != nil {
		t.Fatalf("expected nil, nil for empty liquidity-decreased batch, got %v, %v", ids, err)
	}
}
