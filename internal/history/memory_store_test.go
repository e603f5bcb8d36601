package history

import (
	"context"
	"testing"
	"time"

	xerrors "ChatWallet/internal/errors"
)

func fixedClock(start int64) func() time.Time {
	next := start
	return func() time.Time {
		next++
		return time.Unix(next, 0)
	}
}

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	store.now = fixedClock(1000)
	ctx := context.Background()

	records := []*Record{
		{ID: "r1", Account: "0xAA", Chain: "ethereum", Kind: "TRANSFER_NATIVE"},
		{ID: "r2", Account: "0xaa", Chain: "polygon", Kind: "SWAP_TOKENS"},
		{ID: "r3", Account: "0xbb", Chain: "ethereum", Kind: "TRANSFER_TOKEN"},
	}
	for _, rec := range records {
		if err := store.Create(ctx, rec); err != nil {
			t.Fatalf("create %s: %v", rec.ID, err)
		}
	}
	if err := store.UpdateStatus(ctx, "r2", Update{Status: StatusFailed, ErrorCode: "TX_REVERTED"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.UpdateStatus(ctx, "r3", Update{Status: StatusSuccess, TxHash: "0x01"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "r3" {
		t.Fatalf("expected newest record first, got %+v", all)
	}

	mine, err := store.List(ctx, WithAccount("0xAA"))
	if err != nil {
		t.Fatalf("list by account: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("account filter is case-insensitive, got %d records", len(mine))
	}

	failed, err := store.List(ctx, WithStatuses(StatusFailed, "bogus"))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ErrorCode != "TX_REVERTED" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	page, err := store.List(ctx, WithLimit(1), WithOffset(1), WithSortOrder(SortByCreatedAsc))
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "r2" {
		t.Fatalf("unexpected page: %+v", page)
	}

	stats, err := store.Stats(ctx, WithChain("ethereum"))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Pending != 1 || stats.Success != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Record{}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if err := store.Create(ctx, &Record{ID: "dup"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Record{ID: "dup"}); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := store.Get(ctx, "missing"); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "dup", Update{Status: "weird"}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid status, got %v", err)
	}
}

func TestFileStoreReplaysJournal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Create(ctx, &Record{ID: "r1", Account: "0xaa", Description: "Send 0.1 ETH"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.UpdateStatus(ctx, "r1", Update{Status: StatusSuccess, TxHash: "0xabc"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, err := reopened.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != StatusSuccess || rec.TxHash != "0xabc" || rec.Description != "Send 0.1 ETH" {
		t.Fatalf("journal not replayed: %+v", rec)
	}
}
