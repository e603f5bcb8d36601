package mysql

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"testing/fstest"

	gomysql "github.com/go-sql-driver/mysql"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/history"
)

var recordColumnNames = []string{
	"id", "conversation_id", "account", "chain", "chain_id", "kind", "description", "amount", "token", "recipient",
	"tx_hash", "approval_hash", "status", "error_code", "detail", "created_at", "updated_at",
}

const insertSQL = `INSERT INTO wallet_transactions (` + recordColumns + `)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func TestHistoryStoreCreate(t *testing.T) {
	t.Parallel()

	db, _ := newScriptDB(t,
		execOp(insertSQL, scriptResult{rowsAffected: 1},
			"r1", "c1", "0xAA", "ethereum", int64(1), "TRANSFER_NATIVE", "Send 0.1 ETH", "0.1", "ETH", "0x11",
			"", "", "pending", "", "", int64(100), int64(100)),
		execErr(insertSQL, &gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"}),
	)
	store := newHistoryStore(db)
	store.now = func() int64 { return 100 }

	rec := &history.Record{ID: "r1", ConversationID: "c1", Account: "0xAA", Chain: "ethereum", ChainID: 1,
		Kind: "TRANSFER_NATIVE", Description: "Send 0.1 ETH", Amount: "0.1", Token: "ETH", Recipient: "0x11"}
	if err := store.Create(context.Background(), rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Status != history.StatusPending || rec.CreatedAt != 100 {
		t.Fatalf("defaults not applied: %+v", rec)
	}

	dup := &history.Record{ID: "r1", Account: "0xAA", Chain: "ethereum", ChainID: 1, CreatedAt: 100}
	if err := store.Create(context.Background(), dup); xerrors.CodeOf(err) != xerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestHistoryStoreGet(t *testing.T) {
	t.Parallel()

	row := []driver.Value{"r1", "", "0xAA", "ethereum", int64(1), "SWAP_TOKENS", "Swap 100 USDC for DAI", "100", "USDC", "",
		"0xbb", "0xaa", "success", "", "", int64(10), int64(20)}
	db, _ := newScriptDB(t,
		queryOp(`SELECT `+recordColumns+` FROM wallet_transactions WHERE id = ?`,
			scriptRows{columns: recordColumnNames, values: [][]driver.Value{row}}, "r1"),
		queryOp(`SELECT `+recordColumns+` FROM wallet_transactions WHERE id = ?`,
			scriptRows{columns: recordColumnNames}, "missing"),
	)
	store := newHistoryStore(db)

	rec, err := store.Get(context.Background(), "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != history.StatusSuccess || rec.ApprovalHash != "0xaa" || rec.ChainID != 1 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := store.Get(context.Background(), "missing"); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHistoryStoreUpdateStatus(t *testing.T) {
	t.Parallel()

	const updateSQL = `UPDATE wallet_transactions SET
    status = COALESCE(NULLIF(?, ''), status),
    tx_hash = COALESCE(NULLIF(?, ''), tx_hash),
    approval_hash = COALESCE(NULLIF(?, ''), approval_hash),
    error_code = COALESCE(NULLIF(?, ''), error_code),
    detail = COALESCE(NULLIF(?, ''), detail),
    updated_at = ?
    WHERE id = ?`
	db, _ := newScriptDB(t,
		execOp(updateSQL, scriptResult{rowsAffected: 1}, "failed", "0xbb", "", "TX_REVERTED", "Transaction reverted on-chain", int64(50), "r1"),
		execOp(updateSQL, scriptResult{rowsAffected: 0}),
	)
	store := newHistoryStore(db)
	store.now = func() int64 { return 50 }

	update := history.Update{Status: history.StatusFailed, TxHash: "0xbb", ErrorCode: "TX_REVERTED", Detail: "Transaction reverted on-chain"}
	if err := store.UpdateStatus(context.Background(), "r1", update); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.UpdateStatus(context.Background(), "nope", history.Update{Status: history.StatusSuccess}); xerrors.CodeOf(err) != xerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.UpdateStatus(context.Background(), "r1", history.Update{Status: "bogus"}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestHistoryStoreListFilters(t *testing.T) {
	t.Parallel()

	rows := scriptRows{columns: recordColumnNames, values: [][]driver.Value{
		{"r2", "", "0xaa", "polygon", int64(137), "SWAP_TOKENS", "d2", "", "", "", "", "", "failed", "TX_REVERTED", "", int64(20), int64(20)},
	}}
	db, _ := newScriptDB(t,
		queryOp(`SELECT `+recordColumns+` FROM wallet_transactions WHERE LOWER(account) = ? AND status IN (?, ?)
    ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, rows,
			"0xaa", "failed", "timed_out", int64(10), int64(0)),
	)
	store := newHistoryStore(db)

	list, err := store.List(context.Background(),
		history.WithAccount("0xAA"),
		history.WithStatuses(history.StatusFailed, history.StatusTimedOut),
		history.WithLimit(10),
	)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "r2" || list[0].Status != history.StatusFailed {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestHistoryStoreStats(t *testing.T) {
	t.Parallel()

	db, _ := newScriptDB(t,
		queryOp(`SELECT status, COUNT(*), MIN(updated_at), MAX(updated_at) FROM wallet_transactions GROUP BY status`,
			scriptRows{
				columns: []string{"status", "count", "min", "max"},
				values: [][]driver.Value{
					{"success", int64(3), int64(10), int64(40)},
					{"pending", int64(1), int64(5), int64(5)},
				},
			}),
	)
	stats, err := newHistoryStore(db).Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 4 || stats.Success != 3 || stats.Pending != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.OldestUpdatedAt != 5 || stats.NewestUpdatedAt != 40 {
		t.Fatalf("unexpected range %+v", stats)
	}
}

func TestRunMigrationsAppliesPending(t *testing.T) {
	orig := embeddedMigrations
	embeddedMigrations = fstest.MapFS{
		"0001_create.sql": {Data: []byte("CREATE TABLE a (id INT);")},
		"0002_index.sql":  {Data: []byte("CREATE INDEX idx_a ON a (id);\nALTER TABLE a ADD COLUMN b INT;")},
		"README.md":       {Data: []byte("ignored")},
	}
	t.Cleanup(func() { embeddedMigrations = orig })

	db, _ := newScriptDB(t,
		execOp(`CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`, scriptResult{}),
		queryOp(`SELECT version FROM schema_migrations`, scriptRows{columns: []string{"version"}, values: [][]driver.Value{{"0001"}}}),
		beginOp(),
		execOp(`CREATE INDEX idx_a ON a (id)`, scriptResult{}),
		execOp(`ALTER TABLE a ADD COLUMN b INT`, scriptResult{}),
		execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, scriptResult{rowsAffected: 1}),
		commitOp(),
	)
	if err := runMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
}

func TestEmbeddedMigrationCreatesLogTable(t *testing.T) {
	files, err := loadMigrationFiles(embeddedMigrations)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(files) == 0 || files[0].version != "0001" {
		t.Fatalf("unexpected migrations %+v", files)
	}
	if got := files[0].statements[0]; !containsAll(got, "wallet_transactions", "approval_hash", "tx_hash") {
		t.Fatalf("unexpected schema %q", got)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
