package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	xerrors "ChatWallet/internal/errors"
	"ChatWallet/internal/history"
)

const recordColumns = `id, conversation_id, account, chain, chain_id, kind, description, amount, token, recipient,
    tx_hash, approval_hash, status, error_code, detail, created_at, updated_at`

// HistoryStore persists the transaction log in MySQL.
type HistoryStore struct {
	db  *sql.DB
	now func() int64
}

// NewHistoryStore connects, migrates and returns the store.
func NewHistoryStore(ctx context.Context, cfg Config) (*HistoryStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "migrate MySQL schema")
	}
	return newHistoryStore(db), nil
}

func unixNow() int64 { return time.Now().Unix() }

func newHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db, now: unixNow}
}

func (s *HistoryStore) Create(ctx context.Context, rec *history.Record) error {
	if rec == nil || strings.TrimSpace(rec.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "record id is required")
	}
	if rec.Status == "" {
		rec.Status = history.StatusPending
	}
	now := s.now()
	if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO wallet_transactions (`+recordColumns+`)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConversationID, rec.Account, rec.Chain, rec.ChainID, rec.Kind, rec.Description,
		rec.Amount, rec.Token, rec.Recipient, rec.TxHash, rec.ApprovalHash, string(rec.Status),
		rec.ErrorCode, rec.Detail, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return history.ErrRecordConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "insert transaction record")
	}
	return nil
}

func (s *HistoryStore) Get(ctx context.Context, id string) (*history.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM wallet_transactions WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrRecordNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "query transaction record")
	}
	return rec, nil
}

func (s *HistoryStore) UpdateStatus(ctx context.Context, id string, update history.Update) error {
	if update.Status != "" && !history.IsValidStatus(update.Status) {
		return xerrors.New(xerrors.CodeInvalidArgument, "unknown record status "+string(update.Status))
	}
	res, err := s.db.ExecContext(ctx, `UPDATE wallet_transactions SET
    status = COALESCE(NULLIF(?, ''), status),
    tx_hash = COALESCE(NULLIF(?, ''), tx_hash),
    approval_hash = COALESCE(NULLIF(?, ''), approval_hash),
    error_code = COALESCE(NULLIF(?, ''), error_code),
    detail = COALESCE(NULLIF(?, ''), detail),
    updated_at = ?
    WHERE id = ?`,
		string(update.Status), update.TxHash, update.ApprovalHash, update.ErrorCode, update.Detail, s.now(), id,
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "update transaction record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return history.ErrRecordNotFound
	}
	return nil
}

func (s *HistoryStore) List(ctx context.Context, opts ...history.ListOption) ([]*history.Record, error) {
	options := history.BuildListOptions(opts)
	where, args := whereClause(options)
	order := "DESC"
	if options.Order == history.SortByCreatedAsc {
		order = "ASC"
	}
	query := `SELECT ` + recordColumns + ` FROM wallet_transactions` + where +
		` ORDER BY created_at ` + order + `, id ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, options.Limit, options.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "list transaction records")
	}
	defer rows.Close()

	records := []*history.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "scan transaction record")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "iterate transaction records")
	}
	return records, nil
}

func (s *HistoryStore) Stats(ctx context.Context, opts ...history.ListOption) (history.Stats, error) {
	options := history.BuildListOptions(opts)
	where, args := whereClause(options)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*), MIN(updated_at), MAX(updated_at)
    FROM wallet_transactions`+where+` GROUP BY status`, args...)
	if err != nil {
		return history.Stats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "aggregate transaction records")
	}
	defer rows.Close()

	var stats history.Stats
	for rows.Next() {
		var (
			status         string
			count          int
			oldest, newest int64
		)
		if err := rows.Scan(&status, &count, &oldest, &newest); err != nil {
			return history.Stats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "scan transaction stats")
		}
		stats.Total += count
		switch history.Status(status) {
		case history.StatusPending:
			stats.Pending += count
		case history.StatusSuccess:
			stats.Success += count
		case history.StatusFailed:
			stats.Failed += count
		case history.StatusTimedOut:
			stats.TimedOut += count
		}
		if newest > stats.NewestUpdatedAt {
			stats.NewestUpdatedAt = newest
		}
		if stats.OldestUpdatedAt == 0 || (oldest != 0 && oldest < stats.OldestUpdatedAt) {
			stats.OldestUpdatedAt = oldest
		}
	}
	return stats, rows.Err()
}

// Close releases the connection pool.
func (s *HistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func whereClause(opts history.ListOptions) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if opts.Account != "" {
		clauses = append(clauses, "LOWER(account) = ?")
		args = append(args, opts.Account)
	}
	if opts.Chain != "" {
		clauses = append(clauses, "chain = ?")
		args = append(args, opts.Chain)
	}
	if len(opts.Statuses) > 0 {
		marks := make([]string, len(opts.Statuses))
		for i, status := range opts.Statuses {
			marks[i] = "?"
			args = append(args, string(status))
		}
		clauses = append(clauses, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*history.Record, error) {
	var (
		rec    history.Record
		status string
	)
	if err := row.Scan(&rec.ID, &rec.ConversationID, &rec.Account, &rec.Chain, &rec.ChainID, &rec.Kind,
		&rec.Description, &rec.Amount, &rec.Token, &rec.Recipient, &rec.TxHash, &rec.ApprovalHash,
		&status, &rec.ErrorCode, &rec.Detail, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = history.Status(status)
	return &rec, nil
}

var _ history.Store = (*HistoryStore)(nil)
