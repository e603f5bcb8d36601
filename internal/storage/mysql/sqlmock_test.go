package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
)

// scriptDriver replays an expected sequence of statements.
type scriptDriver struct {
	ops []scriptOp
	idx int32
}

type opKind int

const (
	opExec opKind = iota
	opQuery
	opBegin
	opCommit
	opRollback
)

type scriptOp struct {
	kind   opKind
	query  string
	args   []driver.Value
	result scriptResult
	rows   scriptRows
	err    error
}

type scriptResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r scriptResult) LastInsertId() (int64, error) { return r.lastInsertID, nil }
func (r scriptResult) RowsAffected() (int64, error) { return r.rowsAffected, nil }

type scriptRows struct {
	columns []string
	values  [][]driver.Value
}

var driverSeq atomic.Int32

func newScriptDB(t *testing.T, ops ...scriptOp) (*sql.DB, *scriptDriver) {
	t.Helper()
	drv := &scriptDriver{ops: ops}
	name := fmt.Sprintf("script-mysql-%d", driverSeq.Add(1))
	sql.Register(name, drv)

	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open script db: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() {
		db.Close()
		drv.assertConsumed(t)
	})
	return db, drv
}

func execOp(query string, result scriptResult, args ...driver.Value) scriptOp {
	return scriptOp{kind: opExec, query: query, result: result, args: args}
}

func execErr(query string, err error) scriptOp {
	return scriptOp{kind: opExec, query: query, err: err}
}

func queryOp(query string, rows scriptRows, args ...driver.Value) scriptOp {
	return scriptOp{kind: opQuery, query: query, rows: rows, args: args}
}

func beginOp() scriptOp  { return scriptOp{kind: opBegin} }
func commitOp() scriptOp { return scriptOp{kind: opCommit} }

func (d *scriptDriver) assertConsumed(t *testing.T) {
	t.Helper()
	if n := int(atomic.LoadInt32(&d.idx)); n != len(d.ops) {
		t.Errorf("not all statements consumed: %d/%d", n, len(d.ops))
	}
}

func (d *scriptDriver) Open(string) (driver.Conn, error) {
	return &scriptConn{driver: d}, nil
}

func (d *scriptDriver) next(kind opKind, query string, args []driver.NamedValue) (*scriptOp, error) {
	idx := int(atomic.LoadInt32(&d.idx))
	if idx >= len(d.ops) {
		return nil, fmt.Errorf("unexpected statement %q", query)
	}
	op := &d.ops[idx]
	if op.kind != kind {
		return nil, fmt.Errorf("expected statement kind %v, got %v", op.kind, kind)
	}
	atomic.AddInt32(&d.idx, 1)
	if op.query != "" && normalizeSQL(op.query) != normalizeSQL(query) {
		return nil, fmt.Errorf("unexpected query.\nwant %q\n got %q", normalizeSQL(op.query), normalizeSQL(query))
	}
	if op.args != nil {
		got := make([]driver.Value, len(args))
		for i, arg := range args {
			got[i] = arg.Value
		}
		if !reflect.DeepEqual(got, op.args) {
			return nil, fmt.Errorf("unexpected args.\nwant %v\n got %v", op.args, got)
		}
	}
	return op, nil
}

type scriptConn struct {
	driver *scriptDriver
}

func (c *scriptConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("prepare not supported: %s", query)
}

func (c *scriptConn) Close() error { return nil }

func (c *scriptConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *scriptConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	op, err := c.driver.next(opBegin, "", nil)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &scriptTx{driver: c.driver}, nil
}

func (c *scriptConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	op, err := c.driver.next(opExec, query, args)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return op.result, nil
}

func (c *scriptConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	op, err := c.driver.next(opQuery, query, args)
	if err != nil {
		return nil, err
	}
	if op.err != nil {
		return nil, op.err
	}
	return &scriptRowsCursor{columns: op.rows.columns, values: op.rows.values}, nil
}

func (c *scriptConn) Ping(context.Context) error { return nil }

type scriptTx struct {
	driver *scriptDriver
}

func (t *scriptTx) Commit() error {
	op, err := t.driver.next(opCommit, "", nil)
	if err != nil {
		return err
	}
	return op.err
}

func (t *scriptTx) Rollback() error {
	op, err := t.driver.next(opRollback, "", nil)
	if err != nil {
		return err
	}
	return op.err
}

type scriptRowsCursor struct {
	columns []string
	values  [][]driver.Value
	idx     int
}

func (r *scriptRowsCursor) Columns() []string { return r.columns }
func (r *scriptRowsCursor) Close() error      { return nil }

func (r *scriptRowsCursor) Next(dest []driver.Value) error {
	if r.idx >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.idx])
	r.idx++
	return nil
}

func normalizeSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
