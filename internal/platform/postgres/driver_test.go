package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// capturedCall records one statement sent through the stub driver.
// Transaction control is recorded as bare BEGIN/COMMIT/ROLLBACK markers.
type capturedCall struct {
	query string
	args  []driver.Value
}

// stubConn is a minimal database/sql driver connection that records every
// statement and serves canned rows, so the exact queries and bind arguments
// the stores produce can be asserted on without a live database.
type stubConn struct {
	mu    sync.Mutex
	calls []capturedCall

	// queryRows serves rows for QueryContext calls. Nil serves no rows.
	queryRows func(query string, args []driver.NamedValue) (*stubRows, error)

	// execErr injects a failure for ExecContext calls.
	execErr func(query string, args []driver.NamedValue) error
}

func (c *stubConn) record(query string, args []driver.NamedValue) {
	values := make([]driver.Value, len(args))
	for i, arg := range args {
		values[i] = arg.Value
	}

	c.mu.Lock()
	c.calls = append(c.calls, capturedCall{query: query, args: values})
	c.mu.Unlock()
}

func (c *stubConn) captured() []capturedCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedCall(nil), c.calls...)
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements not supported")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	c.record("BEGIN", nil)
	return &stubTx{conn: c}, nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.record(query, args)
	if c.execErr != nil {
		if err := c.execErr(query, args); err != nil {
			return nil, err
		}
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.record(query, args)
	if c.queryRows == nil {
		return &stubRows{}, nil
	}
	return c.queryRows(query, args)
}

type stubTx struct{ conn *stubConn }

func (t *stubTx) Commit() error {
	t.conn.record("COMMIT", nil)
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.record("ROLLBACK", nil)
	return nil
}

type stubRows struct {
	columns []string
	rows    [][]driver.Value
	pos     int
}

func (r *stubRows) Columns() []string { return r.columns }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

type stubConnector struct{ conn *stubConn }

func (c stubConnector) Connect(context.Context) (driver.Conn, error) { return c.conn, nil }
func (c stubConnector) Driver() driver.Driver                        { return stubDriver{} }

type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) {
	return nil, errors.New("open via sql.OpenDB")
}

func newStubDB(conn *stubConn) *sql.DB {
	return sql.OpenDB(stubConnector{conn: conn})
}
