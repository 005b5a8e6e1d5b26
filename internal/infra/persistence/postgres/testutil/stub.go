// Package testutil provides a fake database/sql driver emulating the postgres
// state table: one payload per bucket, upserted by key.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"
)

var driverSeq atomic.Int64

// StubConn is the single connection behind a stub DB. Exported fields are
// inspected and toggled directly by tests.
type StubConn struct {
	Statements []string
	Buckets    map[string][]byte

	FailPing   bool
	FailBegin  bool
	FailCommit bool
	FailQuery  bool
	// FailBuckets makes upserts of the named buckets fail.
	FailBuckets map[string]bool
	// RowsErr is returned by the result set after the last row.
	RowsErr error

	Commits   int
	Rollbacks int
}

// NewStubDB registers a uniquely named driver and opens a sql.DB on it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Buckets: make(map[string][]byte)}
	name := fmt.Sprintf("pgstub-%d", driverSeq.Add(1))
	sql.Register(name, stubDriver{conn: conn})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare is unsupported; the persister only uses the context-aware fast paths.
func (c *StubConn) Prepare(query string) (driver.Stmt, error) {
	return nil, fmt.Errorf("stub: prepare unsupported: %s", query)
}

// Close is a no-op.
func (c *StubConn) Close() error { return nil }

// Begin starts a transaction.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// BeginTx starts a transaction unless FailBegin is set.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin failed")
	}
	return stubTx{conn: c}, nil
}

// Ping fails when FailPing is set.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stub: ping failed")
	}
	return nil
}

// ExecContext records the statement. Upserts into the state table store
// args[1] under the bucket in args[0]; other statements are accepted as is.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Statements = append(c.Statements, query)
	if !isStateUpsert(query) {
		return driver.RowsAffected(0), nil
	}
	if len(args) != 2 {
		return nil, fmt.Errorf("stub: upsert expects 2 args, got %d", len(args))
	}
	bucket, ok := args[0].Value.(string)
	if !ok {
		return nil, fmt.Errorf("stub: bucket must be a string, got %T", args[0].Value)
	}
	if c.FailBuckets[bucket] {
		return nil, fmt.Errorf("stub: upsert %s failed", bucket)
	}
	payload, err := asBytes(args[1].Value)
	if err != nil {
		return nil, err
	}
	if c.Buckets == nil {
		c.Buckets = make(map[string][]byte)
	}
	c.Buckets[bucket] = payload
	return driver.RowsAffected(1), nil
}

// QueryContext answers "SELECT bucket, payload FROM state" in bucket order.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.Statements = append(c.Statements, query)
	if c.FailQuery {
		return nil, errors.New("stub: query failed")
	}
	if !strings.HasPrefix(normalize(query), "select bucket, payload from state") {
		return nil, fmt.Errorf("stub: unsupported query: %s", query)
	}
	keys := make([]string, 0, len(c.Buckets))
	for k := range c.Buckets {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	rows := &stateRows{err: c.RowsErr}
	for _, k := range keys {
		rows.values = append(rows.values, []driver.Value{k, slices.Clone(c.Buckets[k])})
	}
	return rows, nil
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	if t.conn.FailCommit {
		return errors.New("stub: commit failed")
	}
	t.conn.Commits++
	return nil
}

func (t stubTx) Rollback() error {
	t.conn.Rollbacks++
	return nil
}

type stateRows struct {
	values [][]driver.Value
	next   int
	err    error
}

func (r *stateRows) Columns() []string { return []string{"bucket", "payload"} }

func (r *stateRows) Close() error { return nil }

func (r *stateRows) Next(dest []driver.Value) error {
	if r.next == len(r.values) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

func isStateUpsert(query string) bool {
	return strings.HasPrefix(normalize(query), "insert into state")
}

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func asBytes(v driver.Value) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return slices.Clone(p), nil
	case string:
		return []byte(p), nil
	}
	return nil, fmt.Errorf("stub: payload must be bytes, got %T", v)
}
