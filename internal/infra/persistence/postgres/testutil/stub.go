// Package testutil provides a stub database/sql driver that understands the
// herd_records statements issued by the postgres store.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
)

// StubConn keeps herd_records rows in memory, keyed by bucket then id, and
// records executed statements.
type StubConn struct {
	Execs      []string
	State      map[string]map[string][]byte
	Upserts    int
	Deletes    int
	FailExec   bool
	FailBegin  bool
	FailCommit bool
	FailPing   bool
}

var stubSeq atomic.Int64

// NewStubDB registers a sql.DB backed by an in-memory stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{State: make(map[string]map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// Prepare implements driver.Conn.
func (c *StubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

// Put stores a row as if an earlier process had written it.
func (c *StubConn) Put(bucket, id string, payload []byte) {
	if c.State[bucket] == nil {
		c.State[bucket] = make(map[string][]byte)
	}
	c.State[bucket][id] = append([]byte(nil), payload...)
}

// ExecContext implements driver.ExecerContext. Upserts and deletes on
// herd_records change the rows; every other statement is only recorded.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.Execs = append(c.Execs, query)
	if c.FailExec {
		return nil, fmt.Errorf("exec fail")
	}
	stmt := strings.ToUpper(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(stmt, "INSERT INTO HERD_RECORDS"):
		if len(args) != 3 {
			return nil, fmt.Errorf("expected bucket, id and payload args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		id, _ := args[1].Value.(string)
		payload, _ := args[2].Value.([]byte)
		c.Put(bucket, id, payload)
		c.Upserts++
	case strings.HasPrefix(stmt, "DELETE FROM HERD_RECORDS"):
		if len(args) != 2 {
			return nil, fmt.Errorf("expected bucket and id args, got %d", len(args))
		}
		bucket, _ := args[0].Value.(string)
		id, _ := args[1].Value.(string)
		delete(c.State[bucket], id)
		c.Deletes++
	default:
		return driver.RowsAffected(0), nil
	}
	return driver.RowsAffected(1), nil
}

// QueryContext implements driver.QueryerContext for the herd_records select.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(strings.ToLower(query), "from herd_records") {
		return nil, fmt.Errorf("unsupported query: %s", query)
	}
	rows := &stubRows{}
	buckets := make([]string, 0, len(c.State))
	for bucket := range c.State {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)
	for _, bucket := range buckets {
		ids := make([]string, 0, len(c.State[bucket]))
		for id := range c.State[bucket] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			rows.rows = append(rows.rows, []driver.Value{bucket, id, c.State[bucket][id]})
		}
	}
	return rows, nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}

func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return []string{"bucket", "id", "payload"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
