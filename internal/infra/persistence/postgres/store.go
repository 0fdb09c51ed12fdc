// Package postgres keeps the herd state in Postgres. Transactions run against
// the in-memory store; after each commit the records that changed are written
// to the herd_records table, one JSONB row per entity.
package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"herdcore/internal/infra/persistence/memory"
	"herdcore/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/herdcore?sslmode=disable"

	recordsDDL = `CREATE TABLE IF NOT EXISTS herd_records (
		bucket  TEXT NOT NULL,
		id      TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (bucket, id)
	)`
	selectRecords = `SELECT bucket, id, payload FROM herd_records`
	upsertRecord  = `INSERT INTO herd_records(bucket, id, payload) VALUES($1, $2, $3)
		ON CONFLICT (bucket, id) DO UPDATE SET payload = EXCLUDED.payload`
	deleteRecord = `DELETE FROM herd_records WHERE bucket = $1 AND id = $2`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// records holds the encoded rows of every bucket, keyed by bucket then id.
type records map[string]map[string]json.RawMessage

// Store is the memory store with Postgres durability.
type Store struct {
	*memory.Store
	db *sql.DB

	mu      sync.Mutex
	written records
}

// NewStore connects to dsn (defaultDSN when empty), creates herd_records if
// needed and loads every stored record.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, recordsDDL); err != nil {
		return nil, fmt.Errorf("create herd_records: %w", err)
	}
	stored, err := loadRecords(ctx, db)
	if err != nil {
		return nil, err
	}
	snapshot, err := stored.snapshot()
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, written: stored}, nil
}

// RunInTransaction commits fn in memory, then writes the changed records.
// A write failure is returned but does not undo the in-memory commit; the
// next successful write catches up.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	return res, s.persist(ctx)
}

// Flush writes any record not yet in Postgres.
func (s *Store) Flush(ctx context.Context) error { return s.persist(ctx) }

// DB exposes the database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func loadRecords(ctx context.Context, db *sql.DB) (records, error) {
	rows, err := db.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, fmt.Errorf("select herd_records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(records)
	for rows.Next() {
		var bucket, id string
		var payload []byte
		if err := rows.Scan(&bucket, &id, &payload); err != nil {
			return nil, fmt.Errorf("scan herd_records: %w", err)
		}
		if out[bucket] == nil {
			out[bucket] = make(map[string]json.RawMessage)
		}
		out[bucket][id] = json.RawMessage(payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate herd_records: %w", err)
	}
	return out, nil
}

// snapshot decodes the rows into the memory store's buckets. Rows of an
// unknown bucket are kept for writing but otherwise ignored.
func (r records) snapshot() (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	for name, target := range snapshot.Buckets() {
		rows := r[name]
		if len(rows) == 0 {
			continue
		}
		data, err := json.Marshal(rows)
		if err != nil {
			return memory.Snapshot{}, fmt.Errorf("collect %s: %w", name, err)
		}
		if err := json.Unmarshal(data, target); err != nil {
			return memory.Snapshot{}, fmt.Errorf("decode %s: %w", name, err)
		}
	}
	return snapshot, nil
}

// encode splits every bucket of snapshot into per-entity rows.
func encode(snapshot memory.Snapshot) (records, error) {
	out := make(records)
	for name, bucket := range snapshot.Buckets() {
		data, err := json.Marshal(bucket)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		rows := make(map[string]json.RawMessage)
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("split %s: %w", name, err)
		}
		out[name] = rows
	}
	return out, nil
}

type rowKey struct{ bucket, id string }

// diff lists the rows of next that differ from prev and the rows of prev
// that next no longer has, both in bucket then id order.
func diff(prev, next records) (upserts, deletes []rowKey) {
	for bucket, rows := range next {
		for id, payload := range rows {
			if old, ok := prev[bucket][id]; !ok || !bytes.Equal(old, payload) {
				upserts = append(upserts, rowKey{bucket, id})
			}
		}
	}
	for bucket, rows := range prev {
		if _, known := next[bucket]; !known {
			continue
		}
		for id := range rows {
			if _, ok := next[bucket][id]; !ok {
				deletes = append(deletes, rowKey{bucket, id})
			}
		}
	}
	byKey := func(keys []rowKey) func(i, j int) bool {
		return func(i, j int) bool {
			if keys[i].bucket != keys[j].bucket {
				return keys[i].bucket < keys[j].bucket
			}
			return keys[i].id < keys[j].id
		}
	}
	sort.Slice(upserts, byKey(upserts))
	sort.Slice(deletes, byKey(deletes))
	return upserts, deletes
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := encode(s.ExportState())
	if err != nil {
		return err
	}
	upserts, deletes := diff(s.written, next)
	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, k := range upserts {
		if _, err := tx.ExecContext(ctx, upsertRecord, k.bucket, k.id, []byte(next[k.bucket][k.id])); err != nil {
			return fmt.Errorf("upsert %s %s: %w", k.bucket, k.id, err)
		}
	}
	for _, k := range deletes {
		if _, err := tx.ExecContext(ctx, deleteRecord, k.bucket, k.id); err != nil {
			return fmt.Errorf("delete %s %s: %w", k.bucket, k.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	for bucket, rows := range s.written {
		if _, known := next[bucket]; !known {
			next[bucket] = rows
		}
	}
	s.written = next
	return nil
}

// OverrideSQLOpen swaps the sql.Open used by NewStore and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
