// Package postgres persists workspace snapshots to a Postgres state table using
// one JSONB row per entity collection.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"growthcore/internal/infra/persistence/memory"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	defaultDriver = "pgx"
	// DefaultDSN is used when no DSN is configured.
	DefaultDSN = "postgres://localhost/growthcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Persister loads and saves memory.Snapshot values to Postgres. Rows of a
// named project are keyed "<project>/<bucket>".
type Persister struct {
	db      *sql.DB
	mu      sync.Mutex
	project string
}

// Option configures a Persister.
type Option func(*Persister)

// WithProject scopes Load and Save to one portfolio project.
func WithProject(id string) Option {
	return func(p *Persister) { p.project = id }
}

// NewPersister opens a Postgres connection using dsn (falls back to DefaultDSN)
// and ensures the state table exists.
func NewPersister(ctx context.Context, dsn string, opts ...Option) (*Persister, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureStateTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	p := &Persister{db: db}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func ensureStateTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure state table: %w", err)
	}
	return nil
}

// Load reads the bucket rows of the scoped project into a snapshot.
func (p *Persister) Load(ctx context.Context) (memory.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var snapshot memory.Snapshot
	err := p.eachRow(ctx, func(key string, payload []byte) error {
		project, bucket := memory.SplitProjectBucket(key)
		if project != p.project {
			return nil
		}
		return snapshot.DecodeBucket(bucket, payload)
	})
	if err != nil {
		return memory.Snapshot{}, err
	}
	return snapshot, nil
}

// LoadPortfolio reads the shared project registry and roster.
func (p *Persister) LoadPortfolio(ctx context.Context) (memory.Portfolio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var payload []byte
	err := p.eachRow(ctx, func(key string, data []byte) error {
		if key == memory.BucketPortfolio {
			payload = data
		}
		return nil
	})
	if err != nil {
		return memory.Portfolio{}, err
	}
	return memory.DecodePortfolio(payload)
}

// SavePortfolio replaces the shared project registry and roster.
func (p *Persister) SavePortfolio(ctx context.Context, portfolio memory.Portfolio) error {
	data, err := memory.EncodePortfolio(portfolio)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.db.ExecContext(ctx, upsertState, memory.BucketPortfolio, data); err != nil {
		return fmt.Errorf("upsert %s: %w", memory.BucketPortfolio, err)
	}
	return nil
}

func (p *Persister) eachRow(ctx context.Context, fn func(key string, payload []byte) error) error {
	rows, err := p.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		if err := fn(key, payload); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	return nil
}

const upsertState = `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`

// Save upserts every bucket within a single transaction.
func (p *Persister) Save(ctx context.Context, snapshot memory.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range memory.Buckets {
		data, err := snapshot.EncodeBucket(bucket)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertState, memory.ProjectBucket(p.project, bucket), data); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close releases the connection pool.
func (p *Persister) Close() error { return p.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (p *Persister) DB() *sql.DB { return p.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
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
