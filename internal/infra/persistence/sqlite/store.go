// Package sqlite persists workspace snapshots to a single SQLite table as JSON
// buckets, one row per entity collection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"growthcore/internal/infra/persistence/memory"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "growthcore.db"

// Persister loads and saves memory.Snapshot values to an SQLite file. Rows of
// a named project are stored as "<project>/<bucket>".
type Persister struct {
	db      *sql.DB
	mu      sync.Mutex
	path    string
	project string
}

// Option configures a Persister.
type Option func(*Persister)

// WithProject scopes Load and Save to one portfolio project.
func WithProject(id string) Option {
	return func(p *Persister) { p.project = id }
}

// NewPersister opens (creating if needed) the database at path.
func NewPersister(path string, opts ...Option) (*Persister, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}
	p := &Persister{db: db, path: path}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Load reads the stored snapshot. An empty database yields an empty snapshot.
func (p *Persister) Load(ctx context.Context) (memory.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows, err := p.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan: %w", err)
		}
		project, name := memory.SplitProjectBucket(bucket)
		if project != p.project {
			continue
		}
		if err := snapshot.DecodeBucket(name, payload); err != nil {
			return memory.Snapshot{}, err
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

// Save writes every bucket of the snapshot inside one SQL transaction.
func (p *Persister) Save(ctx context.Context, snapshot memory.Snapshot) (retErr error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
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
	return nil
}

const upsertState = `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`

// LoadPortfolio reads the shared project registry and roster.
func (p *Persister) LoadPortfolio(ctx context.Context) (memory.Portfolio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = ?`, memory.BucketPortfolio).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Portfolio{}, nil
	}
	if err != nil {
		return memory.Portfolio{}, fmt.Errorf("select portfolio: %w", err)
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

// Project returns the project the persister is scoped to.
func (p *Persister) Project() string { return p.project }

// Close releases the database handle.
func (p *Persister) Close() error { return p.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (p *Persister) DB() *sql.DB { return p.db }

// Path returns the configured database path.
func (p *Persister) Path() string { return p.path }
