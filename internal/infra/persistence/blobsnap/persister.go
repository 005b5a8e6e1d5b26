// Package blobsnap persists workspace snapshots as JSON documents in a blob
// store, optionally keeping a rolling archive of previous saves.
package blobsnap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"growthcore/internal/blob"
	"growthcore/internal/infra/persistence/memory"
)

// DefaultPrefix is prepended to every key written by the persister.
const DefaultPrefix = "snapshots/"

const (
	currentName      = "workspace.json"
	portfolioName    = "portfolio.json"
	historyFolder    = "history/"
	pendingFolder    = "pending/"
	portfolioPending = "portfolio-pending/"
	contentType      = "application/json"
)

// Persister stores the current snapshot under <prefix>workspace.json, or
// <prefix><project>/workspace.json when scoped to a project. The portfolio
// document always lives at <prefix>portfolio.json.
type Persister struct {
	store   blob.Store
	prefix  string
	project string
	history int
	nowFn   func() time.Time
}

// Option configures a Persister.
type Option func(*Persister)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(p *Persister) { p.prefix = prefix }
}

// WithProject scopes workspace keys to one portfolio project.
func WithProject(id string) Option {
	return func(p *Persister) { p.project = id }
}

// WithHistory keeps the n most recent saves under <prefix>history/.
func WithHistory(n int) Option {
	return func(p *Persister) {
		if n > 0 {
			p.history = n
		}
	}
}

// WithClock sets the time source used for archive keys.
func WithClock(now func() time.Time) Option {
	return func(p *Persister) {
		if now != nil {
			p.nowFn = now
		}
	}
}

// New wraps store.
func New(store blob.Store, opts ...Option) *Persister {
	p := &Persister{store: store, prefix: DefaultPrefix, nowFn: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the blob key of the current snapshot.
func (p *Persister) Key() string { return p.root() + currentName }

// PortfolioKey returns the blob key of the shared portfolio document.
func (p *Persister) PortfolioKey() string { return p.prefix + portfolioName }

func (p *Persister) root() string {
	if p.project == "" {
		return p.prefix
	}
	return p.prefix + p.project + "/"
}

// Load returns the stored snapshot, or an empty snapshot when none was saved.
func (p *Persister) Load(ctx context.Context) (memory.Snapshot, error) {
	var snapshot memory.Snapshot
	data, err := p.read(ctx, p.Key(), p.root()+pendingFolder)
	if err != nil || data == nil {
		return snapshot, err
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return memory.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snapshot, nil
}

// Save replaces the current snapshot and archives it when history is enabled.
func (p *Persister) Save(ctx context.Context, snapshot memory.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	opts := blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"objectives":  strconv.Itoa(len(snapshot.Objectives)),
			"strategies":  strconv.Itoa(len(snapshot.Strategies)),
			"experiments": strconv.Itoa(len(snapshot.Experiments)),
		},
	}
	if err := p.replace(ctx, p.Key(), p.root()+pendingFolder, data, opts); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if p.history == 0 {
		return nil
	}
	return p.archive(ctx, data, opts)
}

// LoadPortfolio reads the shared project registry and roster.
func (p *Persister) LoadPortfolio(ctx context.Context) (memory.Portfolio, error) {
	data, err := p.read(ctx, p.PortfolioKey(), p.prefix+portfolioPending)
	if err != nil {
		return memory.Portfolio{}, err
	}
	return memory.DecodePortfolio(data)
}

// SavePortfolio replaces the shared project registry and roster.
func (p *Persister) SavePortfolio(ctx context.Context, portfolio memory.Portfolio) error {
	data, err := memory.EncodePortfolio(portfolio)
	if err != nil {
		return err
	}
	if err := p.replace(ctx, p.PortfolioKey(), p.prefix+portfolioPending, data, blob.PutOptions{ContentType: contentType}); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

// replace swaps the document at key. Blob stores are create-only, so data is
// first staged under staging, then key is rewritten, then the staged copies
// are dropped. A failure at any step leaves a readable document behind.
func (p *Persister) replace(ctx context.Context, key, staging string, data []byte, opts blob.PutOptions) error {
	staged := p.stampedKey(staging)
	if _, err := p.store.Put(ctx, staged, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("stage %s: %w", key, err)
	}
	if _, err := p.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	if _, err := p.store.Put(ctx, key, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	entries, err := p.store.List(ctx, staging)
	if err != nil {
		return fmt.Errorf("list %s: %w", staging, err)
	}
	for _, e := range entries {
		if _, err := p.store.Delete(ctx, e.Key); err != nil {
			return fmt.Errorf("drop staged %s: %w", e.Key, err)
		}
	}
	return nil
}

// read returns the document at key. A staged copy left by an interrupted
// replace is newer than key and wins. A missing document yields nil.
func (p *Persister) read(ctx context.Context, key, staging string) ([]byte, error) {
	staged, err := p.store.List(ctx, staging)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", staging, err)
	}
	if len(staged) > 0 {
		key = staged[len(staged)-1].Key
	}
	_, rc, err := p.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (p *Persister) stampedKey(folder string) string {
	return fmt.Sprintf("%s%020d.json", folder, p.nowFn().UTC().UnixNano())
}

func (p *Persister) archive(ctx context.Context, data []byte, opts blob.PutOptions) error {
	key := p.stampedKey(p.root() + historyFolder)
	if _, err := p.store.Put(ctx, key, bytes.NewReader(data), opts); err != nil && !errors.Is(err, blob.ErrExists) {
		return fmt.Errorf("archive snapshot: %w", err)
	}
	entries, err := p.History(ctx)
	if err != nil {
		return err
	}
	for len(entries) > p.history {
		if _, err := p.store.Delete(ctx, entries[0].Key); err != nil {
			return fmt.Errorf("prune snapshot archive: %w", err)
		}
		entries = entries[1:]
	}
	return nil
}

// History lists archived snapshots, oldest first.
func (p *Persister) History(ctx context.Context) ([]blob.Info, error) {
	entries, err := p.store.List(ctx, p.root()+historyFolder)
	if err != nil {
		return nil, fmt.Errorf("list snapshot archive: %w", err)
	}
	return entries, nil
}
