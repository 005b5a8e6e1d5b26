package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"growthcore/internal/blob"
	"growthcore/internal/infra/persistence/blobsnap"
	"growthcore/internal/infra/persistence/postgres"
	"growthcore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a snapshot persistence backend.
type StorageDriver string

// Storage drivers accepted by OpenPersister.
const (
	StorageMemory   StorageDriver = "memory"   // no persistence (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageBlob     StorageDriver = "blob"     // JSON document in the blob store
)

// Environment variables read by StorageOptionsFromEnv.
const (
	EnvStorageDriver = "GROWTHCORE_STORAGE_DRIVER"
	EnvSQLitePath    = "GROWTHCORE_SQLITE_PATH"
	EnvPostgresDSN   = "GROWTHCORE_POSTGRES_DSN"
	EnvBlobPrefix    = "GROWTHCORE_SNAPSHOT_PREFIX"
	EnvBlobHistory   = "GROWTHCORE_SNAPSHOT_HISTORY"
	EnvProject       = "GROWTHCORE_PROJECT"
)

// StorageOptions selects and configures a persister.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
	// Blob is required by the blob driver.
	Blob        blob.Store
	BlobPrefix  string
	BlobHistory int
	// Project scopes the workspace to one portfolio project; "" is the
	// default workspace.
	Project string
}

// StorageOptionsFromEnv reads the GROWTHCORE_* storage variables. The driver
// defaults to sqlite.
//
//	GROWTHCORE_STORAGE_DRIVER: memory|sqlite|postgres|blob (default sqlite)
//	GROWTHCORE_SQLITE_PATH: path to sqlite file (default ./growthcore.db)
//	GROWTHCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	GROWTHCORE_SNAPSHOT_PREFIX / GROWTHCORE_SNAPSHOT_HISTORY: blob driver layout
//	GROWTHCORE_PROJECT: portfolio project to open
func StorageOptionsFromEnv() StorageOptions {
	opts := StorageOptions{
		Driver:      StorageDriver(strings.ToLower(os.Getenv(EnvStorageDriver))),
		SQLitePath:  os.Getenv(EnvSQLitePath),
		PostgresDSN: os.Getenv(EnvPostgresDSN),
		BlobPrefix:  os.Getenv(EnvBlobPrefix),
		Project:     os.Getenv(EnvProject),
	}
	if n, err := strconv.Atoi(os.Getenv(EnvBlobHistory)); err == nil {
		opts.BlobHistory = n
	}
	return opts
}

// ClosablePersister is a Persister holding resources released by Close. Every
// backend also stores the shared portfolio.
type ClosablePersister interface {
	Persister
	PortfolioPersister
	Close() error
}

type blobPersister struct {
	*blobsnap.Persister
}

func (blobPersister) Close() error { return nil }

// OpenPersister constructs the persister named by opts.Driver. The memory
// driver returns a nil persister.
func OpenPersister(ctx context.Context, opts StorageOptions) (ClosablePersister, error) {
	driver := opts.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return nil, nil
	case StorageSQLite:
		path := opts.SQLitePath
		if path == "" {
			path = sqlite.DefaultPath
		}
		p, err := sqlite.NewPersister(path, sqlite.WithProject(opts.Project))
		if err != nil {
			return nil, err
		}
		return p, nil
	case StoragePostgres:
		dsn := opts.PostgresDSN
		if dsn == "" {
			dsn = postgres.DefaultDSN
		}
		p, err := postgres.NewPersister(ctx, dsn, postgres.WithProject(opts.Project))
		if err != nil {
			return nil, err
		}
		return p, nil
	case StorageBlob:
		if opts.Blob == nil {
			return nil, fmt.Errorf("storage driver %s: %w", driver, ErrNoBlobStore)
		}
		bopts := []blobsnap.Option{blobsnap.WithProject(opts.Project)}
		if opts.BlobPrefix != "" {
			bopts = append(bopts, blobsnap.WithPrefix(opts.BlobPrefix))
		}
		if opts.BlobHistory > 0 {
			bopts = append(bopts, blobsnap.WithHistory(opts.BlobHistory))
		}
		return blobPersister{blobsnap.New(opts.Blob, bopts...)}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
