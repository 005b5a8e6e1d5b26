// Package config loads growthctl settings from a YAML file with GROWTHCORE_*
// environment overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"growthcore/internal/blob"
	"growthcore/internal/core"
	infraS3 "growthcore/internal/infra/blob/s3"
)

// DefaultPath is read when no config path is given. A missing default file is not an error.
const DefaultPath = "growthcore.yaml"

// Environment variables read by ApplyEnv in addition to the storage and blob
// variables defined by the core and blob packages.
const (
	EnvConfigPath      = "GROWTHCORE_CONFIG"
	EnvStrictLifecycle = "GROWTHCORE_STRICT_LIFECYCLE"
	EnvLogLevel        = "GROWTHCORE_LOG_LEVEL"
	EnvLogDevelopment  = "GROWTHCORE_LOG_DEVELOPMENT"
	EnvMetrics         = "GROWTHCORE_METRICS"
	EnvTrace           = "GROWTHCORE_TRACE"
)

// Config is the full growthctl configuration.
type Config struct {
	// Project is the portfolio project to open; empty follows the portfolio's
	// active project.
	Project       string        `yaml:"project"`
	Storage       Storage       `yaml:"storage"`
	Blob          Blob          `yaml:"blob"`
	Lifecycle     Lifecycle     `yaml:"lifecycle"`
	Log           Log           `yaml:"log"`
	Observability Observability `yaml:"observability"`
}

// Storage selects the snapshot persister.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	BlobPrefix  string `yaml:"blob_prefix"`
	BlobHistory int    `yaml:"blob_history"`
}

// Blob selects the attachment store.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures the s3 blob driver.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Lifecycle controls status transition enforcement.
type Lifecycle struct {
	Strict bool `yaml:"strict"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Storage:       Storage{Driver: string(core.StorageSQLite)},
		Blob:          Blob{Driver: string(blob.DriverFilesystem)},
		Log:           Log{Level: "info"},
		Observability: Observability{Metrics: MetricsNone},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path falls back to GROWTHCORE_CONFIG, then DefaultPath; only an
// explicitly named file must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, iofs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields whose GROWTHCORE_* variable is set.
func (c *Config) ApplyEnv() error {
	setString(&c.Storage.Driver, core.EnvStorageDriver)
	setString(&c.Storage.SQLitePath, core.EnvSQLitePath)
	setString(&c.Storage.PostgresDSN, core.EnvPostgresDSN)
	setString(&c.Storage.BlobPrefix, core.EnvBlobPrefix)
	setString(&c.Blob.Driver, blob.EnvDriver)
	setString(&c.Blob.FSRoot, blob.EnvFSRoot)
	setString(&c.Blob.S3.Bucket, infraS3.EnvBucket)
	setString(&c.Blob.S3.Region, infraS3.EnvRegion)
	setString(&c.Blob.S3.Endpoint, infraS3.EnvEndpoint)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Project, core.EnvProject)
	setString(&c.Observability.Metrics, EnvMetrics)
	if v, ok := os.LookupEnv(core.EnvBlobHistory); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", core.EnvBlobHistory, err)
		}
		c.Storage.BlobHistory = n
	}
	for env, dst := range map[string]*bool{
		infraS3.EnvPathStyle: &c.Blob.S3.PathStyle,
		EnvStrictLifecycle:   &c.Lifecycle.Strict,
		EnvLogDevelopment:    &c.Log.Development,
		EnvTrace:             &c.Observability.Trace,
	} {
		if err := setBool(dst, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks driver names, the metrics recorder and the log level.
func (c Config) Validate() error {
	switch core.StorageDriver(strings.ToLower(c.Storage.Driver)) {
	case "", core.StorageMemory, core.StorageSQLite, core.StoragePostgres, core.StorageBlob:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch blob.Driver(strings.ToLower(c.Blob.Driver)) {
	case "", blob.DriverFilesystem, blob.DriverS3, blob.DriverMemory:
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	switch strings.ToLower(c.Observability.Metrics) {
	case "", MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		return fmt.Errorf("unknown metrics recorder %q", c.Observability.Metrics)
	}
	if c.Storage.BlobHistory < 0 {
		return fmt.Errorf("storage.blob_history must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() blob.Options {
	return blob.Options{
		Driver: blob.Driver(strings.ToLower(c.Blob.Driver)),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3.Bucket,
			Region:    c.Blob.S3.Region,
			Endpoint:  c.Blob.S3.Endpoint,
			PathStyle: c.Blob.S3.PathStyle,
		},
	}
}

// StorageOptions converts the storage section for core.OpenPersister. store
// backs the blob driver.
func (c Config) StorageOptions(store blob.Store) core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(strings.ToLower(c.Storage.Driver)),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		Blob:        store,
		BlobPrefix:  c.Storage.BlobPrefix,
		BlobHistory: c.Storage.BlobHistory,
		Project:     c.Project,
	}
}

// OpenBlobStore opens the configured attachment store.
func (c Config) OpenBlobStore(ctx context.Context) (blob.Store, error) {
	return blob.Open(ctx, c.BlobOptions())
}

// NewLogger builds a zap logger for the log section. Output goes to stderr.
func (c Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func setString(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok && v != "" {
		*dst = v
	}
}

func setBool(dst *bool, env string) error {
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", env, err)
	}
	*dst = b
	return nil
}
