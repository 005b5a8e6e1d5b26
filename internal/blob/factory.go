package blob

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Environment variables read by OptionsFromEnv.
const (
	EnvDriver = "GROWTHCORE_BLOB_DRIVER"
	EnvFSRoot = "GROWTHCORE_BLOB_FS_ROOT"
)

// Options selects and configures a backend.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// OptionsFromEnv reads GROWTHCORE_BLOB_DRIVER (fs|s3|memory, default fs),
// GROWTHCORE_BLOB_FS_ROOT and the S3 variables documented in the s3 package.
func OptionsFromEnv() Options {
	opts := Options{
		Driver: Driver(strings.ToLower(os.Getenv(EnvDriver))),
		FSRoot: os.Getenv(EnvFSRoot),
	}
	if opts.Driver == DriverS3 {
		if cfg, err := S3ConfigFromEnv(); err == nil {
			opts.S3 = cfg
		}
	}
	return opts
}

// Open constructs the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", opts.Driver)
	}
}

// OpenFromEnv is Open(ctx, OptionsFromEnv()).
func OpenFromEnv(ctx context.Context) (Store, error) {
	return Open(ctx, OptionsFromEnv())
}
