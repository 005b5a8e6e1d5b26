package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"growthcore/internal/blob"
	"growthcore/internal/core"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "growthcore.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: blob
  blob_prefix: workspace/
  blob_history: 3
blob:
  driver: s3
  s3:
    bucket: proofs
    region: eu-central-1
    path_style: true
lifecycle:
  strict: true
log:
  level: debug
  development: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "blob" || cfg.Storage.BlobHistory != 3 || !cfg.Lifecycle.Strict || !cfg.Log.Development {
		t.Fatalf("unexpected config %+v", cfg)
	}
	bo := cfg.BlobOptions()
	if bo.Driver != blob.DriverS3 || bo.S3.Bucket != "proofs" || !bo.S3.PathStyle {
		t.Fatalf("unexpected blob options %+v", bo)
	}
	so := cfg.StorageOptions(blob.NewMemory())
	if so.Driver != core.StorageBlob || so.BlobPrefix != "workspace/" || so.Blob == nil {
		t.Fatalf("unexpected storage options %+v", so)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: sqlite\nlog:\n  level: warn\n")
	t.Setenv(core.EnvStorageDriver, "memory")
	t.Setenv(EnvStrictLifecycle, "true")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(core.EnvBlobHistory, "5")
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" || !cfg.Lifecycle.Strict || cfg.Log.Level != "error" || cfg.Storage.BlobHistory != 5 {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"storage driver": "storage:\n  driver: etcd\n",
		"blob driver":    "blob:\n  driver: gcs\n",
		"log level":      "log:\n  level: loud\n",
		"history":        "storage:\n  blob_history: -1\n",
		"metrics":        "observability:\n  metrics: statsd\n",
		"yaml":           "storage: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestMalformedEnv(t *testing.T) {
	t.Setenv(EnvStrictLifecycle, "sometimes")
	cfg := Default()
	if err := cfg.ApplyEnv(); err == nil || !strings.Contains(err.Error(), EnvStrictLifecycle) {
		t.Fatalf("expected bool parse error, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "debug"
	logger, err := cfg.NewLogger()
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !logger.Core().Enabled(-1) {
		t.Fatalf("debug level should be enabled")
	}
	cfg.Log.Level = "nope"
	if _, err := cfg.NewLogger(); err == nil {
		t.Fatalf("expected level error")
	}
}
