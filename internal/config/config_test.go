package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yamlv3 "gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.ObjectStore.Backend != BackendS3 {
		t.Errorf("expected default object store backend s3, got %s", cfg.ObjectStore.Backend)
	}
	if cfg.Metadata.OxiaEndpoint != "localhost:6648" {
		t.Errorf("expected default oxia endpoint localhost:6648, got %s", cfg.Metadata.OxiaEndpoint)
	}
	if cfg.Retention.SystemMinimumDays != 2555 {
		t.Errorf("expected default minimum retention 2555 days, got %d", cfg.Retention.SystemMinimumDays)
	}
	if cfg.Archival.Interval != time.Hour {
		t.Errorf("expected default archival interval 1h, got %v", cfg.Archival.Interval)
	}
	if cfg.Archival.ColdStorageClass != "GLACIER" {
		t.Errorf("expected default cold class GLACIER, got %s", cfg.Archival.ColdStorageClass)
	}
	if !cfg.ObjectStore.Breaker.Enabled {
		t.Error("expected the object store breaker to be enabled by default")
	}
}

// clearEnv unsets every mapped variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for name := range envMappings {
		key := EnvPrefix + strings.ToUpper(name)
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, old) })
		}
	}
	t.Setenv(PathEnvVar, "")
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auditvault.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
objectStore:
  backend: gcs
  bucket: audit-prod
metadata:
  backend: badger
  badgerPath: /var/lib/auditvault
retention:
  systemMinimumDays: 365
  tenantMinimumDays:
    acme: 3650
archival:
  interval: 15m
  tenants: [acme, globex]
  coldStorageClass: DEEP_ARCHIVE
retrieval:
  restoreTier: Bulk
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendGCS, cfg.ObjectStore.Backend)
	assert.Equal(t, "audit-prod", cfg.ObjectStore.Bucket)
	assert.Equal(t, "us-east-1", cfg.ObjectStore.Region, "untouched defaults survive")
	assert.Equal(t, BackendBadger, cfg.Metadata.Backend)
	assert.Equal(t, 365, cfg.Retention.SystemMinimumDays)
	assert.Equal(t, map[string]int{"acme": 3650}, cfg.Retention.TenantMinimumDays)
	assert.Equal(t, 15*time.Minute, cfg.Archival.Interval)
	assert.Equal(t, []string{"acme", "globex"}, cfg.Archival.Tenants)
	assert.Equal(t, "DEEP_ARCHIVE", cfg.Archival.ColdStorageClass)
	assert.Equal(t, "Bulk", cfg.Retrieval.RestoreTier)
	assert.Equal(t, 50.0, cfg.Retrieval.RestoresPerSecond)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
objectStore:
  bucket: from-file
archival:
  tenants: [acme]
`)
	t.Setenv("AUDITVAULT_S3_BUCKET", "from-env")
	t.Setenv("AUDITVAULT_ARCHIVAL_TENANTS", "acme, globex ,initech")
	t.Setenv("AUDITVAULT_ARCHIVAL_INTERVAL", "30m")
	t.Setenv("AUDITVAULT_LOG_LEVEL", "debug")
	t.Setenv("AUDITVAULT_USAGE_HOT_RATE", "0.05")
	t.Setenv("AUDITVAULT_UNRELATED_SETTING", "ignored")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.ObjectStore.Bucket)
	assert.Equal(t, []string{"acme", "globex", "initech"}, cfg.Archival.Tenants)
	assert.Equal(t, 30*time.Minute, cfg.Archival.Interval)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, 0.05, cfg.Usage.HotRatePerGBMonth)
}

func TestLoadPathFromEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "objectStore:\n  backend: memory\nmetadata:\n  backend: memory\n")
	t.Setenv(PathEnvVar, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.ObjectStore.Backend)
	assert.Equal(t, BackendMemory, cfg.Metadata.Backend)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDefaultsNeedBucket(t *testing.T) {
	clearEnv(t)
	_, err := Load("")
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.ObjectStore.Bucket = "audit"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown object backend", func(c *Config) { c.ObjectStore.Backend = "ftp" }, "objectStore.backend"},
		{"missing bucket", func(c *Config) { c.ObjectStore.Bucket = "" }, "objectStore.bucket"},
		{"half credentials", func(c *Config) { c.ObjectStore.AccessKey = "AKIA" }, "accessKey"},
		{"unknown metadata backend", func(c *Config) { c.Metadata.Backend = "etcd" }, "metadata.backend"},
		{"badger without path", func(c *Config) { c.Metadata.Backend = BackendBadger }, "badgerPath"},
		{"zero minimum", func(c *Config) { c.Retention.SystemMinimumDays = 0 }, "systemMinimumDays"},
		{"bad tenant override", func(c *Config) { c.Retention.TenantMinimumDays = map[string]int{"a/b": 10} }, "tenantMinimumDays"},
		{"hot cold class", func(c *Config) { c.Archival.ColdStorageClass = "STANDARD" }, "coldStorageClass"},
		{"zero interval", func(c *Config) { c.Archival.Interval = 0 }, "archival.interval"},
		{"bad tenant", func(c *Config) { c.Archival.Tenants = []string{""} }, "archival.tenants"},
		{"bad restore tier", func(c *Config) { c.Retrieval.RestoreTier = "Fast" }, "restoreTier"},
		{"zero restore days", func(c *Config) { c.Retrieval.RestoreDays = 0 }, "restoreDays"},
		{"negative rate", func(c *Config) { c.Usage.ColdRatePerGBMonth = -1 }, "usage rates"},
		{"bad log level", func(c *Config) { c.Observability.LogLevel = "loud" }, "logLevel"},
		{"bad log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "logFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("disabled archival ignores interval", func(t *testing.T) {
		cfg := valid()
		cfg.Archival.Enabled = false
		cfg.Archival.Interval = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestDumpMasksSecrets(t *testing.T) {
	cfg := Default()
	cfg.ObjectStore.Bucket = "audit"
	cfg.ObjectStore.AccessKey = "AKIAEXAMPLE"
	cfg.ObjectStore.SecretKey = "topsecret"

	out, err := cfg.Dump()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "topsecret")
	assert.NotContains(t, string(out), "AKIAEXAMPLE")
	assert.Equal(t, "topsecret", cfg.ObjectStore.SecretKey, "dump must not modify the config")

	var back Config
	require.NoError(t, yamlv3.Unmarshal(out, &back))
	assert.Equal(t, "audit", back.ObjectStore.Bucket)
	assert.Equal(t, cfg.Archival.Interval, back.Archival.Interval)
	assert.Equal(t, cfg.Retention.SystemMinimumDays, back.Retention.SystemMinimumDays)
}
