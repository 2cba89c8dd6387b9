package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "AUDITVAULT_"

// PathEnvVar names the config file when --config is not given.
const PathEnvVar = EnvPrefix + "CONFIG"

// envMappings maps environment variable names, lower-cased and without
// EnvPrefix, to koanf paths. Unmapped variables are ignored.
var envMappings = map[string]string{
	"objectstore_backend":          "objectStore.backend",
	"s3_bucket":                    "objectStore.bucket",
	"gcs_bucket":                   "objectStore.bucket",
	"s3_region":                    "objectStore.region",
	"s3_endpoint":                  "objectStore.endpoint",
	"s3_access_key":                "objectStore.accessKey",
	"s3_secret_key":                "objectStore.secretKey",
	"s3_use_path_style":            "objectStore.usePathStyle",
	"gcs_credentials_file":         "objectStore.credentialsFile",
	"breaker_enabled":              "objectStore.breaker.enabled",
	"breaker_consecutive_failures": "objectStore.breaker.consecutiveFailures",
	"breaker_timeout":              "objectStore.breaker.timeout",

	"metadata_backend": "metadata.backend",
	"oxia_endpoint":    "metadata.oxiaEndpoint",
	"oxia_namespace":   "metadata.namespace",
	"oxia_timeout":     "metadata.requestTimeout",
	"badger_path":      "metadata.badgerPath",

	"retention_minimum_days": "retention.systemMinimumDays",

	"archival_enabled":      "archival.enabled",
	"archival_tenants":      "archival.tenants",
	"archival_interval":     "archival.interval",
	"archival_run_on_start": "archival.runOnStart",
	"archival_cold_class":   "archival.coldStorageClass",
	"archival_lock_enabled": "archival.lockEnabled",

	"retrieval_download_url_base": "retrieval.downloadUrlBase",
	"retrieval_restore_days":      "retrieval.restoreDays",
	"retrieval_restore_tier":      "retrieval.restoreTier",
	"retrieval_restores_per_sec":  "retrieval.restoresPerSecond",
	"retrieval_restore_burst":     "retrieval.restoreBurst",

	"usage_hot_rate":  "usage.hotRatePerGbMonth",
	"usage_cold_rate": "usage.coldRatePerGbMonth",

	"metrics_addr": "observability.metricsAddr",
	"log_level":    "observability.logLevel",
	"log_format":   "observability.logFormat",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return envMappings[key]
}

// Load builds a Config from, in increasing precedence, Default, the YAML
// file at path (skipped when path is empty) and AUDITVAULT_* environment
// variables. The result is validated.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}

	if err := splitListFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// listPaths are list fields that arrive as comma-separated strings when
// set from the environment.
var listPaths = []string{"archival.tenants"}

func splitListFields(k *koanf.Koanf) error {
	for _, path := range listPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("config: set %s: %w", path, err)
		}
	}
	return nil
}

// Dump renders the configuration as YAML with secrets masked.
func (c *Config) Dump() ([]byte, error) {
	redacted := *c
	if redacted.ObjectStore.SecretKey != "" {
		redacted.ObjectStore.SecretKey = "****"
	}
	if redacted.ObjectStore.AccessKey != "" {
		redacted.ObjectStore.AccessKey = "****"
	}

	var buf bytes.Buffer
	enc := yamlv3.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&redacted); err != nil {
		return nil, fmt.Errorf("config: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
