// Package config provides configuration loading and validation for auditvault.
// Supports YAML files with environment variable overrides.
package config

import (
	"time"

	"github.com/dray-io/auditvault/internal/objectstore"
	"github.com/dray-io/auditvault/internal/retention"
)

// Config holds all configuration for an auditvault daemon.
type Config struct {
	ObjectStore   ObjectStoreConfig   `koanf:"objectStore" yaml:"objectStore"`
	Metadata      MetadataConfig      `koanf:"metadata" yaml:"metadata"`
	Retention     RetentionConfig     `koanf:"retention" yaml:"retention"`
	Archival      ArchivalConfig      `koanf:"archival" yaml:"archival"`
	Retrieval     RetrievalConfig     `koanf:"retrieval" yaml:"retrieval"`
	Usage         UsageConfig         `koanf:"usage" yaml:"usage"`
	Observability ObservabilityConfig `koanf:"observability" yaml:"observability"`
}

// Object store backends.
const (
	BackendS3     = "s3"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Metadata store backends.
const (
	BackendOxia   = "oxia"
	BackendBadger = "badger"
)

type ObjectStoreConfig struct {
	Backend         string        `koanf:"backend" yaml:"backend"`
	Bucket          string        `koanf:"bucket" yaml:"bucket"`
	Region          string        `koanf:"region" yaml:"region"`
	Endpoint        string        `koanf:"endpoint" yaml:"endpoint"`
	AccessKey       string        `koanf:"accessKey" yaml:"accessKey"`
	SecretKey       string        `koanf:"secretKey" yaml:"secretKey"`
	UsePathStyle    bool          `koanf:"usePathStyle" yaml:"usePathStyle"`
	CredentialsFile string        `koanf:"credentialsFile" yaml:"credentialsFile"`
	Breaker         BreakerConfig `koanf:"breaker" yaml:"breaker"`
}

type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled" yaml:"enabled"`
	ConsecutiveFailures uint32        `koanf:"consecutiveFailures" yaml:"consecutiveFailures"`
	Timeout             time.Duration `koanf:"timeout" yaml:"timeout"`
}

type MetadataConfig struct {
	Backend        string        `koanf:"backend" yaml:"backend"`
	OxiaEndpoint   string        `koanf:"oxiaEndpoint" yaml:"oxiaEndpoint"`
	Namespace      string        `koanf:"namespace" yaml:"namespace"`
	RequestTimeout time.Duration `koanf:"requestTimeout" yaml:"requestTimeout"`
	BadgerPath     string        `koanf:"badgerPath" yaml:"badgerPath"`
}

type RetentionConfig struct {
	// SystemMinimumDays applies to tenants without an override.
	SystemMinimumDays int `koanf:"systemMinimumDays" yaml:"systemMinimumDays"`

	// TenantMinimumDays overrides the system minimum per tenant.
	TenantMinimumDays map[string]int `koanf:"tenantMinimumDays" yaml:"tenantMinimumDays"`
}

type ArchivalConfig struct {
	Enabled          bool          `koanf:"enabled" yaml:"enabled"`
	Tenants          []string      `koanf:"tenants" yaml:"tenants"`
	Interval         time.Duration `koanf:"interval" yaml:"interval"`
	RunOnStart       bool          `koanf:"runOnStart" yaml:"runOnStart"`
	ColdStorageClass string        `koanf:"coldStorageClass" yaml:"coldStorageClass"`
	LockEnabled      bool          `koanf:"lockEnabled" yaml:"lockEnabled"`
}

type RetrievalConfig struct {
	DownloadURLBase   string  `koanf:"downloadUrlBase" yaml:"downloadUrlBase"`
	RestoreDays       int     `koanf:"restoreDays" yaml:"restoreDays"`
	RestoreTier       string  `koanf:"restoreTier" yaml:"restoreTier"`
	RestoresPerSecond float64 `koanf:"restoresPerSecond" yaml:"restoresPerSecond"`
	RestoreBurst      int     `koanf:"restoreBurst" yaml:"restoreBurst"`
}

type UsageConfig struct {
	HotRatePerGBMonth  float64 `koanf:"hotRatePerGbMonth" yaml:"hotRatePerGbMonth"`
	ColdRatePerGBMonth float64 `koanf:"coldRatePerGbMonth" yaml:"coldRatePerGbMonth"`
}

type ObservabilityConfig struct {
	MetricsAddr string `koanf:"metricsAddr" yaml:"metricsAddr"`
	LogLevel    string `koanf:"logLevel" yaml:"logLevel"`
	LogFormat   string `koanf:"logFormat" yaml:"logFormat"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		ObjectStore: ObjectStoreConfig{
			Backend: BackendS3,
			Region:  "us-east-1",
			Breaker: BreakerConfig{
				Enabled:             true,
				ConsecutiveFailures: 5,
				Timeout:             30 * time.Second,
			},
		},
		Metadata: MetadataConfig{
			Backend:        BackendOxia,
			OxiaEndpoint:   "localhost:6648",
			Namespace:      "auditvault",
			RequestTimeout: 30 * time.Second,
		},
		Retention: RetentionConfig{
			SystemMinimumDays: retention.DefaultMinimumRetentionDays,
		},
		Archival: ArchivalConfig{
			Enabled:          true,
			Interval:         time.Hour,
			ColdStorageClass: string(objectstore.StorageClassGlacier),
			LockEnabled:      true,
		},
		Retrieval: RetrievalConfig{
			RestoreDays:       7,
			RestoreTier:       string(objectstore.RestoreTierStandard),
			RestoresPerSecond: 50,
			RestoreBurst:      10,
		},
		Usage: UsageConfig{
			HotRatePerGBMonth:  0.023,
			ColdRatePerGBMonth: 0.0036,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}
