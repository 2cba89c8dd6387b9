package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/objectstore"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if err := c.validateObjectStore(); err != nil {
		return err
	}
	if err := c.validateMetadata(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateArchival(); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	if c.Usage.HotRatePerGBMonth < 0 || c.Usage.ColdRatePerGBMonth < 0 {
		return invalid("usage rates must not be negative")
	}
	return c.validateObservability()
}

func (c *Config) validateObjectStore() error {
	switch c.ObjectStore.Backend {
	case BackendS3, BackendGCS:
		if c.ObjectStore.Bucket == "" {
			return invalid("objectStore.bucket is required for the %s backend", c.ObjectStore.Backend)
		}
	case BackendMemory:
	default:
		return invalid("objectStore.backend %q is not one of s3, gcs, memory", c.ObjectStore.Backend)
	}
	if (c.ObjectStore.AccessKey == "") != (c.ObjectStore.SecretKey == "") {
		return invalid("objectStore.accessKey and objectStore.secretKey must be set together")
	}
	if c.ObjectStore.Breaker.Timeout < 0 {
		return invalid("objectStore.breaker.timeout must not be negative")
	}
	return nil
}

func (c *Config) validateMetadata() error {
	switch c.Metadata.Backend {
	case BackendOxia:
		if c.Metadata.OxiaEndpoint == "" || c.Metadata.Namespace == "" {
			return invalid("metadata.oxiaEndpoint and metadata.namespace are required for the oxia backend")
		}
	case BackendBadger:
		if c.Metadata.BadgerPath == "" {
			return invalid("metadata.badgerPath is required for the badger backend")
		}
	case BackendMemory:
	default:
		return invalid("metadata.backend %q is not one of oxia, badger, memory", c.Metadata.Backend)
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.SystemMinimumDays < 1 {
		return invalid("retention.systemMinimumDays must be at least 1")
	}
	for tenant, days := range c.Retention.TenantMinimumDays {
		if !audit.ValidKeySegment(tenant) {
			return invalid("retention.tenantMinimumDays has invalid tenant %q", tenant)
		}
		if days < 1 {
			return invalid("retention.tenantMinimumDays[%s] must be at least 1", tenant)
		}
	}
	return nil
}

func (c *Config) validateArchival() error {
	class := objectstore.StorageClass(c.Archival.ColdStorageClass)
	if !class.IsArchive() {
		return invalid("archival.coldStorageClass %q is not an archive class", c.Archival.ColdStorageClass)
	}
	if c.Archival.Enabled && c.Archival.Interval <= 0 {
		return invalid("archival.interval must be positive")
	}
	for _, tenant := range c.Archival.Tenants {
		if !audit.ValidKeySegment(tenant) {
			return invalid("archival.tenants has invalid tenant %q", tenant)
		}
	}
	return nil
}

func (c *Config) validateRetrieval() error {
	switch objectstore.RestoreTier(c.Retrieval.RestoreTier) {
	case objectstore.RestoreTierExpedited, objectstore.RestoreTierStandard, objectstore.RestoreTierBulk:
	default:
		return invalid("retrieval.restoreTier %q is not one of Expedited, Standard, Bulk", c.Retrieval.RestoreTier)
	}
	if c.Retrieval.RestoreDays < 1 {
		return invalid("retrieval.restoreDays must be at least 1")
	}
	return nil
}

func (c *Config) validateObservability() error {
	level := strings.ToLower(c.Observability.LogLevel)
	if logging.ParseLevel(level).String() != level && level != "warning" {
		return invalid("observability.logLevel %q is not one of debug, info, warn, error", c.Observability.LogLevel)
	}
	switch strings.ToLower(c.Observability.LogFormat) {
	case "json", "text", "console":
	default:
		return invalid("observability.logFormat %q is not one of json, text, console", c.Observability.LogFormat)
	}
	return nil
}
