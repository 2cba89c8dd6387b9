package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dray-io/auditvault/internal/archival"
	"github.com/dray-io/auditvault/internal/audit"
	"github.com/dray-io/auditvault/internal/config"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/metadata"
	badgerstore "github.com/dray-io/auditvault/internal/metadata/badger"
	"github.com/dray-io/auditvault/internal/metadata/keys"
	oxiastore "github.com/dray-io/auditvault/internal/metadata/oxia"
	"github.com/dray-io/auditvault/internal/metrics"
	"github.com/dray-io/auditvault/internal/objectstore"
	gcsstore "github.com/dray-io/auditvault/internal/objectstore/gcs"
	s3store "github.com/dray-io/auditvault/internal/objectstore/s3"
	"github.com/dray-io/auditvault/internal/retention"
	"github.com/dray-io/auditvault/internal/retrieval"
	"github.com/dray-io/auditvault/internal/usage"
)

// recorders bundles the Prometheus recorders of one registry.
type recorders struct {
	objectStore *metrics.ObjectStoreMetrics
	metadata    *metrics.MetadataMetrics
	archival    *metrics.ArchivalMetrics
	retrieval   *metrics.RetrievalMetrics
	usage       *metrics.UsageMetrics
	breaker     *metrics.BreakerMetrics
}

func newRecorders(reg prometheus.Registerer) *recorders {
	return &recorders{
		objectStore: metrics.NewObjectStoreMetricsWithRegistry(reg),
		metadata:    metrics.NewMetadataMetricsWithRegistry(reg),
		archival:    metrics.NewArchivalMetricsWithRegistry(reg),
		retrieval:   metrics.NewRetrievalMetricsWithRegistry(reg),
		usage:       metrics.NewUsageMetricsWithRegistry(reg),
		breaker:     metrics.NewBreakerMetricsWithRegistry(reg),
	}
}

// backends are the two stores every command runs against.
type backends struct {
	objects objectstore.Store
	meta    metadata.MetadataStore
	breaker *objectstore.BreakerStore
}

// Close closes both stores.
func (b *backends) Close() error {
	return errors.Join(b.objects.Close(), b.meta.Close())
}

// openFunc opens the configured backends. Tests replace it.
type openFunc func(ctx context.Context, cfg *config.Config, logger *logging.Logger, rec *recorders) (*backends, error)

func openBackends(ctx context.Context, cfg *config.Config, logger *logging.Logger, rec *recorders) (*backends, error) {
	raw, err := openObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, err
	}
	meta, err := openMetadataStore(ctx, cfg.Metadata, logger)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return wrapBackends(raw, meta, cfg, rec), nil
}

// wrapBackends layers the circuit breaker and instrumentation over raw
// stores.
func wrapBackends(objects objectstore.Store, meta metadata.MetadataStore, cfg *config.Config, rec *recorders) *backends {
	b := &backends{}
	if cfg.ObjectStore.Breaker.Enabled {
		bcfg := objectstore.DefaultBreakerConfig()
		if cfg.ObjectStore.Breaker.ConsecutiveFailures > 0 {
			bcfg.ConsecutiveFailures = cfg.ObjectStore.Breaker.ConsecutiveFailures
		}
		if cfg.ObjectStore.Breaker.Timeout > 0 {
			bcfg.Timeout = cfg.ObjectStore.Breaker.Timeout
		}
		if rec != nil {
			bcfg.OnStateChange = rec.breaker.OnStateChange
		}
		b.breaker = objectstore.NewBreakerStore(objects, bcfg)
		objects = b.breaker
	}
	if rec != nil {
		objects = objectstore.NewInstrumentedStore(objects, rec.objectStore)
		meta = metadata.NewInstrumentedStore(meta, rec.metadata)
	}
	b.objects = objects
	b.meta = meta
	return b
}

func openObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (objectstore.Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return s3store.New(ctx, s3store.Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: cfg.SecretKey,
			UsePathStyle:    cfg.UsePathStyle,
		})
	case config.BackendGCS:
		return gcsstore.New(ctx, gcsstore.Config{
			Bucket:          cfg.Bucket,
			CredentialsFile: cfg.CredentialsFile,
			Endpoint:        cfg.Endpoint,
		})
	case config.BackendMemory:
		return objectstore.NewMockStore(), nil
	default:
		return nil, fmt.Errorf("unknown object store backend %q", cfg.Backend)
	}
}

func openMetadataStore(ctx context.Context, cfg config.MetadataConfig, logger *logging.Logger) (metadata.MetadataStore, error) {
	switch cfg.Backend {
	case config.BackendOxia:
		return oxiastore.New(ctx, oxiastore.Config{
			ServiceAddress: cfg.OxiaEndpoint,
			Namespace:      cfg.Namespace,
			RequestTimeout: cfg.RequestTimeout,
		})
	case config.BackendBadger:
		return badgerstore.New(badgerstore.Config{
			Path:   cfg.BadgerPath,
			Logger: logger,
		})
	case config.BackendMemory:
		return metadata.NewMockStore(), nil
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.Backend)
	}
}

// services are the domain components built over a set of backends.
type services struct {
	records   *audit.LogStore
	policies  *retention.PolicyStore
	deletion  *retention.DeletionValidator
	locks     *archival.LockManager
	archiver  *archival.Engine
	retrieval *retrieval.Manager
	usage     *usage.Reporter
}

func newServices(cfg *config.Config, b *backends, logger *logging.Logger, rec *recorders) *services {
	policies := retention.NewPolicyStore(b.meta,
		retention.WithDefaultMinimum(cfg.Retention.SystemMinimumDays),
		retention.WithTenantMinimums(cfg.Retention.TenantMinimumDays),
		retention.WithLogger(logger),
	)

	archiveOpts := []archival.Option{archival.WithLogger(logger)}
	var locks *archival.LockManager
	if cfg.Archival.LockEnabled {
		locks = archival.NewLockManager(b.meta, "")
		archiveOpts = append(archiveOpts, archival.WithLockManager(locks))
	}

	retrievalCfg := retrieval.DefaultConfig()
	retrievalCfg.DownloadURLBase = cfg.Retrieval.DownloadURLBase
	retrievalCfg.RestoreDays = cfg.Retrieval.RestoreDays
	retrievalCfg.RestoreTier = objectstore.RestoreTier(cfg.Retrieval.RestoreTier)
	retrievalCfg.RestoresPerSecond = cfg.Retrieval.RestoresPerSecond
	retrievalCfg.RestoreBurst = cfg.Retrieval.RestoreBurst
	retrievalOpts := []retrieval.Option{retrieval.WithLogger(logger)}

	usageOpts := []usage.Option{usage.WithLogger(logger)}

	if rec != nil {
		archiveOpts = append(archiveOpts, archival.WithMetrics(rec.archival))
		retrievalOpts = append(retrievalOpts, retrieval.WithMetrics(rec.retrieval))
		usageOpts = append(usageOpts, usage.WithMetrics(rec.usage))
	}

	return &services{
		records:  audit.NewLogStore(b.objects, audit.WithLogger(logger)),
		policies: policies,
		deletion: retention.NewDeletionValidator(policies, b.objects, retention.WithDeletionLogger(logger)),
		locks:    locks,
		archiver: archival.NewEngine(b.objects, policies, archival.Config{
			ColdStorageClass: objectstore.StorageClass(cfg.Archival.ColdStorageClass),
		}, archiveOpts...),
		retrieval: retrieval.NewManager(b.objects, retrievalCfg, retrievalOpts...),
		usage: usage.NewReporter(b.objects, usage.Config{
			HotRatePerGBMonth:  cfg.Usage.HotRatePerGBMonth,
			ColdRatePerGBMonth: cfg.Usage.ColdRatePerGBMonth,
		}, usageOpts...),
	}
}

// healthChecks returns the readiness probes served on /healthz.
func healthChecks(b *backends) map[string]metrics.HealthCheck {
	return map[string]metrics.HealthCheck{
		"metadata": func(ctx context.Context) error {
			_, err := b.meta.List(ctx, keys.PoliciesPrefix+"/", "", 1)
			return err
		},
		"objectstore": func(context.Context) error {
			if b.breaker != nil && b.breaker.State() == "open" {
				return errors.New("circuit breaker open")
			}
			return nil
		},
	}
}
