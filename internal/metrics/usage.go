package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dray-io/auditvault/internal/usage"
)

// Tier label values.
const (
	TierHot  = "hot"
	TierCold = "cold"
)

// UsageMetrics exposes the last computed storage usage per tenant.
// It implements usage.MetricsRecorder.
type UsageMetrics struct {
	// StorageBytes is the stored size by tenant and tier.
	StorageBytes *prometheus.GaugeVec

	// EstimatedMonthlyCost is the estimated monthly cost in USD by tenant.
	EstimatedMonthlyCost *prometheus.GaugeVec
}

func newUsageMetrics(f promauto.Factory) *UsageMetrics {
	return &UsageMetrics{
		StorageBytes: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "auditvault",
				Subsystem: "usage",
				Name:      "storage_bytes",
				Help:      "Bytes stored per tenant and tier as of the last usage report.",
			},
			[]string{"tenant", "tier"},
		),
		EstimatedMonthlyCost: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "auditvault",
				Subsystem: "usage",
				Name:      "estimated_monthly_cost_usd",
				Help:      "Estimated monthly storage cost per tenant in USD as of the last usage report.",
			},
			[]string{"tenant"},
		),
	}
}

// NewUsageMetrics creates and registers usage metrics.
// Uses promauto for automatic registration with the default registry.
func NewUsageMetrics() *UsageMetrics {
	return newUsageMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewUsageMetricsWithRegistry creates usage metrics registered with a custom registry.
func NewUsageMetricsWithRegistry(reg prometheus.Registerer) *UsageMetrics {
	return newUsageMetrics(promauto.With(reg))
}

// RecordUsage stores the latest usage of a tenant.
func (m *UsageMetrics) RecordUsage(tenantID string, hotBytes, coldBytes int64, costUSD float64) {
	m.StorageBytes.WithLabelValues(tenantID, TierHot).Set(float64(hotBytes))
	m.StorageBytes.WithLabelValues(tenantID, TierCold).Set(float64(coldBytes))
	m.EstimatedMonthlyCost.WithLabelValues(tenantID).Set(costUSD)
}

var _ usage.MetricsRecorder = (*UsageMetrics)(nil)
