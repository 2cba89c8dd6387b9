// Package retention stores per-tenant retention policies and gates record
// deletion against the minimum retention window.
//
// A policy is kept per (tenant, record type) in the metadata store under
// /auditvault/v1/policies/<tenantId>/<recordType>. When a tenant has no
// policy for a record type the configured minimum retention still applies.
package retention

import (
	"fmt"
	"time"

	"github.com/dray-io/auditvault/internal/audit"
)

// DefaultMinimumRetentionDays is the system-wide minimum retention window:
// seven years.
const DefaultMinimumRetentionDays = 2555

// Policy governs how long records of one type are kept and when they move
// to the cold tier.
type Policy struct {
	TenantID             string           `json:"tenantId"`
	RecordType           audit.RecordType `json:"recordType"`
	RetentionDays        int              `json:"retentionDays"`
	ArchiveAfterDays     int              `json:"archiveAfterDays"`
	MinimumRetentionDays int              `json:"minimumRetentionDays"`
	Enabled              bool             `json:"enabled"`
	CreatedAt            time.Time        `json:"createdAt"`
	UpdatedAt            time.Time        `json:"updatedAt"`
}

// ArchiveThreshold returns the instant before which records are due for
// the cold tier.
func (p *Policy) ArchiveThreshold(now time.Time) time.Time {
	return now.Add(-days(p.ArchiveAfterDays))
}

// PolicyInput is the caller-supplied part of a Policy. A nil
// MinimumRetentionDays resolves to the tenant or system default; a nil
// Enabled means enabled.
type PolicyInput struct {
	TenantID             string           `json:"tenantId" validate:"keysegment"`
	RecordType           audit.RecordType `json:"recordType" validate:"recordtype"`
	RetentionDays        int              `json:"retentionDays" validate:"gte=1"`
	ArchiveAfterDays     int              `json:"archiveAfterDays" validate:"gte=0"`
	MinimumRetentionDays *int             `json:"minimumRetentionDays,omitempty" validate:"omitnil,gte=1"`
	Enabled              *bool            `json:"enabled,omitempty"`
}

// checkWindows enforces the ordering between the three windows. Values are
// rejected, never clamped.
func checkWindows(retentionDays, archiveAfterDays, minimumDays int) error {
	if retentionDays < minimumDays {
		return &audit.ValidationError{
			Field:  "retentionDays",
			Reason: fmt.Sprintf("%d is below the minimum retention of %d days", retentionDays, minimumDays),
		}
	}
	if archiveAfterDays >= retentionDays {
		return &audit.ValidationError{
			Field:  "archiveAfterDays",
			Reason: fmt.Sprintf("%d must be less than retentionDays (%d)", archiveAfterDays, retentionDays),
		}
	}
	return nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
