// Package audit implements the immutable audit log: write-once record
// persistence on an object store, content hashing, tenant-isolated reads
// and integrity verification.
//
// Records are addressed by tenant, record type, creation day and record id.
// The object key is derived from those coordinates and written with a
// conditional create, so a second write to the same coordinates fails with
// ErrImmutableViolation and the original payload is never replaced.
//
// Key layout:
//
//	audit/{tenantId}/{segment}/{YYYY}/{MM}/{DD}/{recordId}.json    hot tier
//	archive/{tenantId}/{segment}/{YYYY}/{MM}/{DD}/{recordId}.json  cold tier
//	audit/{tenantId}/retrieval-jobs/{jobId}.json                   restore jobs
package audit

import (
	"fmt"
	"time"
)

// RecordType classifies an audit record.
type RecordType string

const (
	RecordTypeTradeEvent       RecordType = "TRADE_EVENT"
	RecordTypeAITrace          RecordType = "AI_TRACE"
	RecordTypeRiskEvent        RecordType = "RISK_EVENT"
	RecordTypeDataLineage      RecordType = "DATA_LINEAGE"
	RecordTypeAccessLog        RecordType = "ACCESS_LOG"
	RecordTypeAuditPackage     RecordType = "AUDIT_PACKAGE"
	RecordTypeComplianceReport RecordType = "COMPLIANCE_REPORT"
)

var segments = map[RecordType]string{
	RecordTypeTradeEvent:       "trade-events",
	RecordTypeAITrace:          "ai-traces",
	RecordTypeRiskEvent:        "risk-events",
	RecordTypeDataLineage:      "data-lineage",
	RecordTypeAccessLog:        "access-logs",
	RecordTypeAuditPackage:     "audit-packages",
	RecordTypeComplianceReport: "compliance-reports",
}

// AllRecordTypes lists every record type in declaration order.
var AllRecordTypes = []RecordType{
	RecordTypeTradeEvent,
	RecordTypeAITrace,
	RecordTypeRiskEvent,
	RecordTypeDataLineage,
	RecordTypeAccessLog,
	RecordTypeAuditPackage,
	RecordTypeComplianceReport,
}

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	_, ok := segments[t]
	return ok
}

// Segment returns the key path segment for t, or "" if t is unknown.
func (t RecordType) Segment() string {
	return segments[t]
}

func (t RecordType) String() string {
	return string(t)
}

// ParseRecordType converts s into a RecordType.
func ParseRecordType(s string) (RecordType, error) {
	t := RecordType(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "recordType", Reason: fmt.Sprintf("unknown record type %q", s)}
	}
	return t, nil
}

// RecordTypeForSegment maps a key path segment back to its record type.
func RecordTypeForSegment(segment string) (RecordType, bool) {
	for t, s := range segments {
		if s == segment {
			return t, true
		}
	}
	return "", false
}

// RecordVersion is the version of every stored record. Records are never
// updated in place, so it never changes.
const RecordVersion = 1

// Record is a stored audit record.
type Record struct {
	RecordID    string         `json:"recordId"`
	TenantID    string         `json:"tenantId"`
	RecordType  RecordType     `json:"recordType"`
	Data        map[string]any `json:"data"`
	CreatedAt   time.Time      `json:"createdAt"`
	ContentHash string         `json:"contentHash"`
	Version     int            `json:"version"`
}

// Ref returns the coordinates of r.
func (r *Record) Ref() RecordRef {
	return RecordRef{
		TenantID:   r.TenantID,
		RecordType: r.RecordType,
		CreatedAt:  r.CreatedAt,
		RecordID:   r.RecordID,
	}
}

// RecordRef addresses a record. Only the UTC calendar day of CreatedAt
// takes part in the key.
type RecordRef struct {
	TenantID   string     `validate:"keysegment"`
	RecordType RecordType `validate:"recordtype"`
	CreatedAt  time.Time  `validate:"required"`
	RecordID   string     `validate:"keysegment"`
}

// Tier selects the hot or cold copy of a record.
type Tier int

const (
	// TierHot is the immediately readable tier.
	TierHot Tier = iota
	// TierCold is the archive tier.
	TierCold
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierCold:
		return "cold"
	default:
		return "unknown"
	}
}

// ParseTier converts "hot" or "cold" into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "hot", "":
		return TierHot, nil
	case "cold", "archive":
		return TierCold, nil
	default:
		return TierHot, &ValidationError{Field: "tier", Reason: fmt.Sprintf("unknown tier %q", s)}
	}
}
