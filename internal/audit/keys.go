package audit

import (
	"fmt"
	"path"
	"strings"
)

const (
	// HotRoot is the first key segment of hot tier objects.
	HotRoot = "audit"

	// ColdRoot is the first key segment of cold tier objects.
	ColdRoot = "archive"

	// JobsSegment holds retrieval job documents under a tenant's hot root.
	JobsSegment = "retrieval-jobs"

	recordExt = ".json"
)

func root(tier Tier) string {
	if tier == TierCold {
		return ColdRoot
	}
	return HotRoot
}

// TenantPrefix returns the prefix of every object of a tenant in tier.
func TenantPrefix(tier Tier, tenantID string) string {
	return root(tier) + "/" + tenantID + "/"
}

// TypePrefix returns the prefix of every record of one type in tier.
func TypePrefix(tier Tier, tenantID string, recordType RecordType) string {
	return TenantPrefix(tier, tenantID) + recordType.Segment() + "/"
}

// RecordKey returns the object key for ref in tier.
func RecordKey(tier Tier, ref RecordRef) string {
	day := ref.CreatedAt.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s%s",
		TypePrefix(tier, ref.TenantID, ref.RecordType),
		day.Year(), int(day.Month()), day.Day(),
		ref.RecordID, recordExt)
}

// ColdKey maps a hot tier key to its mirrored cold tier key.
func ColdKey(hotKey string) (string, error) {
	rest, ok := strings.CutPrefix(hotKey, HotRoot+"/")
	if !ok {
		return "", fmt.Errorf("audit: %q is not a hot tier key", hotKey)
	}
	return ColdRoot + "/" + rest, nil
}

// RecordIDFromKey returns the record id encoded in the final segment of a
// record key, and false for keys that are not record objects.
func RecordIDFromKey(key string) (string, bool) {
	base := path.Base(key)
	id, ok := strings.CutSuffix(base, recordExt)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// JobsPrefix returns the prefix of a tenant's retrieval job documents.
func JobsPrefix(tenantID string) string {
	return TenantPrefix(TierHot, tenantID) + JobsSegment + "/"
}

// JobKey returns the object key of a retrieval job document.
func JobKey(tenantID, jobID string) string {
	return JobsPrefix(tenantID) + jobID + recordExt
}
