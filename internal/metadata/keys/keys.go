// Package keys builds and parses metadata store keys.
//
// Keys are slash separated paths rooted at /auditvault/v1:
//
//	/auditvault/v1/policies/<tenantId>/<recordType>
//	/auditvault/v1/archival/locks/<tenantId>
//
// Tenant ids are validated upstream to contain no '/', so every key has a
// fixed segment count. Oxia sorts keys hierarchically by segment depth, so
// range scans only work when start and end keys have the same depth.
package keys

import (
	"errors"
	"strings"
)

// Key prefixes.
const (
	// Prefix is the root prefix for all auditvault keys.
	Prefix = "/auditvault/v1"

	// PoliciesPrefix is the prefix for retention policies.
	// Format: /auditvault/v1/policies/<tenantId>/<recordType>
	PoliciesPrefix = Prefix + "/policies"

	// ArchivalLocksPrefix is the prefix for per-tenant archival locks (ephemeral).
	// Format: /auditvault/v1/archival/locks/<tenantId>
	ArchivalLocksPrefix = Prefix + "/archival/locks"
)

// ErrInvalidKey is returned when a key cannot be parsed.
var ErrInvalidKey = errors.New("keys: invalid key format")

// PolicyKey returns the key for a tenant's retention policy of one record type.
func PolicyKey(tenantID, recordType string) string {
	return PoliciesPrefix + "/" + tenantID + "/" + recordType
}

// PolicyTenantPrefix returns the prefix for listing all policies of a tenant.
func PolicyTenantPrefix(tenantID string) string {
	return PoliciesPrefix + "/" + tenantID + "/"
}

// ParsePolicyKey splits a policy key into tenant id and record type.
func ParsePolicyKey(key string) (tenantID, recordType string, err error) {
	rest, ok := strings.CutPrefix(key, PoliciesPrefix+"/")
	if !ok {
		return "", "", ErrInvalidKey
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrInvalidKey
	}
	return parts[0], parts[1], nil
}

// ArchivalLockKey returns the ephemeral lock key guarding archival runs of a tenant.
func ArchivalLockKey(tenantID string) string {
	return ArchivalLocksPrefix + "/" + tenantID
}

// ParseArchivalLockKey extracts the tenant id from an archival lock key.
func ParseArchivalLockKey(key string) (string, error) {
	tenantID, ok := strings.CutPrefix(key, ArchivalLocksPrefix+"/")
	if !ok || tenantID == "" || strings.Contains(tenantID, "/") {
		return "", ErrInvalidKey
	}
	return tenantID, nil
}
