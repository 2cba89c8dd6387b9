// Package retrieval restores archived audit records on request.
//
// A retrieval is tracked as a Job persisted next to the tenant's hot records
// at audit/<tenantId>/retrieval-jobs/<jobId>.json. Restores run in the
// background; callers poll the job for its status.
package retrieval

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dray-io/auditvault/internal/audit"
)

// Status is the lifecycle state of a retrieval job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("retrieval: invalid status transition")

// validTransitions defines allowed status transitions.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// CanTransitionTo reports whether s may move to next.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(validTransitions[s], next)
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	allowed, ok := validTransitions[s]
	return ok && len(allowed) == 0
}

// TimeRange is an inclusive range of record creation times.
type TimeRange struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Days returns the length of the range in days.
func (r TimeRange) Days() float64 {
	return r.EndDate.Sub(r.StartDate).Hours() / 24
}

// Contains reports whether t lies within the range, bounds included.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.StartDate) && !t.After(r.EndDate)
}

func (r TimeRange) validate() error {
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return &audit.ValidationError{Field: "timeRange", Reason: "startDate and endDate are required"}
	}
	if !r.StartDate.Before(r.EndDate) {
		return &audit.ValidationError{Field: "timeRange", Reason: "startDate must be before endDate"}
	}
	return nil
}

// ParseTimeRange parses start and end as YYYY-MM-DD or RFC 3339. A
// date-only end covers its whole day.
func ParseTimeRange(start, end string) (TimeRange, error) {
	s, _, err := parseInstant(start)
	if err != nil {
		return TimeRange{}, &audit.ValidationError{Field: "startDate", Reason: err.Error()}
	}
	e, dateOnly, err := parseInstant(end)
	if err != nil {
		return TimeRange{}, &audit.ValidationError{Field: "endDate", Reason: err.Error()}
	}
	if dateOnly {
		e = e.Add(24*time.Hour - time.Millisecond)
	}
	r := TimeRange{StartDate: s, EndDate: e}
	if err := r.validate(); err != nil {
		return TimeRange{}, err
	}
	return r, nil
}

func parseInstant(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	return t.UTC(), false, nil
}

// Job tracks one retrieval request.
type Job struct {
	JobID                   string           `json:"jobId"`
	TenantID                string           `json:"tenantId"`
	RecordType              audit.RecordType `json:"recordType"`
	TimeRange               TimeRange        `json:"timeRange"`
	Status                  Status           `json:"status"`
	EstimatedCompletionTime time.Time        `json:"estimatedCompletionTime"`
	CompletedAt             *time.Time       `json:"completedAt,omitempty"`
	DownloadURL             string           `json:"downloadUrl,omitempty"`
	CreatedAt               time.Time        `json:"createdAt"`
	UpdatedAt               time.Time        `json:"updatedAt"`
	ObjectsMatched          int              `json:"objectsMatched"`
	ObjectsRestored         int              `json:"objectsRestored"`
	ErrorMessage            string           `json:"errorMessage,omitempty"`
}

// transition moves the job to next, stamping UpdatedAt.
func (j *Job) transition(next Status, now time.Time) error {
	if !j.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = now
	return nil
}
