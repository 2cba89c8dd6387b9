package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/auditvault/internal/audit"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusInProgress, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.ok, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, Status("BOGUS").Terminal())
}

func TestJobTransition(t *testing.T) {
	j := &Job{Status: StatusPending}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.transition(StatusInProgress, now))
	assert.Equal(t, StatusInProgress, j.Status)
	assert.Equal(t, now, j.UpdatedAt)

	err := j.transition(StatusPending, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusInProgress, j.Status)
}

func TestParseTimeRange(t *testing.T) {
	r, err := ParseTimeRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.StartDate)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, int(999*time.Millisecond), time.UTC), r.EndDate)
	assert.True(t, r.Contains(time.Date(2024, 1, 31, 18, 0, 0, 0, time.UTC)))

	r, err = ParseTimeRange("2024-01-01T10:00:00+02:00", "2024-01-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), r.StartDate)
	assert.InDelta(t, 4.0/24, r.Days(), 1e-9)

	r, err = ParseTimeRange("2024-03-05", "2024-03-05")
	require.NoError(t, err, "a single date-only day is a valid range")
	assert.True(t, r.Contains(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)))
}

func TestParseTimeRangeErrors(t *testing.T) {
	tests := []struct {
		name, start, end, field string
	}{
		{"bad start", "yesterday", "2024-01-01", "startDate"},
		{"bad end", "2024-01-01", "01/02/2024", "endDate"},
		{"reversed", "2024-02-01", "2024-01-01", "timeRange"},
		{"empty range", "2024-01-01T00:00:00Z", "2024-01-01T00:00:00Z", "timeRange"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTimeRange(tc.start, tc.end)
			var verr *audit.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestTimeRangeContainsBounds(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	r := TimeRange{StartDate: start, EndDate: end}

	assert.True(t, r.Contains(start))
	assert.True(t, r.Contains(end))
	assert.False(t, r.Contains(start.Add(-time.Millisecond)))
	assert.False(t, r.Contains(end.Add(time.Millisecond)))
}

func TestEstimate(t *testing.T) {
	c := Config{EstimateBase: time.Hour, EstimatePerSqrtDay: time.Hour, EstimateMax: 5 * time.Hour}
	assert.Equal(t, 3*time.Hour, c.Estimate(4))
	assert.Equal(t, 5*time.Hour, c.Estimate(100))
	assert.Equal(t, time.Hour, c.Estimate(-2))

	c.EstimateMax = 0
	assert.Equal(t, 11*time.Hour, c.Estimate(100), "zero max disables the cap")
}
