package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/auditvault/internal/config"
	"github.com/dray-io/auditvault/internal/logging"
	"github.com/dray-io/auditvault/internal/metadata"
	"github.com/dray-io/auditvault/internal/objectstore"
)

var storeEpoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// keepOpenObjects and keepOpenMeta survive the Close at the end of every
// command so state carries across invocations.
type keepOpenObjects struct{ objectstore.Store }

func (keepOpenObjects) Close() error { return nil }

type keepOpenMeta struct{ metadata.MetadataStore }

func (keepOpenMeta) Close() error { return nil }

type harness struct {
	t       *testing.T
	objects *objectstore.MockStore
	meta    *metadata.MockStore
	cfg     *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	objects := objectstore.NewMockStore()
	objects.SetClock(func() time.Time { return storeEpoch })

	cfg := config.Default()
	cfg.ObjectStore.Backend = config.BackendMemory
	cfg.Metadata.Backend = config.BackendMemory
	cfg.Retention.SystemMinimumDays = 1
	cfg.Observability.MetricsAddr = "127.0.0.1:0"
	require.NoError(t, cfg.Validate())

	return &harness{t: t, objects: objects, meta: metadata.NewMockStore(), cfg: cfg}
}

func (h *harness) open(_ context.Context, cfg *config.Config, _ *logging.Logger, rec *recorders) (*backends, error) {
	return wrapBackends(keepOpenObjects{h.objects}, keepOpenMeta{h.meta}, cfg, rec), nil
}

func (h *harness) app(out *bytes.Buffer) *app {
	a := newApp(out)
	a.cfg = h.cfg
	a.logger = logging.Nop()
	a.open = h.open
	return a
}

// run executes one command line and returns its standard output.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(h.app(&out))
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "auditvaultd %s", strings.Join(args, " "))
	return out
}

func (h *harness) mustRunJSON(v any, args ...string) {
	h.t.Helper()
	require.NoError(h.t, json.Unmarshal([]byte(h.mustRun(args...)), v))
}

func TestVersion(t *testing.T) {
	out := newHarness(t).mustRun("version")
	assert.Contains(t, out, "auditvaultd version dev")
}

func TestPolicyLifecycle(t *testing.T) {
	h := newHarness(t)

	var set map[string]any
	h.mustRunJSON(&set, "policy", "set", "--tenant", "acme", "--type", "TRADE_EVENT",
		"--retention-days", "3650", "--archive-after-days", "90", "--minimum-days", "365")
	assert.Equal(t, float64(3650), set["retentionDays"])
	assert.Equal(t, float64(365), set["minimumRetentionDays"])
	assert.Equal(t, true, set["enabled"])

	var got map[string]any
	h.mustRunJSON(&got, "policy", "get", "--tenant", "acme", "--type", "TRADE_EVENT")
	assert.Equal(t, float64(90), got["archiveAfterDays"])

	h.mustRun("policy", "set", "--tenant", "acme", "--type", "AI_TRACE",
		"--retention-days", "30", "--archive-after-days", "7", "--disabled")
	table := h.mustRun("policy", "list", "--tenant", "acme")
	assert.Contains(t, table, "TRADE_EVENT")
	assert.Contains(t, table, "AI_TRACE")
	assert.Contains(t, table, "false")

	var deleted map[string]bool
	h.mustRunJSON(&deleted, "policy", "delete", "--tenant", "acme", "--type", "AI_TRACE")
	assert.True(t, deleted["deleted"])

	_, err := h.run("policy", "get", "--tenant", "acme", "--type", "AI_TRACE")
	assert.ErrorContains(t, err, "no policy")
}

func TestPolicySetRejectsWindowBelowMinimum(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("policy", "set", "--tenant", "acme", "--type", "TRADE_EVENT",
		"--retention-days", "30", "--archive-after-days", "7", "--minimum-days", "90")
	assert.ErrorContains(t, err, "retentionDays")
}

func TestWriteVerifyArchiveRetrieve(t *testing.T) {
	h := newHarness(t)

	var rec map[string]any
	h.mustRunJSON(&rec, "write", "--tenant", "acme", "--type", "TRADE_EVENT", "--id", "t-1",
		"--data", `{"symbol":"ACME","qty":100}`)
	createdAt := rec["createdAt"].(string)
	require.NotEmpty(t, rec["contentHash"])

	var verified map[string]any
	h.mustRunJSON(&verified, "verify", "--tenant", "acme", "--type", "TRADE_EVENT", "--id", "t-1", "--created-at", createdAt)
	assert.Equal(t, true, verified["isValid"])

	_, err := h.run("write", "--tenant", "acme", "--type", "TRADE_EVENT", "--id", "t-1", "--data", `{}`)
	assert.Error(t, err, "records are write-once")

	h.mustRun("policy", "set", "--tenant", "acme", "--type", "TRADE_EVENT",
		"--retention-days", "30", "--archive-after-days", "1")

	var result map[string]any
	h.mustRunJSON(&result, "archive", "--tenant", "acme")
	assert.Equal(t, float64(1), result["recordsArchived"])

	_, err = h.run("verify", "--tenant", "acme", "--type", "TRADE_EVENT", "--id", "t-1",
		"--created-at", createdAt, "--tier", "cold")
	assert.Error(t, err, "cold copies are unreadable until restored")

	var usage map[string]any
	h.mustRunJSON(&usage, "usage", "--tenant", "acme")
	assert.Zero(t, usage["hotStorageBytes"])
	assert.Greater(t, usage["coldStorageBytes"].(float64), 0.0)

	var job map[string]any
	h.mustRunJSON(&job, "retrieve", "--tenant", "acme", "--type", "TRADE_EVENT",
		"--start", "2023-12-31", "--end", "2024-01-02", "--wait")
	assert.Equal(t, "COMPLETED", job["status"])
	assert.Len(t, h.objects.RestoreRequests(), 1)

	h.mustRunJSON(&verified, "verify", "--tenant", "acme", "--type", "TRADE_EVENT", "--id", "t-1",
		"--created-at", createdAt, "--tier", "cold")
	assert.Equal(t, true, verified["isValid"])

	var fetched map[string]any
	h.mustRunJSON(&fetched, "job", "--tenant", "acme", "--id", job["jobId"].(string))
	assert.Equal(t, "COMPLETED", fetched["status"])

	table := h.mustRun("job", "--tenant", "acme")
	assert.Contains(t, table, job["jobId"].(string))
}

func TestRetrieveWithoutWaitFinishesBeforeExit(t *testing.T) {
	h := newHarness(t)

	var job map[string]any
	h.mustRunJSON(&job, "retrieve", "--tenant", "acme", "--type", "RISK_EVENT",
		"--start", "2024-01-01", "--end", "2024-01-31")
	assert.Equal(t, "PENDING", job["status"])

	var jobs []map[string]any
	h.mustRunJSON(&jobs, "job", "--tenant", "acme", "--json")
	require.Len(t, jobs, 1)
	assert.Equal(t, "COMPLETED", jobs[0]["status"])
}

func TestRetrieveRejectsBadRange(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("retrieve", "--tenant", "acme", "--type", "TRADE_EVENT",
		"--start", "2024-02-01", "--end", "2024-01-01")
	assert.ErrorContains(t, err, "timeRange")
}

func TestJobNotFound(t *testing.T) {
	_, err := newHarness(t).run("job", "--tenant", "acme", "--id", "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestValidateDeletion(t *testing.T) {
	h := newHarness(t)
	h.mustRun("write", "--tenant", "acme", "--type", "AI_TRACE", "--id", "a-1")

	var check map[string]any
	h.mustRunJSON(&check, "validate-deletion", "--tenant", "acme", "--type", "AI_TRACE", "a-1")
	assert.Equal(t, true, check["allowed"], "written long before the one day minimum")

	h.mustRunJSON(&check, "validate-deletion", "--tenant", "acme", "--type", "AI_TRACE", "a-1", "ghost")
	assert.Equal(t, false, check["allowed"])
	assert.Equal(t, []any{"ghost"}, check["protectedRecordIds"])
}

func TestRequiredFlags(t *testing.T) {
	_, err := newHarness(t).run("archive")
	assert.ErrorContains(t, err, "tenant")
}

func TestConfigPrintMasksSecrets(t *testing.T) {
	h := newHarness(t)
	h.cfg.ObjectStore.AccessKey = "AKIAEXAMPLE"
	h.cfg.ObjectStore.SecretKey = "topsecret"

	out := h.mustRun("config", "print")
	assert.Contains(t, out, "backend: memory")
	assert.NotContains(t, out, "topsecret")
}

func TestServeRunsUntilCancelled(t *testing.T) {
	h := newHarness(t)
	h.cfg.Archival.Tenants = []string{"acme"}
	h.cfg.Archival.RunOnStart = true

	var out bytes.Buffer
	a := h.app(&out)
	reg := prometheus.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, reg, reg) }()

	// The scheduler's first pass takes and releases the tenant lock.
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop")
	}

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "auditvault_archival_runs_total")
}
