package quota

import (
	"context"
	"testing"
	"time"

	"shortline/internal/store"
	"shortline/internal/testsupport"
)

func newLedger(t *testing.T) (*Ledger, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ledger := New(st, cfg, nil)
	if err := ledger.Init(context.Background(), cfg); err != nil {
		t.Fatalf("ledger init: %v", err)
	}
	return ledger, st
}

func TestInitSeedsResourceRows(t *testing.T) {
	ledger, st := newLedger(t)
	ctx := context.Background()

	resources, err := st.ListQuotaResources(ctx)
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	if len(resources) != 3 {
		t.Fatalf("expected 3 seeded resources, got %d", len(resources))
	}
	for _, res := range resources {
		if res.Limit <= 0 || res.Used != 0 {
			t.Fatalf("bad seed for %s: %+v", res.APIName, res)
		}
		if !res.NextResetAt.After(ledger.now()) {
			t.Fatalf("%s reset boundary %s is not in the future", res.APIName, res.NextResetAt)
		}
	}

	// Re-seeding after usage keeps the counter.
	if err := ledger.ReportUsage(ctx, ResourceLLM, 5); err != nil {
		t.Fatalf("report usage: %v", err)
	}
	cfg := testsupport.NewConfig(t)
	if err := ledger.Init(ctx, cfg); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	row, err := st.GetQuotaResource(ctx, ResourceLLM)
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if row.Used != 5 {
		t.Fatalf("re-init reset usage counter: %+v", row)
	}
}

func TestCheckFailsOpen(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	status := ledger.Check(ctx, "unknown-service")
	if !status.Available {
		t.Fatal("unknown resource must be treated as available")
	}

	status = ledger.Check(ctx, ResourceLLM)
	if !status.Available || status.Remaining <= 0 {
		t.Fatalf("fresh resource reported unavailable: %+v", status)
	}
}

func TestReportUsageAndExhaustion(t *testing.T) {
	ledger, st := newLedger(t)
	ctx := context.Background()

	// Zero and negative amounts never touch the counter.
	if err := ledger.ReportUsage(ctx, ResourceLLM, 0); err != nil {
		t.Fatalf("report zero: %v", err)
	}
	if err := ledger.ReportUsage(ctx, ResourceLLM, -3); err != nil {
		t.Fatalf("report negative: %v", err)
	}
	row, err := st.GetQuotaResource(ctx, ResourceLLM)
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if row.Used != 0 {
		t.Fatalf("non-positive usage recorded: %+v", row)
	}

	if err := ledger.ReportUsage(ctx, ResourceLLM, row.Limit); err != nil {
		t.Fatalf("report usage: %v", err)
	}
	status := ledger.Check(ctx, ResourceLLM)
	if status.Available || status.Remaining != 0 {
		t.Fatalf("exhausted resource still available: %+v", status)
	}
}

func TestMarkExhaustedOverridesLocalCounter(t *testing.T) {
	ledger, _ := newLedger(t)
	ctx := context.Background()

	if err := ledger.MarkExhausted(ctx, ResourceYouTube); err != nil {
		t.Fatalf("mark exhausted: %v", err)
	}
	status := ledger.Check(ctx, ResourceYouTube)
	if status.Available {
		t.Fatal("provider-reported exhaustion ignored")
	}
}

func TestResetIfDueAdvancesBoundary(t *testing.T) {
	ledger, st := newLedger(t)
	ctx := context.Background()
	start := ledger.now()

	if err := ledger.ReportUsage(ctx, ResourcePexels, 50); err != nil {
		t.Fatalf("report usage: %v", err)
	}

	// Nothing is due before the boundary.
	reset, err := ledger.ResetIfDue(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset {
		t.Fatal("reset fired before the boundary")
	}

	// Jump two days ahead so every seeded boundary has passed.
	ledger.now = func() time.Time { return start.Add(48 * time.Hour) }
	reset, err = ledger.ResetIfDue(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !reset {
		t.Fatal("reset did not fire after the boundary")
	}
	row, err := st.GetQuotaResource(ctx, ResourcePexels)
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if row.Used != 0 || row.IsExhausted {
		t.Fatalf("counters not cleared: %+v", row)
	}
	if !row.NextResetAt.After(ledger.now()) {
		t.Fatalf("boundary %s not advanced past %s", row.NextResetAt, ledger.now())
	}

	// Second pass at the same time is a no-op.
	reset, err = ledger.ResetIfDue(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset {
		t.Fatal("reset fired twice for the same boundary")
	}
}

func TestAutoResumeHonorsLookback(t *testing.T) {
	ledger, st := newLedger(t)
	ctx := context.Background()

	recent := testsupport.NewChannel(t, st, "recent")
	if err := st.Pause(ctx, recent.ID, store.PauseQuota); err != nil {
		t.Fatalf("pause: %v", err)
	}
	authPaused := testsupport.NewChannel(t, st, "auth-paused")
	if err := st.Pause(ctx, authPaused.ID, store.PauseAuth); err != nil {
		t.Fatalf("pause: %v", err)
	}

	resumed, err := ledger.AutoResume(ctx)
	if err != nil {
		t.Fatalf("auto-resume: %v", err)
	}
	if resumed != 1 {
		t.Fatalf("resumed %d channels, want 1", resumed)
	}
	got, err := st.GetChannel(ctx, recent.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if !got.Eligible() {
		t.Fatalf("quota-paused channel not resumed: %+v", got)
	}
	got, err = st.GetChannel(ctx, authPaused.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if got.Eligible() {
		t.Fatal("auth pause lifted by quota auto-resume")
	}
}

func TestAutoResumeSkipsStalePauses(t *testing.T) {
	ledger, st := newLedger(t)
	ctx := context.Background()

	channel := testsupport.NewChannel(t, st, "stale")
	if err := st.Pause(ctx, channel.ID, store.PauseQuota); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// A pause older than the lookback window stays for the operator.
	ledger.now = func() time.Time {
		return time.Now().Add(time.Duration(100) * time.Hour)
	}
	resumed, err := ledger.AutoResume(ctx)
	if err != nil {
		t.Fatalf("auto-resume: %v", err)
	}
	if resumed != 0 {
		t.Fatalf("stale pause resumed (%d channels)", resumed)
	}
}

func TestMaintainResumesOnlyAfterReset(t *testing.T) {
	ledger, st := newLedger(t)
	ctx := context.Background()
	start := ledger.now()

	channel := testsupport.NewChannel(t, st, "paused")
	if err := ledger.MarkExhausted(ctx, ResourceLLM); err != nil {
		t.Fatalf("mark exhausted: %v", err)
	}
	if err := st.Pause(ctx, channel.ID, store.PauseQuota); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Before the boundary the pass leaves everything alone.
	if err := ledger.maintain(ctx); err != nil {
		t.Fatalf("maintain: %v", err)
	}
	got, err := st.GetChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if got.Eligible() {
		t.Fatal("channel resumed before the quota reset")
	}

	// After the boundary the reset runs and then lifts the pause.
	ledger.now = func() time.Time { return start.Add(30 * time.Hour) }
	if err := ledger.maintain(ctx); err != nil {
		t.Fatalf("maintain: %v", err)
	}
	status := ledger.Check(ctx, ResourceLLM)
	if !status.Available {
		t.Fatalf("resource still exhausted after reset: %+v", status)
	}
	got, err = st.GetChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if !got.Eligible() {
		t.Fatalf("channel not resumed after reset: %+v", got)
	}
}
