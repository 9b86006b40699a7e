package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shortline/internal/heartbeat"
	"shortline/internal/notifications"
	"shortline/internal/quota"
	"shortline/internal/recovery"
	"shortline/internal/services"
	"shortline/internal/services/generator"
	"shortline/internal/services/youtube"
	"shortline/internal/store"
	"shortline/internal/testsupport"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	dir   string
}

func (f *fakeGenerator) Generate(ctx context.Context, channel *store.Channel, job *store.VideoJob) (generator.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return generator.Result{}, f.err
	}
	artifact := filepath.Join(f.dir, "artifact.mp4")
	if err := os.WriteFile(artifact, []byte("video"), 0o644); err != nil {
		return generator.Result{}, err
	}
	meta := youtube.Metadata{Title: "Test Video", Description: "desc", Tags: []string{"tag"}}
	if err := generator.WriteSidecar(artifact, meta); err != nil {
		return generator.Result{}, err
	}
	return generator.Result{ArtifactPath: artifact, Meta: meta}, nil
}

type fakeUploader struct {
	mu            sync.Mutex
	uploads       int
	err           error
	authenticated bool
}

func (f *fakeUploader) Upload(ctx context.Context, channelName, videoPath string, meta youtube.Metadata) (string, error) {
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return "https://www.youtube.com/watch?v=test", nil
}

func (f *fakeUploader) IsAuthenticated(channelName string) bool { return f.authenticated }

func (f *fakeUploader) CostUnits() int { return 1600 }

func newFixture(t *testing.T, validate localValidator) (*Manager, *store.Store, *quota.Ledger, *fakeGenerator, *fakeUploader) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.StagingIntervalMins = 0
	st := testsupport.MustOpenStore(t, cfg)

	ledger := quota.New(st, cfg, nil)
	if err := ledger.Init(context.Background(), cfg); err != nil {
		t.Fatalf("ledger init: %v", err)
	}
	rec := recovery.NewManager(st, ledger, nil)
	gen := &fakeGenerator{dir: cfg.Paths.StagingDir}
	up := &fakeUploader{authenticated: true}
	notifier := notifications.NewService(cfg)

	manager := NewManager(cfg, st, ledger, rec, gen, up, notifier, validate, nil)
	manager.policy = manager.policy.WithSleeper(func(context.Context, time.Duration) error { return nil })
	return manager, st, ledger, gen, up
}

func mustJob(t *testing.T, st *store.Store, channelID int64) *store.VideoJob {
	t.Helper()
	job, err := st.ActiveJobForChannel(context.Background(), channelID)
	if err != nil {
		t.Fatalf("active job: %v", err)
	}
	return job
}

func TestTickPostsDueChannelEndToEnd(t *testing.T) {
	manager, st, _, gen, up := newFixture(t, nil)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")

	manager.Tick(ctx)

	if gen.calls != 1 {
		t.Fatalf("expected 1 generation, got %d", gen.calls)
	}
	if up.uploads != 1 {
		t.Fatalf("expected 1 upload, got %d", up.uploads)
	}

	jobs, err := st.JobsByState(ctx, store.StatePosted)
	if err != nil {
		t.Fatalf("list posted: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 posted job, got %d", len(jobs))
	}
	if jobs[0].ResultURL == "" {
		t.Fatal("posted job missing result url")
	}

	updated, err := st.GetChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if !updated.NextPostAt.After(channel.NextPostAt) {
		t.Fatal("expected channel schedule to advance after posting")
	}

	resource, err := st.GetQuotaResource(ctx, quota.ResourceYouTube)
	if err != nil || resource == nil {
		t.Fatalf("get youtube resource: %v", err)
	}
	if resource.Used != 1600 {
		t.Fatalf("expected 1600 units consumed, got %d", resource.Used)
	}

	marker, err := heartbeat.Read(manager.cfg.Paths.DataDir)
	if err != nil {
		t.Fatalf("liveness marker missing: %v", err)
	}
	if marker.PID != os.Getpid() {
		t.Fatalf("unexpected marker pid %d", marker.PID)
	}
}

func TestTickSchedulesOnlyOneJobPerChannel(t *testing.T) {
	manager, st, _, _, _ := newFixture(t, nil)
	// Keep the rendered job parked in READY so it stays non-terminal
	// across ticks.
	manager.stagingInterval = time.Hour
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")

	manager.Tick(ctx)
	manager.Tick(ctx)

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	total := 0
	for _, count := range stats {
		total += count
	}
	if total != 1 {
		t.Fatalf("expected exactly 1 job for channel %d, got %d (%v)", channel.ID, total, stats)
	}
	if stats[store.StateReady] != 1 {
		t.Fatalf("expected the job to wait in READY, got %v", stats)
	}
}

func TestAuthFailurePausesChannel(t *testing.T) {
	manager, st, _, gen, up := newFixture(t, nil)
	up.authenticated = false
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")

	manager.Tick(ctx)

	if gen.calls != 0 {
		t.Fatal("generation must not run for an unauthenticated channel")
	}
	updated, err := st.GetChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if updated.PausedReason != store.PauseAuth {
		t.Fatalf("expected auth pause, got %q", updated.PausedReason)
	}
	job := mustJob(t, st, channel.ID)
	if job != nil {
		t.Fatalf("expected no active job, found state %s", job.State)
	}
	failed, err := st.JobsByState(ctx, store.StateFailed)
	if err != nil || len(failed) != 1 {
		t.Fatalf("expected 1 failed job, got %d (%v)", len(failed), err)
	}
}

func TestQuotaExhaustionPausesChannel(t *testing.T) {
	manager, st, ledger, gen, _ := newFixture(t, nil)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")
	if err := ledger.MarkExhausted(ctx, quota.ResourceLLM); err != nil {
		t.Fatalf("mark exhausted: %v", err)
	}

	manager.Tick(ctx)

	if gen.calls != 0 {
		t.Fatal("generation must not run with an exhausted budget")
	}
	updated, err := st.GetChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if updated.PausedReason != store.PauseQuota {
		t.Fatalf("expected quota pause, got %q", updated.PausedReason)
	}
}

func TestDependencyFailureAbortsTick(t *testing.T) {
	validate := func() []string { return []string{"ffmpeg missing"} }
	manager, st, _, gen, _ := newFixture(t, validate)
	ctx := context.Background()
	first := testsupport.NewChannel(t, st, "first")
	second := testsupport.NewChannel(t, st, "second")

	manager.Tick(ctx)

	if gen.calls != 0 {
		t.Fatal("generation must not run when the environment is broken")
	}
	failed, err := st.JobsByState(ctx, store.StateFailed)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	scheduled, err := st.JobsByState(ctx, store.StateScheduled)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(failed) != 1 || len(scheduled) != 1 {
		t.Fatalf("expected the tick to abort after one failure, got failed=%d scheduled=%d",
			len(failed), len(scheduled))
	}

	// Channels stay active: a broken environment is not the channel's fault.
	for _, ch := range []*store.Channel{first, second} {
		updated, err := st.GetChannel(ctx, ch.ID)
		if err != nil {
			t.Fatalf("get channel: %v", err)
		}
		if updated.PausedReason != store.PauseNone {
			t.Fatalf("channel %s unexpectedly paused: %s", ch.Name, updated.PausedReason)
		}
	}
}

func TestUploadDeferredWhenQuotaDrainsDuringStaging(t *testing.T) {
	manager, st, ledger, _, up := newFixture(t, nil)
	manager.stagingInterval = time.Hour
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")

	// First tick renders the job and parks it in READY.
	manager.Tick(ctx)
	if up.uploads != 0 {
		t.Fatalf("expected no upload during staging, got %d", up.uploads)
	}

	// Another consumer drains the upload budget while the job waits.
	if err := ledger.MarkExhausted(ctx, quota.ResourceYouTube); err != nil {
		t.Fatalf("mark exhausted: %v", err)
	}

	manager.stagingInterval = 0
	manager.Tick(ctx)

	if up.uploads != 0 {
		t.Fatalf("upload must wait for the quota reset, got %d uploads", up.uploads)
	}
	job := mustJob(t, st, channel.ID)
	if job == nil || job.State != store.StateReady {
		t.Fatalf("expected the job parked in READY, got %+v", job)
	}
	updated, err := st.GetChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if updated.PausedReason != store.PauseNone {
		t.Fatalf("a deferred upload must not pause the channel, got %q", updated.PausedReason)
	}
}

func TestTransientUploadFailureFailsJobOnce(t *testing.T) {
	manager, st, _, _, up := newFixture(t, nil)
	up.err = services.Wrap(services.ErrTransient, "upload", "insert video", "http 502", nil)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")

	manager.Tick(ctx)

	failed, err := st.JobsByState(ctx, store.StateFailed)
	if err != nil || len(failed) != 1 {
		t.Fatalf("expected 1 failed job, got %d (%v)", len(failed), err)
	}
	updated, err := st.GetChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if updated.PausedReason != store.PauseNone {
		t.Fatalf("transient failure must not pause the channel, got %q", updated.PausedReason)
	}
	if failed[0].ErrorMessage == "" {
		t.Fatal("failed job missing error message")
	}
}
