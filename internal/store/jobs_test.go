package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"shortline/internal/store"
	"shortline/internal/testsupport"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return testsupport.MustOpenStore(t, cfg)
}

func failJob(t *testing.T, st *store.Store, jobID int64) {
	t.Helper()
	ctx := context.Background()
	if err := st.Transition(ctx, jobID, []store.JobState{store.StateScheduled}, store.StateValidating); err != nil {
		t.Fatalf("to validating: %v", err)
	}
	if err := st.Transition(ctx, jobID, []store.JobState{store.StateValidating}, store.StateFailed); err != nil {
		t.Fatalf("to failed: %v", err)
	}
}

func TestCreateJobEnforcesSingleInFlight(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")

	job, err := st.CreateJob(ctx, channel.ID)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if job.State != store.StateScheduled {
		t.Fatalf("new job state = %s", job.State)
	}

	if _, err := st.CreateJob(ctx, channel.ID); !errors.Is(err, store.ErrJobInFlight) {
		t.Fatalf("second create: got %v, want ErrJobInFlight", err)
	}

	// A failed job no longer blocks the channel.
	failJob(t, st, job.ID)
	if _, err := st.CreateJob(ctx, channel.ID); err != nil {
		t.Fatalf("create after failure: %v", err)
	}
}

func TestTransitionIsCompareAndSwap(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")
	job, err := st.CreateJob(ctx, channel.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := st.Transition(ctx, job.ID, []store.JobState{store.StateScheduled}, store.StateValidating); err != nil {
		t.Fatalf("first transition: %v", err)
	}
	err = st.Transition(ctx, job.ID, []store.JobState{store.StateScheduled}, store.StateValidating)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("repeated transition: got %v, want ErrConflict", err)
	}
}

func TestTransitionConcurrentClaimsSingleWinner(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")
	job, err := st.CreateJob(ctx, channel.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	for _, to := range []store.JobState{store.StateValidating, store.StateGenerating, store.StateReady} {
		if err := st.Transition(ctx, job.ID, []store.JobState{job.State}, to); err != nil {
			t.Fatalf("to %s: %v", to, err)
		}
		job.State = to
	}

	var start sync.WaitGroup
	start.Add(1)
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			start.Wait()
			results <- st.Transition(ctx, job.ID, []store.JobState{store.StateReady}, store.StateUploading)
		}()
	}
	start.Done()

	var wins, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected transition error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("got %d winners and %d conflicts, want exactly one of each", wins, conflicts)
	}
}

func TestTransitionToReadyStampsReadyAt(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")
	job, err := st.CreateJob(ctx, channel.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}

	steps := []struct {
		from store.JobState
		to   store.JobState
	}{
		{store.StateScheduled, store.StateValidating},
		{store.StateValidating, store.StateGenerating},
		{store.StateGenerating, store.StateReady},
	}
	for _, step := range steps {
		if err := st.Transition(ctx, job.ID, []store.JobState{step.from}, step.to); err != nil {
			t.Fatalf("%s -> %s: %v", step.from, step.to, err)
		}
	}

	updated, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if updated.ReadyAt == nil {
		t.Fatal("expected ready_at to be stamped on entering READY")
	}
}

func TestRetryJobReschedulesFailedJob(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")
	job, err := st.CreateJob(ctx, channel.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	failJob(t, st, job.ID)
	if err := st.SetJobError(ctx, job.ID, "render exploded"); err != nil {
		t.Fatalf("set error: %v", err)
	}

	if err := st.RetryJob(ctx, job.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	updated, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if updated.State != store.StateScheduled {
		t.Fatalf("state after retry = %s", updated.State)
	}
	if updated.ErrorMessage != "" {
		t.Fatalf("error message survived retry: %q", updated.ErrorMessage)
	}

	// Retrying a non-failed job conflicts.
	if err := st.RetryJob(ctx, job.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("retry of scheduled job: got %v, want ErrConflict", err)
	}
}

func TestRetryJobRefusesWhenChannelHasWorkInFlight(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")

	failed, err := st.CreateJob(ctx, channel.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	failJob(t, st, failed.ID)
	if _, err := st.CreateJob(ctx, channel.ID); err != nil {
		t.Fatalf("create replacement job: %v", err)
	}

	if err := st.RetryJob(ctx, failed.ID); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("retry with active job: got %v, want ErrConflict", err)
	}
}

func TestDiscardFailedJobs(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	first := testsupport.NewChannel(t, st, "first")
	second := testsupport.NewChannel(t, st, "second")

	jobA, err := st.CreateJob(ctx, first.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	jobB, err := st.CreateJob(ctx, second.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	failJob(t, st, jobA.ID)
	failJob(t, st, jobB.ID)

	count, err := st.DiscardFailedJobs(ctx, jobA.ID)
	if err != nil {
		t.Fatalf("discard one: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 discarded, got %d", count)
	}
	updated, err := st.GetJob(ctx, jobA.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if updated.State != store.StateDeleted {
		t.Fatalf("state after discard = %s", updated.State)
	}

	count, err = st.DiscardFailedJobs(ctx)
	if err != nil {
		t.Fatalf("discard rest: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected remaining failed job discarded, got %d", count)
	}
}

func TestReclaimStaleJobsFailsExpiredHeartbeats(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	channel := testsupport.NewChannel(t, st, "oceanfacts")
	job, err := st.CreateJob(ctx, channel.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := st.Transition(ctx, job.ID, []store.JobState{store.StateScheduled}, store.StateGenerating); err != nil {
		t.Fatalf("to generating: %v", err)
	}
	if err := st.UpdateJobHeartbeat(ctx, job.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	// Heartbeat is fresh: nothing reclaimed.
	count, err := st.ReclaimStaleJobs(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if count != 0 {
		t.Fatalf("fresh heartbeat reclaimed: %d", count)
	}

	count, err = st.ReclaimStaleJobs(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaimed job, got %d", count)
	}
	updated, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if updated.State != store.StateFailed {
		t.Fatalf("state after reclaim = %s", updated.State)
	}
	if updated.ErrorMessage == "" {
		t.Fatal("reclaim must record why the job failed")
	}
}

func TestStatsGroupsByState(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	first := testsupport.NewChannel(t, st, "first")
	second := testsupport.NewChannel(t, st, "second")

	if _, err := st.CreateJob(ctx, first.ID); err != nil {
		t.Fatalf("create job: %v", err)
	}
	job, err := st.CreateJob(ctx, second.ID)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	failJob(t, st, job.ID)

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[store.StateScheduled] != 1 || stats[store.StateFailed] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}
