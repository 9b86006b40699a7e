package store_test

import (
	"context"
	"testing"
	"time"

	"shortline/internal/store"
)

func mustResource(t *testing.T, st *store.Store, name string) *store.QuotaResource {
	t.Helper()
	resource, err := st.GetQuotaResource(context.Background(), name)
	if err != nil {
		t.Fatalf("get resource: %v", err)
	}
	if resource == nil {
		t.Fatalf("resource %s missing", name)
	}
	return resource
}

func checkInvariant(t *testing.T, res *store.QuotaResource) {
	t.Helper()
	want := res.Limit - res.Used
	if want < 0 {
		want = 0
	}
	if res.Remaining != want {
		t.Fatalf("remaining = %d, want %d (limit %d used %d)", res.Remaining, want, res.Limit, res.Used)
	}
	if res.IsExhausted && res.Remaining > 0 {
		t.Fatalf("exhausted with remaining %d", res.Remaining)
	}
}

func TestApplyUsageClampsAndFlipsExhaustion(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	reset := time.Now().Add(24 * time.Hour)
	if err := st.EnsureQuotaResource(ctx, "llm", 10, reset); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if err := st.ApplyUsage(ctx, "llm", 6); err != nil {
		t.Fatalf("apply: %v", err)
	}
	res := mustResource(t, st, "llm")
	checkInvariant(t, res)
	if res.Used != 6 || res.IsExhausted {
		t.Fatalf("after partial usage: %+v", res)
	}

	// Crossing the limit clamps remaining at zero and stamps exhausted_at.
	if err := st.ApplyUsage(ctx, "llm", 6); err != nil {
		t.Fatalf("apply: %v", err)
	}
	res = mustResource(t, st, "llm")
	checkInvariant(t, res)
	if !res.IsExhausted || res.Remaining != 0 {
		t.Fatalf("after exceeding limit: %+v", res)
	}
	if res.ExhaustedAt == nil {
		t.Fatal("exhausted_at not stamped")
	}
	firstExhausted := *res.ExhaustedAt

	// Further usage never rewinds the exhaustion timestamp.
	if err := st.ApplyUsage(ctx, "llm", 1); err != nil {
		t.Fatalf("apply: %v", err)
	}
	res = mustResource(t, st, "llm")
	checkInvariant(t, res)
	if !res.ExhaustedAt.Equal(firstExhausted) {
		t.Fatal("exhausted_at changed on later usage")
	}

	if err := st.ApplyUsage(ctx, "llm", -1); err == nil {
		t.Fatal("negative usage must be rejected")
	}
}

func TestMarkResourceExhaustedOverridesCounter(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	if err := st.EnsureQuotaResource(ctx, "youtube", 10000, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := st.ApplyUsage(ctx, "youtube", 100); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := st.MarkResourceExhausted(ctx, "youtube"); err != nil {
		t.Fatalf("mark exhausted: %v", err)
	}
	res := mustResource(t, st, "youtube")
	checkInvariant(t, res)
	if !res.IsExhausted || res.Remaining != 0 || res.ExhaustedAt == nil {
		t.Fatalf("exhaustion not recorded: %+v", res)
	}
}

func TestResetQuotaResourceRestoresBudget(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	if err := st.EnsureQuotaResource(ctx, "pexels", 200, time.Now()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := st.MarkResourceExhausted(ctx, "pexels"); err != nil {
		t.Fatalf("mark exhausted: %v", err)
	}

	nextReset := time.Now().Add(24 * time.Hour)
	if err := st.ResetQuotaResource(ctx, "pexels", nextReset); err != nil {
		t.Fatalf("reset: %v", err)
	}
	res := mustResource(t, st, "pexels")
	checkInvariant(t, res)
	if res.Used != 0 || res.Remaining != 200 || res.IsExhausted || res.ExhaustedAt != nil {
		t.Fatalf("reset incomplete: %+v", res)
	}
	if diff := res.NextResetAt.Sub(nextReset); diff > time.Second || diff < -time.Second {
		t.Fatalf("next reset = %s, want ~%s", res.NextResetAt, nextReset)
	}
}

func TestEnsureQuotaResourcePreservesUsage(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	reset := time.Now().Add(time.Hour)
	if err := st.EnsureQuotaResource(ctx, "llm", 10, reset); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := st.ApplyUsage(ctx, "llm", 4); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// A raised limit keeps the counter and recomputes remaining.
	if err := st.EnsureQuotaResource(ctx, "llm", 20, reset); err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	res := mustResource(t, st, "llm")
	checkInvariant(t, res)
	if res.Used != 4 || res.Limit != 20 || res.Remaining != 16 {
		t.Fatalf("limit change mishandled: %+v", res)
	}

	// A lowered limit below current usage clamps to exhausted.
	if err := st.EnsureQuotaResource(ctx, "llm", 3, reset); err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	res = mustResource(t, st, "llm")
	checkInvariant(t, res)
	if !res.IsExhausted || res.Remaining != 0 {
		t.Fatalf("lowered limit mishandled: %+v", res)
	}
}
