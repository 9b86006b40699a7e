package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shortline/internal/config"
	"shortline/internal/logging"
	"shortline/internal/store"
)

// Resource names used as quota_resources keys. Adapters report usage under
// these names and the recovery manager pauses channels against them.
const (
	ResourceLLM     = "llm"
	ResourcePexels  = "pexels"
	ResourceYouTube = "youtube"
)

// Status is the answer to a pre-flight quota check.
type Status struct {
	Resource  string
	Available bool
	Remaining int
	NextReset time.Time
}

// Ledger tracks daily budgets for the external APIs. All counters live in the
// store so they survive restarts; the ledger layers reset and resume policy
// on top.
type Ledger struct {
	store    *store.Store
	logger   *slog.Logger
	lookback time.Duration

	// now is swapped out by tests to pin the reset boundary.
	now func() time.Time
}

// New builds a ledger over the given store. The logger may be nil.
func New(st *store.Store, cfg *config.Config, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Ledger{
		store:    st,
		logger:   logger.With(logging.String(logging.FieldComponent, "quota")),
		lookback: time.Duration(cfg.Quota.ResumeLookbackHours) * time.Hour,
		now:      time.Now,
	}
}

// Init seeds the resource rows from configuration. Existing usage counters
// are preserved; only limits and missing rows are written.
func (l *Ledger) Init(ctx context.Context, cfg *config.Config) error {
	reset := nextLocalMidnight(l.now())
	seeds := []struct {
		name  string
		limit int
	}{
		{ResourceLLM, cfg.Quota.LLMDailyRequests},
		{ResourcePexels, cfg.Quota.PexelsDailyRequests},
		{ResourceYouTube, cfg.Quota.YouTubeDailyUnits},
	}
	for _, seed := range seeds {
		if err := l.store.EnsureQuotaResource(ctx, seed.name, seed.limit, reset); err != nil {
			return fmt.Errorf("seed quota resource %s: %w", seed.name, err)
		}
	}
	return nil
}

// Check reports whether the named resource still has budget. Unknown
// resources and read failures are treated as available so the ledger can
// never block work on its own bookkeeping.
func (l *Ledger) Check(ctx context.Context, resource string) Status {
	row, err := l.store.GetQuotaResource(ctx, resource)
	if err != nil {
		l.logger.Warn("quota check failed, assuming available",
			logging.String(logging.FieldResource, resource),
			logging.Error(err))
		return Status{Resource: resource, Available: true}
	}
	if row == nil {
		return Status{Resource: resource, Available: true}
	}
	return Status{
		Resource:  resource,
		Available: !row.IsExhausted && row.Remaining > 0,
		Remaining: row.Remaining,
		NextReset: row.NextResetAt,
	}
}

// ReportUsage records consumed units against a resource. Reporting against an
// unknown resource is a no-op.
func (l *Ledger) ReportUsage(ctx context.Context, resource string, amount int) error {
	if amount <= 0 {
		return nil
	}
	if err := l.store.ApplyUsage(ctx, resource, amount); err != nil {
		return fmt.Errorf("report usage for %s: %w", resource, err)
	}
	return nil
}

// MarkExhausted forces a resource into the exhausted state regardless of the
// local counter. Used when the provider rejects a call for quota while our
// estimate still shows budget.
func (l *Ledger) MarkExhausted(ctx context.Context, resource string) error {
	if err := l.store.MarkResourceExhausted(ctx, resource); err != nil {
		return fmt.Errorf("mark %s exhausted: %w", resource, err)
	}
	l.logger.Warn("resource marked exhausted by provider",
		logging.String(logging.FieldResource, resource))
	return nil
}

// ResetIfDue zeroes every resource whose reset boundary has passed and
// advances the boundary to the next local midnight. It returns true when at
// least one resource was reset.
func (l *Ledger) ResetIfDue(ctx context.Context) (bool, error) {
	now := l.now()
	resources, err := l.store.ListQuotaResources(ctx)
	if err != nil {
		return false, fmt.Errorf("list quota resources: %w", err)
	}
	reset := false
	for _, resource := range resources {
		if resource.NextResetAt.After(now) {
			continue
		}
		next := nextLocalMidnight(now)
		if err := l.store.ResetQuotaResource(ctx, resource.APIName, next); err != nil {
			return reset, fmt.Errorf("reset %s: %w", resource.APIName, err)
		}
		l.logger.Info("quota counter reset",
			logging.String(logging.FieldResource, resource.APIName),
			logging.Time("next_reset", next))
		reset = true
	}
	return reset, nil
}

// AutoResume lifts the quota pause from channels paused within the lookback
// window. Channels paused for auth or by an operator are never touched here.
func (l *Ledger) AutoResume(ctx context.Context) (int64, error) {
	cutoff := l.now().Add(-l.lookback)
	resumed, err := l.store.ResumeQuotaPaused(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("auto-resume quota-paused channels: %w", err)
	}
	if resumed > 0 {
		l.logger.Info("resumed quota-paused channels", logging.Int64("channels", resumed))
	}
	return resumed, nil
}

// RunMaintenance resets due counters and resumes eligible channels on a fixed
// interval until the context is cancelled. It runs independently of the
// orchestration tick so a stalled pipeline cannot delay the daily reset.
func (l *Ledger) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := l.maintain(ctx); err != nil && ctx.Err() == nil {
			l.logger.Error("quota maintenance pass failed", logging.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l *Ledger) maintain(ctx context.Context) error {
	reset, err := l.ResetIfDue(ctx)
	if err != nil {
		return err
	}
	if !reset {
		return nil
	}
	_, err = l.AutoResume(ctx)
	return err
}

// nextLocalMidnight returns 00:00 of the following day in local time.
func nextLocalMidnight(now time.Time) time.Time {
	local := now.Local()
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, local.Location())
}
