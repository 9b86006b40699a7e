package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shortline/internal/logging"
	"shortline/internal/quota"
	"shortline/internal/services"
	"shortline/internal/services/generator"
	"shortline/internal/store"
)

// processScheduled runs every scheduled job through validation and
// generation. It reports whether the tick should abort because of an
// environmental failure.
func (m *Manager) processScheduled(ctx context.Context) bool {
	jobs, err := m.store.JobsByState(ctx, store.StateScheduled)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("failed to list scheduled jobs", logging.Error(err))
		}
		return false
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return false
		}
		if abort := m.runGeneration(ctx, job); abort {
			return true
		}
	}
	return false
}

func (m *Manager) runGeneration(ctx context.Context, job *store.VideoJob) bool {
	channel, err := m.store.GetChannel(ctx, job.ChannelID)
	if err != nil || channel == nil {
		m.logger.Error("job references unknown channel",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
		return false
	}
	// A paused channel keeps its scheduled job; it resumes where it left
	// off once the pause lifts.
	if !channel.Eligible() {
		return false
	}
	ctx, logger := m.stageContext(ctx, channel, job)

	if err := m.store.Transition(ctx, job.ID, []store.JobState{store.StateScheduled}, store.StateValidating); err != nil {
		if !errors.Is(err, store.ErrConflict) && ctx.Err() == nil {
			logger.Error("failed to claim job for validation", logging.Error(err))
		}
		return false
	}

	if err := m.validateJob(ctx, channel); err != nil {
		return m.handleFailure(ctx, job, channel, "validate", err)
	}

	if err := m.store.Transition(ctx, job.ID, []store.JobState{store.StateValidating}, store.StateGenerating); err != nil {
		return false
	}

	var result generator.Result
	genErr := m.executeWithHeartbeat(ctx, job.ID, m.generateTimeout, func(stageCtx context.Context) error {
		return m.policy.Do(stageCtx, func(attemptCtx context.Context) error {
			var err error
			result, err = m.generator.Generate(attemptCtx, channel, job)
			return err
		})
	})
	if genErr != nil {
		return m.handleFailure(ctx, job, channel, "generate", genErr)
	}

	pctx := context.WithoutCancel(ctx)
	if err := m.store.SetArtifact(pctx, job.ID, result.ArtifactPath); err != nil {
		return m.handleFailure(ctx, job, channel, "generate", err)
	}
	if err := m.store.Transition(pctx, job.ID, []store.JobState{store.StateGenerating}, store.StateReady); err != nil {
		logger.Error("failed to mark job ready", logging.Error(err))
		return false
	}
	m.appendLog(pctx, channel.ID, "info", "generate",
		fmt.Sprintf("job %d rendered %q", job.ID, result.Meta.Title))
	logger.Info("job ready for staging",
		logging.String(logging.FieldState, string(store.StateReady)))
	return false
}

// stageContext annotates ctx with the identifiers of the job being worked and
// a fresh correlation id, and derives a logger carrying the same fields.
func (m *Manager) stageContext(ctx context.Context, channel *store.Channel, job *store.VideoJob) (context.Context, *slog.Logger) {
	ctx = services.WithChannel(ctx, channel.Name)
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	return ctx, logging.WithContext(ctx, m.logger)
}

// validateJob runs the pre-generation gates. Each failure is classified so
// the recovery manager applies the right policy.
func (m *Manager) validateJob(ctx context.Context, channel *store.Channel) error {
	if m.validate != nil {
		if problems := m.validate(); len(problems) > 0 {
			return services.Wrap(services.ErrDependency, "validate", "environment",
				strings.Join(problems, "; "), nil)
		}
	}

	if !m.uploader.IsAuthenticated(channel.Name) {
		return services.Wrap(services.ErrAuth, "validate", "credentials",
			fmt.Sprintf("no usable upload token for channel %s", channel.Name), nil)
	}

	for _, resource := range []string{quota.ResourceLLM, quota.ResourcePexels} {
		status := m.ledger.Check(ctx, resource)
		if !status.Available {
			return services.WithResource(resource,
				services.Wrap(services.ErrQuota, "validate", "quota",
					fmt.Sprintf("%s budget exhausted", resource), nil))
		}
	}
	if !m.hasUploadBudget(ctx) {
		return services.WithResource(quota.ResourceYouTube,
			services.Wrap(services.ErrQuota, "validate", "quota",
				"insufficient upload units for one video", nil))
	}
	return nil
}

// hasUploadBudget reports whether the youtube budget covers one upload. A
// zero NextReset means the resource row is missing and the ledger treats it
// as unlimited.
func (m *Manager) hasUploadBudget(ctx context.Context) bool {
	status := m.ledger.Check(ctx, quota.ResourceYouTube)
	if !status.Available {
		return false
	}
	return status.NextReset.IsZero() || status.Remaining >= m.uploader.CostUnits()
}

// processReady uploads jobs whose staging window has elapsed.
func (m *Manager) processReady(ctx context.Context) {
	jobs, err := m.store.JobsByState(ctx, store.StateReady)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("failed to list ready jobs", logging.Error(err))
		}
		return
	}
	now := m.now()
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		if job.ReadyAt == nil || now.Sub(*job.ReadyAt) < m.stagingInterval {
			continue
		}
		if abort := m.runUpload(ctx, job); abort {
			return
		}
	}
}

func (m *Manager) runUpload(ctx context.Context, job *store.VideoJob) bool {
	channel, err := m.store.GetChannel(ctx, job.ChannelID)
	if err != nil || channel == nil {
		m.logger.Error("job references unknown channel",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
		return false
	}
	if !channel.Eligible() {
		return false
	}
	ctx, logger := m.stageContext(ctx, channel, job)

	// Quota can drain during the staging interval; an exhausted budget
	// parks the job in READY until the next reset.
	if !m.hasUploadBudget(ctx) {
		logger.Info("upload deferred, quota exhausted")
		return false
	}

	// The CAS claim is the idempotence gate: a reclaimed or concurrent
	// worker loses here and never double-posts.
	if err := m.store.Transition(ctx, job.ID, []store.JobState{store.StateReady}, store.StateUploading); err != nil {
		if !errors.Is(err, store.ErrConflict) && ctx.Err() == nil {
			logger.Error("failed to claim job for upload", logging.Error(err))
		}
		return false
	}

	meta, err := generator.ReadSidecar(job.StagedArtifactRef)
	if err != nil {
		return m.handleFailure(ctx, job, channel, "upload",
			services.Wrap(services.ErrTransient, "upload", "metadata", "staged metadata unreadable", err))
	}

	var resultURL string
	upErr := m.executeWithHeartbeat(ctx, job.ID, m.uploadTimeout, func(stageCtx context.Context) error {
		return m.policy.Do(stageCtx, func(attemptCtx context.Context) error {
			var err error
			resultURL, err = m.uploader.Upload(attemptCtx, channel.Name, job.StagedArtifactRef, meta)
			return err
		})
	})
	if upErr != nil {
		return m.handleFailure(ctx, job, channel, "upload", upErr)
	}

	pctx := context.WithoutCancel(ctx)
	if err := m.store.SetResult(pctx, job.ID, resultURL); err != nil {
		logger.Error("failed to persist result url", logging.Error(err))
	}
	if err := m.store.Transition(pctx, job.ID, []store.JobState{store.StateUploading}, store.StatePosted); err != nil {
		logger.Error("failed to mark job posted", logging.Error(err))
		return false
	}
	if err := m.ledger.ReportUsage(pctx, quota.ResourceYouTube, m.uploader.CostUnits()); err != nil {
		logger.Warn("failed to record upload quota usage", logging.Error(err))
	}
	if err := m.store.AdvanceSchedule(pctx, channel, m.now()); err != nil {
		logger.Error("failed to advance channel schedule", logging.Error(err))
	}
	generator.RemoveArtifact(job.StagedArtifactRef)
	m.appendLog(pctx, channel.ID, "info", "upload",
		fmt.Sprintf("job %d posted: %s", job.ID, resultURL))
	logger.Info("video posted", logging.String("url", resultURL))
	if err := m.notifier.NotifyVideoPosted(pctx, channel.Name, meta.Title, resultURL); err != nil {
		logger.Warn("posted notification failed", logging.Error(err))
	}
	return false
}

// executeWithHeartbeat runs fn under the stage timeout while a goroutine
// keeps the job heartbeat current so the reclaimer leaves it alone.
func (m *Manager) executeWithHeartbeat(ctx context.Context, jobID int64, timeout time.Duration, fn func(context.Context) error) error {
	stageCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go m.jobHeartbeatLoop(hbCtx, &wg, jobID)

	err := fn(stageCtx)

	hbCancel()
	wg.Wait()
	return err
}

func (m *Manager) jobHeartbeatLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	interval := m.hbInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.UpdateJobHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				m.logger.Warn("job heartbeat update failed",
					logging.Int64(logging.FieldJobID, jobID),
					logging.Error(err))
			}
		}
	}
}

func (m *Manager) appendLog(ctx context.Context, channelID int64, level, category, message string) {
	if err := m.store.AppendLog(ctx, channelID, level, category, message); err != nil {
		m.logger.Warn("failed to append operator log", logging.Error(err))
	}
}
