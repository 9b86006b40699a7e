package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"shortline/internal/logging"
	"shortline/internal/recovery"
	"shortline/internal/store"
)

// handleFailure routes a stage error through the recovery manager, fails the
// job, and emits the operator-facing signals the decision calls for. It
// reports whether the remainder of the tick should be abandoned.
func (m *Manager) handleFailure(ctx context.Context, job *store.VideoJob, channel *store.Channel, stage string, stageErr error) bool {
	// Shutdown mid-stage is not a job failure; the reclaimer or the next
	// tick picks the job back up.
	if errors.Is(stageErr, context.Canceled) && ctx.Err() != nil {
		return true
	}

	pctx := context.WithoutCancel(ctx)
	record := m.recovery.Recover(pctx, channel.ID, stageErr)

	message := strings.TrimSpace(stageErr.Error())
	if message == "" {
		message = fmt.Sprintf("%s failed without detail", stage)
	}
	if err := m.store.SetJobError(pctx, job.ID, message); err != nil {
		m.logger.Error("failed to persist job error",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
	}
	if err := m.store.Transition(pctx, job.ID,
		[]store.JobState{store.StateValidating, store.StateGenerating, store.StateUploading},
		store.StateFailed); err != nil && !errors.Is(err, store.ErrConflict) {
		m.logger.Error("failed to mark job failed",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Error(err))
	}

	m.appendLog(pctx, channel.ID, "error", stage,
		fmt.Sprintf("job %d failed (%s): %s", job.ID, record.Category, message))
	m.logger.Error("stage failed",
		logging.Int64(logging.FieldChannel, channel.ID),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("stage", stage),
		logging.String(logging.FieldCategory, string(record.Category)),
		logging.String(logging.FieldDecision, string(record.Decision)),
		logging.Error(stageErr))

	m.notifyFailure(pctx, channel, record, stage, stageErr)
	return record.Decision == recovery.DecisionAbortTick
}

func (m *Manager) notifyFailure(ctx context.Context, channel *store.Channel, record recovery.Record, stage string, stageErr error) {
	switch record.Decision {
	case recovery.DecisionPauseChannel:
		if err := m.notifier.NotifyChannelPaused(ctx, channel.Name, string(record.Category)); err != nil {
			m.logger.Warn("pause notification failed", logging.Error(err))
		}
		if record.Category == recovery.CategoryQuota && record.Resource != "" {
			status := m.ledger.Check(ctx, record.Resource)
			if err := m.notifier.NotifyQuotaExhausted(ctx, record.Resource, status.NextReset); err != nil {
				m.logger.Warn("quota notification failed", logging.Error(err))
			}
		}
	default:
		if err := m.notifier.NotifyError(ctx, stageErr, fmt.Sprintf("%s (%s)", stage, channel.Name)); err != nil {
			m.logger.Warn("error notification failed", logging.Error(err))
		}
	}
}
