package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateJob inserts a fresh SCHEDULED job for a channel. The insert is
// guarded so that a channel with any non-terminal job gets ErrJobInFlight
// instead of a second row; this is what bounds work to one job per channel.
func (s *Store) CreateJob(ctx context.Context, channelID int64) (*VideoJob, error) {
	blocking := nonTerminalStates()
	placeholders := makePlaceholders(len(blocking))
	now := timestampNow()

	args := []any{channelID, StateScheduled, now, now, channelID}
	for _, state := range blocking {
		args = append(args, state)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO video_jobs (channel_id, state, created_at, updated_at)
         SELECT ?, ?, ?, ?
         WHERE NOT EXISTS (
            SELECT 1 FROM video_jobs WHERE channel_id = ? AND state IN (`+placeholders+`)
         )`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrJobInFlight
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a video job by identifier.
func (s *Store) GetJob(ctx context.Context, id int64) (*VideoJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM video_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ActiveJobForChannel returns the channel's non-terminal job, if any.
func (s *Store) ActiveJobForChannel(ctx context.Context, channelID int64) (*VideoJob, error) {
	blocking := nonTerminalStates()
	placeholders := makePlaceholders(len(blocking))
	args := []any{channelID}
	for _, state := range blocking {
		args = append(args, state)
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM video_jobs WHERE channel_id = ? AND state IN (`+placeholders+`) LIMIT 1`,
		args...,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for channel: %w", err)
	}
	return job, nil
}

// JobsByState returns jobs matching any of the given states, oldest first.
func (s *Store) JobsByState(ctx context.Context, states ...JobState) ([]*VideoJob, error) {
	if len(states) == 0 {
		rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM video_jobs ORDER BY created_at`)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		defer rows.Close()
		return collectJobs(rows)
	}

	placeholders := makePlaceholders(len(states))
	args := make([]any, len(states))
	for i, state := range states {
		args[i] = state
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM video_jobs WHERE state IN (`+placeholders+`) ORDER BY created_at`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs by state: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Transition performs a compare-and-swap state change: it succeeds only when
// the job is currently in one of fromStates, otherwise it returns
// ErrConflict without mutating anything. This is the sole mutation primitive
// for job state.
func (s *Store) Transition(ctx context.Context, jobID int64, fromStates []JobState, toState JobState) error {
	if len(fromStates) == 0 {
		return errors.New("transition requires at least one source state")
	}
	placeholders := makePlaceholders(len(fromStates))
	args := []any{toState, timestampNow()}
	extra := ""
	if toState == StateReady {
		extra = ", ready_at = ?"
		args = append(args, timestampNow())
	}
	args = append(args, jobID)
	for _, state := range fromStates {
		args = append(args, state)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE video_jobs SET state = ?, updated_at = ?`+extra+` WHERE id = ? AND state IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %d not in %v", ErrConflict, jobID, fromStates)
	}
	return nil
}

// SetArtifact records the staged artifact handle produced by generation.
func (s *Store) SetArtifact(ctx context.Context, jobID int64, artifactRef string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE video_jobs SET staged_artifact_ref = ?, updated_at = ? WHERE id = ?`,
		nullableString(artifactRef), timestampNow(), jobID,
	)
	if err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	return nil
}

// SetResult records the published URL on a posted job.
func (s *Store) SetResult(ctx context.Context, jobID int64, resultURL string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE video_jobs SET result_url = ?, updated_at = ? WHERE id = ?`,
		nullableString(resultURL), timestampNow(), jobID,
	)
	if err != nil {
		return fmt.Errorf("set result: %w", err)
	}
	return nil
}

// SetJobError records the failure message on a job.
func (s *Store) SetJobError(ctx context.Context, jobID int64, message string) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE video_jobs SET error_message = ?, last_heartbeat = NULL, updated_at = ? WHERE id = ?`,
		nullableString(message), timestampNow(), jobID,
	)
	if err != nil {
		return fmt.Errorf("set job error: %w", err)
	}
	return nil
}

// UpdateJobHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateJobHeartbeat(ctx context.Context, jobID int64) error {
	now := timestampNow()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE video_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, jobID,
	)
	if err != nil {
		return fmt.Errorf("update job heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleJobs fails processing jobs whose heartbeat expired before the
// cutoff (a crash mid-stage). The channel schedules a fresh job on its next
// due cycle; the half-finished attempt is never resumed.
func (s *Store) ReclaimStaleJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	processing := []JobState{StateValidating, StateGenerating, StateUploading}
	placeholders := makePlaceholders(len(processing))
	args := []any{StateFailed, "reclaimed after missed heartbeat", timestampNow()}
	for _, state := range processing {
		args = append(args, state)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.execWithRetry(
		ctx,
		`UPDATE video_jobs
         SET state = ?, error_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE state IN (`+placeholders+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryJob moves a failed job back to SCHEDULED with a cleared error. The
// update is guarded against a concurrent non-terminal job on the same
// channel so retrying never doubles the channel's in-flight work.
func (s *Store) RetryJob(ctx context.Context, jobID int64) error {
	blocking := nonTerminalStates()
	placeholders := makePlaceholders(len(blocking))
	args := []any{StateScheduled, timestampNow(), jobID, StateFailed, jobID}
	for _, state := range blocking {
		args = append(args, state)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE video_jobs
         SET state = ?, error_message = NULL, staged_artifact_ref = NULL, updated_at = ?
         WHERE id = ? AND state = ? AND NOT EXISTS (
            SELECT 1 FROM video_jobs other
            WHERE other.channel_id = video_jobs.channel_id
              AND other.id != ?
              AND other.state IN (`+placeholders+`)
         )`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %d is not failed or its channel has work in flight", ErrConflict, jobID)
	}
	return nil
}

// DiscardFailedJobs marks failed jobs as deleted. With no ids, every failed
// job is discarded. Returns the number of jobs affected.
func (s *Store) DiscardFailedJobs(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE video_jobs SET state = ?, updated_at = ? WHERE state = ?`
	args := []any{StateDeleted, timestampNow(), StateFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("discard failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminalJobs removes posted and deleted jobs, returning the count.
func (s *Store) ClearTerminalJobs(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM video_jobs WHERE state IN (?, ?)`,
		StatePosted, StateDeleted,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (JobStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM video_jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(JobStats)
	for rows.Next() {
		var state JobState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

const jobColumns = "id, channel_id, state, staged_artifact_ref, error_message, result_url, created_at, updated_at, ready_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*VideoJob, error) {
	var (
		id           int64
		channelID    int64
		stateStr     string
		artifact     sql.NullString
		errorMessage sql.NullString
		resultURL    sql.NullString
		createdRaw   string
		updatedRaw   string
		readyRaw     sql.NullString
		heartbeatRaw sql.NullString
	)
	if err := scanner.Scan(
		&id, &channelID, &stateStr, &artifact, &errorMessage, &resultURL,
		&createdRaw, &updatedRaw, &readyRaw, &heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &VideoJob{
		ID:                id,
		ChannelID:         channelID,
		State:             JobState(stateStr),
		StagedArtifactRef: artifact.String,
		ErrorMessage:      errorMessage.String,
		ResultURL:         resultURL.String,
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = t
	}
	if readyRaw.Valid {
		if t, err := parseTimeString(readyRaw.String); err == nil {
			job.ReadyAt = &t
		}
	}
	if heartbeatRaw.Valid {
		if t, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &t
		}
	}
	return job, nil
}

func collectJobs(rows *sql.Rows) ([]*VideoJob, error) {
	var jobs []*VideoJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
