package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewChannelParams carries the operator-supplied fields for channel creation.
type NewChannelParams struct {
	Name         string
	Theme        string
	Tone         string
	Style        string
	PostInterval time.Duration
	NextPostAt   time.Time
}

// CreateChannel inserts a new channel. Names are unique; a duplicate insert
// surfaces the SQLite constraint error.
func (s *Store) CreateChannel(ctx context.Context, params NewChannelParams) (*Channel, error) {
	if params.Name == "" {
		return nil, errors.New("channel name is required")
	}
	if params.PostInterval <= 0 {
		return nil, errors.New("post interval must be positive")
	}

	now := timestampNow()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO channels (
            name, theme, tone, style, post_interval_minutes,
            is_active, paused_reason, next_post_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?, ?)`,
		params.Name,
		nullableString(params.Theme),
		nullableString(params.Tone),
		nullableString(params.Style),
		int64(params.PostInterval/time.Minute),
		PauseNone,
		zeroableTime(params.NextPostAt),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetChannel(ctx, id)
}

// GetChannel fetches a channel by identifier.
func (s *Store) GetChannel(ctx context.Context, id int64) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return channel, nil
}

// GetChannelByName fetches a channel by its unique name.
func (s *Store) GetChannelByName(ctx context.Context, name string) (*Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE name = ?`, name)
	channel, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel by name: %w", err)
	}
	return channel, nil
}

// ListChannels returns all channels ordered by name.
func (s *Store) ListChannels(ctx context.Context) ([]*Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// ListActiveUnpausedChannels returns only channels eligible for scheduling.
func (s *Store) ListActiveUnpausedChannels(ctx context.Context) ([]*Channel, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+channelColumns+` FROM channels WHERE is_active = 1 AND paused_reason = ? ORDER BY name`,
		PauseNone,
	)
	if err != nil {
		return nil, fmt.Errorf("list eligible channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// DueChannels returns eligible channels whose next_post_at has passed and
// which have no non-terminal video job.
func (s *Store) DueChannels(ctx context.Context, now time.Time) ([]*Channel, error) {
	blocking := nonTerminalStates()
	placeholders := makePlaceholders(len(blocking))
	args := []any{PauseNone, now.UTC().Format(time.RFC3339Nano)}
	for _, state := range blocking {
		args = append(args, state)
	}

	query := `SELECT ` + channelColumns + ` FROM channels c
        WHERE c.is_active = 1 AND c.paused_reason = ?
          AND (c.next_post_at IS NULL OR c.next_post_at <= ?)
          AND NOT EXISTS (
            SELECT 1 FROM video_jobs j
            WHERE j.channel_id = c.id AND j.state IN (` + placeholders + `)
          )
        ORDER BY c.next_post_at`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("due channels: %w", err)
	}
	defer rows.Close()
	return collectChannels(rows)
}

// Pause suspends a channel with the given reason, recording when it happened.
func (s *Store) Pause(ctx context.Context, channelID int64, reason PauseReason) error {
	if reason == PauseNone {
		return errors.New("pause requires a non-none reason")
	}
	now := timestampNow()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE channels SET is_active = 0, paused_reason = ?, paused_at = ?, updated_at = ? WHERE id = ?`,
		reason, now, now, channelID,
	)
	if err != nil {
		return fmt.Errorf("pause channel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pause channel: no channel with id %d", channelID)
	}
	return nil
}

// Resume reactivates a channel and clears its pause state.
func (s *Store) Resume(ctx context.Context, channelID int64) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE channels SET is_active = 1, paused_reason = ?, paused_at = NULL, updated_at = ? WHERE id = ?`,
		PauseNone, timestampNow(), channelID,
	)
	if err != nil {
		return fmt.Errorf("resume channel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("resume channel: no channel with id %d", channelID)
	}
	return nil
}

// ResumeQuotaPaused reactivates every channel paused for quota since the
// cutoff. Channels paused earlier, or for any other reason, are untouched.
func (s *Store) ResumeQuotaPaused(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE channels SET is_active = 1, paused_reason = ?, paused_at = NULL, updated_at = ?
         WHERE paused_reason = ? AND paused_at IS NOT NULL AND paused_at >= ?`,
		PauseNone,
		timestampNow(),
		PauseQuota,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("resume quota-paused channels: %w", err)
	}
	return res.RowsAffected()
}

// AdvanceSchedule moves a channel's next_post_at forward by its posting
// interval, anchored at the given time.
func (s *Store) AdvanceSchedule(ctx context.Context, channel *Channel, from time.Time) error {
	if channel == nil {
		return errors.New("channel is nil")
	}
	next := from.Add(channel.PostInterval)
	_, err := s.execWithRetry(
		ctx,
		`UPDATE channels SET next_post_at = ?, updated_at = ? WHERE id = ?`,
		next.UTC().Format(time.RFC3339Nano),
		timestampNow(),
		channel.ID,
	)
	if err != nil {
		return fmt.Errorf("advance schedule: %w", err)
	}
	channel.NextPostAt = next.UTC()
	return nil
}

// SetNextPostAt pins a channel's next due time, used by operator retry.
func (s *Store) SetNextPostAt(ctx context.Context, channelID int64, at time.Time) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE channels SET next_post_at = ?, updated_at = ? WHERE id = ?`,
		zeroableTime(at),
		timestampNow(),
		channelID,
	)
	if err != nil {
		return fmt.Errorf("set next post time: %w", err)
	}
	return nil
}

const channelColumns = "id, name, theme, tone, style, post_interval_minutes, is_active, paused_reason, paused_at, next_post_at, created_at, updated_at"

func scanChannel(scanner interface{ Scan(dest ...any) error }) (*Channel, error) {
	var (
		id            int64
		name          string
		theme         sql.NullString
		tone          sql.NullString
		style         sql.NullString
		intervalMins  int64
		isActive      int
		pausedReason  string
		pausedAtRaw   sql.NullString
		nextPostRaw   sql.NullString
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&id, &name, &theme, &tone, &style, &intervalMins,
		&isActive, &pausedReason, &pausedAtRaw, &nextPostRaw,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	channel := &Channel{
		ID:           id,
		Name:         name,
		Theme:        theme.String,
		Tone:         tone.String,
		Style:        style.String,
		PostInterval: time.Duration(intervalMins) * time.Minute,
		IsActive:     isActive != 0,
		PausedReason: PauseReason(pausedReason),
	}
	if pausedAtRaw.Valid {
		if t, err := parseTimeString(pausedAtRaw.String); err == nil {
			channel.PausedAt = &t
		}
	}
	if nextPostRaw.Valid {
		if t, err := parseTimeString(nextPostRaw.String); err == nil {
			channel.NextPostAt = t
		}
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		channel.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		channel.UpdatedAt = t
	}
	return channel, nil
}

func collectChannels(rows *sql.Rows) ([]*Channel, error) {
	var channels []*Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	return channels, rows.Err()
}
