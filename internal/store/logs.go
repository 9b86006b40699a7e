package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AppendLog writes one row to the append-only operator log feed. channelID
// of zero records a process-wide event.
func (s *Store) AppendLog(ctx context.Context, channelID int64, level, category, message string) error {
	var channel any
	if channelID > 0 {
		channel = channelID
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO logs (channel_id, level, category, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		channel, level, category, message, timestampNow(),
	)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// RecentLogs returns the newest entries, optionally filtered by channel.
func (s *Store) RecentLogs(ctx context.Context, channelID int64, limit int) ([]*LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if channelID > 0 {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT id, channel_id, level, category, message, created_at
             FROM logs WHERE channel_id = ? ORDER BY id DESC LIMIT ?`,
			channelID, limit,
		)
	} else {
		rows, err = s.db.QueryContext(
			ctx,
			`SELECT id, channel_id, level, category, message, created_at
             FROM logs ORDER BY id DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("recent logs: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var (
			entry      LogEntry
			channel    sql.NullInt64
			createdRaw string
		)
		if err := rows.Scan(&entry.ID, &channel, &entry.Level, &entry.Category, &entry.Message, &createdRaw); err != nil {
			return nil, err
		}
		entry.ChannelID = channel.Int64
		if t, err := parseTimeString(createdRaw); err == nil {
			entry.CreatedAt = t
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
