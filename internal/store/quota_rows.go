package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnsureQuotaResource creates the resource row if missing and updates its
// configured limit when it changed, preserving the usage counters.
func (s *Store) EnsureQuotaResource(ctx context.Context, apiName string, limit int, nextReset time.Time) error {
	if apiName == "" {
		return errors.New("api name is required")
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO quota_resources (api_name, limit_units, used_units, remaining_units, is_exhausted, next_reset_at)
         VALUES (?, ?, 0, ?, 0, ?)
         ON CONFLICT(api_name) DO UPDATE SET
            limit_units = excluded.limit_units,
            remaining_units = MAX(excluded.limit_units - used_units, 0),
            is_exhausted = CASE WHEN excluded.limit_units - used_units <= 0 THEN 1 ELSE 0 END`,
		apiName, limit, limit, nextReset.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("ensure quota resource: %w", err)
	}
	return nil
}

// GetQuotaResource fetches a single resource row.
func (s *Store) GetQuotaResource(ctx context.Context, apiName string) (*QuotaResource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+quotaColumns+` FROM quota_resources WHERE api_name = ?`, apiName)
	resource, err := scanQuotaResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quota resource: %w", err)
	}
	return resource, nil
}

// ListQuotaResources returns all resource rows ordered by name.
func (s *Store) ListQuotaResources(ctx context.Context) ([]*QuotaResource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+quotaColumns+` FROM quota_resources ORDER BY api_name`)
	if err != nil {
		return nil, fmt.Errorf("list quota resources: %w", err)
	}
	defer rows.Close()

	var resources []*QuotaResource
	for rows.Next() {
		resource, err := scanQuotaResource(rows)
		if err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}
	return resources, rows.Err()
}

// ApplyUsage increments a resource's usage and recomputes the derived
// columns. remaining is clamped at zero; crossing zero flips is_exhausted
// and stamps exhausted_at once.
func (s *Store) ApplyUsage(ctx context.Context, apiName string, amount int) error {
	if amount < 0 {
		return errors.New("usage amount must not be negative")
	}
	now := timestampNow()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE quota_resources
         SET used_units = used_units + ?,
             remaining_units = MAX(limit_units - (used_units + ?), 0),
             is_exhausted = CASE WHEN limit_units - (used_units + ?) <= 0 THEN 1 ELSE is_exhausted END,
             exhausted_at = CASE
                WHEN limit_units - (used_units + ?) <= 0 AND exhausted_at IS NULL THEN ?
                ELSE exhausted_at
             END
         WHERE api_name = ?`,
		amount, amount, amount, amount, now, apiName,
	)
	if err != nil {
		return fmt.Errorf("apply usage: %w", err)
	}
	return nil
}

// MarkResourceExhausted forces a resource into the exhausted state
// regardless of the local counter. The external service is the ground truth.
func (s *Store) MarkResourceExhausted(ctx context.Context, apiName string) error {
	now := timestampNow()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE quota_resources
         SET is_exhausted = 1, remaining_units = 0, used_units = limit_units,
             exhausted_at = CASE WHEN exhausted_at IS NULL THEN ? ELSE exhausted_at END
         WHERE api_name = ?`,
		now, apiName,
	)
	if err != nil {
		return fmt.Errorf("mark resource exhausted: %w", err)
	}
	return nil
}

// ResetQuotaResource zeroes usage and advances the reset boundary.
func (s *Store) ResetQuotaResource(ctx context.Context, apiName string, nextReset time.Time) error {
	_, err := s.execWithRetry(
		ctx,
		`UPDATE quota_resources
         SET used_units = 0, remaining_units = limit_units, is_exhausted = 0,
             exhausted_at = NULL, next_reset_at = ?
         WHERE api_name = ?`,
		nextReset.UTC().Format(time.RFC3339Nano), apiName,
	)
	if err != nil {
		return fmt.Errorf("reset quota resource: %w", err)
	}
	return nil
}

const quotaColumns = "api_name, limit_units, used_units, remaining_units, is_exhausted, exhausted_at, next_reset_at"

func scanQuotaResource(scanner interface{ Scan(dest ...any) error }) (*QuotaResource, error) {
	var (
		apiName      string
		limit        int
		used         int
		remaining    int
		isExhausted  int
		exhaustedRaw sql.NullString
		nextResetRaw string
	)
	if err := scanner.Scan(&apiName, &limit, &used, &remaining, &isExhausted, &exhaustedRaw, &nextResetRaw); err != nil {
		return nil, err
	}

	resource := &QuotaResource{
		APIName:     apiName,
		Limit:       limit,
		Used:        used,
		Remaining:   remaining,
		IsExhausted: isExhausted != 0,
	}
	if exhaustedRaw.Valid {
		if t, err := parseTimeString(exhaustedRaw.String); err == nil {
			resource.ExhaustedAt = &t
		}
	}
	if t, err := parseTimeString(nextResetRaw); err == nil {
		resource.NextResetAt = t
	}
	return resource, nil
}
