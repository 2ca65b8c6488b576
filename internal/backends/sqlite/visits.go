package sqlite

import (
	"archivist/internal/types"
	"context"
	"database/sql"
	"time"

	"github.com/goccy/go-json"
)

func (s *Store) RecordVisit(ctx context.Context, v types.Visit) error {
	if v.SiteID <= 0 {
		return types.Err(types.ErrInvalidParams, nil, "visit site id must be positive, got %d", v.SiteID)
	}
	attrs := v.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO visits (site_id, visitor_id, first_action_at, actions, duration_seconds, converted, revenue, attributes)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.SiteID, v.VisitorID, v.FirstActionAt.UTC().UnixMilli(), v.Actions, v.DurationSeconds, v.Converted, v.Revenue, string(b),
	)
	return types.StoreErr(err, "record visit of site %d", v.SiteID)
}

func (s *Store) MinActivityTime(ctx context.Context, siteID int) (time.Time, bool, error) {
	var first sql.NullInt64
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT MIN(first_action_at) FROM visits WHERE site_id = ?`, siteID).Scan(&first); err != nil {
		return time.Time{}, false, types.StoreErr(err, "first visit of site %d", siteID)
	}
	if !first.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(first.Int64).UTC(), true, nil
}

func (s *Store) HasActivityBetween(ctx context.Context, siteID int, from, to time.Time) (bool, error) {
	var has bool
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM visits WHERE site_id = ? AND first_action_at >= ? AND first_action_at < ?)`,
		siteID, from.UTC().UnixMilli(), to.UTC().UnixMilli(),
	).Scan(&has)
	if err != nil {
		return false, types.StoreErr(err, "check visits of site %d", siteID)
	}
	return has, nil
}

func (s *Store) Visits(ctx context.Context, siteID int, from, to time.Time) ([]types.Visit, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT visitor_id, first_action_at, actions, duration_seconds, converted, revenue, attributes
FROM visits WHERE site_id = ? AND first_action_at >= ? AND first_action_at < ?
ORDER BY first_action_at, id`,
		siteID, from.UTC().UnixMilli(), to.UTC().UnixMilli(),
	)
	if err != nil {
		return nil, types.StoreErr(err, "list visits of site %d", siteID)
	}
	defer rows.Close()

	var out []types.Visit
	for rows.Next() {
		var (
			v     = types.Visit{SiteID: siteID}
			at    int64
			attrs string
		)
		if err := rows.Scan(&v.VisitorID, &at, &v.Actions, &v.DurationSeconds, &v.Converted, &v.Revenue, &attrs); err != nil {
			return nil, types.StoreErr(err, "scan visit of site %d", siteID)
		}
		v.FirstActionAt = time.UnixMilli(at).UTC()
		if err := json.Unmarshal([]byte(attrs), &v.Attributes); err != nil {
			return nil, types.StoreErr(err, "decode visit attributes of site %d", siteID)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, types.StoreErr(err, "iterate visits of site %d", siteID)
	}
	return out, nil
}
