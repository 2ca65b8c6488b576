package sqlite

import (
	"archivist/internal/types"
	"context"
	"database/sql"
	"errors"
	"time"
)

const archiveColumns = `id, site_id, period, date_start, date_end, segment, grp, done, archived_at, visits, visits_converted, blob`

const tupleFilter = `site_id = ? AND period = ? AND date_start = ? AND date_end = ? AND segment = ?`

func (s *Store) FindArchive(ctx context.Context, q types.ArchiveQuery, minArchivedAt time.Time) (types.Lookup, error) {
	if err := ctx.Err(); err != nil {
		return types.Lookup{}, err
	}
	tuple := []any{q.SiteID, string(q.Period.Label), dateArg(q.Period.Start), dateArg(q.Period.End), q.Segment}
	since := minArchivedAt.UTC().UnixMilli()

	var out types.Lookup
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, visits, visits_converted FROM archives
WHERE `+tupleFilter+` AND grp = ? AND done = ? AND archived_at >= ?
ORDER BY archived_at DESC, id DESC LIMIT 1`,
		append(tuple, q.Group, int(types.DoneComplete), since)...,
	).Scan(&out.ID, &out.Visits, &out.VisitsConverted)
	switch {
	case err == nil:
		out.VisitsKnown, out.AnyExists = true, true
		return out, nil
	case !errors.Is(err, sql.ErrNoRows):
		return types.Lookup{}, types.StoreErr(err, "find archive")
	}

	if err := s.sqlDB.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM archives WHERE `+tupleFilter+` AND grp = ?)`,
		append(tuple, q.Group)...,
	).Scan(&out.AnyExists); err != nil {
		return types.Lookup{}, types.StoreErr(err, "check archive existence")
	}

	err = s.sqlDB.QueryRowContext(ctx, `
SELECT visits, visits_converted FROM archives
WHERE `+tupleFilter+` AND done = ? AND archived_at >= ?
ORDER BY archived_at DESC, id DESC LIMIT 1`,
		append(tuple, int(types.DoneComplete), since)...,
	).Scan(&out.Visits, &out.VisitsConverted)
	switch {
	case err == nil:
		out.VisitsKnown = true
	case !errors.Is(err, sql.ErrNoRows):
		return types.Lookup{}, types.StoreErr(err, "find visits of archive")
	}
	return out, nil
}

func (s *Store) HasFinerArchives(ctx context.Context, siteID int, period types.Period) (bool, error) {
	var has bool
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM archives
WHERE site_id = ? AND period_rank < ? AND date_start >= ? AND date_end <= ?)`,
		siteID, period.Label.Rank(), dateArg(period.Start), dateArg(period.End),
	).Scan(&has)
	if err != nil {
		return false, types.StoreErr(err, "check finer archives")
	}
	return has, nil
}

func (s *Store) Invalidate(ctx context.Context, siteIDs []int, dates []time.Time, cascade bool, segment string) error {
	if len(siteIDs) == 0 || len(dates) == 0 {
		return nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return types.StoreErr(err, "begin invalidation")
	}
	for _, d := range dates {
		query := `UPDATE archives SET done = ? WHERE site_id IN (` + placeholders(len(siteIDs)) + `) AND segment = ?
AND ((date_start <= ? AND date_end >= ?)`
		args := append([]any{int(types.DoneInvalidated)}, intArgs(siteIDs)...)
		args = append(args, segment, dateArg(d), dateArg(d))
		if cascade {
			for _, label := range []types.PeriodLabel{types.PeriodWeek, types.PeriodMonth, types.PeriodYear} {
				parent, _ := types.PeriodContaining(label, d)
				query += ` OR (period_rank < ? AND date_start >= ? AND date_end <= ?)`
				args = append(args, label.Rank(), dateArg(parent.Start), dateArg(parent.End))
			}
		}
		query += `)`
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return types.StoreErr(err, "invalidate archives of %s", dateArg(d))
		}
	}
	if err := tx.Commit(); err != nil {
		return types.StoreErr(err, "commit invalidation")
	}
	return nil
}

func (s *Store) SaveArchive(ctx context.Context, a types.Archive) (types.ArchiveID, error) {
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO archives (site_id, period, period_rank, date_start, date_end, segment, grp, done, archived_at, visits, visits_converted, blob)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.SiteID,
		string(a.Period.Label),
		a.Period.Label.Rank(),
		dateArg(a.Period.Start),
		dateArg(a.Period.End),
		a.Segment,
		a.Group,
		int(a.Done),
		a.ArchivedAt.UTC().UnixMilli(),
		a.Visits,
		a.VisitsConverted,
		a.Blob,
	)
	if err != nil {
		return 0, types.StoreErr(err, "save archive")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, types.StoreErr(err, "read archive id")
	}
	return types.ArchiveID(id), nil
}

func (s *Store) GetArchive(ctx context.Context, id types.ArchiveID) (types.Archive, error) {
	var (
		a                 types.Archive
		label, start, end string
		done              int
		archivedAt        int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `SELECT `+archiveColumns+` FROM archives WHERE id = ?`, int64(id)).Scan(
		&a.ID, &a.SiteID, &label, &start, &end, &a.Segment, &a.Group, &done, &archivedAt, &a.Visits, &a.VisitsConverted, &a.Blob,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Archive{}, types.Err(types.ErrNotFound, nil, "archive %d", id)
	}
	if err != nil {
		return types.Archive{}, types.StoreErr(err, "get archive %d", id)
	}
	a.Period.Label = types.PeriodLabel(label)
	if a.Period.Start, err = types.ParseDate(start); err != nil {
		return types.Archive{}, types.StoreErr(err, "archive %d start", id)
	}
	if a.Period.End, err = types.ParseDate(end); err != nil {
		return types.Archive{}, types.StoreErr(err, "archive %d end", id)
	}
	a.Done = types.DoneState(done)
	a.ArchivedAt = time.UnixMilli(archivedAt).UTC()
	return a, nil
}
