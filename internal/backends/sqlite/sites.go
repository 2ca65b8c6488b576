package sqlite

import (
	"archivist/internal/types"
	"context"
	"database/sql"
	"errors"
)

func (s *Store) GetSite(ctx context.Context, siteID int) (types.Site, error) {
	site := types.Site{ID: siteID}
	err := s.sqlDB.QueryRowContext(ctx, `SELECT name, timezone FROM sites WHERE id = ?`, siteID).Scan(&site.Name, &site.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Site{}, types.Err(types.ErrNotFound, nil, "site %d", siteID)
	}
	if err != nil {
		return types.Site{}, types.StoreErr(err, "get site %d", siteID)
	}
	return site, nil
}

func (s *Store) PutSite(ctx context.Context, site types.Site) error {
	if site.ID <= 0 {
		return types.Err(types.ErrInvalidParams, nil, "site id must be positive, got %d", site.ID)
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sites (id, name, timezone) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, timezone = excluded.timezone`,
		site.ID, site.Name, site.Timezone,
	)
	return types.StoreErr(err, "put site %d", site.ID)
}
