package redis

import (
	"archivist/internal/types"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// ArchiveStore keeps each site's archives as JSON values of one hash keyed by archive id.
// The selection rules run client side over that hash.
type ArchiveStore struct {
	cli *redis.Client
}

func NewArchiveStore(cli *redis.Client) *ArchiveStore {
	return &ArchiveStore{cli: cli}
}

func (s *ArchiveStore) FindArchive(ctx context.Context, q types.ArchiveQuery, minArchivedAt time.Time) (types.Lookup, error) {
	archives, err := s.siteArchives(ctx, q.SiteID)
	if err != nil {
		return types.Lookup{}, err
	}
	return types.SelectArchive(archives, q, minArchivedAt), nil
}

func (s *ArchiveStore) HasFinerArchives(ctx context.Context, siteID int, period types.Period) (bool, error) {
	archives, err := s.siteArchives(ctx, siteID)
	if err != nil {
		return false, err
	}
	return types.HasFinerArchive(archives, siteID, period), nil
}

func (s *ArchiveStore) Invalidate(ctx context.Context, siteIDs []int, dates []time.Time, cascade bool, segment string) error {
	for _, siteID := range siteIDs {
		archives, err := s.siteArchives(ctx, siteID)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		for _, a := range archives {
			if a.Done == types.DoneInvalidated {
				continue
			}
			for _, d := range dates {
				if types.ShouldInvalidate(a, siteIDs, d, cascade, segment) {
					a.Done = types.DoneInvalidated
					b, err := json.Marshal(a)
					if err != nil {
						return err
					}
					updates[strconv.FormatInt(int64(a.ID), 10)] = string(b)
					break
				}
			}
		}
		if len(updates) == 0 {
			continue
		}
		if err := s.cli.HSet(ctx, getArchivesKey(siteID), updates).Err(); err != nil {
			return types.StoreErr(err, "invalidate archives of site %d", siteID)
		}
	}
	return nil
}

func (s *ArchiveStore) SaveArchive(ctx context.Context, a types.Archive) (types.ArchiveID, error) {
	id, err := s.cli.Incr(ctx, archiveSeqKey).Result()
	if err != nil {
		return 0, types.StoreErr(err, "allocate archive id")
	}
	a.ID = types.ArchiveID(id)
	b, err := json.Marshal(a)
	if err != nil {
		return 0, err
	}
	field := strconv.FormatInt(id, 10)
	_, err = s.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, getArchivesKey(a.SiteID), field, string(b))
		p.HSet(ctx, archiveIndexKey, field, a.SiteID)
		return nil
	})
	if err != nil {
		return 0, types.StoreErr(err, "save archive %d", id)
	}
	return a.ID, nil
}

func (s *ArchiveStore) GetArchive(ctx context.Context, id types.ArchiveID) (types.Archive, error) {
	field := strconv.FormatInt(int64(id), 10)
	siteID, err := s.cli.HGet(ctx, archiveIndexKey, field).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.Archive{}, types.Err(types.ErrNotFound, nil, "archive %d", id)
		}
		return types.Archive{}, types.StoreErr(err, "locate archive %d", id)
	}
	out := s.cli.HGet(ctx, getArchivesKey(siteID), field)
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return types.Archive{}, types.Err(types.ErrNotFound, nil, "archive %d", id)
		}
		return types.Archive{}, types.StoreErr(out.Err(), "get archive %d", id)
	}
	var a types.Archive
	if err := json.Unmarshal([]byte(out.Val()), &a); err != nil {
		return types.Archive{}, types.StoreErr(err, "decode archive %d", id)
	}
	return a, nil
}

func (s *ArchiveStore) siteArchives(ctx context.Context, siteID int) ([]types.Archive, error) {
	out := s.cli.HGetAll(ctx, getArchivesKey(siteID))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, types.StoreErr(out.Err(), "list archives of site %d", siteID)
	}
	m := out.Val()
	archives := make([]types.Archive, 0, len(m))
	for field, raw := range m {
		var a types.Archive
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, types.StoreErr(err, "decode archive %s", field)
		}
		archives = append(archives, a)
	}
	return archives, nil
}
