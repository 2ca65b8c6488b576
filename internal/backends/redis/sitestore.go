package redis

import (
	"archivist/internal/types"
	"context"
	"errors"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type SiteStore struct {
	cli *redis.Client
}

func NewSiteStore(cli *redis.Client) *SiteStore {
	return &SiteStore{cli: cli}
}

func (s *SiteStore) GetSite(ctx context.Context, siteID int) (types.Site, error) {
	out := s.cli.HGet(ctx, sitesKey, strconv.Itoa(siteID))
	if out.Err() != nil {
		if errors.Is(out.Err(), redis.Nil) {
			return types.Site{}, types.Err(types.ErrNotFound, nil, "site %d", siteID)
		}
		return types.Site{}, types.StoreErr(out.Err(), "get site %d", siteID)
	}
	var site types.Site
	if err := json.Unmarshal([]byte(out.Val()), &site); err != nil {
		return types.Site{}, types.StoreErr(err, "decode site %d", siteID)
	}
	return site, nil
}

func (s *SiteStore) PutSite(ctx context.Context, site types.Site) error {
	if site.ID <= 0 {
		return types.Err(types.ErrInvalidParams, nil, "site id must be positive, got %d", site.ID)
	}
	b, err := json.Marshal(site)
	if err != nil {
		return err
	}
	return types.StoreErr(s.cli.HSet(ctx, sitesKey, strconv.Itoa(site.ID), string(b)).Err(), "put site %d", site.ID)
}
