package redis

import (
	"archivist/internal/types"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// VisitLog keeps a sorted set per site scored by the first action time in milliseconds.
// Members are "<uuid> <json>" so identical visits do not collapse.
type VisitLog struct {
	cli *redis.Client
}

func NewVisitLog(cli *redis.Client) *VisitLog {
	return &VisitLog{cli: cli}
}

func (l *VisitLog) RecordVisit(ctx context.Context, v types.Visit) error {
	if v.SiteID <= 0 {
		return types.Err(types.ErrInvalidParams, nil, "visit site id must be positive, got %d", v.SiteID)
	}
	v.FirstActionAt = v.FirstActionAt.UTC()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	member := uuid.NewString() + " " + string(b)
	err = l.cli.ZAdd(ctx, getVisitsKey(v.SiteID), redis.Z{Score: score(v.FirstActionAt), Member: member}).Err()
	return types.StoreErr(err, "record visit of site %d", v.SiteID)
}

func (l *VisitLog) MinActivityTime(ctx context.Context, siteID int) (time.Time, bool, error) {
	out, err := l.cli.ZRangeWithScores(ctx, getVisitsKey(siteID), 0, 0).Result()
	if err != nil {
		return time.Time{}, false, types.StoreErr(err, "first visit of site %d", siteID)
	}
	if len(out) == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(out[0].Score)).UTC(), true, nil
}

func (l *VisitLog) HasActivityBetween(ctx context.Context, siteID int, from, to time.Time) (bool, error) {
	n, err := l.cli.ZCount(ctx, getVisitsKey(siteID), bound(from, false), bound(to, true)).Result()
	if err != nil {
		return false, types.StoreErr(err, "count visits of site %d", siteID)
	}
	return n > 0, nil
}

func (l *VisitLog) Visits(ctx context.Context, siteID int, from, to time.Time) ([]types.Visit, error) {
	members, err := l.cli.ZRangeByScore(ctx, getVisitsKey(siteID), &redis.ZRangeBy{
		Min: bound(from, false),
		Max: bound(to, true),
	}).Result()
	if err != nil {
		return nil, types.StoreErr(err, "list visits of site %d", siteID)
	}
	out := make([]types.Visit, 0, len(members))
	for _, m := range members {
		_, raw, ok := strings.Cut(m, " ")
		if !ok {
			return nil, types.Err(types.ErrStore, nil, "malformed visit member %q", m)
		}
		var v types.Visit
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, types.StoreErr(err, "decode visit of site %d", siteID)
		}
		out = append(out, v)
	}
	return out, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// bound renders a score bound; exclusive bounds get redis' "(" prefix.
func bound(t time.Time, exclusive bool) string {
	s := strconv.FormatInt(t.UnixMilli(), 10)
	if exclusive {
		return "(" + s
	}
	return s
}
