package redis

import (
	"archivist/internal/types"
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// forgetScript removes sites from a date's set and drops the date once its set is empty.
var forgetScript = redis.NewScript(`
redis.call("SREM", KEYS[1], unpack(ARGV, 2))
if redis.call("SCARD", KEYS[1]) == 0 then
	redis.call("DEL", KEYS[1])
	redis.call("SREM", KEYS[2], ARGV[1])
end
return 1
`)

// Ledger keeps one set of site ids per remembered date, plus a set indexing the dates.
type Ledger struct {
	cli *redis.Client
}

func NewLedger(cli *redis.Client) *Ledger {
	return &Ledger{cli: cli}
}

func (l *Ledger) Pending(ctx context.Context) (map[string][]int, error) {
	dates, err := l.cli.SMembers(ctx, invalidationDatesKey).Result()
	if err != nil {
		return nil, types.StoreErr(err, "list remembered invalidation dates")
	}
	out := make(map[string][]int, len(dates))
	for _, date := range dates {
		members, err := l.cli.SMembers(ctx, getInvalidationKey(date)).Result()
		if err != nil {
			return nil, types.StoreErr(err, "list remembered invalidations of %s", date)
		}
		ids := make([]int, 0, len(members))
		for _, m := range members {
			id, err := strconv.Atoi(m)
			if err != nil {
				return nil, types.StoreErr(err, "invalid site id %q remembered for %s", m, date)
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}
		slices.Sort(ids)
		out[date] = ids
	}
	return out, nil
}

func (l *Ledger) Remember(ctx context.Context, date time.Time, siteIDs ...int) error {
	if len(siteIDs) == 0 {
		return nil
	}
	d := date.Format(types.DateLayout)
	_, err := l.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, getInvalidationKey(d), members(siteIDs)...)
		p.SAdd(ctx, invalidationDatesKey, d)
		return nil
	})
	return types.StoreErr(err, "remember invalidation of %s", d)
}

func (l *Ledger) Forget(ctx context.Context, date time.Time, siteIDs ...int) error {
	if len(siteIDs) == 0 {
		return nil
	}
	d := date.Format(types.DateLayout)
	args := append([]any{d}, members(siteIDs)...)
	err := forgetScript.Run(ctx, l.cli, []string{getInvalidationKey(d), invalidationDatesKey}, args...).Err()
	return types.StoreErr(err, "forget invalidation of %s", d)
}

func members(ids []int) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}
