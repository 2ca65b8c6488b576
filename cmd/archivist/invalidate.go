package main

import (
	"archivist/internal/api"
	"context"
	"strconv"
	"strings"

	"github.com/maruel/subcommands"
)

var cmdInvalidate = &subcommands.Command{
	UsageLine: "invalidate -sites 1,2 -dates 2024-01-05,2024-01-06 [-cascade] [-remember]",
	ShortDesc: "invalidates archives now, or remembers the invalidation for the next archiving",
	CommandRun: func() subcommands.CommandRun {
		r := &invalidateRun{}
		r.registerBaseFlags()
		r.Flags.StringVar(&r.sites, "sites", "", "comma separated site ids")
		r.Flags.StringVar(&r.dates, "dates", "", "comma separated dates")
		r.Flags.BoolVar(&r.req.Cascade, "cascade", false, "also invalidate finer archives inside the affected periods")
		r.Flags.StringVar(&r.req.Segment, "segment", "", "segment expression")
		r.Flags.BoolVar(&r.req.Remember, "remember", false, "remember instead of invalidating now")
		return r
	},
}

type invalidateRun struct {
	baseRun
	sites string
	dates string
	req   api.InvalidateRequest
}

func (r *invalidateRun) Run(_ subcommands.Application, _ []string, _ subcommands.Env) int {
	return r.withService(func(ctx context.Context, svc *api.Service) error {
		for _, s := range splitList(r.sites) {
			id, err := strconv.Atoi(s)
			if err != nil {
				return err
			}
			r.req.SiteIDs = append(r.req.SiteIDs, id)
		}
		r.req.Dates = splitList(r.dates)
		return svc.Invalidate(ctx, r.req)
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
