package main

import (
	"archivist/internal/api"
	"context"
	"errors"
	"strings"

	"github.com/maruel/subcommands"
)

var cmdPrepare = &subcommands.Command{
	UsageLine: "prepare -site <id> -period <day|week|month|year|range> -date <date> -plugin <name> [-segment <expr>]",
	ShortDesc: "prepares one archive and prints the decision",
	CommandRun: func() subcommands.CommandRun {
		r := &prepareRun{}
		r.registerBaseFlags()
		r.Flags.IntVar(&r.req.SiteID, "site", 0, "site id")
		r.Flags.StringVar(&r.req.Period, "period", "day", "period granularity")
		r.Flags.StringVar(&r.req.Date, "date", "", "date (YYYY-MM-DD, or start,end for ranges)")
		r.Flags.StringVar(&r.req.Plugin, "plugin", "VisitsSummary", "requested plugin")
		r.Flags.StringVar(&r.req.Segment, "segment", "", "segment expression")
		return r
	},
}

type prepareRun struct {
	baseRun
	req api.PrepareRequest
}

func (r *prepareRun) Run(_ subcommands.Application, _ []string, _ subcommands.Env) int {
	return r.withService(func(ctx context.Context, svc *api.Service) error {
		if strings.TrimSpace(r.req.Date) == "" {
			return errors.New("-date is required")
		}
		res, err := svc.Prepare(ctx, r.req)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}
