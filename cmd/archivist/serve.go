package main

import (
	"archivist/internal/api"
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/maruel/subcommands"
	log "github.com/sirupsen/logrus"
)

var cmdServe = &subcommands.Command{
	UsageLine: "serve [-port 8080]",
	ShortDesc: "runs the HTTP server",
	LongDesc:  "Runs the HTTP server until SIGINT or SIGTERM.",
	CommandRun: func() subcommands.CommandRun {
		r := &serveRun{}
		r.registerBaseFlags()
		r.Flags.IntVar(&r.port, "port", 8080, "listen port")
		return r
	},
}

type serveRun struct {
	baseRun
	port int
}

func (r *serveRun) Run(_ subcommands.Application, _ []string, _ subcommands.Env) int {
	return r.withService(func(ctx context.Context, svc *api.Service) error {
		stop, done := api.RunServerInterruptible(r.port, svc)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case s := <-sig:
			log.WithField("signal", s.String()).Info("shutting down")
			close(stop)
			return <-done
		case err := <-done:
			return err
		}
	})
}
