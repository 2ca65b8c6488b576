package main

import (
	"archivist/internal/api"
	"os"

	"github.com/maruel/subcommands"
)

var application = &subcommands.DefaultApplication{
	Name:  "archivist",
	Title: "Pre-aggregated archive orchestrator.",
	Commands: []*subcommands.Command{
		subcommands.CmdHelp,
		cmdServe,
		cmdPrepare,
		cmdInvalidate,
		cmdSettings,
	},
}

func main() {
	api.LoadEnv()
	os.Exit(subcommands.Run(application, os.Args[1:]))
}
