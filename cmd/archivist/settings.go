package main

import (
	"archivist/internal/api"
	"archivist/internal/types"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/maruel/subcommands"
)

var cmdSettings = &subcommands.Command{
	UsageLine: "settings [-settings file.yaml]",
	ShortDesc: "validates and prints the effective settings",
	CommandRun: func() subcommands.CommandRun {
		r := &settingsRun{}
		r.registerBaseFlags()
		return r
	},
}

type settingsRun struct {
	baseRun
}

func (r *settingsRun) Run(_ subcommands.Application, _ []string, _ subcommands.Env) int {
	path := r.settingsPath
	if path == "" {
		path = os.Getenv(api.SettingsFileKey)
	}
	s, err := types.LoadSettings(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	_, _ = os.Stdout.Write(b)
	return 0
}
