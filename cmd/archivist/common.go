package main

import (
	"archivist/internal/api"
	"context"
	"os"

	"github.com/goccy/go-json"
	"github.com/maruel/subcommands"
	log "github.com/sirupsen/logrus"
)

// baseRun holds the flags every command shares.
type baseRun struct {
	subcommands.CommandRunBase
	settingsPath string
}

func (b *baseRun) registerBaseFlags() {
	b.Flags.StringVar(&b.settingsPath, "settings", "", "YAML settings file (defaults to $SETTINGS_FILE)")
}

// withService bootstraps the service, runs fn and closes the stores afterwards.
func (b *baseRun) withService(fn func(ctx context.Context, svc *api.Service) error) int {
	ctx := context.Background()
	svc, err := api.Bootstrap(ctx, b.settingsPath)
	if err != nil {
		log.WithError(err).Error("failed to start")
		return 1
	}
	defer func() {
		if err := svc.Stores.Close(); err != nil {
			log.WithError(err).Warn("failed to close stores")
		}
	}()
	if err := fn(ctx, svc); err != nil {
		log.WithError(err).Error("command failed")
		return 1
	}
	return 0
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
