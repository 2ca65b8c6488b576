package api

import (
	"archivist/internal/backends"
	"archivist/internal/engine"
	"archivist/internal/pub"
	"archivist/internal/types"
	"context"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	EnvFileKey      = "ENV_FILE"
	SettingsFileKey = "SETTINGS_FILE"
	LogLevelKey     = "LOG_LEVEL"
)

// LoadEnv loads the .env file (or ENV_FILE) into the process environment and applies
// LOG_LEVEL. A missing file is not an error.
func LoadEnv() {
	envFile := os.Getenv(EnvFileKey)
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}
	if lvl, err := log.ParseLevel(os.Getenv(LogLevelKey)); err == nil {
		log.SetLevel(lvl)
	}
}

// Bootstrap loads settings from settingsPath (or SETTINGS_FILE), opens the backends selected by
// the environment and returns the ready service. The caller closes the stores.
func Bootstrap(ctx context.Context, settingsPath string) (*Service, error) {
	if settingsPath == "" {
		settingsPath = os.Getenv(SettingsFileKey)
	}
	settings, err := types.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}
	stores, err := backends.FromEnv(ctx, settings.Sites)
	if err != nil {
		return nil, err
	}

	var opts []engine.Option
	publisher, topic, err := pub.SNSFromEnv(ctx)
	if err != nil {
		_ = stores.Close()
		return nil, types.Err(types.ErrConfiguration, err, "sns publisher")
	}
	if publisher != nil {
		opts = append(opts, engine.WithNotifier(engine.NewNotifier(publisher, topic)))
	}
	log.WithField("settings", settings.String()).Info("archivist configured")
	return NewService(settings, stores, opts...), nil
}
