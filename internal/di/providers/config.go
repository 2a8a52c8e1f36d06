// Package providers contains dependency injection providers for the traildig server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/traildig/traildig-server/internal/config"
	"github.com/traildig/traildig-server/internal/logger"
)

// ProvideConfig loads the application configuration through the injected loader.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	loader := do.MustInvoke[*config.Loader](i)
	return loader.Load()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting TrailDig Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"metadata_path", cfg.Metadata.BasePath,
		"database_path", cfg.Database.Path,
		"tag_resolution", cfg.Tags.Resolution,
	)

	return log, nil
}

// ConfigWatcher applies config file edits that are safe to change at runtime.
// Only the log level is reloaded; everything else needs a restart.
type ConfigWatcher struct {
	Watching bool
}

// ProvideConfigWatcher starts watching the config file, if one was loaded.
func ProvideConfigWatcher(i do.Injector) (*ConfigWatcher, error) {
	loader := do.MustInvoke[*config.Loader](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	watching := loader.Watch(func(next *config.Config) {
		applyConfigChange(log, cfg, next)
	}, func(err error) {
		log.Warn("Ignoring invalid config change", "error", err)
	})

	if watching {
		log.Info("Watching config file", "path", loader.ConfigFileUsed())
	}

	return &ConfigWatcher{Watching: watching}, nil
}

func applyConfigChange(log *logger.Logger, current, next *config.Config) {
	if next.Logger.Level != current.Logger.Level {
		log.SetLevel(logger.ParseLevel(next.Logger.Level))
		log.Info("Log level changed", "from", current.Logger.Level, "to", next.Logger.Level)
		current.Logger.Level = next.Logger.Level
	}

	if next.Tags.Resolution != current.Tags.Resolution {
		log.Warn("Tag resolution changes take effect after a restart",
			"running", current.Tags.Resolution,
			"configured", next.Tags.Resolution,
		)
	}
}
