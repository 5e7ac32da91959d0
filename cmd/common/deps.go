// Package common provides shared utilities for command implementations.
package common

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jonesrussell/newsharvest/internal/config"
	"github.com/jonesrussell/newsharvest/internal/logger"
	"github.com/jonesrussell/newsharvest/internal/sites"
)

// Viper keys bound by the root command.
const (
	KeyConfig   = "config"
	KeyDebug    = "debug"
	KeyLogLevel = "log_level"
)

// CommandDeps holds common dependencies for all commands.
type CommandDeps struct {
	Logger logger.Logger
	Config *config.Config
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	return nil
}

// NewCommandDeps loads the configuration named by --config and builds the logger.
// A missing file is only tolerated for the default path.
func NewCommandDeps() (CommandDeps, error) {
	path := viper.GetString(KeyConfig)
	if path == "" {
		path = config.DefaultConfigPath
	}

	cfg, err := config.Load(path, path == config.DefaultConfigPath)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	if level := viper.GetString(KeyLogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if viper.GetBool(KeyDebug) {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}

	if err = cfg.Validate(); err != nil {
		return CommandDeps{}, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{
		Logger: log,
		Config: cfg,
	}
	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}
	return deps, nil
}

// LoadSites loads the site registry from the configured sites directory.
func (d CommandDeps) LoadSites() (*sites.Registry, error) {
	registry, err := sites.Load(d.Config.SitesDir)
	if err != nil {
		return nil, fmt.Errorf("load sites from %s: %w", d.Config.SitesDir, err)
	}
	return registry, nil
}
