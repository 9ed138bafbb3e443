package schema

import (
	"os"
	"path/filepath"
)

// ServiceConfig defines defaults and limits for the tab session manager.
type ServiceConfig struct {
	StateDir    string
	TitleMax    int
	TitleSuffix string
}

// DefaultTitleMax is the default tab title limit.
const DefaultTitleMax = 48

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".studiosync", "state")
	}
	if cfg.TitleMax <= 0 {
		cfg.TitleMax = DefaultTitleMax
	}
	if cfg.TitleSuffix == "" {
		cfg.TitleSuffix = "…"
	}
	if cfg.TitleMax <= len([]rune(cfg.TitleSuffix)) {
		return ServiceConfig{}, ErrInvalidRequest
	}
	return cfg, nil
}
