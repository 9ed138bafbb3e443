package appconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("service.title_max", cfg.Service.TitleMax)
	v.SetDefault("service.title_suffix", cfg.Service.TitleSuffix)
	v.SetDefault("persist.backend", cfg.Persist.Backend)
	v.SetDefault("persist.sqlite_path", cfg.Persist.SQLitePath)
	v.SetDefault("persist.postgres_dsn", cfg.Persist.PostgresDSN)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_url", cfg.HTTP.BaseURL)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.hub_history", cfg.HTTP.HubHistory)
	v.SetDefault("http.max_envelope_bytes", cfg.HTTP.MaxEnvelopeBytes)
	v.SetDefault("realtime.url", cfg.Realtime.URL)
	v.SetDefault("realtime.token", cfg.Realtime.Token)
	v.SetDefault("realtime.reconnect_min", cfg.Realtime.ReconnectMin)
	v.SetDefault("realtime.reconnect_max", cfg.Realtime.ReconnectMax)
	v.SetDefault("realtime.read_timeout", cfg.Realtime.ReadTimeout)
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.token", cfg.API.Token)
	v.SetDefault("api.timeout", cfg.API.Timeout)
	v.SetDefault("api.catalog_interval", cfg.API.CatalogInterval)
	v.SetDefault("auth.jwt_secret", cfg.Auth.JWTSecret)
	v.SetDefault("auth.issuer", cfg.Auth.Issuer)
	v.SetDefault("permissions.memo_size", cfg.Permissions.MemoSize)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return err
	}
	switch cfg.Persist.Backend {
	case "file", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported persist.backend %q", cfg.Persist.Backend)
	}
	if raw := strings.TrimSpace(cfg.Realtime.URL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "ws" && parsed.Scheme != "wss") || parsed.Host == "" {
			return fmt.Errorf("realtime.url must be a ws:// or wss:// url")
		}
	}
	if raw := strings.TrimSpace(cfg.API.BaseURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("api.base_url must include scheme and host (e.g. https://api.example.com)")
		}
	}
	if cfg.Realtime.ReconnectMin > cfg.Realtime.ReconnectMax {
		return fmt.Errorf("realtime.reconnect_min must not exceed realtime.reconnect_max")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("http.base_url must include scheme and host (e.g. https://example.com)")
		}
	}
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Persist.SQLitePath = expandEnv(cfg.Persist.SQLitePath)
	cfg.Persist.PostgresDSN = expandEnv(cfg.Persist.PostgresDSN)
	cfg.Realtime.URL = expandEnv(cfg.Realtime.URL)
	cfg.Realtime.Token = expandEnv(cfg.Realtime.Token)
	cfg.API.BaseURL = expandEnv(cfg.API.BaseURL)
	cfg.API.Token = expandEnv(cfg.API.Token)
	cfg.Auth.JWTSecret = expandEnv(cfg.Auth.JWTSecret)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
