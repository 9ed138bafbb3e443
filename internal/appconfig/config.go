package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/studiosync/internal/permission"
	"pkt.systems/studiosync/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int               `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string            `mapstructure:"state_dir" yaml:"state_dir"`
	Service       ServiceConfig     `mapstructure:"service" yaml:"service"`
	Persist       PersistConfig     `mapstructure:"persist" yaml:"persist"`
	HTTP          HTTPConfig        `mapstructure:"http" yaml:"http"`
	Realtime      RealtimeConfig    `mapstructure:"realtime" yaml:"realtime"`
	API           APIConfig         `mapstructure:"api" yaml:"api"`
	Auth          AuthConfig        `mapstructure:"auth" yaml:"auth"`
	Permissions   PermissionsConfig `mapstructure:"permissions" yaml:"permissions"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ServiceConfig controls the tab session manager.
type ServiceConfig struct {
	TitleMax    int    `mapstructure:"title_max" yaml:"title_max"`
	TitleSuffix string `mapstructure:"title_suffix" yaml:"title_suffix"`
}

// PersistConfig selects where tab sets are stored.
type PersistConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr             string `mapstructure:"addr" yaml:"addr"`
	BaseURL          string `mapstructure:"base_url" yaml:"base_url"`
	BasePath         string `mapstructure:"base_path" yaml:"base_path"`
	HubHistory       int    `mapstructure:"hub_history" yaml:"hub_history"`
	MaxEnvelopeBytes int64  `mapstructure:"max_envelope_bytes" yaml:"max_envelope_bytes"`
}

// RealtimeConfig configures the push channel from the collaboration/build service.
// An empty URL disables the client.
type RealtimeConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	Token        string        `mapstructure:"token" yaml:"token"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min" yaml:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max" yaml:"reconnect_max"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
}

// APIConfig configures the hosted backend REST API used for the role/type catalog.
// An empty base URL keeps the built-in catalog.
type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	Token           string        `mapstructure:"token" yaml:"token"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CatalogInterval time.Duration `mapstructure:"catalog_interval" yaml:"catalog_interval"`
}

// AuthConfig configures bearer token validation. An empty secret disables the API guard.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
}

// PermissionsConfig tunes the permission evaluator.
type PermissionsConfig struct {
	MemoSize int `mapstructure:"memo_size" yaml:"memo_size"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".studiosync", "state"),
		Service: ServiceConfig{
			TitleMax:    schema.DefaultTitleMax,
			TitleSuffix: "…",
		},
		Persist: PersistConfig{
			Backend:     "file",
			SQLitePath:  "",
			PostgresDSN: "",
		},
		HTTP: HTTPConfig{
			Addr:             "127.0.0.1:27580",
			BaseURL:          "",
			BasePath:         "",
			HubHistory:       1000,
			MaxEnvelopeBytes: 1 << 20,
		},
		Realtime: RealtimeConfig{
			URL:          "",
			Token:        "",
			ReconnectMin: 500 * time.Millisecond,
			ReconnectMax: 30 * time.Second,
			ReadTimeout:  90 * time.Second,
		},
		API: APIConfig{
			BaseURL:         "",
			Token:           "",
			Timeout:         10 * time.Second,
			CatalogInterval: 15 * time.Minute,
		},
		Auth: AuthConfig{
			JWTSecret: "",
			Issuer:    "",
		},
		Permissions: PermissionsConfig{
			MemoSize: permission.DefaultMemoSize,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".studiosync", "config.yaml"), nil
}
