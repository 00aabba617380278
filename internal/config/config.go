package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar names an optional YAML file loaded beneath the environment.
const PathEnvVar = "CONFIG_PATH"

// Media backends.
const (
	MediaBackendDisk = "disk"
	MediaBackendHTTP = "http"
)

// Config captures all runtime configuration. Keys match the lower-cased
// environment variable names.
type Config struct {
	Port                string `koanf:"port"`
	DBURL               string `koanf:"db_url"`
	JWTSecret           string `koanf:"jwt_secret"`
	JWTTTLHours         int    `koanf:"jwt_ttl_hours"`
	BcryptCost          int    `koanf:"bcrypt_cost"`
	ReadTimeoutSecs     int    `koanf:"server_read_timeout"`
	WriteTimeoutSecs    int    `koanf:"server_write_timeout"`
	IdleTimeoutSecs     int    `koanf:"server_idle_timeout"`
	DBMaxConns          int    `koanf:"db_max_conns"`
	DBMinConns          int    `koanf:"db_min_conns"`
	DBMaxIdleSecs       int    `koanf:"db_max_conn_idle_secs"`
	DBMaxLifeSecs       int    `koanf:"db_max_conn_lifetime_secs"`
	DBConnTimeoutSecs   int    `koanf:"db_conn_timeout_secs"`
	DBStatementCache    int    `koanf:"db_statement_cache_capacity"`
	AutoMigrate         bool   `koanf:"auto_migrate"`
	LogLevel            string `koanf:"log_level"`
	LogFormat           string `koanf:"log_format"`
	CORSOrigins         string `koanf:"cors_origins"`
	RateLimitRequests   int    `koanf:"rate_limit_requests"`
	RateLimitWindowSecs int    `koanf:"rate_limit_window_secs"`
	MediaBackend        string `koanf:"media_backend"`
	MediaDir            string `koanf:"media_dir"`
	MediaPublicPrefix   string `koanf:"media_public_prefix"`
	MediaURL            string `koanf:"media_url"`
	MediaAPIKey         string `koanf:"media_api_key"`
	MediaTimeoutSecs    int    `koanf:"media_timeout_secs"`
	MediaMaxUploadBytes int64  `koanf:"media_max_upload_bytes"`
}

func defaults() Config {
	return Config{
		Port:                "8080",
		JWTTTLHours:         24 * 7,
		BcryptCost:          10,
		ReadTimeoutSecs:     15,
		WriteTimeoutSecs:    15,
		IdleTimeoutSecs:     60,
		DBMaxConns:          20,
		DBMinConns:          2,
		DBMaxIdleSecs:       300,
		DBMaxLifeSecs:       3600,
		DBConnTimeoutSecs:   10,
		DBStatementCache:    256,
		AutoMigrate:         true,
		LogLevel:            "info",
		LogFormat:           "json",
		CORSOrigins:         "*",
		RateLimitRequests:   20,
		RateLimitWindowSecs: 60,
		MediaBackend:        MediaBackendDisk,
		MediaDir:            "public/uploads",
		MediaPublicPrefix:   "/uploads",
		MediaTimeoutSecs:    10,
		MediaMaxUploadBytes: 5 << 20,
	}
}

// Load layers struct defaults, an optional YAML file named by CONFIG_PATH and
// the environment, then validates the result.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}
	if path := os.Getenv(PathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required keys and numeric bounds.
func (cfg Config) Validate() error {
	if cfg.DBURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if cfg.JWTTTLHours <= 0 {
		return fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if cfg.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}
	if cfg.RateLimitRequests < 0 || cfg.RateLimitWindowSecs <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be non-negative and RATE_LIMIT_WINDOW_SECS positive")
	}
	switch cfg.MediaBackend {
	case MediaBackendDisk:
		if cfg.MediaDir == "" {
			return fmt.Errorf("MEDIA_DIR is required for the disk media backend")
		}
	case MediaBackendHTTP:
		if cfg.MediaURL == "" || cfg.MediaAPIKey == "" {
			return fmt.Errorf("MEDIA_URL and MEDIA_API_KEY are required for the http media backend")
		}
		if cfg.MediaTimeoutSecs <= 0 {
			return fmt.Errorf("MEDIA_TIMEOUT_SECS must be positive")
		}
	default:
		return fmt.Errorf("MEDIA_BACKEND must be %q or %q", MediaBackendDisk, MediaBackendHTTP)
	}
	if cfg.MediaMaxUploadBytes <= 0 {
		return fmt.Errorf("MEDIA_MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (cfg Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(cfg.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
