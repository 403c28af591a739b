// Package config loads albumrank settings from an optional YAML file and
// ALBUMRANK_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable. Nested keys join with "_",
// so auth.jwt_secret is read from ALBUMRANK_AUTH_JWT_SECRET.
const EnvPrefix = "ALBUMRANK"

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Artwork drivers.
const (
	ArtworkDir   = "dir"
	ArtworkMinio = "minio"
)

// Validation errors.
var (
	// ErrMissingDatabaseURL is returned when the postgres store has no URL.
	ErrMissingDatabaseURL = errors.New("missing database url (ALBUMRANK_DATABASE_URL)")

	// ErrMissingJWTSecret is returned when no token signing secret is set.
	ErrMissingJWTSecret = errors.New("missing jwt secret (ALBUMRANK_AUTH_JWT_SECRET)")

	// ErrUnknownStore is returned for a store driver other than postgres or memory.
	ErrUnknownStore = errors.New("unknown store driver")

	// ErrUnknownArtworkDriver is returned for an artwork driver other than dir or minio.
	ErrUnknownArtworkDriver = errors.New("unknown artwork driver")

	// ErrMissingBucket is returned when the minio artwork driver has no bucket or endpoint.
	ErrMissingBucket = errors.New("missing artwork minio endpoint or bucket")
)

// Config is the full application configuration.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Store    Store    `mapstructure:"store"`
	Auth     Auth     `mapstructure:"auth"`
	Artwork  Artwork  `mapstructure:"artwork"`
	Catalog  Catalog  `mapstructure:"catalog"`
	Ranking  Ranking  `mapstructure:"ranking"`
	Log      Log      `mapstructure:"log"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database configures PostgreSQL.
type Database struct {
	URL string `mapstructure:"url"`
	// Migrate applies the schema on startup.
	Migrate bool `mapstructure:"migrate"`
}

// Store selects the repository implementation.
type Store struct {
	Driver string `mapstructure:"driver"`
}

// Auth configures bearer token verification.
type Auth struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
	// ProfileTTL throttles profile upserts per user.
	ProfileTTL time.Duration `mapstructure:"profile_ttl"`
}

// Artwork configures cover storage.
type Artwork struct {
	Driver  string `mapstructure:"driver"`
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
	Minio   Minio  `mapstructure:"minio"`
}

// Minio configures an S3-compatible bucket.
type Minio struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	PublicURL string `mapstructure:"public_url"`
}

// Catalog configures the external album catalogs.
type Catalog struct {
	UserAgent string        `mapstructure:"user_agent"`
	Limit     int           `mapstructure:"limit"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	Spotify   Spotify       `mapstructure:"spotify"`
}

// Spotify holds app credentials. The Spotify catalog is disabled when either is empty.
type Spotify struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether both credentials are set.
func (s Spotify) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// Ranking tunes the rating engine and pair suggestion.
type Ranking struct {
	K        float64 `mapstructure:"k"`
	Baseline float64 `mapstructure:"baseline"`
	Nearest  int     `mapstructure:"nearest"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load reads path (when not empty) and the environment, applies defaults
// and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrate", true)

	v.SetDefault("store.driver", StorePostgres)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.profile_ttl", 5*time.Minute)

	v.SetDefault("artwork.driver", ArtworkDir)
	v.SetDefault("artwork.dir", "data/artwork")
	v.SetDefault("artwork.base_url", "/artwork")
	v.SetDefault("artwork.minio.endpoint", "")
	v.SetDefault("artwork.minio.access_key", "")
	v.SetDefault("artwork.minio.secret_key", "")
	v.SetDefault("artwork.minio.bucket", "album-art")
	v.SetDefault("artwork.minio.region", "us-east-1")
	v.SetDefault("artwork.minio.use_ssl", false)
	v.SetDefault("artwork.minio.public_url", "")

	v.SetDefault("catalog.user_agent", "albumrank/1.0 (https://github.com/justestif/albumrank)")
	v.SetDefault("catalog.limit", 10)
	v.SetDefault("catalog.cache_ttl", 10*time.Minute)
	v.SetDefault("catalog.spotify.client_id", "")
	v.SetDefault("catalog.spotify.client_secret", "")

	v.SetDefault("ranking.k", 32.0)
	v.SetDefault("ranking.baseline", 1500.0)
	v.SetDefault("ranking.nearest", 3)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StorePostgres:
		if c.Database.URL == "" {
			return ErrMissingDatabaseURL
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}

	switch c.Artwork.Driver {
	case ArtworkDir:
	case ArtworkMinio:
		if c.Artwork.Minio.Endpoint == "" || c.Artwork.Minio.Bucket == "" {
			return ErrMissingBucket
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownArtworkDriver, c.Artwork.Driver)
	}
	return nil
}
