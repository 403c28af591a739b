package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks the variables the tests rely on. Viper ignores empty values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ALBUMRANK_STORE_DRIVER",
		"ALBUMRANK_DATABASE_URL",
		"ALBUMRANK_AUTH_JWT_SECRET",
		"ALBUMRANK_ARTWORK_DRIVER",
		"ALBUMRANK_ARTWORK_MINIO_ENDPOINT",
		"ALBUMRANK_SERVER_ADDR",
		"ALBUMRANK_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALBUMRANK_DATABASE_URL", "postgres://localhost/albumrank")
	t.Setenv("ALBUMRANK_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("ALBUMRANK_SERVER_ADDR", ":9090")
	t.Setenv("ALBUMRANK_CATALOG_SPOTIFY_CLIENT_ID", "id")
	t.Setenv("ALBUMRANK_CATALOG_SPOTIFY_CLIENT_SECRET", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Database.URL != "postgres://localhost/albumrank" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if !cfg.Catalog.Spotify.Enabled() {
		t.Error("Catalog.Spotify.Enabled() = false, want true")
	}
	if cfg.Store.Driver != StorePostgres {
		t.Errorf("Store.Driver = %q, want postgres", cfg.Store.Driver)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Ranking.K != 32 || cfg.Ranking.Baseline != 1500 {
		t.Errorf("Ranking = %+v, want K 32 baseline 1500", cfg.Ranking)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALBUMRANK_LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "albumrank.yaml")
	content := `
store:
  driver: memory
auth:
  jwt_secret: from-file
  profile_ttl: 1m
artwork:
  driver: minio
  minio:
    endpoint: localhost:9000
    bucket: covers
log:
  level: debug
  development: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Driver != StoreMemory {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if cfg.Auth.ProfileTTL != time.Minute {
		t.Errorf("Auth.ProfileTTL = %v, want 1m", cfg.Auth.ProfileTTL)
	}
	if cfg.Artwork.Minio.Bucket != "covers" || cfg.Artwork.Minio.Region != "us-east-1" {
		t.Errorf("Artwork.Minio = %+v", cfg.Artwork.Minio)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want env to override file", cfg.Log.Level)
	}
	if !cfg.Log.Development {
		t.Error("Log.Development = false, want true")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
	}{
		{
			name:    "postgres without url",
			env:     map[string]string{"ALBUMRANK_AUTH_JWT_SECRET": "x"},
			wantErr: ErrMissingDatabaseURL,
		},
		{
			name:    "missing jwt secret",
			env:     map[string]string{"ALBUMRANK_STORE_DRIVER": "memory"},
			wantErr: ErrMissingJWTSecret,
		},
		{
			name:    "unknown store",
			env:     map[string]string{"ALBUMRANK_STORE_DRIVER": "sqlite", "ALBUMRANK_AUTH_JWT_SECRET": "x"},
			wantErr: ErrUnknownStore,
		},
		{
			name: "unknown artwork driver",
			env: map[string]string{
				"ALBUMRANK_STORE_DRIVER":    "memory",
				"ALBUMRANK_AUTH_JWT_SECRET": "x",
				"ALBUMRANK_ARTWORK_DRIVER":  "ftp",
			},
			wantErr: ErrUnknownArtworkDriver,
		},
		{
			name: "minio without endpoint",
			env: map[string]string{
				"ALBUMRANK_STORE_DRIVER":    "memory",
				"ALBUMRANK_AUTH_JWT_SECRET": "x",
				"ALBUMRANK_ARTWORK_DRIVER":  "minio",
			},
			wantErr: ErrMissingBucket,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
			if cfg != nil {
				t.Errorf("Load() returned config with error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() error = nil, want error for missing file")
	}
}
