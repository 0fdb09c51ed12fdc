// Package config loads herdcore settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the full settings surface of the herdd daemon.
type Config struct {
	Storage StorageConfig
	Blob    BlobConfig
	HTTP    HTTPConfig
	Backup  BackupConfig
	Log     LogConfig

	// CatalogPath points at the YAML farm catalog seeded on start.
	CatalogPath string
	// PendingCron schedules validation of due draft events; empty disables it.
	PendingCron string
}

// StorageConfig selects the persistent store.
type StorageConfig struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// BlobConfig selects the object store that receives backups.
type BlobConfig struct {
	Driver string
	FSRoot string
	S3     S3Config
}

// S3Config addresses an S3 or MinIO bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// HTTPConfig holds API server options. RateLimit is requests per second per
// client; zero disables limiting.
type HTTPConfig struct {
	Addr      string
	RateLimit float64
	RateBurst int
}

// BackupConfig schedules store snapshots. An empty Cron disables them.
type BackupConfig struct {
	Cron   string
	Prefix string
	Keep   int
}

// LogConfig picks the zap preset: production or development.
type LogConfig struct {
	Mode string
}

// Storage and blob drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"

	BlobFilesystem = "fs"
	BlobMemory     = "memory"
	BlobS3         = "s3"
)

// Load reads environment variables, first applying envFile when given or a
// .env in the working directory when present, and validates the result.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	rate, err := getenvFloat("HERDCORE_HTTP_RATE_LIMIT", 20)
	if err != nil {
		return nil, err
	}
	burst, err := getenvInt("HERDCORE_HTTP_RATE_BURST", 40)
	if err != nil {
		return nil, err
	}
	keep, err := getenvInt("HERDCORE_BACKUP_KEEP", 14)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Storage: StorageConfig{
			Driver:      getenvWithDefault("HERDCORE_STORAGE_DRIVER", StorageSQLite),
			SQLitePath:  getenvWithDefault("HERDCORE_SQLITE_PATH", "./herdcore.db"),
			PostgresDSN: os.Getenv("HERDCORE_POSTGRES_DSN"),
		},
		Blob: BlobConfig{
			Driver: getenvWithDefault("HERDCORE_BLOB_DRIVER", BlobFilesystem),
			FSRoot: getenvWithDefault("HERDCORE_BLOB_FS_ROOT", "./blobdata"),
			S3: S3Config{
				Bucket:    os.Getenv("HERDCORE_BLOB_S3_BUCKET"),
				Region:    getenvWithDefault("HERDCORE_BLOB_S3_REGION", "us-east-1"),
				Endpoint:  os.Getenv("HERDCORE_BLOB_S3_ENDPOINT"),
				PathStyle: strings.EqualFold(os.Getenv("HERDCORE_BLOB_S3_PATH_STYLE"), "true"),
			},
		},
		HTTP: HTTPConfig{
			Addr:      getenvWithDefault("HERDCORE_HTTP_ADDR", ":8080"),
			RateLimit: rate,
			RateBurst: burst,
		},
		Backup: BackupConfig{
			Cron:   os.Getenv("HERDCORE_BACKUP_CRON"),
			Prefix: getenvWithDefault("HERDCORE_BACKUP_PREFIX", "backups/"),
			Keep:   keep,
		},
		Log: LogConfig{
			Mode: getenvWithDefault("HERDCORE_LOG_MODE", "production"),
		},
		CatalogPath: os.Getenv("HERDCORE_CATALOG"),
		PendingCron: os.Getenv("HERDCORE_PENDING_CRON"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver requires.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("HERDCORE_POSTGRES_DSN must be provided for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			return errors.New("HERDCORE_BLOB_S3_BUCKET must be provided for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.HTTP.Addr == "" {
		return errors.New("HERDCORE_HTTP_ADDR must not be empty")
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		return errors.New("HERDCORE_HTTP_RATE_LIMIT and HERDCORE_HTTP_RATE_BURST must not be negative")
	}
	if c.Backup.Keep < 0 {
		return errors.New("HERDCORE_BACKUP_KEEP must not be negative")
	}
	switch c.Log.Mode {
	case "production", "development":
	default:
		return fmt.Errorf("unknown log mode %q", c.Log.Mode)
	}
	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
