// Package config reads expiredrop settings from an optional TOML file, a
// .env file and EXPIREDROP_* environment variables, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/dharsanguruparan/expiredrop/internal/uploadid"
)

// Storage backends.
const (
	StorageDisk = "disk"
	StorageS3   = "s3"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address string   `toml:"address"`
	DataDir string   `toml:"data_dir"`
	Tokens  []string `toml:"tokens"`

	DefaultLifetime    time.Duration `toml:"-"`
	MaxLifetime        time.Duration `toml:"-"`
	MaxFileSize        int64         `toml:"-"`
	SweepInterval      time.Duration `toml:"-"`
	ReclaimWorkers     int           `toml:"reclaim_workers"`
	RateLimitPerMinute int           `toml:"rate_limit_per_minute"`

	Storage     string `toml:"storage"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3UseSSL    bool   `toml:"s3_use_ssl"`
	S3Region    string `toml:"s3_region"`
	Bucket      string `toml:"bucket"`

	DatabaseURL   string `toml:"database_url"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	LogLevel      string `toml:"log_level"`
	LogPath       string `toml:"log_path"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogMaxAgeDays int    `toml:"log_max_age_days"`
	LogCompress   bool   `toml:"log_compress"`
}

// fileConfig holds the settings whose TOML form differs from the Go type.
type fileConfig struct {
	Config
	DefaultLifetime string `toml:"default_lifetime"`
	MaxLifetime     string `toml:"max_lifetime"`
	MaxFileSize     string `toml:"max_file_size"`
	SweepInterval   string `toml:"sweep_interval"`
}

const (
	envPrefix = "EXPIREDROP_"

	defaultAddress        = ":8080"
	defaultDataDir        = "data"
	defaultLifetime       = 100 * 365 * 24 * time.Hour
	defaultMaxFileSize    = 150 << 20 // 150 MiB
	defaultSweepInterval  = 5 * time.Minute
	defaultReclaimWorkers = 4
	defaultRateLimit      = 60
	defaultBucket         = "expiredrop"
	defaultRegion         = "us-east-1"
	defaultLogLevel       = "info"
)

// ErrNoTokens is returned by Validate when no upload token is configured.
var ErrNoTokens = errors.New("no upload tokens configured")

// Load reads configuration falling back to defaults. A .env file in the
// working directory is loaded first if present; EXPIREDROP_CONFIG may name a
// TOML file whose values sit between the defaults and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := defaults()
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	normalize(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Address:            defaultAddress,
		DataDir:            defaultDataDir,
		DefaultLifetime:    defaultLifetime,
		MaxLifetime:        defaultLifetime,
		MaxFileSize:        defaultMaxFileSize,
		SweepInterval:      defaultSweepInterval,
		ReclaimWorkers:     defaultReclaimWorkers,
		RateLimitPerMinute: defaultRateLimit,
		Storage:            StorageDisk,
		S3Region:           defaultRegion,
		Bucket:             defaultBucket,
		LogLevel:           defaultLogLevel,
	}
}

func loadFile(path string, cfg *Config) error {
	fc := fileConfig{Config: *cfg}
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	*cfg = fc.Config
	var err error
	if cfg.DefaultLifetime, err = durationOr(fc.DefaultLifetime, cfg.DefaultLifetime); err != nil {
		return fmt.Errorf("default_lifetime: %w", err)
	}
	if cfg.MaxLifetime, err = durationOr(fc.MaxLifetime, cfg.MaxLifetime); err != nil {
		return fmt.Errorf("max_lifetime: %w", err)
	}
	if cfg.SweepInterval, err = durationOr(fc.SweepInterval, cfg.SweepInterval); err != nil {
		return fmt.Errorf("sweep_interval: %w", err)
	}
	if fc.MaxFileSize != "" {
		n, err := humanize.ParseBytes(fc.MaxFileSize)
		if err != nil {
			return fmt.Errorf("max_file_size: %w", err)
		}
		cfg.MaxFileSize = int64(n)
	}
	return nil
}

func durationOr(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func applyEnv(cfg *Config) {
	cfg.Address = readEnv("ADDRESS", cfg.Address)
	cfg.DataDir = readEnv("DATA_DIR", cfg.DataDir)
	cfg.Tokens = parseList("TOKENS", cfg.Tokens)
	cfg.DefaultLifetime = parseDuration("DEFAULT_LIFETIME", cfg.DefaultLifetime)
	cfg.MaxLifetime = parseDuration("MAX_LIFETIME", cfg.MaxLifetime)
	cfg.MaxFileSize = parseBytes("MAX_FILE_SIZE", cfg.MaxFileSize)
	cfg.SweepInterval = parseDuration("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.ReclaimWorkers = parseInt("RECLAIM_WORKERS", cfg.ReclaimWorkers)
	cfg.RateLimitPerMinute = parseInt("RATE_LIMIT", cfg.RateLimitPerMinute)

	cfg.Storage = strings.ToLower(readEnv("STORAGE", cfg.Storage))
	cfg.S3Endpoint = readEnv("S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKey = readEnv("S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = readEnv("S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UseSSL = parseBool("S3_USE_SSL", cfg.S3UseSSL)
	cfg.S3Region = readEnv("S3_REGION", cfg.S3Region)
	cfg.Bucket = readEnv("BUCKET", cfg.Bucket)

	cfg.DatabaseURL = readEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisAddr = readEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = readEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = parseInt("REDIS_DB", cfg.RedisDB)

	cfg.LogLevel = strings.ToLower(readEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.LogPath = readEnv("LOG_PATH", cfg.LogPath)
	cfg.LogMaxSizeMB = parseInt("LOG_MAX_SIZE_MB", cfg.LogMaxSizeMB)
	cfg.LogMaxBackups = parseInt("LOG_MAX_BACKUPS", cfg.LogMaxBackups)
	cfg.LogMaxAgeDays = parseInt("LOG_MAX_AGE_DAYS", cfg.LogMaxAgeDays)
	cfg.LogCompress = parseBool("LOG_COMPRESS", cfg.LogCompress)
}

func normalize(cfg *Config) {
	if cfg.DefaultLifetime <= 0 {
		cfg.DefaultLifetime = defaultLifetime
	}
	if cfg.MaxLifetime <= 0 {
		cfg.MaxLifetime = defaultLifetime
	}
	if cfg.DefaultLifetime > cfg.MaxLifetime {
		cfg.DefaultLifetime = cfg.MaxLifetime
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.ReclaimWorkers <= 0 {
		cfg.ReclaimWorkers = defaultReclaimWorkers
	}
	if cfg.RateLimitPerMinute < 0 {
		cfg.RateLimitPerMinute = 0
	}
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageDisk:
		if c.DataDir == "" {
			return errors.New("data dir must be set for disk storage")
		}
	case StorageS3:
		if c.S3Endpoint == "" || c.Bucket == "" {
			return errors.New("s3 storage needs an endpoint and a bucket")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	if len(c.Tokens) == 0 {
		return ErrNoTokens
	}
	if limit := MaxLifetimeFrom(time.Now()); c.MaxLifetime > limit {
		return fmt.Errorf("max lifetime %s exceeds upload id capacity (%s)", c.MaxLifetime, limit)
	}
	return nil
}

// MaxLifetimeFrom returns the longest lifetime an upload created at now can
// have before its expiration no longer fits in an upload ID.
func MaxLifetimeFrom(now time.Time) time.Duration {
	left := uploadid.MaxExpiry - uploadid.Unix(now)
	// time.Duration overflows long before 2^56 seconds
	const maxSeconds = uint64(1<<63-1) / uint64(time.Second)
	if left > maxSeconds {
		left = maxSeconds
	}
	return time.Duration(left) * time.Second
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return def
}

func parseList(key string, def []string) []string {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

// parseBytes accepts plain byte counts as well as sizes like "150MB".
func parseBytes(key string, def int64) int64 {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		if parsed, err := humanize.ParseBytes(v); err == nil {
			return int64(parsed)
		}
	}
	return def
}
