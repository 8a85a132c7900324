// Package config reads the service settings from AYUDAME_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/ayudame/internal/backup"
	"github.com/dukerupert/ayudame/internal/engine"
)

type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string
	BaseURL   string

	PostmarkToken string
	FromEmail     string

	// Origins are extra hosts allowed to open the realtime feed.
	Origins []string

	OpTimeout      time.Duration
	MaxInProgress  int
	PointsPerTask  int
	PointsPerLevel int

	S3               backup.S3Config
	BackupPassphrase string
	BackupInterval   time.Duration
	BackupRetention  time.Duration
}

// Load reads the environment through getenv, usually os.Getenv.
// Malformed numbers and durations are errors; missing values take defaults.
func Load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:          valueOr(getenv("AYUDAME_PORT"), "8080"),
		DBPath:        valueOr(getenv("AYUDAME_DB_PATH"), "ayudame.db"),
		LogLevel:      getenv("AYUDAME_LOG_LEVEL"),
		LogFormat:     getenv("AYUDAME_LOG_FORMAT"),
		PostmarkToken: getenv("AYUDAME_POSTMARK_TOKEN"),
		FromEmail:     getenv("AYUDAME_FROM_EMAIL"),
		S3: backup.S3Config{
			Endpoint:  getenv("AYUDAME_S3_ENDPOINT"),
			Bucket:    getenv("AYUDAME_S3_BUCKET"),
			Region:    valueOr(getenv("AYUDAME_S3_REGION"), "us-east-1"),
			AccessKey: getenv("AYUDAME_S3_ACCESS_KEY"),
			SecretKey: getenv("AYUDAME_S3_SECRET_KEY"),
			Prefix:    getenv("AYUDAME_S3_PREFIX"),
		},
		BackupPassphrase: getenv("AYUDAME_BACKUP_PASSPHRASE"),
	}
	cfg.BaseURL = valueOr(getenv("AYUDAME_BASE_URL"), "http://localhost:"+cfg.Port)

	for _, o := range strings.Split(getenv("AYUDAME_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.Origins = append(cfg.Origins, o)
		}
	}

	var err error
	if cfg.OpTimeout, err = duration(getenv, "AYUDAME_OP_TIMEOUT", engine.DefaultOpTimeout); err != nil {
		return cfg, err
	}
	if cfg.MaxInProgress, err = positiveInt(getenv, "AYUDAME_MAX_IN_PROGRESS", engine.DefaultMaxInProgress); err != nil {
		return cfg, err
	}
	if cfg.PointsPerTask, err = positiveInt(getenv, "AYUDAME_POINTS_PER_TASK", engine.DefaultPointsPerTask); err != nil {
		return cfg, err
	}
	if cfg.PointsPerLevel, err = positiveInt(getenv, "AYUDAME_POINTS_PER_LEVEL", engine.DefaultPointsPerLevel); err != nil {
		return cfg, err
	}
	if cfg.BackupInterval, err = duration(getenv, "AYUDAME_BACKUP_INTERVAL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.BackupRetention, err = duration(getenv, "AYUDAME_BACKUP_RETENTION", 30*24*time.Hour); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Engine returns the engine settings with the flat progression policy.
func (c Config) Engine() engine.Config {
	return engine.Config{
		OpTimeout:     c.OpTimeout,
		MaxInProgress: c.MaxInProgress,
		Progression:   engine.FlatProgression(c.PointsPerTask, c.PointsPerLevel),
	}
}

// BackupsEnabled reports whether scheduled backups should run.
func (c Config) BackupsEnabled() bool {
	return c.S3.Configured() && c.BackupPassphrase != ""
}

// SecureCookies reports whether the service is served over https.
func (c Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func positiveInt(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: must be a positive integer, got %q", key, v)
	}
	return n, nil
}
