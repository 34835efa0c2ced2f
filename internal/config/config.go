package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type envConfig struct {
	APP_PORT      string
	LOG_FILE_PATH string
	LOG_LEVEL     string

	DB_HOST              string
	DB_PORT              int
	DB_USER              string
	DB_PASSWORD          string
	DB_NAME              string
	DB_SSL_MODE          string
	DB_MAX_OPEN_CONNS    int
	DB_MAX_IDLE_CONNS    int
	DB_CONN_MAX_LIFETIME time.Duration

	// GCP_PROJECT_ID enables the Datastore import audit store when set.
	GCP_PROJECT_ID string

	SHEET_DEFAULT_FORMAT string
	SHEET_TIME_LAYOUT    string
	SHEET_STRICT_IMPORT  bool
	UPLOAD_MAX_BYTES     int64
}

// DefaultEnvConfig is filled by LoadEnvConfig.
var DefaultEnvConfig = defaults()

func defaults() envConfig {
	return envConfig{
		APP_PORT:             "8080",
		LOG_LEVEL:            "info",
		DB_HOST:              "localhost",
		DB_PORT:              5432,
		DB_USER:              "postgres",
		DB_NAME:              "employees",
		DB_SSL_MODE:          "disable",
		DB_MAX_OPEN_CONNS:    25,
		DB_MAX_IDLE_CONNS:    5,
		DB_CONN_MAX_LIFETIME: 5 * time.Minute,
		SHEET_DEFAULT_FORMAT: "xlsx",
		SHEET_TIME_LAYOUT:    "2006-01-02 15:04:05",
		UPLOAD_MAX_BYTES:     20 << 20,
	}
}

// LoadEnvConfig reads an optional .env file, then the process environment,
// into DefaultEnvConfig. Unset variables keep their defaults.
func LoadEnvConfig(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read env file: %w", err)
	}

	cfg := defaults()
	var errs []string
	str := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(dst *int, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	str(&cfg.APP_PORT, "APP_PORT")
	str(&cfg.LOG_FILE_PATH, "LOG_FILE_PATH")
	str(&cfg.LOG_LEVEL, "LOG_LEVEL")
	str(&cfg.DB_HOST, "DB_HOST")
	num(&cfg.DB_PORT, "DB_PORT")
	str(&cfg.DB_USER, "DB_USER")
	str(&cfg.DB_PASSWORD, "DB_PASSWORD")
	str(&cfg.DB_NAME, "DB_NAME")
	str(&cfg.DB_SSL_MODE, "DB_SSL_MODE")
	num(&cfg.DB_MAX_OPEN_CONNS, "DB_MAX_OPEN_CONNS")
	num(&cfg.DB_MAX_IDLE_CONNS, "DB_MAX_IDLE_CONNS")
	str(&cfg.GCP_PROJECT_ID, "GCP_PROJECT_ID")
	str(&cfg.SHEET_DEFAULT_FORMAT, "SHEET_DEFAULT_FORMAT")
	str(&cfg.SHEET_TIME_LAYOUT, "SHEET_TIME_LAYOUT")

	if v := os.Getenv("DB_CONN_MAX_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DB_CONN_MAX_LIFETIME: %q is not a duration", v))
		} else {
			cfg.DB_CONN_MAX_LIFETIME = d
		}
	}
	if v := os.Getenv("SHEET_STRICT_IMPORT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SHEET_STRICT_IMPORT: %q is not a boolean", v))
		} else {
			cfg.SHEET_STRICT_IMPORT = b
		}
	}
	if v := os.Getenv("UPLOAD_MAX_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("UPLOAD_MAX_BYTES: %q is not an integer", v))
		} else {
			cfg.UPLOAD_MAX_BYTES = n
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	DefaultEnvConfig = cfg
	return nil
}

// Validate checks value ranges after loading.
func (c envConfig) Validate() error {
	var errs []string
	if c.APP_PORT == "" {
		errs = append(errs, "APP_PORT must not be empty")
	}
	if c.DB_PORT <= 0 || c.DB_PORT > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT %d out of range", c.DB_PORT))
	}
	if c.DB_MAX_IDLE_CONNS > c.DB_MAX_OPEN_CONNS {
		errs = append(errs, "DB_MAX_IDLE_CONNS exceeds DB_MAX_OPEN_CONNS")
	}
	switch strings.ToLower(strings.TrimPrefix(c.SHEET_DEFAULT_FORMAT, ".")) {
	case "xls", "xlsx":
	default:
		errs = append(errs, fmt.Sprintf("SHEET_DEFAULT_FORMAT %q must be xls or xlsx", c.SHEET_DEFAULT_FORMAT))
	}
	if c.SHEET_TIME_LAYOUT == "" {
		errs = append(errs, "SHEET_TIME_LAYOUT must not be empty")
	}
	if c.UPLOAD_MAX_BYTES <= 0 {
		errs = append(errs, "UPLOAD_MAX_BYTES must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}
