package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/fasecards/internal/database"
	"github.com/example/fasecards/internal/progression"
)

// Default notification window, in UTC hours
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 20
)

// Config holds everything read from the environment
type Config struct {
	Database database.Config

	TelegramToken   string
	EnableScheduler bool

	// reminders are only sent while StartHour <= hour <= EndHour
	NotificationStartHour int
	NotificationEndHour   int

	Unlock        progression.UnlockPolicy
	NewItemsFirst bool

	LogLevel  logrus.Level
	LogFormat string // "text" or "json"
}

// Load reads .env if present and builds the configuration from the environment
func Load() (*Config, error) {
	// .env is optional, real environment variables take precedence
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration using getenv for lookups
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Database: database.Config{
			Type:       strings.ToLower(getenv("DB_TYPE")),
			SQLitePath: getenv("SQLITE_PATH"),
			URL:        getenv("DATABASE_URL"),
		},
		TelegramToken:         getenv("TELEGRAM_BOT_TOKEN"),
		NotificationStartHour: DefaultNotificationStartHour,
		NotificationEndHour:   DefaultNotificationEndHour,
		Unlock:                progression.DefaultPolicy(),
		LogLevel:              logrus.InfoLevel,
		LogFormat:             "text",
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = database.TypeSQLite
	}

	var err error
	if cfg.EnableScheduler, err = parseBool(getenv, "ENABLE_SCHEDULER", false); err != nil {
		return nil, err
	}
	if cfg.NewItemsFirst, err = parseBool(getenv, "NEW_ITEMS_FIRST", false); err != nil {
		return nil, err
	}
	if cfg.NotificationStartHour, err = parseHour(getenv, "NOTIFICATION_START_HOUR", cfg.NotificationStartHour); err != nil {
		return nil, err
	}
	if cfg.NotificationEndHour, err = parseHour(getenv, "NOTIFICATION_END_HOUR", cfg.NotificationEndHour); err != nil {
		return nil, err
	}

	if v := getenv("UNLOCK_POLICY"); v != "" {
		if cfg.Unlock.Mode, err = progression.ParseUnlockMode(v); err != nil {
			return nil, err
		}
	}
	if v := getenv("UNLOCK_MIN_SCORE"); v != "" {
		if cfg.Unlock.MinScore, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, errors.Wrapf(err, "invalid UNLOCK_MIN_SCORE %q", v)
		}
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		if cfg.LogLevel, err = logrus.ParseLevel(v); err != nil {
			return nil, errors.Wrapf(err, "invalid LOG_LEVEL %q", v)
		}
	}
	if v := strings.ToLower(getenv("LOG_FORMAT")); v != "" {
		cfg.LogFormat = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that are only meaningful together
func (c *Config) Validate() error {
	switch c.Database.Type {
	case database.TypeSQLite:
	case database.TypePostgres:
		if c.Database.URL == "" {
			return errors.New("DATABASE_URL is required when DB_TYPE is postgres")
		}
	default:
		return errors.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}

	if c.NotificationStartHour > c.NotificationEndHour {
		return errors.Errorf("NOTIFICATION_START_HOUR %d is after NOTIFICATION_END_HOUR %d", c.NotificationStartHour, c.NotificationEndHour)
	}
	if c.EnableScheduler && c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required when the scheduler is enabled")
	}
	if c.Unlock.MinScore < 0 {
		return errors.Errorf("UNLOCK_MIN_SCORE must not be negative, got %v", c.Unlock.MinScore)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Errorf("unsupported LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// Logger returns a logrus logger configured with the level and format
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func parseBool(getenv func(string) string, key string, def bool) (bool, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "invalid %s %q", key, v)
	}
	return b, nil
}

func parseHour(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	h, err := strconv.Atoi(v)
	if err != nil || h < 0 || h > 23 {
		return 0, errors.Errorf("invalid %s %q: want an hour between 0 and 23", key, v)
	}
	return h, nil
}
