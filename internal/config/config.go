package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"RankRadar/internal/strategy"
	"RankRadar/internal/watchlist"
)

// Config holds all application configuration.
type Config struct {
	Database struct {
		Driver     string        `yaml:"driver"` // sqlite | postgres
		DSN        string        `yaml:"dsn"`
		SQLitePath string        `yaml:"sqlite_path"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"database"`
	Redis struct {
		Addr             string        `yaml:"addr"` // empty disables caching
		Password         string        `yaml:"password"`
		DB               int           `yaml:"db"`
		Prefix           string        `yaml:"prefix"`
		MarketContextTTL time.Duration `yaml:"market_context_ttl"`
		ResponseTTL      time.Duration `yaml:"response_ttl"`
	} `yaml:"redis"`
	Scoring struct {
		Windows         []int         `yaml:"windows"`
		PrimaryWindow   int           `yaml:"primary_window"`
		Workers         int           `yaml:"workers"`
		BreakerFailures uint32        `yaml:"breaker_failures"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
		CheckpointFile  string        `yaml:"checkpoint_file"`
	} `yaml:"scoring"`
	Schedule struct {
		BatchCron  string `yaml:"batch_cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	API struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json | pretty
	} `yaml:"log"`
	Strategy strategy.Params  `yaml:"strategy"`
	Watch    watchlist.Params `yaml:"watchlist"`
}

// Load reads .env, then the YAML file, then environment overrides, and fills
// defaults. Missing files are not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Strategy: strategy.DefaultParams(),
		Watch:    watchlist.DefaultParams(),
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("BATCH_CRON"); v != "" {
		c.Schedule.BatchCron = v
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Schedule.RunOnStart = b
	}
	if v := os.Getenv("API_LISTEN"); v != "" {
		c.API.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("SCORING_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCORING_WORKERS: %w", err)
		}
		c.Scoring.Workers = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/rankradar.db"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = c.Database.SQLitePath
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = 10 * time.Second
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "rankradar:"
	}
	if c.Redis.MarketContextTTL == 0 {
		c.Redis.MarketContextTTL = 5 * time.Minute
	}
	if c.Redis.ResponseTTL == 0 {
		c.Redis.ResponseTTL = 60 * time.Second
	}
	if len(c.Scoring.Windows) == 0 {
		c.Scoring.Windows = []int{7, 14, 30}
	}
	if c.Scoring.PrimaryWindow == 0 {
		c.Scoring.PrimaryWindow = 14
	}
	if c.Scoring.Workers == 0 {
		c.Scoring.Workers = 8
	}
	if c.Scoring.BreakerFailures == 0 {
		c.Scoring.BreakerFailures = 5
	}
	if c.Scoring.BreakerTimeout == 0 {
		c.Scoring.BreakerTimeout = 30 * time.Second
	}
	if c.Scoring.CheckpointFile == "" {
		c.Scoring.CheckpointFile = "data/checkpoint.json"
	}
	if c.Schedule.BatchCron == "" {
		c.Schedule.BatchCron = "0 0 * * * *"
	}
	if c.API.Listen == "" {
		c.API.Listen = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	c.Watch.PrimaryWindow = c.Scoring.PrimaryWindow
}

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for %s", c.Database.Driver)
	}
	if len(c.Scoring.Windows) == 0 {
		return fmt.Errorf("scoring.windows must not be empty")
	}
	for _, w := range c.Scoring.Windows {
		if w <= 0 {
			return fmt.Errorf("scoring.windows: %d is not positive", w)
		}
	}
	if !slices.Contains(c.Scoring.Windows, c.Scoring.PrimaryWindow) {
		return fmt.Errorf("scoring.primary_window %d is not one of %v", c.Scoring.PrimaryWindow, c.Scoring.Windows)
	}
	if c.Scoring.Workers <= 0 {
		return fmt.Errorf("scoring.workers must be positive")
	}
	if c.Strategy.Velocity.MinSpanDays < 0 {
		return fmt.Errorf("strategy.velocity.min_span_days must not be negative")
	}
	if _, err := cronParser.Parse(c.Schedule.BatchCron); err != nil {
		return fmt.Errorf("schedule.batch_cron: %w", err)
	}
	return nil
}
