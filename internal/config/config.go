// Package config loads process settings from the environment, an optional
// .env file and an optional YAML params file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fairroute/internal/ingest"
	"fairroute/internal/opt"
)

const DefaultTenant = "t_demo"

type Config struct {
	Port        string
	AppEnv      string
	DatabaseURL string
	RedisURL    string
	DBMigrate   bool

	// RateRPS <= 0 disables rate limiting.
	RateRPS   float64
	RateBurst int

	ImportDir      string
	ImportTenant   string
	ImportInterval time.Duration

	LockTTL time.Duration

	ParamsFile string
	Params     Params
}

// Params is the tunable part of the pipeline.
type Params struct {
	Scoring   opt.Params       `yaml:"scoring"`
	Gazetteer ingest.Gazetteer `yaml:"gazetteer"`
	Jitter    float64          `yaml:"jitter"`
}

func DefaultParams() Params {
	return Params{
		Scoring:   opt.DefaultParams(),
		Gazetteer: ingest.DefaultGazetteer(),
		Jitter:    ingest.DefaultJitter,
	}
}

// Load reads .env (if present) then the environment. A missing .env is not an
// error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can avoid the
// process environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(k, def string) string {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			return v
		}
		return def
	}
	c := &Config{
		Port:         get("PORT", "8080"),
		AppEnv:       get("APP_ENV", "production"),
		DatabaseURL:  get("DATABASE_URL", ""),
		RedisURL:     get("REDIS_URL", ""),
		ImportDir:    get("IMPORT_DIR", ""),
		ImportTenant: get("IMPORT_TENANT", DefaultTenant),
		ParamsFile:   get("PARAMS_FILE", ""),
		Params:       DefaultParams(),
	}
	var err error
	if c.DBMigrate, err = strconv.ParseBool(get("DB_MIGRATE", "true")); err != nil {
		return nil, fmt.Errorf("config: DB_MIGRATE: %w", err)
	}
	if c.RateRPS, err = strconv.ParseFloat(get("RATE_RPS", "0"), 64); err != nil {
		return nil, fmt.Errorf("config: RATE_RPS: %w", err)
	}
	if c.RateBurst, err = strconv.Atoi(get("RATE_BURST", "20")); err != nil {
		return nil, fmt.Errorf("config: RATE_BURST: %w", err)
	}
	if c.ImportInterval, err = time.ParseDuration(get("IMPORT_INTERVAL", "30s")); err != nil {
		return nil, fmt.Errorf("config: IMPORT_INTERVAL: %w", err)
	}
	if c.LockTTL, err = time.ParseDuration(get("LOCK_TTL", "30s")); err != nil {
		return nil, fmt.Errorf("config: LOCK_TTL: %w", err)
	}
	if c.ParamsFile != "" {
		if c.Params, err = LoadParamsFile(c.ParamsFile); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadParamsFile reads a YAML params document. Keys it omits keep their
// defaults.
func LoadParamsFile(path string) (Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("config: params file: %w", err)
	}
	return ParseParams(b)
}

func ParseParams(b []byte) (Params, error) {
	p := DefaultParams()
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Params{}, fmt.Errorf("config: params: %w", err)
	}
	if err := p.Scoring.Validate(); err != nil {
		return Params{}, err
	}
	if p.Jitter < 0 {
		return Params{}, fmt.Errorf("config: params: jitter must be >= 0")
	}
	return p, nil
}

func (c *Config) Dev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "development", "dev", "local":
		return true
	}
	return false
}
