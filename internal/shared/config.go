package shared

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string        `env:"APP_ENV" validate:"required,oneof=dev test prod"`
	HTTPAddr    string        `env:"HTTP_ADDR" validate:"required"`
	MetricsAddr string        `env:"METRICS_ADDR"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT_SECONDS"`

	DataPath string `env:"DATA_PATH" validate:"required"`

	ToneBase    string `env:"TONE_BASE_URL" validate:"required,url"`
	ToneVersion string `env:"TONE_VERSION" validate:"required"`
	ToneKey     string `env:"TONE_API_KEY"`
	ToneRPS     int    `env:"TONE_RPS" validate:"gte=1"`

	ESHost      string `env:"ES_HOST" validate:"required"`
	ESPort      int    `env:"ES_PORT" validate:"gte=1,lte=65535"`
	IndexName   string `env:"ES_INDEX" validate:"required"`
	TypeName    string `env:"ES_TYPE" validate:"required"`
	MappingFile string `env:"ES_MAPPING_FILE"`
	Shards      int    `env:"ES_SHARDS" validate:"gte=1"`
	Replicas    int    `env:"ES_REPLICAS" validate:"gte=0"`

	RedisAddr string        `env:"REDIS_ADDR"`
	RedisPass string        `env:"REDIS_PASSWORD"`
	RedisDB   int           `env:"REDIS_DB" validate:"gte=0"`
	CacheTTL  time.Duration `env:"CACHE_TTL_SECONDS"`

	MySQLDSN string `env:"MYSQL_DSN"`
}

// Load reads .env (when present) and the process environment. Unset or
// unparsable values fall back to defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg(".env not loaded")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		HTTPTimeout: time.Duration(atoi("HTTP_TIMEOUT_SECONDS", 15)) * time.Second,
		DataPath:    env("DATA_PATH", "hotel-reviews/7282_1.csv"),
		ToneBase:    env("TONE_BASE_URL", "https://gateway-lon.watsonplatform.net/tone-analyzer/api"),
		ToneVersion: env("TONE_VERSION", "2016-05-19"),
		ToneKey:     env("TONE_API_KEY", ""),
		ToneRPS:     atoi("TONE_RPS", 5),
		ESHost:      env("ES_HOST", "localhost"),
		ESPort:      atoi("ES_PORT", 9200),
		IndexName:   env("ES_INDEX", "hotels"),
		TypeName:    env("ES_TYPE", "reviews"),
		MappingFile: env("ES_MAPPING_FILE", ""),
		Shards:      atoi("ES_SHARDS", 1),
		Replicas:    atoi("ES_REPLICAS", 0),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 86400)) * time.Second,
		MySQLDSN:    env("MYSQL_DSN", ""),
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	if c.ToneKey == "" {
		log.Warn().Msg("TONE_API_KEY is empty; requests must carry api_key")
	}
	return c, nil
}

func (c Config) Validate() error {
	if err := Validate(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: HTTP_TIMEOUT_SECONDS must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("config: CACHE_TTL_SECONDS must not be negative")
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
