package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LOCATIONUP"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv        = "LOCATIONUP_APP_ENV"
	EnvPort          = "LOCATIONUP_APP_PORT"
	EnvAPIBaseURL    = "LOCATIONUP_API_BASE_URL"
	EnvStreamBaseURL = "LOCATIONUP_STREAM_BASE_URL"
	EnvRedisURL      = "LOCATIONUP_REDIS_URL"
)

type Config struct {
	App     AppConfig
	API     APIConfig
	Stream  StreamConfig
	Geocode GeocodeConfig
	Redis   RedisConfig
	Session SessionConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LOCATIONUP_APP_ENV" required:"true"`
	Port         string `envconfig:"LOCATIONUP_APP_PORT" default:"8090"`
	LogLevel     string `envconfig:"LOCATIONUP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOCATIONUP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// APIConfig points at the LocationUp backend REST API.
type APIConfig struct {
	BaseURL string        `envconfig:"LOCATIONUP_API_BASE_URL" required:"true"`
	Token   string        `envconfig:"LOCATIONUP_API_TOKEN"`
	Timeout time.Duration `envconfig:"LOCATIONUP_API_TIMEOUT" default:"10s"`
}

// StreamConfig controls the notification stream client.
type StreamConfig struct {
	BaseURL string `envconfig:"LOCATIONUP_STREAM_BASE_URL" required:"true"`
	UserID  string `envconfig:"LOCATIONUP_STREAM_USER_ID"`
}

// GeocodeConfig points at the public geocoding API.
type GeocodeConfig struct {
	BaseURL   string        `envconfig:"LOCATIONUP_GEOCODE_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	UserAgent string        `envconfig:"LOCATIONUP_GEOCODE_USER_AGENT" default:"locationup-client"`
	Timeout   time.Duration `envconfig:"LOCATIONUP_GEOCODE_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOCATIONUP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOCATIONUP_REDIS_ADDR"`
	Password     string        `envconfig:"LOCATIONUP_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOCATIONUP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOCATIONUP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOCATIONUP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOCATIONUP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOCATIONUP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOCATIONUP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SessionConfig controls the cached profile/token blob.
type SessionConfig struct {
	StorageKey string        `envconfig:"LOCATIONUP_SESSION_STORAGE_KEY" default:"current_user"`
	TTL        time.Duration `envconfig:"LOCATIONUP_SESSION_TTL" default:"720h"`
}
