package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env  string     `yaml:"env" env:"TASKHIVE_ENV" env-default:"local"`
	HTTP HTTPConfig `yaml:"http"`
	DB   DBConfig   `yaml:"db"`
	JWT  JWTConfig  `yaml:"jwt"`
	Rate RateConfig `yaml:"rate"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr" env:"TASKHIVE_HTTP_ADDR" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env-default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env-default:"60s"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env-default:"1048576"`
}

type DBConfig struct {
	DSN string `yaml:"dsn" env:"TASKHIVE_PG_DSN" env-required:"true"`
}

type JWTConfig struct {
	// SigningKey is the HMAC-SHA-256 key for access tokens. Never defaulted.
	SigningKey string        `yaml:"signing_key" env:"TASKHIVE_JWT_KEY" env-required:"true"`
	Issuer     string        `yaml:"issuer" env:"TASKHIVE_JWT_ISSUER" env-default:"taskhive"`
	Audience   string        `yaml:"audience" env:"TASKHIVE_JWT_AUDIENCE" env-default:"taskhive-api"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"TASKHIVE_ACCESS_TTL" env-default:"15m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"TASKHIVE_REFRESH_TTL" env-default:"168h"`
}

type RateConfig struct {
	Burst  int `yaml:"burst" env-default:"20"`
	PerSec int `yaml:"per_sec" env-default:"10"`
}

// Load reads configuration from the given YAML file with env overrides.
// Pass an empty path to read from the environment only.
func Load(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics on error, for use in main.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic("config: " + err.Error())
	}
	return cfg
}
