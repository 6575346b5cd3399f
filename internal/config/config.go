package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env           string `yaml:"env" env:"ENV" env-default:"local"`
	StoragePath   string `yaml:"storage_path" env:"STORAGE_PATH"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	HTTPServer    `yaml:"http_server"`
	Coach         Coach         `yaml:"coach"`
	Regeneration  Regeneration  `yaml:"regeneration"`
	Auth          Auth          `yaml:"auth"`
	WeChat        WeChat        `yaml:"wechat"`
	Notifications Notifications `yaml:"notifications"`
	Reminder      Reminder      `yaml:"reminder"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

type Coach struct {
	ID       string `yaml:"id" env:"COACH_OPENID" env-required:"true"`
	Timezone string `yaml:"timezone" env:"COACH_TIMEZONE" env-default:"Asia/Shanghai"`
}

type Regeneration struct {
	HorizonDays int           `yaml:"horizon_days" env-default:"56"`
	DeleteScope string        `yaml:"delete_scope" env-default:"all"`
	LockTTL     time.Duration `yaml:"lock_ttl" env-default:"30s"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
}

type WeChat struct {
	AppID            string `yaml:"app_id" env:"WECHAT_APP_ID"`
	AppSecret        string `yaml:"app_secret" env:"WECHAT_APP_SECRET"`
	APIBase          string `yaml:"api_base" env-default:"https://api.weixin.qq.com"`
	MiniprogramState string `yaml:"miniprogram_state" env-default:"formal"`
	Templates        struct {
		BookingConfirmed string `yaml:"booking_confirmed" env:"WECHAT_TPL_BOOKING_CONFIRMED"`
		BookingCancelled string `yaml:"booking_cancelled" env:"WECHAT_TPL_BOOKING_CANCELLED"`
		Reminder         string `yaml:"reminder" env:"WECHAT_TPL_REMINDER"`
	} `yaml:"templates"`
}

// Enabled reports whether credentials for the WeChat API are present.
func (w WeChat) Enabled() bool {
	return w.AppID != "" && w.AppSecret != ""
}

type Notifications struct {
	Async       bool          `yaml:"async" env-default:"false"`
	Timeout     time.Duration `yaml:"timeout" env-default:"10s"`
	MaxRetry    int           `yaml:"max_retry" env-default:"5"`
	Concurrency int           `yaml:"concurrency" env-default:"4"`
}

type Reminder struct {
	Enabled bool          `yaml:"enabled" env-default:"true"`
	Spec    string        `yaml:"spec" env-default:"* * * * *"`
	Lead    time.Duration `yaml:"lead" env-default:"15m"`
}

// Location resolves the coach's IANA zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Coach.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: unknown timezone %q: %w", c.Coach.Timezone, err)
	}

	return loc, nil
}

func MustLoad() *Config {
	// optional, variables already set win
	_ = godotenv.Load()

	cfg, err := Load(fetchConfigPath())
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch cfg.Regeneration.DeleteScope {
	case "all", "future":
	default:
		return nil, fmt.Errorf("regeneration.delete_scope must be all or future, got %q", cfg.Regeneration.DeleteScope)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// fetchConfigPath takes the path from the --config flag or CONFIG_PATH.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
