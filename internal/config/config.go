// Package config предоставляет структуры и функцию для парсинга и загрузки конфига клиентского ядра.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	// GatewaySupabase удалённый шлюз через HTTP API хостинга (auth + rest).
	GatewaySupabase = "supabase"
	// GatewayDirect прямое подключение к базе Postgres с той же схемой.
	GatewayDirect = "direct"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env" env-default:"local"`
	Gateway         `yaml:"gateway"`
	RedisConnection `yaml:"redis_connection"`
	HTTPServer      `yaml:"http_server"`
	JWTToken        `yaml:"jwttoken"`
	RabbitMQ        `yaml:"rabbitmq"`
	Cards           `yaml:"cards"`
	Locale          `yaml:"locale"`
}

// Gateway структура для настройки удалённого шлюза данных
type Gateway struct {
	Mode                    string        `yaml:"mode" env:"GATEWAY_MODE" env-default:"supabase"`
	URL                     string        `yaml:"url" env:"SUPABASE_URL"`
	AnonKey                 string        `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	StorageConnectionString string        `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string        `yaml:"migrations_path" env-default:"./migrations"`
	TimeoutGateway          time.Duration `yaml:"timeoutgateway" env-default:"15s"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// HTTPServer структура для настройки локального моста для UI
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"127.0.0.1:8787"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"30s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   float64       `yaml:"rate_limit" env-default:"20"`
	RateBurst   int           `yaml:"rate_burst" env-default:"40"`
}

// JWTToken структура для работы с jwt-токеном (используется только режимом direct)
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"1h"`
	RefreshTTL   time.Duration `yaml:"refresh_ttl" env-default:"720h"`
}

// RabbitMQ структура для публикации уведомлений об оплате
type RabbitMQ struct {
	RabbitMQURL string        `yaml:"rabbitmq_url" env:"RABBITMQ_URL"`
	Retries     int           `yaml:"retries" env-default:"3"`
	RetryDelay  time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Cards настройки коллекции карт
type Cards struct {
	Limit int `yaml:"limit" env-default:"5"`
}

// Locale настройки локализации
type Locale struct {
	Default string `yaml:"default" env-default:"es"`
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

// Load читает и проверяет конфиг по пути.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек шлюза.
func (c *Config) Validate() error {
	switch c.Mode {
	case GatewaySupabase:
		if c.URL == "" || c.AnonKey == "" {
			return fmt.Errorf("gateway %q requires url and anon_key", c.Mode)
		}
	case GatewayDirect:
		if c.StorageConnectionString == "" {
			return fmt.Errorf("gateway %q requires storage_connection_string", c.Mode)
		}
		if c.JWTSecretKey == "" {
			return fmt.Errorf("gateway %q requires jwt_secret_key", c.Mode)
		}
	default:
		return fmt.Errorf("unknown gateway mode %q", c.Mode)
	}
	if c.Limit <= 0 {
		return fmt.Errorf("cards limit must be positive, got %d", c.Limit)
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Gateway:\n"+
			"  Mode: %s\n"+
			"  URL: %s\n"+
			"  Timeout: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"  MaxRetries: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Cards:\n"+
			"  Limit: %d\n"+
			"Locale:\n"+
			"  Default: %s\n",
		c.Env,
		c.Mode,
		c.URL,
		c.TimeoutGateway,
		c.AddressRedis,
		c.DB,
		c.MaxRetries,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.Limit,
		c.Default,
	)
}
