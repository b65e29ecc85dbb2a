// Package config содержит логику чтения конфигурации витрины.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultBackendAddress = "localhost:8081"
	defaultStoragePath    = "storefront-session.json"
	defaultSessionTTL     = 15 * time.Minute
	defaultBackendTimeout = 10 * time.Second
)

// Config содержит параметры конфигурации витрины.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS"`
	BackendAddress string `env:"BACKEND_ADDRESS"`
	StoragePath    string `env:"STORAGE_PATH"`
	DatabaseURI    string `env:"DATABASE_URI"`
	RedisAddress   string `env:"REDIS_ADDRESS"`
	PaymentKeyID   string `env:"PAYMENT_KEY_ID"`

	AppName          string        `env:"APP_NAME" envDefault:"Your Ecommerce Store"`
	WidgetScriptURL  string        `env:"WIDGET_SCRIPT_URL" envDefault:"https://checkout.razorpay.com/v1/checkout.js"`
	WidgetSessionTTL time.Duration `env:"WIDGET_SESSION_TTL"`
	BackendTimeout   time.Duration `env:"BACKEND_TIMEOUT"`
}

// Parse считывает конфигурацию из файла .env (если есть), флагов командной строки
// и переменных окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envBackendAddress := cfg.BackendAddress
	envStoragePath := cfg.StoragePath
	envDatabaseURI := cfg.DatabaseURI
	envRedisAddress := cfg.RedisAddress
	envPaymentKeyID := cfg.PaymentKeyID

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.BackendAddress, "b", defaultBackendAddress, "store backend address")
	flag.StringVar(&cfg.StoragePath, "s", defaultStoragePath, "session file path")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for session storage")
	flag.StringVar(&cfg.RedisAddress, "r", "", "redis address for session storage")
	flag.StringVar(&cfg.PaymentKeyID, "k", "", "payment widget key id")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envBackendAddress != "" {
		cfg.BackendAddress = envBackendAddress
	}
	if envStoragePath != "" {
		cfg.StoragePath = envStoragePath
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envRedisAddress != "" {
		cfg.RedisAddress = envRedisAddress
	}
	if envPaymentKeyID != "" {
		cfg.PaymentKeyID = envPaymentKeyID
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.BackendAddress == "" {
		cfg.BackendAddress = defaultBackendAddress
	}
	if cfg.WidgetSessionTTL <= 0 {
		cfg.WidgetSessionTTL = defaultSessionTTL
	}
	if cfg.BackendTimeout <= 0 {
		cfg.BackendTimeout = defaultBackendTimeout
	}

	return cfg, nil
}

// StorageKind возвращает выбранное хранилище сессии: postgres, redis или file.
func (c *Config) StorageKind() string {
	switch {
	case c.DatabaseURI != "":
		return "postgres"
	case c.RedisAddress != "":
		return "redis"
	}
	return "file"
}
