package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config хранит все параметры приложения
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Log      LogConfig      `yaml:"log"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CookieSecure    bool          `yaml:"cookie_secure"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory | sqlite | postgres
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"`
	Migrate     bool   `yaml:"migrate"`
}

type CatalogConfig struct {
	PageSize int `yaml:"page_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

type RabbitMQConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Default значения, если файл конфигурации отсутствует
func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Addr: ":9091", ShutdownTimeout: 5 * time.Second},
		Storage: StorageConfig{Driver: "memory", SQLitePath: "storefront.db", Migrate: true},
		Catalog: CatalogConfig{PageSize: 5},
		Log:     LogConfig{Level: "info", Format: "text"},
		RabbitMQ: RabbitMQConfig{
			Exchange: "orders_topic",
		},
	}
}

// Load читает YAML (если файл есть), затем применяет переменные окружения
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"BIND_ADDR":      &c.HTTP.Addr,
		"STORAGE_DRIVER": &c.Storage.Driver,
		"POSTGRES_DSN":   &c.Storage.PostgresDSN,
		"SQLITE_PATH":    &c.Storage.SQLitePath,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
		"AMQP_URL":       &c.RabbitMQ.URL,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	if v, ok := lookup("CATALOG_PAGE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CATALOG_PAGE_SIZE: %w", err)
		}
		c.Catalog.PageSize = n
	}
	return nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("invalid config: http.addr is empty")
	}
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("invalid config: storage.sqlite_path is required for sqlite")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return errors.New("invalid config: storage.postgres_dsn is required for postgres")
		}
	default:
		return fmt.Errorf("invalid config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Catalog.PageSize <= 0 {
		return errors.New("invalid config: catalog.page_size must be positive")
	}
	return nil
}
