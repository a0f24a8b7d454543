package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host            string `yaml:"host" env:"SERVER_HOST"`
		Port            int    `yaml:"port" env:"SERVER_PORT"`
		Env             string `yaml:"env" env:"SERVER_ENV"`
		LogLevel        string `yaml:"log_level" env:"LOG_LEVEL"`
		ShutdownTimeout int    `yaml:"shutdown_timeout_sec" env:"SHUTDOWN_TIMEOUT_SEC"`
	} `yaml:"server"`

	Database struct {
		Driver       string `yaml:"driver" env:"DATABASE_DRIVER"` // postgres, mysql, sqlite
		DSN          string `yaml:"url" env:"DATABASE_URL"`
		AutoMigrate  bool   `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
		MaxOpenConns int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
		MaxIdleConns int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	} `yaml:"database"`

	// Store выбирает реализацию репозиториев один раз при старте.
	Store struct {
		Backend string `yaml:"backend" env:"STORE_BACKEND"` // sql, memory
	} `yaml:"store"`

	JWT struct {
		Secret string `yaml:"secret" env:"JWT_SECRET"`
		TTL    int    `yaml:"ttl" env:"JWT_TTL"`
	} `yaml:"jwt"`

	// Valkey - общий реестр присутствия и шина событий между инстансами.
	// Пустой список адресов означает локальный режим одного процесса.
	Valkey struct {
		Addrs       []string `yaml:"addrs" env:"VALKEY_ADDRS" envSeparator:","`
		Password    string   `yaml:"password" env:"VALKEY_PASSWORD"`
		Prefix      string   `yaml:"prefix" env:"VALKEY_PREFIX"`
		PresenceTTL int      `yaml:"presence_ttl_sec" env:"VALKEY_PRESENCE_TTL_SEC"`
	} `yaml:"valkey"`

	Push struct {
		VAPIDPublicKey  string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
		VAPIDPrivateKey string `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
		Subject         string `yaml:"subject" env:"VAPID_SUBJECT"`
		TTL             int    `yaml:"ttl" env:"PUSH_TTL"`
		Icon            string `yaml:"icon" env:"PUSH_ICON"`
		Badge           string `yaml:"badge" env:"PUSH_BADGE"`
	} `yaml:"push"`

	Queue struct {
		Name         string `yaml:"name" env:"QUEUE_NAME"`
		Concurrency  int    `yaml:"concurrency" env:"QUEUE_CONCURRENCY"`
		// Retries: 0 отключает повторы, по умолчанию 3
		Retries      int    `yaml:"retries" env:"QUEUE_RETRIES"`
		BackoffMs    int    `yaml:"backoff_ms" env:"QUEUE_BACKOFF_MS"`
		PollInterval int    `yaml:"poll_interval_ms" env:"QUEUE_POLL_INTERVAL_MS"`
		// LeaseSec - аренда задачи воркером; просроченную забирает другой процесс
		LeaseSec     int    `yaml:"lease_sec" env:"QUEUE_LEASE_SEC"`
	} `yaml:"queue"`

	WS struct {
		AllowedOrigins  []string `yaml:"allowed_origins" env:"WS_ALLOWED_ORIGINS" envSeparator:","`
		MaxMessageBytes int64    `yaml:"max_message_bytes" env:"WS_MAX_MESSAGE_BYTES"`
		HistoryLimit    int      `yaml:"history_limit" env:"WS_HISTORY_LIMIT"`
	} `yaml:"ws"`

	Batch struct {
		Timezone    string `yaml:"timezone" env:"BATCH_TIMEZONE"`
		Concurrency int    `yaml:"concurrency" env:"BATCH_CONCURRENCY"`
		// Schedules - JSON-массив расписаний; ConfigPath - файл с тем же содержимым.
		Schedules  string `yaml:"schedules" env:"BATCH_SCHEDULES"`
		ConfigPath string `yaml:"config_path" env:"BATCH_CONFIG_PATH"`
	} `yaml:"batch"`
}

// defaultQueueRetries выставляется до чтения файла и окружения,
// чтобы явный 0 отличался от незаданного значения.
const defaultQueueRetries = 3

func newConfig() Config {
	var cfg Config
	cfg.Queue.Retries = defaultQueueRetries
	return cfg
}

// Load читает .env (если есть), затем yaml-файл (если есть), затем
// накладывает переменные окружения и значения по умолчанию.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := newConfig()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config/config.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Конфиг-файл необязателен: всё можно задать окружением
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig загружает конфигурацию или завершает процесс.
func LoadConfig() *Config {
	cfg, err := Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Default возвращает конфигурацию только со значениями по умолчанию.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "sql"
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = 60
	}
	if c.Valkey.Prefix == "" {
		c.Valkey.Prefix = "suchat:"
	}
	if c.Valkey.PresenceTTL == 0 {
		c.Valkey.PresenceTTL = 60
	}
	if c.Push.TTL == 0 {
		c.Push.TTL = 86400
	}
	if c.Push.Icon == "" {
		c.Push.Icon = "/icons/icon-192x192.png"
	}
	if c.Push.Badge == "" {
		c.Push.Badge = "/icons/icon-192x192.png"
	}
	if c.Push.Subject == "" {
		c.Push.Subject = "mailto:admin@example.com"
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "push-notifications"
	}
	if c.Queue.Concurrency == 0 {
		c.Queue.Concurrency = 5
	}
	if c.Queue.BackoffMs == 0 {
		c.Queue.BackoffMs = 2000
	}
	if c.Queue.PollInterval == 0 {
		c.Queue.PollInterval = 500
	}
	if c.Queue.LeaseSec == 0 {
		c.Queue.LeaseSec = 30
	}
	if c.WS.MaxMessageBytes == 0 {
		c.WS.MaxMessageBytes = 64 * 1024
	}
	if c.WS.HistoryLimit == 0 {
		c.WS.HistoryLimit = 50
	}
	if c.Batch.Timezone == "" {
		c.Batch.Timezone = "Local"
	}
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = 10
	}
}

// Validate проверяет значения, которые нельзя исправить по умолчанию.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "sql", "memory":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Backend == "sql" {
		switch c.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
		}
		if c.Database.DSN == "" {
			return fmt.Errorf("config: database url is required for sql store")
		}
	}
	if c.Queue.Concurrency < 1 || c.Batch.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be positive")
	}
	if c.Queue.Retries < 0 {
		return fmt.Errorf("config: queue retries must not be negative")
	}
	if c.Queue.LeaseSec < 1 {
		return fmt.Errorf("config: queue lease must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: batch timezone: %w", err)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Location - часовой пояс, в котором считаются 14-символьные даты расписаний.
func (c *Config) Location() (*time.Location, error) {
	if c.Batch.Timezone == "" || c.Batch.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Batch.Timezone)
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeout) * time.Second
}

func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.Queue.PollInterval) * time.Millisecond
}

func (c *Config) QueueLease() time.Duration {
	return time.Duration(c.Queue.LeaseSec) * time.Second
}

func (c *Config) QueueBackoff() time.Duration {
	return time.Duration(c.Queue.BackoffMs) * time.Millisecond
}

// PushEnabled - true, если заданы VAPID-ключи.
func (c *Config) PushEnabled() bool {
	return c.Push.VAPIDPublicKey != "" && c.Push.VAPIDPrivateKey != ""
}
