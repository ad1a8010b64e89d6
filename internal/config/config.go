package config

import (
	"errors"
	"fmt"
	"os"

	"shareit/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Worker     WorkerConfig     `yaml:"worker"`
	Exports    ExportConfig     `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_sec"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type RateLimitConfig struct {
	Requests int `yaml:"requests"`
	Window   int `yaml:"window"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
	LogLevel          string `yaml:"log_level"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	OpsChat  int64  `yaml:"ops_chat"`
	Debug    bool   `yaml:"debug"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
}

type WorkerConfig struct {
	IntervalSec int `yaml:"interval_sec"`
	BatchSize   int `yaml:"batch_size"`
	MaxRetries  int `yaml:"max_retries"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env переопределяет окружение до раскрытия переменных в YAML
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return errors.New("redis address is required when redis is enabled")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram bot token is required when telegram is enabled")
	}
	if c.Google.Enabled {
		if c.Google.GoogleCredentialsFile == "" {
			return errors.New("google credentials file is required when sheets sync is enabled")
		}
		if c.Google.BookingSpreadSheetID == "" {
			return errors.New("bookings spreadsheet id is required when sheets sync is enabled")
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "shareit"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec == 0 {
		c.HTTP.ReadTimeoutSec = 15
	}
	if c.HTTP.WriteTimeoutSec == 0 {
		c.HTTP.WriteTimeoutSec = 15
	}
	if c.HTTP.ShutdownSec == 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = models.RateLimitRequests
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = models.RateLimitWindow
	}
	if c.Worker.IntervalSec == 0 {
		c.Worker.IntervalSec = 30
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 50
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
}
