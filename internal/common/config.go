package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	OCR      OCRConfig      `yaml:"ocr"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
	LogLevel    string `yaml:"log_level"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"-"`
	MaxConnIdleTime time.Duration `yaml:"-"`
	DialTimeout     time.Duration `yaml:"-"`
}

// StorageConfig selects where uploaded files live.
// Backend is "local" (default) or "s3".
type StorageConfig struct {
	Backend   string `yaml:"backend"`
	LocalDir  string `yaml:"local_dir"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// OCRConfig holds recognition-related configuration
type OCRConfig struct {
	Pdftoppm        string        `yaml:"pdftoppm"`
	Tesseract       string        `yaml:"tesseract"`
	TesseractLang   string        `yaml:"tesseract_lang"`
	TessdataDir     string        `yaml:"tessdata_dir"`
	DPI             int           `yaml:"dpi"`
	PSM             int           `yaml:"psm"`
	OEM             int           `yaml:"oem"`
	MaxPages        int           `yaml:"max_pages"`
	PageParallelism int           `yaml:"page_parallelism"`
	// Timeout bounds a single recognition call. Zero means no deadline, which
	// matches the historical behavior of blocking for the engine's duration.
	// Durations are set from defaults or env (e.g. OCR_TIMEOUT=90s), not YAML.
	Timeout time.Duration `yaml:"-"`
}

// DispatchConfig holds worker pool and poller configuration
type DispatchConfig struct {
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
	ProcessTimeout time.Duration `yaml:"-"`
	PollInterval   time.Duration `yaml:"-"`
	ClaimsPerSec   float64       `yaml:"claims_per_sec"`
	PollMinAge     time.Duration `yaml:"-"`
}

// LoadConfig loads configuration from an optional YAML file, then applies
// environment variable overrides on top. An empty path checks the default
// locations (config.yaml, /etc/invoicetrack/config.yaml).
func LoadConfig(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		for _, loc := range []string{"config.yaml", "config.yml", "/etc/invoicetrack/config.yaml"} {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 20,
			LogLevel:    "info",
		},
		Database: DatabaseConfig{
			DSN:             "data/invoicetrack.db",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "data/uploads",
			Bucket:   "invoicetrack",
		},
		OCR: OCRConfig{
			Pdftoppm:        "pdftoppm",
			Tesseract:       "tesseract",
			TesseractLang:   "eng",
			DPI:             300,
			PSM:             6,
			PageParallelism: 2,
		},
		Dispatch: DispatchConfig{
			Workers:        4,
			QueueSize:      256,
			ProcessTimeout: 3 * time.Minute,
			PollInterval:   15 * time.Second,
			ClaimsPerSec:   4,
			PollMinAge:     time.Minute,
		},
	}
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	c.Server.LogLevel = getEnv("LOG_LEVEL", c.Server.LogLevel)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.LocalDir = getEnv("STORAGE_DIR", c.Storage.LocalDir)
	c.Storage.Endpoint = getEnv("S3_ENDPOINT", c.Storage.Endpoint)
	c.Storage.AccessKey = getEnv("S3_ACCESS_KEY_ID", c.Storage.AccessKey)
	c.Storage.SecretKey = getEnv("S3_SECRET_ACCESS_KEY", c.Storage.SecretKey)
	c.Storage.Bucket = getEnv("S3_BUCKET", c.Storage.Bucket)
	c.OCR.Tesseract = getEnv("TESSERACT", c.OCR.Tesseract)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM", c.OCR.Pdftoppm)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.Timeout = getEnvAsDuration("OCR_TIMEOUT", c.OCR.Timeout)
	c.Dispatch.Workers = getEnvAsInt("DISPATCH_WORKERS", c.Dispatch.Workers)
	c.Dispatch.ProcessTimeout = getEnvAsDuration("DISPATCH_PROCESS_TIMEOUT", c.Dispatch.ProcessTimeout)
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "database.dsn is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "server.addr is required", ErrInvalidInput)
	}
	if c.Storage.Backend != "local" && c.Storage.Backend != "s3" {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown storage backend %q", c.Storage.Backend), ErrInvalidInput)
	}
	if c.Storage.Backend == "s3" && (c.Storage.Endpoint == "" || c.Storage.Bucket == "") {
		return NewAppError("CONFIG_ERROR", "storage.endpoint and storage.bucket are required for the s3 backend", ErrInvalidInput)
	}
	if c.Dispatch.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "dispatch.workers must be positive", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
