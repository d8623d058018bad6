package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverRedis    = "redis"
	StorageDriverMemory   = "memory"
)

type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
}

type AppConfig struct {
	Port            string
	Env             string
	LogDir          string
	StorageDriver   string
	TokenSecret     string
	TLSCertFile     string
	TLSKeyFile      string
	ShutdownTimeout time.Duration
}

func (c AppConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Load reads the env file at path, when it exists, and then the process
// environment. Variables already set in the environment win over the file.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	dbPort, err := envInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxOpen, err := envInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	maxIdle, err := envInt("DB_MAX_IDLE_CONNS", 25)
	if err != nil {
		return nil, err
	}
	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	shutdown, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Port:            envString("APP_PORT", "8080"),
			Env:             envString("APP_ENV", "development"),
			LogDir:          envString("LOG_DIR", "logs"),
			StorageDriver:   envString("STORAGE_DRIVER", StorageDriverPostgres),
			TokenSecret:     os.Getenv("TOKEN_SECRET"),
			TLSCertFile:     os.Getenv("TLS_CERT_FILE"),
			TLSKeyFile:      os.Getenv("TLS_KEY_FILE"),
			ShutdownTimeout: shutdown,
		},
		DB: DBConfig{
			Host:         envString("DB_HOST", "localhost"),
			Port:         dbPort,
			User:         os.Getenv("DB_USER"),
			Password:     os.Getenv("DB_PASSWORD"),
			Name:         os.Getenv("DB_NAME"),
			SSLMode:      envString("DB_SSLMODE", "disable"),
			MaxOpenConns: maxOpen,
			MaxIdleConns: maxIdle,
		},
		Redis: RedisConfig{
			Host:     envString("REDIS_HOST", "localhost"),
			Port:     envString("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.App.StorageDriver {
	case StorageDriverPostgres, StorageDriverRedis, StorageDriverMemory:
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q", c.App.StorageDriver)
	}
	if c.App.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	if (c.App.TLSCertFile == "") != (c.App.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.App.StorageDriver == StorageDriverPostgres && (c.DB.User == "" || c.DB.Name == "") {
		return errors.New("DB_USER and DB_NAME are required for the postgres driver")
	}
	return nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
