package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"DEBUG"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"json"`
	PostgresConfig
	AuthConfig
	RedisConfig
	StorageConfig
	NotifyConfig
	RateLimitConfig
}

// NewConfig reads the environment, after loading a .env file when one exists
// in the working directory. Variables already set in the environment win.
func NewConfig() (*Config, error) {
	config := &Config{}

	err := loadDotEnv(".env")
	if err != nil {
		return config, fmt.Errorf("config.NewConfig: %w", err)
	}

	err = env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewConfig: %w", err)
	}
	return config, err
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

type PostgresConfig struct {
	Conn            string `env:"POSTGRES_CONN" envDefault:"postgres://vendorse:vendorse@db:5432/vendorse?sslmode=disable"`
	AutoMigrateUp   bool   `env:"AUTO_MIGRATE_UP" envDefault:"true"`
	AutoMigrateDown bool   `env:"AUTO_MIGRATE_DOWN" envDefault:"false"`
	// Empty means the migrations embedded in the binary.
	MigrationsURL string `env:"MIGRATIONS_URL"`
	MaxOpenConns  int    `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"20"`
}

func NewPostgresConfig() (*PostgresConfig, error) {
	config := &PostgresConfig{}

	err := env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewPostgresConfig: %w", err)
	}
	return config, err
}

type AuthConfig struct {
	JWTSecret  string        `env:"JWT_SECRET" envDefault:"change-me"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"vendorse"`
	TokenTTL   time.Duration `env:"JWT_TTL" envDefault:"24h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"10"`
}

// RedisConfig configures the dashboard stats cache. Empty Addr disables caching.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	StatsTTL time.Duration `env:"STATS_CACHE_TTL" envDefault:"30s"`
}

type StorageConfig struct {
	Bucket          string        `env:"AWS_BUCKET_NAME" envDefault:"vendorse"`
	Region          string        `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint        string        `env:"MINIO_ENDPOINT"`
	AccessKeyID     string        `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"AWS_SECRET_ACCESS_KEY"`
	URLExpiry       time.Duration `env:"FILE_URL_EXPIRY" envDefault:"1h"`
	MaxFileSize     int64         `env:"MAX_FILE_SIZE" envDefault:"10485760"`
}

// NotifyConfig configures domain event fan-out. Empty TopicARN disables publishing.
type NotifyConfig struct {
	TopicARN string `env:"SNS_TOPIC_ARN"`
}

type RateLimitConfig struct {
	AuthRPS   float64 `env:"AUTH_RATE_LIMIT_RPS" envDefault:"5"`
	AuthBurst int     `env:"AUTH_RATE_LIMIT_BURST" envDefault:"10"`
}
