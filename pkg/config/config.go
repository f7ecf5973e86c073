package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	ProviderPostgres = "postgres"
	ProviderMemory   = "memory"
)

type Config struct {
	Env         string `validate:"oneof=development production"`
	Port        int    `validate:"min=1,max=65535"`
	APIPrefix   string `validate:"startswith=/"`
	GraphQLPath string `validate:"startswith=/"`
	Provider    string `validate:"oneof=postgres memory"`
	StaticDir   string

	Database DatabaseConfig
	CORS     CORSConfig
	Log      LogConfig
}

type DatabaseConfig struct {
	Host         string `validate:"required"`
	Port         int    `validate:"min=1,max=65535"`
	User         string
	Password     string
	Name         string `validate:"required"`
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	// MigrateOnStartup creates the users table and seeds it before serving.
	MigrateOnStartup bool
	MigrateAttempts  int `validate:"min=1"`
	MigrateInterval  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string `validate:"omitempty,oneof=debug info warn error"`
	Format string `validate:"omitempty,oneof=json console"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.GraphQLPath = v.GetString("GRAPHQL_PATH")
	cfg.Provider = strings.ToLower(v.GetString("PROVIDER"))
	cfg.StaticDir = v.GetString("STATIC_DIR")

	cfg.Database = DatabaseConfig{
		Host:             v.GetString("DB_HOST"),
		Port:             v.GetInt("DB_PORT"),
		User:             v.GetString("DB_USER"),
		Password:         v.GetString("DB_PASSWORD"),
		Name:             v.GetString("DB_NAME"),
		SSLMode:          v.GetString("DB_SSL_MODE"),
		MaxOpenConns:     v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:     v.GetInt("DB_MAX_IDLE_CONNS"),
		MigrateOnStartup: v.GetBool("DB_MIGRATE_ON_STARTUP"),
		MigrateAttempts:  v.GetInt("DB_MIGRATE_ATTEMPTS"),
		MigrateInterval:  parseDuration(v.GetString("DB_MIGRATE_INTERVAL"), 2*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values against their struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("GRAPHQL_PATH", "/graphql")
	v.SetDefault("PROVIDER", ProviderPostgres)
	v.SetDefault("STATIC_DIR", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "supatable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATE_ON_STARTUP", false)
	v.SetDefault("DB_MIGRATE_ATTEMPTS", 20)
	v.SetDefault("DB_MIGRATE_INTERVAL", "2s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
