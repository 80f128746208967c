package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Server struct {
		Host              string
		ReadTimeout       time.Duration
		WriteTimeout      time.Duration
		ReadHeaderTimeout time.Duration
		StrReadTimeout    string `toml:"read_timeout"`
		StrWriteTimeout   string `toml:"write_timeout"`
		StrReadHeader     string `toml:"read_header_timeout"`
	}
	Database struct {
		Host     string
		User     string
		Password string
		Database string
	}
	Redis struct {
		RedisAddr       string `toml:"redis_addr"`
		RedisPassword   string `toml:"redis_password"`
		RedisDB         int    `toml:"redis_db"`
		AvgSalaryTTL    time.Duration
		StrAvgSalaryTTL string `toml:"avg_salary_cache_ttl"`
	}
	Auth struct {
		JWTSecret         string `toml:"jwt_secret"`
		AccessTokenTTL    time.Duration
		StrAccessTokenTTL string `toml:"access_token_ttl"`
	}
}

// DatabaseURL builds the postgres connection string used by both the server
// and the migrate entrypoint.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Database)
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "configs/config.toml"
}

func GetConfig(logger *slog.Logger) (*Config, error) {
	// .env is optional; environment variables win over the TOML file for secrets.
	_ = godotenv.Load()

	data, err := os.ReadFile(configPath())
	if err != nil {
		logger.Error("Error read config.toml file", slog.String("error", err.Error()))
		return nil, err
	}

	var cfg *Config

	if _, tomlErr := toml.Decode(string(data), &cfg); tomlErr != nil {
		logger.Error("Error decode config.toml file", slog.String("error", tomlErr.Error()))
		return nil, tomlErr
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}

	cfg.Auth.AccessTokenTTL, err = time.ParseDuration(cfg.Auth.StrAccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid access_token_ttl: %w", err)
	}

	cfg.Redis.AvgSalaryTTL, err = time.ParseDuration(cfg.Redis.StrAvgSalaryTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid avg_salary_cache_ttl: %w", err)
	}

	cfg.Server.ReadTimeout, err = time.ParseDuration(cfg.Server.StrReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	cfg.Server.WriteTimeout, err = time.ParseDuration(cfg.Server.StrWriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	cfg.Server.ReadHeaderTimeout, err = time.ParseDuration(cfg.Server.StrReadHeader)
	if err != nil {
		return nil, fmt.Errorf("invalid read_header_timeout: %w", err)
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	logger.Info("Config is loaded")
	return cfg, nil
}
