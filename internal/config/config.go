package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/grobertson/Rosey-Robot-sub001/internal/database"
	"github.com/grobertson/Rosey-Robot-sub001/internal/logger"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Database database.Config `mapstructure:"database"`
	Log      logger.Config   `mapstructure:"log"`
}

// ServerConfig holds HTTP boundary settings.
type ServerConfig struct {
	Addr              string `mapstructure:"addr"`
	CORSOrigin        string `mapstructure:"corsorigin"`
	RequestsPerMinute int    `mapstructure:"requestsperminute"`
	RateBurst         int    `mapstructure:"rateburst"`
	MigrationsDir     string `mapstructure:"migrationsdir"`
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3020"
	}
	if c.Server.RequestsPerMinute <= 0 {
		c.Server.RequestsPerMinute = 600
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = 60
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.User == "" {
		c.Database.User = "postgres"
	}
	if c.Database.Name == "" {
		c.Database.Name = "rosey"
	}
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Load loads configuration from .env file and environment variables.
// prefix: Environment variable prefix (e.g. "ROSEY_")
func Load(prefix string) (*Config, error) {
	v := viper.New()

	// 1. Load from .env file (if exists). The file is optional.
	v.SetConfigFile(".env")
	_ = v.ReadInConfig()

	// 2. Load from environment variables.
	// Viper's AutomaticEnv doesn't work well with Unmarshal if keys aren't
	// known ahead of time, so iterate env vars and populate viper directly.
	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		key, value := pair[0], pair[1]

		if strings.HasPrefix(key, prefixUpper) {
			// ROSEY_DATABASE_HOST -> database.host
			propKey := strings.TrimPrefix(key, prefixUpper)
			propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
			propKey = strings.TrimPrefix(propKey, ".")

			v.Set(propKey, value)
		}
	}

	// 3. Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}
