package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/donets/jtrack/internal/client/services"
	"github.com/donets/jtrack/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds runtime settings for the agent.
type Config struct {
	ServerAddress       string
	Token               string
	UserID              string
	LocationID          string
	Role                domain.Role
	DBPath              string
	SyncInterval        time.Duration
	OnlineCheckInterval time.Duration
	PageSize            int
	LogLevel            string
	LogFormat           string
}

func Defaults() *Config {
	return &Config{
		ServerAddress:       "127.0.0.1:50051",
		Role:                domain.RoleTechnician,
		DBPath:              "jtrack-agent/replica.db",
		SyncInterval:        services.DefaultSyncInterval,
		OnlineCheckInterval: services.DefaultOnlineCheckInterval,
		PageSize:            services.DefaultPageSize,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load builds the configuration. f may be nil when no flags were bound.
func Load(f *Flags) (*Config, error) {
	envFile, configFile := ".env", ""
	if f != nil {
		envFile, configFile = f.envFile, f.configFile
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("env file: %w", err)
		}
	}
	if configFile == "" {
		configFile = os.Getenv(envPrefix + "CONFIG")
	}

	cfg := Defaults()
	if configFile != "" {
		if err := loadFile(configFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if f != nil {
		f.apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return errors.New("config: server address is required")
	}
	if c.DBPath == "" {
		return errors.New("config: db path is required")
	}
	if c.SyncInterval <= 0 || c.OnlineCheckInterval <= 0 {
		return errors.New("config: intervals must be positive")
	}
	if c.PageSize <= 0 {
		return errors.New("config: page size must be positive")
	}
	if err := c.Session().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Session is the identity local mutations are recorded under.
func (c *Config) Session() services.Session {
	return services.Session{UserID: c.UserID, LocationID: c.LocationID, Role: c.Role}
}
