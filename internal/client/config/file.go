package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the agent configuration.
type FileConfig struct {
	ServerAddress       string         `json:"server_address" yaml:"server_address"`
	Token               string         `json:"token" yaml:"token"`
	UserID              string         `json:"user_id" yaml:"user_id"`
	LocationID          string         `json:"location_id" yaml:"location_id"`
	Role                domain.Role    `json:"role" yaml:"role"`
	DBPath              string         `json:"db_path" yaml:"db_path"`
	SyncInterval        timex.Duration `json:"sync_interval" yaml:"sync_interval"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	PageSize            int            `json:"page_size" yaml:"page_size"`
	LogLevel            string         `json:"log_level" yaml:"log_level"`
	LogFormat           string         `json:"log_format" yaml:"log_format"`
}

// loadFile overlays path onto cfg; absent keys keep their value.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	fc := &FileConfig{
		ServerAddress: cfg.ServerAddress,
		Token:         cfg.Token,
		UserID:        cfg.UserID,
		LocationID:    cfg.LocationID,
		Role:          cfg.Role,
		DBPath:        cfg.DBPath,
		PageSize:      cfg.PageSize,
		LogLevel:      cfg.LogLevel,
		LogFormat:     cfg.LogFormat,
	}
	fc.SyncInterval.Duration = cfg.SyncInterval
	fc.OnlineCheckInterval.Duration = cfg.OnlineCheckInterval

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(fc)
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(fc)
	default:
		return fmt.Errorf("config file %s: unsupported extension", path)
	}
	if err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}

	cfg.ServerAddress = fc.ServerAddress
	cfg.Token = fc.Token
	cfg.UserID = fc.UserID
	cfg.LocationID = fc.LocationID
	cfg.Role = fc.Role
	cfg.DBPath = fc.DBPath
	cfg.SyncInterval = fc.SyncInterval.Duration
	cfg.OnlineCheckInterval = fc.OnlineCheckInterval.Duration
	cfg.PageSize = fc.PageSize
	cfg.LogLevel = fc.LogLevel
	cfg.LogFormat = fc.LogFormat
	return nil
}
