package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/donets/jtrack/internal/domain"
)

const envPrefix = "JTRACK_AGENT_"

type lookupFunc func(key string) (string, bool)

func applyEnv(c *Config, lookup lookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		return v, ok && v != ""
	}
	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := get(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("SERVER_ADDRESS", &c.ServerAddress)
	str("TOKEN", &c.Token)
	str("USER_ID", &c.UserID)
	str("LOCATION_ID", &c.LocationID)
	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	if v, ok := get("ROLE"); ok {
		c.Role = domain.Role(v)
	}

	if err := dur("SYNC_INTERVAL", &c.SyncInterval); err != nil {
		return err
	}
	if err := dur("ONLINE_CHECK_INTERVAL", &c.OnlineCheckInterval); err != nil {
		return err
	}
	if v, ok := get("PAGE_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env %sPAGE_SIZE: %w", envPrefix, err)
		}
		c.PageSize = n
	}
	return nil
}
