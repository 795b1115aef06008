package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/donets/jtrack/internal/server/events"
)

const envPrefix = "JTRACK_"

type lookupFunc func(key string) (string, bool)

// applyEnv overlays JTRACK_* variables. Lists are comma separated.
func applyEnv(c *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env %s%s: %w", envPrefix, key, err)
		}
		*dst = d
		return nil
	}

	str("STORAGE", &c.Storage)
	str("DATABASE_DSN", &c.DatabaseDSN)
	str("GRPC_ADDRESS", &c.GRPCAddress)
	str("HTTP_ADDRESS", &c.HTTPAddress)
	str("JWT_SECRET", &c.JWTSecret)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY", &c.S3.AccessKey)
	str("S3_SECRET_KEY", &c.S3.SecretKey)
	str("KAFKA_TOPIC", &c.KafkaTopic)

	if err := dur("TOKEN_TTL", &c.TokenTTL); err != nil {
		return err
	}
	if err := dur("S3_PRESIGN_EXPIRY", &c.S3.Expiry); err != nil {
		return err
	}

	if v, ok := lookup(envPrefix + "KAFKA_BROKERS"); ok && v != "" {
		c.KafkaBrokers = events.ParseBrokers(v)
	}
	if v, ok := lookup(envPrefix + "CORS_ORIGINS"); ok && v != "" {
		c.AllowOrigins = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
