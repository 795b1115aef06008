package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/donets/jtrack/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Durations accept
// strings such as "15m" or integer nanoseconds.
type FileConfig struct {
	Storage      string         `json:"storage" yaml:"storage"`
	DatabaseDSN  string         `json:"database_dsn" yaml:"database_dsn"`
	GRPCAddress  string         `json:"grpc_address" yaml:"grpc_address"`
	HTTPAddress  string         `json:"http_address" yaml:"http_address"`
	JWTSecret    string         `json:"jwt_secret" yaml:"jwt_secret"`
	TokenTTL     timex.Duration `json:"token_ttl" yaml:"token_ttl"`
	LogLevel     string         `json:"log_level" yaml:"log_level"`
	LogFormat    string         `json:"log_format" yaml:"log_format"`
	AllowOrigins []string       `json:"allow_origins" yaml:"allow_origins"`
	S3           fileS3         `json:"s3" yaml:"s3"`
	Kafka        fileKafka      `json:"kafka" yaml:"kafka"`
	Grants       []Grant        `json:"grants" yaml:"grants"`
}

type fileS3 struct {
	Bucket    string         `json:"bucket" yaml:"bucket"`
	Region    string         `json:"region" yaml:"region"`
	Endpoint  string         `json:"endpoint" yaml:"endpoint"`
	AccessKey string         `json:"access_key" yaml:"access_key"`
	SecretKey string         `json:"secret_key" yaml:"secret_key"`
	Expiry    timex.Duration `json:"presign_expiry" yaml:"presign_expiry"`
}

type fileKafka struct {
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
}

// loadFile overlays path onto cfg. Keys missing from the file keep the
// value cfg already holds.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}

	fc := toFile(cfg)
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

	fc.copyTo(cfg)
	return nil
}

func toFile(c *Config) *FileConfig {
	fc := &FileConfig{
		Storage:      c.Storage,
		DatabaseDSN:  c.DatabaseDSN,
		GRPCAddress:  c.GRPCAddress,
		HTTPAddress:  c.HTTPAddress,
		JWTSecret:    c.JWTSecret,
		LogLevel:     c.LogLevel,
		LogFormat:    c.LogFormat,
		AllowOrigins: c.AllowOrigins,
		Grants:       c.Grants,
		S3: fileS3{
			Bucket:    c.S3.Bucket,
			Region:    c.S3.Region,
			Endpoint:  c.S3.Endpoint,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
		},
		Kafka: fileKafka{Brokers: c.KafkaBrokers, Topic: c.KafkaTopic},
	}
	fc.TokenTTL.Duration = c.TokenTTL
	fc.S3.Expiry.Duration = c.S3.Expiry
	return fc
}

func (fc *FileConfig) copyTo(c *Config) {
	c.Storage = fc.Storage
	c.DatabaseDSN = fc.DatabaseDSN
	c.GRPCAddress = fc.GRPCAddress
	c.HTTPAddress = fc.HTTPAddress
	c.JWTSecret = fc.JWTSecret
	c.TokenTTL = fc.TokenTTL.Duration
	c.LogLevel = fc.LogLevel
	c.LogFormat = fc.LogFormat
	c.AllowOrigins = fc.AllowOrigins
	c.Grants = fc.Grants
	c.S3.Bucket = fc.S3.Bucket
	c.S3.Region = fc.S3.Region
	c.S3.Endpoint = fc.S3.Endpoint
	c.S3.AccessKey = fc.S3.AccessKey
	c.S3.SecretKey = fc.S3.SecretKey
	c.S3.Expiry = fc.S3.Expiry.Duration
	c.KafkaBrokers = fc.Kafka.Brokers
	c.KafkaTopic = fc.Kafka.Topic
}
