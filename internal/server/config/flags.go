package config

import (
	"github.com/spf13/pflag"
)

// Flags binds command-line flags. Only flags the user set explicitly
// override the file and the environment.
type Flags struct {
	fs         *pflag.FlagSet
	configFile string
	envFile    string
	v          Config
}

// BindFlags registers the server flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	d := Defaults()
	f := &Flags{fs: fs}

	fs.StringVarP(&f.configFile, "config", "c", "", "config file (.json, .yaml or .yml)")
	fs.StringVar(&f.envFile, "env-file", ".env", "dotenv file to load before reading JTRACK_* variables")

	fs.StringVar(&f.v.Storage, "storage", d.Storage, "storage backend: postgres or memory")
	fs.StringVarP(&f.v.DatabaseDSN, "database-dsn", "d", d.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVarP(&f.v.GRPCAddress, "grpc-address", "a", d.GRPCAddress, "gRPC listen address, empty to disable")
	fs.StringVar(&f.v.HTTPAddress, "http-address", d.HTTPAddress, "HTTP listen address, empty to disable")
	fs.StringVarP(&f.v.JWTSecret, "jwt-secret", "s", d.JWTSecret, "HMAC secret for bearer tokens")
	fs.DurationVar(&f.v.TokenTTL, "token-ttl", d.TokenTTL, "validity of issued tokens")
	fs.StringVar(&f.v.LogLevel, "log-level", d.LogLevel, "debug, info, warn or error")
	fs.StringVar(&f.v.LogFormat, "log-format", d.LogFormat, "json or text")
	fs.StringSliceVar(&f.v.AllowOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")
	fs.StringVarP(&f.v.S3.Bucket, "s3-bucket", "b", d.S3.Bucket, "attachment bucket, empty to disable")
	fs.StringVarP(&f.v.S3.Region, "s3-region", "g", d.S3.Region, "S3 region")
	fs.StringVarP(&f.v.S3.Endpoint, "s3-endpoint", "e", d.S3.Endpoint, "S3-compatible endpoint")
	fs.StringVarP(&f.v.S3.AccessKey, "s3-access-key", "u", d.S3.AccessKey, "S3 access key")
	fs.StringVarP(&f.v.S3.SecretKey, "s3-secret-key", "p", d.S3.SecretKey, "S3 secret key")
	fs.DurationVar(&f.v.S3.Expiry, "s3-presign-expiry", d.S3.Expiry, "validity of presigned URLs")
	fs.StringSliceVar(&f.v.KafkaBrokers, "kafka-broker", nil, "Kafka broker address (repeatable)")
	fs.StringVar(&f.v.KafkaTopic, "kafka-topic", d.KafkaTopic, "topic for change events")

	return f
}

func (f *Flags) apply(c *Config) {
	set := func(name string, fn func()) {
		if f.fs.Changed(name) {
			fn()
		}
	}

	set("storage", func() { c.Storage = f.v.Storage })
	set("database-dsn", func() { c.DatabaseDSN = f.v.DatabaseDSN })
	set("grpc-address", func() { c.GRPCAddress = f.v.GRPCAddress })
	set("http-address", func() { c.HTTPAddress = f.v.HTTPAddress })
	set("jwt-secret", func() { c.JWTSecret = f.v.JWTSecret })
	set("token-ttl", func() { c.TokenTTL = f.v.TokenTTL })
	set("log-level", func() { c.LogLevel = f.v.LogLevel })
	set("log-format", func() { c.LogFormat = f.v.LogFormat })
	set("cors-origin", func() { c.AllowOrigins = f.v.AllowOrigins })
	set("s3-bucket", func() { c.S3.Bucket = f.v.S3.Bucket })
	set("s3-region", func() { c.S3.Region = f.v.S3.Region })
	set("s3-endpoint", func() { c.S3.Endpoint = f.v.S3.Endpoint })
	set("s3-access-key", func() { c.S3.AccessKey = f.v.S3.AccessKey })
	set("s3-secret-key", func() { c.S3.SecretKey = f.v.S3.SecretKey })
	set("s3-presign-expiry", func() { c.S3.Expiry = f.v.S3.Expiry })
	set("kafka-broker", func() { c.KafkaBrokers = f.v.KafkaBrokers })
	set("kafka-topic", func() { c.KafkaTopic = f.v.KafkaTopic })
}
