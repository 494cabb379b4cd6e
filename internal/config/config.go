package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
// It is loaded once at start-up and passed by value to the components that need it.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	AI          AIConfig          `mapstructure:"ai"`
	Storage     StorageConfig     `mapstructure:"storage"`
	S3          S3Config          `mapstructure:"s3"`
	Media       MediaConfig       `mapstructure:"media"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

type ServerConfig struct {
	Port           string `mapstructure:"port"`
	Env            string `mapstructure:"env"`
	PublicURL      string `mapstructure:"public_url"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

// Address is the listen address derived from the port.
func (s ServerConfig) Address() string {
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

// IsDevelopment toggles verbose error responses and the pprof routes.
func (s ServerConfig) IsDevelopment() bool {
	switch strings.ToLower(s.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // "mongo" or "memory"
	URI    string `mapstructure:"uri"`
	Name   string `mapstructure:"name"`
}

// JWTConfig defines JWT specific configuration.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	// ExpiresIn is kept as text so that the jsonwebtoken style values ("7d", "3600")
	// used by existing deployments keep working. See Expiration.
	ExpiresIn string `mapstructure:"expires_in"`
}

// Expiration parses ExpiresIn.
func (j JWTConfig) Expiration() (time.Duration, error) {
	return ParseExpiry(j.ExpiresIn)
}

type AIConfig struct {
	URL        string        `mapstructure:"url"`
	Key        string        `mapstructure:"key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

type StorageConfig struct {
	Driver   string `mapstructure:"driver"` // "local" or "s3"
	LocalDir string `mapstructure:"local_dir"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type MediaConfig struct {
	MaxVideoSeconds float64 `mapstructure:"max_video_seconds"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AuthConfig struct {
	AllowAdminSignup bool `mapstructure:"allow_admin_signup"`
}

// envAliases lists the extra environment names accepted for a key, in priority order.
// Every key is also reachable through its automatic name (server.port -> SERVER_PORT).
var envAliases = map[string][]string{
	"server.port":    {"PORT"},
	"server.env":     {"APP_ENV", "NODE_ENV"},
	"database.uri":   {"MONGODB_URI", "MONGO_URI"},
	"jwt.secret":     {"JWT_SECRET"},
	"jwt.expires_in": {"JWT_EXPIRES_IN"},
	"ai.url":         {"AI_API_URL"},
	"ai.key":         {"AI_API_KEY"},
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.port -> SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))
	v.AutomaticEnv()

	setDefaults(v)

	for key, aliases := range envAliases {
		automatic := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{key}, aliases...)
		names = append(names, automatic)
		if err := v.BindEnv(names...); err != nil {
			return config, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config file: %w", err)
		}
		// No config file; defaults and env vars only.
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma separated env values arrive as a single element.
	if len(config.CORS.AllowedOrigins) == 1 && strings.Contains(config.CORS.AllowedOrigins[0], ",") {
		config.CORS.AllowedOrigins = splitList(config.CORS.AllowedOrigins[0])
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "production")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.max_upload_bytes", 50<<20)
	v.SetDefault("database.driver", "mongo")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "motion_coach")
	v.SetDefault("jwt.expires_in", "1h")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.stale_after", "10m")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("ai.url", "")
	v.SetDefault("ai.key", "")
	v.SetDefault("jwt.secret", "")
	// Keys without a default are invisible to Unmarshal's env lookup.
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("media.max_video_seconds", 30)
	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("auth.allow_admin_signup", false)
}

// Validate checks the settings that cannot be defaulted.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret (JWT_SECRET) is required")
	}
	if _, err := c.JWT.Expiration(); err != nil {
		return fmt.Errorf("config: jwt.expires_in: %w", err)
	}
	if c.AI.URL == "" {
		return errors.New("config: ai.url (AI_API_URL) is required")
	}
	switch c.Database.Driver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("config: unknown database.driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.S3.BucketName == "" {
			return errors.New("config: s3.bucket_name is required for the s3 storage driver")
		}
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("config: server.max_upload_bytes must be positive")
	}
	return nil
}

// ParseExpiry accepts Go durations ("90m"), day suffixed values ("7d") and bare
// seconds ("3600").
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("duration %q must be positive", s)
		}
		return time.Duration(secs) * time.Second, nil
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
