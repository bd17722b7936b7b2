// Package config loads the service settings from config.toml and
// HELPDESK_ environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config is the root of the configuration tree. Each section maps to a
// TOML table of the same name.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// LogConfig selects the zap level, encoding and sink. Output is stdout,
// stderr or a file path.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// DatabaseConfig describes the shared Postgres database holding the
// public registry and every tenant schema.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"`

	// ApplicationName shows up in pg_stat_activity
	ApplicationName string `mapstructure:"application_name"`
	// StatementTimeout of zero keeps the server default
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// DSN renders a postgres:// URL with user info and parameters escaped
func (d *DatabaseConfig) DSN() string {
	params := url.Values{"sslmode": {d.SSLMode}}
	if d.ApplicationName != "" {
		params.Set("application_name", d.ApplicationName)
	}
	if d.StatementTimeout > 0 {
		params.Set("statement_timeout", strconv.FormatInt(d.StatementTimeout.Milliseconds(), 10))
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: params.Encode(),
	}
	return dsn.String()
}

// RedisConfig points at the shared cache. Without a host the process
// falls back to in-memory caches.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// JWTConfig verifies access tokens minted by the identity service
type JWTConfig struct {
	Secret                string        `mapstructure:"secret"`
	Issuer                string        `mapstructure:"issuer"`
	AccessTokenExpiration time.Duration `mapstructure:"access_token_expiration"`
}

type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`

	MaxBodySize int64 `mapstructure:"max_body_size"`
	// MaxGraphBodySize applies to chatbot flow graphs, which outgrow
	// ordinary request bodies
	MaxGraphBodySize int64 `mapstructure:"max_graph_body_size"`

	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`

	CORSAllowOrigins []string `mapstructure:"cors_allow_origins"`
	CORSAllowMethods []string `mapstructure:"cors_allow_methods"`
	CORSAllowHeaders []string `mapstructure:"cors_allow_headers"`
	TrustedProxies   []string `mapstructure:"trusted_proxies"`
	// HSTSMaxAge of zero omits Strict-Transport-Security
	HSTSMaxAge time.Duration `mapstructure:"hsts_max_age"`
}

type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"`
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// StorageConfig addresses the S3-compatible bucket for location
// attachments
type StorageConfig struct {
	Endpoint          string        `mapstructure:"endpoint"`
	Bucket            string        `mapstructure:"bucket"`
	AccessKey         string        `mapstructure:"access_key"`
	SecretKey         string        `mapstructure:"secret_key"`
	Region            string        `mapstructure:"region"`
	UseSSL            bool          `mapstructure:"use_ssl"`
	UsePathStyle      bool          `mapstructure:"use_path_style"`
	PresignExpiration time.Duration `mapstructure:"presign_expiration"`
	MaxUploadSize     int64         `mapstructure:"max_upload_size"`
}

// Enabled reports whether a bucket is configured
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type SecretsConfig struct {
	// EncryptionKey is 32 bytes, base64 encoded. It seals chatbot
	// integration credentials at rest.
	EncryptionKey string `mapstructure:"encryption_key"`
}

// Key decodes EncryptionKey
func (s SecretsConfig) Key() ([32]byte, error) {
	var key [32]byte
	raw, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	switch {
	case err != nil:
		return key, fmt.Errorf("secrets.encryption_key: %w", err)
	case len(raw) != len(key):
		return key, fmt.Errorf("secrets.encryption_key: want %d bytes, got %d", len(key), len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

type CacheConfig struct {
	KeyPrefix   string        `mapstructure:"key_prefix"`
	SettingsTTL time.Duration `mapstructure:"settings_ttl"`
	TenantTTL   time.Duration `mapstructure:"tenant_ttl"`
}
