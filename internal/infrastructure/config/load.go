package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HELPDESK_DATABASE_PASSWORD
const EnvPrefix = "HELPDESK"

// defaults registers every key with viper. Keys viper does not know are
// not picked up from the environment by Unmarshal, so secrets without a
// sensible default are registered empty.
var defaults = map[string]any{
	"app.name": "helpdesk-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "helpdesk",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  time.Hour,
	"database.conn_max_idle_time": 30 * time.Minute,
	"database.log_level":          "warn",
	"database.application_name":   "",
	"database.statement_timeout":  time.Duration(0),

	"redis.host":     "",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"jwt.secret":                  "",
	"jwt.issuer":                  "helpdesk-identity",
	"jwt.access_token_expiration": 15 * time.Minute,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":        15 * time.Second,
	"http.write_timeout":       15 * time.Second,
	"http.idle_timeout":        time.Minute,
	"http.request_timeout":     10 * time.Second,
	"http.max_header_bytes":    1 << 20,
	"http.max_body_size":       2 << 20,
	"http.max_graph_body_size": 8 << 20,
	"http.rate_limit_enabled":  false,
	"http.rate_limit_requests": 300,
	"http.rate_limit_window":   time.Minute,
	// Cross-origin requests stay refused until origins are listed.
	"http.cors_allow_origins": []string{},
	"http.cors_allow_methods": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	"http.cors_allow_headers": []string{"Authorization", "Content-Type", "X-Request-ID"},
	"http.trusted_proxies":    []string{},
	"http.hsts_max_age":       time.Duration(0),

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "",
	"telemetry.insecure":                false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"metrics.enabled": false,
	"metrics.path":    "/metrics",

	"storage.endpoint":           "",
	"storage.bucket":             "",
	"storage.access_key":         "",
	"storage.secret_key":         "",
	"storage.region":             "us-east-1",
	"storage.use_ssl":            true,
	"storage.use_path_style":     false,
	"storage.presign_expiration": 15 * time.Minute,
	"storage.max_upload_size":    25 << 20,

	"secrets.encryption_key": "",

	"cache.key_prefix":   "helpdesk:",
	"cache.settings_ttl": 5 * time.Minute,
	"cache.tenant_ttl":   time.Minute,
}

// Load reads config.toml from the working directory or /etc/helpdesk, if
// present, and applies HELPDESK_ environment overrides on top.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/helpdesk")

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return load(v)
}

// LoadFile is Load with an explicit config file, which must exist
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func load(v *viper.Viper) (*Config, error) {
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode unmarshals v and fills the settings derived from app.name
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Database.ApplicationName == "" {
		cfg.Database.ApplicationName = cfg.App.Name
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	return &cfg, nil
}

// validate reports every problem at once so a bad deployment is fixed in
// one round
func (c *Config) validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	db := c.Database
	if db.MaxOpenConns <= 0 {
		fail("database.max_open_conns must be positive, got %d", db.MaxOpenConns)
	}
	if db.MaxIdleConns < 0 || db.MaxIdleConns > db.MaxOpenConns {
		fail("database.max_idle_conns must be within [0, %d], got %d", db.MaxOpenConns, db.MaxIdleConns)
	}
	if r := c.Telemetry.SamplingRatio; r < 0 || r > 1 {
		fail("telemetry.sampling_ratio must be within [0, 1], got %g", r)
	}
	if c.Secrets.EncryptionKey != "" {
		if _, err := c.Secrets.Key(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Storage.Enabled() && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		fail("storage.bucket %q needs storage.access_key and storage.secret_key", c.Storage.Bucket)
	}

	if c.App.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			fail("production: jwt.secret needs at least 32 characters")
		}
		if db.Password == "" {
			fail("production: database.password is required")
		}
		if db.SSLMode == "disable" {
			fail("production: database.sslmode must not be disable")
		}
		if c.Secrets.EncryptionKey == "" {
			fail("production: secrets.encryption_key is required")
		}
		if slices.Contains(c.HTTP.CORSAllowOrigins, "*") {
			fail("production: http.cors_allow_origins must list origins, not *")
		}
		if c.Telemetry.DBLogFullSQL {
			fail("production: telemetry.db_log_full_sql would log tenant payloads")
		}
	}
	return errors.Join(errs...)
}
