package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Log            LogConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	CRM            CRMConfig
	Reconciliation ReconciliationConfig
	HTTP           HTTPConfig
	Telemetry      TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds the mirror store connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	SQLitePath      string // file path or ":memory:"
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	AutoMigrate     bool
}

// RedisConfig holds Redis connection settings for the shared token cache
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TokenKey string
}

// CRMConfig holds the remote CRM dispatch and OAuth settings
type CRMConfig struct {
	BaseURL      string // action dispatch endpoint
	AccountsURL  string // OAuth token endpoint
	ClientID     string
	ClientSecret string
	RefreshToken string
	Timeout      time.Duration
	BatchSize    int           // records per batch write, at most 100
	BatchDelay   time.Duration // pause between batch writes
	ReadDelay    time.Duration // pause between reads
	PageSize     int
	MaxPages     int
	TokenMargin  time.Duration // refresh this long before expiry
}

// ReconciliationConfig holds session defaults
type ReconciliationConfig struct {
	DefaultTolerance   float64  // percent
	ToleranceLadder    []string // e.g. ["0", "1", "5", "10", "25", "inf"]
	PrescreenThreshold int
	Actor              string
	SyncOnConfirm      bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string
	Insecure          bool // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
	ExportLogs        bool
	DBTraceEnabled    bool // Enable database query tracing (otelgorm)
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with FEERECON_ prefix (e.g., FEERECON_CRM_CLIENT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/feerecon")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("FEERECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TokenKey: v.GetString("redis.token_key"),
		},
		CRM: CRMConfig{
			BaseURL:      v.GetString("crm.base_url"),
			AccountsURL:  v.GetString("crm.accounts_url"),
			ClientID:     v.GetString("crm.client_id"),
			ClientSecret: v.GetString("crm.client_secret"),
			RefreshToken: v.GetString("crm.refresh_token"),
			Timeout:      v.GetDuration("crm.timeout"),
			BatchSize:    v.GetInt("crm.batch_size"),
			BatchDelay:   v.GetDuration("crm.batch_delay"),
			ReadDelay:    v.GetDuration("crm.read_delay"),
			PageSize:     v.GetInt("crm.page_size"),
			MaxPages:     v.GetInt("crm.max_pages"),
			TokenMargin:  v.GetDuration("crm.token_margin"),
		},
		Reconciliation: ReconciliationConfig{
			DefaultTolerance:   v.GetFloat64("reconciliation.default_tolerance"),
			ToleranceLadder:    v.GetStringSlice("reconciliation.tolerance_ladder"),
			PrescreenThreshold: v.GetInt("reconciliation.prescreen_threshold"),
			Actor:              v.GetString("reconciliation.actor"),
			SyncOnConfirm:      v.GetBool("reconciliation.sync_on_confirm"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	// SyncOnConfirm defaults to true, so it is read through IsSet
	if !v.IsSet("reconciliation.sync_on_confirm") {
		cfg.Reconciliation.SyncOnConfirm = true
	}
	if !v.IsSet("database.auto_migrate") {
		cfg.Database.AutoMigrate = true
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "feerecon"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "feerecon.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "feerecon"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.TokenKey == "" {
		cfg.Redis.TokenKey = "feerecon:crm:access_token"
	}

	if cfg.CRM.Timeout == 0 {
		cfg.CRM.Timeout = 30 * time.Second
	}
	if cfg.CRM.BatchSize == 0 {
		cfg.CRM.BatchSize = 100
	}
	if cfg.CRM.BatchDelay == 0 {
		cfg.CRM.BatchDelay = 2 * time.Second
	}
	if cfg.CRM.ReadDelay == 0 {
		cfg.CRM.ReadDelay = 300 * time.Millisecond
	}
	if cfg.CRM.PageSize == 0 {
		cfg.CRM.PageSize = 200
	}
	if cfg.CRM.MaxPages == 0 {
		cfg.CRM.MaxPages = 100
	}
	if cfg.CRM.TokenMargin == 0 {
		cfg.CRM.TokenMargin = 5 * time.Minute
	}

	if cfg.Reconciliation.DefaultTolerance == 0 {
		cfg.Reconciliation.DefaultTolerance = 5
	}
	if len(cfg.Reconciliation.ToleranceLadder) == 0 {
		cfg.Reconciliation.ToleranceLadder = []string{"0", "1", "5", "10", "25", "inf"}
	}
	if cfg.Reconciliation.PrescreenThreshold == 0 {
		cfg.Reconciliation.PrescreenThreshold = 50
	}
	if cfg.Reconciliation.Actor == "" {
		cfg.Reconciliation.Actor = "system"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Sync runs pause between batches, so writes get a long timeout
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.CRM.BatchSize < 0 || c.CRM.BatchSize > 100 {
		return fmt.Errorf("crm.batch_size must be between 1 and 100, got %d", c.CRM.BatchSize)
	}
	if c.CRM.BatchDelay < 0 || c.CRM.ReadDelay < 0 {
		return fmt.Errorf("crm.batch_delay and crm.read_delay cannot be negative")
	}
	if c.Reconciliation.DefaultTolerance < 0 {
		return fmt.Errorf("reconciliation.default_tolerance cannot be negative")
	}

	if c.App.Env == "production" {
		if c.CRM.BaseURL == "" {
			return fmt.Errorf("crm.base_url is required in production")
		}
		if c.CRM.ClientSecret == "" || c.CRM.RefreshToken == "" {
			return fmt.Errorf("crm.client_secret and crm.refresh_token are required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the redis host:port address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
