package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/reviewfolio/backend/internal/domain/review"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Ingestion IngestionConfig
	OCR       OCRConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
	AutoMigrate     bool // apply embedded migrations at server start
}

// RedisConfig holds Redis connection settings. An empty host disables Redis
// and the in-memory idempotency store is used instead.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds owner token settings. Without a secret, owner identity is
// taken from the X-Owner-ID header (development only).
type JWTConfig struct {
	Secret string
	Issuer string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	TrustedProxies   []string
	// Per-owner limit on ingestion requests; zero disables it
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// IngestionConfig holds batch limits and pipeline tuning
type IngestionConfig struct {
	MaxFileSize         int64
	MaxRows             int
	MaxImages           int
	MaxImageSize        int64
	CallTimeout         time.Duration
	OCRTimeout          time.Duration
	Workers             int
	ConfidenceThreshold float64
	BusinessMaxLength   int
	Timezone            string
	IdempotencyTTL      time.Duration
}

// OCRConfig holds the OCR service client settings. An empty endpoint
// disables image ingestion.
type OCRConfig struct {
	Endpoint       string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
}

// Screenshot store providers
const (
	StorageProviderS3     = "s3"
	StorageProviderMemory = "memory"
)

// StorageConfig holds the S3 screenshot store settings
type StorageConfig struct {
	Enabled        bool
	Provider       string // s3 or memory
	Bucket         string
	Region         string
	Endpoint       string // custom endpoint for S3-compatible stores
	AccessKeyID    string
	SecretKey      string
	PublicBaseURL  string
	UsePathStyle   bool
	KeyPrefix      string
	UploadTimeout  time.Duration
	MaxObjectBytes int64
}

// TelemetryConfig holds OpenTelemetry export settings. Traces, metrics and
// logs go to the same OTLP gRPC collector.
type TelemetryConfig struct {
	Enabled            bool
	CollectorEndpoint  string
	Insecure           bool
	SamplingRatio      float64
	MetricsInterval    time.Duration
	LogsEnabled        bool
	DBTracing          bool
	SlowQueryThreshold time.Duration
}

// ProfilingConfig holds Pyroscope continuous profiling settings
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	BasicAuthUser     string
	BasicAuthPassword string
	SpanProfiles      bool
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with REVIEW_ prefix (e.g., REVIEW_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return build(v)
}

// LoadFile loads configuration from an explicit file, still honoring
// REVIEW_ environment overrides.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("REVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.db_tracing", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),

			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Ingestion: IngestionConfig{
			MaxFileSize:         v.GetInt64("ingestion.max_file_size"),
			MaxRows:             v.GetInt("ingestion.max_rows"),
			MaxImages:           v.GetInt("ingestion.max_images"),
			MaxImageSize:        v.GetInt64("ingestion.max_image_size"),
			CallTimeout:         v.GetDuration("ingestion.call_timeout"),
			OCRTimeout:          v.GetDuration("ingestion.ocr_timeout"),
			Workers:             v.GetInt("ingestion.workers"),
			ConfidenceThreshold: v.GetFloat64("ingestion.confidence_threshold"),
			BusinessMaxLength:   v.GetInt("ingestion.business_max_length"),
			Timezone:            v.GetString("ingestion.timezone"),
			IdempotencyTTL:      v.GetDuration("ingestion.idempotency_ttl"),
		},
		OCR: OCRConfig{
			Endpoint:       v.GetString("ocr.endpoint"),
			APIKey:         v.GetString("ocr.api_key"),
			Timeout:        v.GetDuration("ocr.timeout"),
			RequestsPerSec: v.GetFloat64("ocr.requests_per_sec"),
			Burst:          v.GetInt("ocr.burst"),
		},
		Storage: StorageConfig{
			Enabled:        v.GetBool("storage.enabled"),
			Provider:       v.GetString("storage.provider"),
			Bucket:         v.GetString("storage.bucket"),
			Region:         v.GetString("storage.region"),
			Endpoint:       v.GetString("storage.endpoint"),
			AccessKeyID:    v.GetString("storage.access_key_id"),
			SecretKey:      v.GetString("storage.secret_key"),
			PublicBaseURL:  v.GetString("storage.public_base_url"),
			UsePathStyle:   v.GetBool("storage.use_path_style"),
			KeyPrefix:      v.GetString("storage.key_prefix"),
			UploadTimeout:  v.GetDuration("storage.upload_timeout"),
			MaxObjectBytes: v.GetInt64("storage.max_object_bytes"),
		},
		Telemetry: TelemetryConfig{
			Enabled:            v.GetBool("telemetry.enabled"),
			CollectorEndpoint:  v.GetString("telemetry.collector_endpoint"),
			Insecure:           v.GetBool("telemetry.insecure"),
			SamplingRatio:      v.GetFloat64("telemetry.sampling_ratio"),
			MetricsInterval:    v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:        v.GetBool("telemetry.logs_enabled"),
			DBTracing:          v.GetBool("telemetry.db_tracing"),
			SlowQueryThreshold: v.GetDuration("telemetry.slow_query_threshold"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
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
		cfg.App.Name = "review-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "reviews"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "review-backend"
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
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// image batches wait on OCR for every screenshot
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.Ingestion.MaxFileSize == 0 {
		cfg.Ingestion.MaxFileSize = 5 << 20
	}
	if cfg.Ingestion.MaxRows == 0 {
		cfg.Ingestion.MaxRows = 1000
	}
	if cfg.Ingestion.MaxImages == 0 {
		cfg.Ingestion.MaxImages = 20
	}
	if cfg.Ingestion.MaxImageSize == 0 {
		cfg.Ingestion.MaxImageSize = 5 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		// room for a full image batch plus multipart overhead
		cfg.HTTP.MaxBodySize = cfg.Ingestion.MaxImageSize*int64(cfg.Ingestion.MaxImages) + 1<<20
	}
	if cfg.Ingestion.CallTimeout == 0 {
		cfg.Ingestion.CallTimeout = 10 * time.Second
	}
	if cfg.Ingestion.OCRTimeout == 0 {
		cfg.Ingestion.OCRTimeout = 30 * time.Second
	}
	if cfg.Ingestion.Workers == 0 {
		cfg.Ingestion.Workers = 4
	}
	if cfg.Ingestion.ConfidenceThreshold == 0 {
		cfg.Ingestion.ConfidenceThreshold = 0.6
	}
	if cfg.Ingestion.BusinessMaxLength == 0 {
		cfg.Ingestion.BusinessMaxLength = 50
	}
	if cfg.Ingestion.Timezone == "" {
		cfg.Ingestion.Timezone = "Asia/Seoul"
	}
	if cfg.Ingestion.IdempotencyTTL == 0 {
		cfg.Ingestion.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = cfg.Ingestion.OCRTimeout
	}
	if cfg.OCR.RequestsPerSec == 0 {
		cfg.OCR.RequestsPerSec = 5
	}
	if cfg.OCR.Burst == 0 {
		cfg.OCR.Burst = cfg.Ingestion.Workers
	}
	if cfg.Storage.Provider == "" {
		cfg.Storage.Provider = StorageProviderS3
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "ap-northeast-2"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "reviews"
	}
	if cfg.Storage.UploadTimeout == 0 {
		cfg.Storage.UploadTimeout = 30 * time.Second
	}
	if cfg.Storage.MaxObjectBytes == 0 {
		cfg.Storage.MaxObjectBytes = cfg.Ingestion.MaxImageSize
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.SlowQueryThreshold == 0 {
		cfg.Telemetry.SlowQueryThreshold = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
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

	if c.Ingestion.MaxRows < 0 || c.Ingestion.MaxImages < 0 || c.Ingestion.Workers < 0 {
		return fmt.Errorf("ingestion limits cannot be negative")
	}
	if c.Ingestion.ConfidenceThreshold < 0 || c.Ingestion.ConfidenceThreshold > 1 {
		return fmt.Errorf("ingestion.confidence_threshold must be between 0 and 1, got %f", c.Ingestion.ConfidenceThreshold)
	}
	if c.Ingestion.BusinessMaxLength > review.MaxBusinessLength {
		return fmt.Errorf("ingestion.business_max_length cannot exceed %d", review.MaxBusinessLength)
	}
	if c.Ingestion.MaxFileSize > c.HTTP.MaxBodySize {
		return fmt.Errorf("ingestion.max_file_size (%d) cannot exceed http.max_body_size (%d)",
			c.Ingestion.MaxFileSize, c.HTTP.MaxBodySize)
	}
	if c.OCR.Endpoint != "" {
		if _, err := url.ParseRequestURI(c.OCR.Endpoint); err != nil {
			return fmt.Errorf("ocr.endpoint is not a valid URL: %w", err)
		}
	}
	switch c.Storage.Provider {
	case StorageProviderS3:
		if c.Storage.Enabled && c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage is enabled")
		}
	case StorageProviderMemory:
		if c.Storage.Enabled && c.App.Env == "production" {
			return fmt.Errorf("storage.provider 'memory' cannot be used in production")
		}
	default:
		return fmt.Errorf("storage.provider must be %q or %q, got %q",
			StorageProviderS3, StorageProviderMemory, c.Storage.Provider)
	}
	if c.HTTP.RateLimitRequests < 0 {
		return fmt.Errorf("http.rate_limit_requests cannot be negative")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return fmt.Errorf("profiling.server_address is required when profiling is enabled")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
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
