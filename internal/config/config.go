package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	AWS        AWSConfig        `yaml:"aws"`
	SES        SESConfig        `yaml:"ses"`
	Media      MediaConfig      `yaml:"media"`
	Bedrock    BedrockConfig    `yaml:"bedrock"`
	Queue      QueueConfig      `yaml:"queue"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Watermarks WatermarksConfig `yaml:"watermarks"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Host string `yaml:"host"`
	// AllowedOrigins feeds the CORS middleware.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL                    string `yaml:"url" validate:"required"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the configured lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the Redis connection used for job leases. An empty URL
// selects Postgres advisory locks instead.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AWSConfig holds the shared AWS settings.
type AWSConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Profile   string `yaml:"profile"`
	Endpoint  string `yaml:"endpoint"`
}

// SESConfig holds the email notifier settings.
type SESConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FromEmail        string `yaml:"from_email" validate:"required_if=Enabled true,omitempty,email"`
	FromName         string `yaml:"from_name"`
	ConfigurationSet string `yaml:"configuration_set"`
	SubjectTemplate  string `yaml:"subject_template"`
	HTMLTemplate     string `yaml:"html_template"`
	TextTemplate     string `yaml:"text_template"`
}

// MediaConfig holds the S3 bucket for voice and video payloads.
type MediaConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Bucket       string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix       string `yaml:"prefix"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// BedrockConfig holds the chat assistant model settings.
type BedrockConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ModelID        string `yaml:"model_id"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c BedrockConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QueueConfig holds the SQS queues. DispatchURL, when set, hands wishes to
// an external delivery service instead of SES; IntentsURL publishes
// birthday intents.
type QueueConfig struct {
	DispatchURL string `yaml:"dispatch_url" validate:"omitempty,url"`
	IntentsURL  string `yaml:"intents_url" validate:"omitempty,url"`
}

// SchedulerConfig tunes the notification dispatcher.
type SchedulerConfig struct {
	Workers                int `yaml:"workers" validate:"min=0"`
	BatchSize              int `yaml:"batch_size" validate:"min=0"`
	PollIntervalSeconds    int `yaml:"poll_interval_seconds" validate:"min=0"`
	NotifierTimeoutSeconds int `yaml:"notifier_timeout_seconds" validate:"min=0"`
	RetryAttempts          int `yaml:"retry_attempts" validate:"min=0"`
	RetryBaseMillis        int `yaml:"retry_base_millis" validate:"min=0"`
	RetryMaxSeconds        int `yaml:"retry_max_seconds" validate:"min=0"`
}

// PollInterval returns the configured interval as a duration
func (c SchedulerConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// NotifierTimeout returns the per-call notifier timeout.
func (c SchedulerConfig) NotifierTimeout() time.Duration {
	return time.Duration(c.NotifierTimeoutSeconds) * time.Second
}

// RetryBase returns the first backoff delay.
func (c SchedulerConfig) RetryBase() time.Duration {
	return time.Duration(c.RetryBaseMillis) * time.Millisecond
}

// RetryMax returns the backoff ceiling.
func (c SchedulerConfig) RetryMax() time.Duration {
	return time.Duration(c.RetryMaxSeconds) * time.Second
}

// JobsConfig places the periodic jobs in time. Times are "HH:MM" in
// Timezone.
type JobsConfig struct {
	Timezone            string `yaml:"timezone"`
	DetectionAt         string `yaml:"detection_at"`
	ReminderAt          string `yaml:"reminder_at"`
	CleanupDay          string `yaml:"cleanup_day" validate:"oneof=sunday monday tuesday wednesday thursday friday saturday"`
	CleanupAt           string `yaml:"cleanup_at"`
	RetentionDays       int    `yaml:"retention_days" validate:"min=1"`
	LeaseTTLSeconds     int    `yaml:"lease_ttl_seconds" validate:"min=0"`
	TickIntervalSeconds int    `yaml:"tick_interval_seconds" validate:"min=0"`
}

// Location loads the jobs timezone.
func (c JobsConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Weekday returns the cleanup weekday.
func (c JobsConfig) Weekday() time.Weekday {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), c.CleanupDay) {
			return d
		}
	}
	return time.Sunday
}

// LeaseTTL returns the job lease TTL.
func (c JobsConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// TickInterval returns how often the runner checks for due jobs.
func (c JobsConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

// WatermarksConfig selects the watermark backend.
type WatermarksConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=postgres dynamodb"`
	DynamoTable string `yaml:"dynamo_table" validate:"required_if=Backend dynamodb"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level     string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	RedactPII bool   `yaml:"redact_pii"`
}

// Load reads and parses the configuration file. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.SES.FromName == "" {
		cfg.SES.FromName = "Birthday Wishes"
	}
	if cfg.Bedrock.MaxTokens == 0 {
		cfg.Bedrock.MaxTokens = 200
	}
	if cfg.Bedrock.TimeoutSeconds == 0 {
		cfg.Bedrock.TimeoutSeconds = 15
	}
	if cfg.Scheduler.Workers == 0 {
		cfg.Scheduler.Workers = 8
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 100
	}
	if cfg.Scheduler.PollIntervalSeconds == 0 {
		cfg.Scheduler.PollIntervalSeconds = 15
	}
	if cfg.Scheduler.NotifierTimeoutSeconds == 0 {
		cfg.Scheduler.NotifierTimeoutSeconds = 10
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryBaseMillis == 0 {
		cfg.Scheduler.RetryBaseMillis = 1000
	}
	if cfg.Scheduler.RetryMaxSeconds == 0 {
		cfg.Scheduler.RetryMaxSeconds = 30
	}
	if cfg.Jobs.Timezone == "" {
		cfg.Jobs.Timezone = "UTC"
	}
	if cfg.Jobs.DetectionAt == "" {
		cfg.Jobs.DetectionAt = "00:00"
	}
	if cfg.Jobs.ReminderAt == "" {
		cfg.Jobs.ReminderAt = "08:00"
	}
	if cfg.Jobs.CleanupDay == "" {
		cfg.Jobs.CleanupDay = "sunday"
	}
	cfg.Jobs.CleanupDay = strings.ToLower(cfg.Jobs.CleanupDay)
	if cfg.Jobs.CleanupAt == "" {
		cfg.Jobs.CleanupAt = "02:00"
	}
	if cfg.Jobs.RetentionDays == 0 {
		cfg.Jobs.RetentionDays = 90
	}
	if cfg.Jobs.LeaseTTLSeconds == 0 {
		cfg.Jobs.LeaseTTLSeconds = 600
	}
	if cfg.Jobs.TickIntervalSeconds == 0 {
		cfg.Jobs.TickIntervalSeconds = 60
	}
	if cfg.Watermarks.Backend == "" {
		cfg.Watermarks.Backend = "postgres"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	// A missing file is fine when everything comes from the environment.
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Load("")
	}
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{"DATABASE_URL", &cfg.Database.URL},
		{"REDIS_URL", &cfg.Redis.URL},
		{"AWS_REGION", &cfg.AWS.Region},
		{"AWS_ACCESS_KEY_ID", &cfg.AWS.AccessKey},
		{"AWS_SECRET_ACCESS_KEY", &cfg.AWS.SecretKey},
		{"AWS_PROFILE", &cfg.AWS.Profile},
		{"AWS_ENDPOINT_URL", &cfg.AWS.Endpoint},
		{"SES_FROM_EMAIL", &cfg.SES.FromEmail},
		{"SES_CONFIGURATION_SET", &cfg.SES.ConfigurationSet},
		{"MEDIA_S3_BUCKET", &cfg.Media.Bucket},
		{"BEDROCK_MODEL_ID", &cfg.Bedrock.ModelID},
		{"DISPATCH_SQS_QUEUE_URL", &cfg.Queue.DispatchURL},
		{"INTENTS_SQS_QUEUE_URL", &cfg.Queue.IntentsURL},
		{"JOBS_TIMEZONE", &cfg.Jobs.Timezone},
		{"WATERMARKS_DYNAMO_TABLE", &cfg.Watermarks.DynamoTable},
		{"LOG_LEVEL", &cfg.Log.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if cfg.SES.FromEmail != "" && os.Getenv("SES_FROM_EMAIL") != "" {
		cfg.SES.Enabled = true
	}
	if cfg.Media.Bucket != "" && os.Getenv("MEDIA_S3_BUCKET") != "" {
		cfg.Media.Enabled = true
	}
	if cfg.Watermarks.DynamoTable != "" && os.Getenv("WATERMARKS_DYNAMO_TABLE") != "" {
		cfg.Watermarks.Backend = "dynamodb"
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks required fields and the job clock values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for name, v := range map[string]string{
		"jobs.detection_at": c.Jobs.DetectionAt,
		"jobs.reminder_at":  c.Jobs.ReminderAt,
		"jobs.cleanup_at":   c.Jobs.CleanupAt,
	} {
		if _, err := ParseClock(v); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	if _, err := c.Jobs.Location(); err != nil {
		return fmt.Errorf("invalid config: jobs.timezone: %w", err)
	}
	return nil
}
