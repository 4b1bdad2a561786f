package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Backup        BackupConfig        `yaml:"backup"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	Logging       LoggingConfig       `yaml:"logging"`
	API           APIConfig           `yaml:"api"`
	Exports       ExportConfig        `yaml:"exports"`
	Booking       BookingConfig       `yaml:"booking"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Workers       WorkersConfig       `yaml:"workers"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// DSN builds a lib/pq connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	GRPC APIGRPCConfig `yaml:"grpc"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type ExportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type BookingConfig struct {
	TaxPercent        float64 `yaml:"tax_percent"`
	ServiceFeePercent float64 `yaml:"service_fee_percent"`
	MaxNights         int     `yaml:"max_nights"`
}

type NotificationsConfig struct {
	PollInterval  string         `yaml:"poll_interval"`
	BatchSize     int            `yaml:"batch_size"`
	MaxRetries    *int           `yaml:"max_retries"`
	InitialDelay  string         `yaml:"initial_delay"`
	MaxDelay      string         `yaml:"max_delay"`
	BackoffFactor float64        `yaml:"backoff_factor"`
	RatePerSecond float64        `yaml:"rate_per_second"`
	RateBurst     int            `yaml:"rate_burst"`
	SMTP          SMTPConfig     `yaml:"smtp"`
	Telegram      TelegramConfig `yaml:"telegram"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

type WorkersConfig struct {
	AutoReject      AutoRejectConfig      `yaml:"auto_reject"`
	NoShow          NoShowConfig          `yaml:"no_show"`
	PaymentReminder PaymentReminderConfig `yaml:"payment_reminder"`
	CouponExpiry    IntervalConfig        `yaml:"coupon_expiry"`
	Featured        FeaturedConfig        `yaml:"featured"`
	Payout          PayoutConfig          `yaml:"payout"`
}

type IntervalConfig struct {
	Interval string `yaml:"interval"`
}

type AutoRejectConfig struct {
	Interval        string `yaml:"interval"`
	PaymentDeadline string `yaml:"payment_deadline"`
}

type NoShowConfig struct {
	Interval    string `yaml:"interval"`
	GracePeriod string `yaml:"grace_period"`
}

type PaymentReminderConfig struct {
	Interval    string `yaml:"interval"`
	MinAge      string `yaml:"min_age"`
	DedupWindow string `yaml:"dedup_window"`
}

type FeaturedConfig struct {
	Interval    string  `yaml:"interval"`
	MinReviews  int     `yaml:"min_reviews"`
	MinRating   float64 `yaml:"min_rating"`
	MinBookings int     `yaml:"min_bookings"`
	MinViews    int     `yaml:"min_views"`
	MinAgeDays  int     `yaml:"min_age_days"`
}

type PayoutConfig struct {
	Interval  string `yaml:"interval"`
	CutoffDay int    `yaml:"cutoff_day"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("postgres host and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Workers.Payout.CutoffDay < 1 || c.Workers.Payout.CutoffDay > 31 {
		return fmt.Errorf("payout cutoff_day must be within 1..31, got %d", c.Workers.Payout.CutoffDay)
	}
	if c.Notifications.MaxRetries != nil && *c.Notifications.MaxRetries < 0 {
		return errors.New("notifications max_retries must not be negative")
	}
	if c.Booking.TaxPercent < 0 || c.Booking.ServiceFeePercent < 0 {
		return errors.New("booking tax and service fee must not be negative")
	}
	if c.Exports.Enabled && c.Exports.Path == "" {
		return errors.New("exports.path is required when exports are enabled")
	}

	return nil
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func (c *Config) applyDefaults() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if c.Database.Postgres.MaxConnections == 0 {
		c.Database.Postgres.MaxConnections = 25
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	// Notification queue defaults
	n := &c.Notifications
	if n.BatchSize == 0 {
		n.BatchSize = 10
	}
	if n.BackoffFactor == 0 {
		n.BackoffFactor = 2
	}
	if n.RateBurst == 0 {
		n.RateBurst = 5
	}
	if n.SMTP.Port == 0 {
		n.SMTP.Port = 587
	}

	if c.Booking.MaxNights == 0 {
		c.Booking.MaxNights = 90
	}

	f := &c.Workers.Featured
	if f.MinReviews == 0 {
		f.MinReviews = 5
	}
	if f.MinRating == 0 {
		f.MinRating = 4.0
	}
	if f.MinBookings == 0 {
		f.MinBookings = 10
	}
	if f.MinViews == 0 {
		f.MinViews = 100
	}
	if f.MinAgeDays == 0 {
		f.MinAgeDays = 30
	}

	if c.Workers.Payout.CutoffDay == 0 {
		c.Workers.Payout.CutoffDay = 1
	}
}

// Duration parses a YAML duration string, falling back to def when empty or invalid.
func Duration(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Default intervals and windows used when the YAML leaves them empty.
const (
	DefaultMaxRetries      = 3
	DefaultPollInterval    = 30 * time.Second
	DefaultInitialDelay    = time.Minute
	DefaultMaxDelay        = time.Hour
	DefaultHourly          = time.Hour
	DefaultDaily           = 24 * time.Hour
	DefaultPaymentDeadline = 24 * time.Hour
	DefaultGracePeriod     = 6 * time.Hour
	DefaultReminderMinAge  = time.Hour
	DefaultReminderDedup   = 2 * time.Hour
)

// Retries is the retry ceiling for new queue items. An explicit 0 disables
// retries; an absent key means DefaultMaxRetries.
func (n NotificationsConfig) Retries() int {
	if n.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *n.MaxRetries
}

func (n NotificationsConfig) PollEvery() time.Duration {
	return Duration(n.PollInterval, DefaultPollInterval)
}

func (n NotificationsConfig) FirstRetryDelay() time.Duration {
	return Duration(n.InitialDelay, DefaultInitialDelay)
}

func (n NotificationsConfig) RetryDelayCap() time.Duration {
	return Duration(n.MaxDelay, DefaultMaxDelay)
}
