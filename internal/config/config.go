package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App           AppConfig           `yaml:"app"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Logging       LoggingConfig       `yaml:"logging"`
	Monitoring    MonitoringConfig    `yaml:"monitoring"`
	API           APIConfig           `yaml:"api"`
	Billing       BillingConfig       `yaml:"billing"`
	Booking       BookingConfig       `yaml:"booking"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Google        GoogleConfig        `yaml:"google"`
	Worker        WorkerConfig        `yaml:"worker"`
	Exports       ExportConfig        `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	UserID      int64    `yaml:"user_id"`
	Admin       bool     `yaml:"admin"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BillingConfig struct {
	FeePercent    float64 `yaml:"fee_percent"`
	InvoicePrefix string  `yaml:"invoice_prefix"`
	DueTermDays   int     `yaml:"due_term_days"`
}

type BookingConfig struct {
	LeadTimeMinutes   int `yaml:"lead_time_minutes"`
	MaxPendingPerUser int `yaml:"max_pending_per_user"`
	DeleteGraceDays   int `yaml:"delete_grace_days"`
}

type NotificationsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	// OpsChatID receives a copy of every dispatched notification.
	OpsChatID int64 `yaml:"ops_chat_id"`
}

type GoogleConfig struct {
	CredentialsFile      string `yaml:"credentials_file"`
	LedgerSpreadsheetID  string `yaml:"ledger_spreadsheet_id"`
	LedgerSheetName      string `yaml:"ledger_sheet_name"`
}

type WorkerConfig struct {
	PollInterval  Duration `yaml:"poll_interval"`
	BatchSize     int      `yaml:"batch_size"`
	MaxRetries    int      `yaml:"max_retries"`
	InitialDelay  Duration `yaml:"initial_delay"`
	MaxDelay      Duration `yaml:"max_delay"`
	BackoffFactor float64  `yaml:"backoff_factor"`
	OverdueSweep  Duration `yaml:"overdue_sweep"`
}

// Duration accepts values like "2s", "500ms" or "1h" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment variables still expand without it.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "pawsit"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "X-API-Key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Billing.FeePercent == 0 {
		c.Billing.FeePercent = 10
	}
	if c.Billing.InvoicePrefix == "" {
		c.Billing.InvoicePrefix = "INV"
	}
	if c.Billing.DueTermDays == 0 {
		c.Billing.DueTermDays = 15
	}
	if c.Booking.LeadTimeMinutes == 0 {
		c.Booking.LeadTimeMinutes = 60
	}
	if c.Booking.MaxPendingPerUser == 0 {
		c.Booking.MaxPendingPerUser = 5
	}
	if c.Booking.DeleteGraceDays == 0 {
		c.Booking.DeleteGraceDays = 30
	}
	if c.Worker.PollInterval == 0 {
		c.Worker.PollInterval = Duration(2 * time.Second)
	}
	if c.Worker.BatchSize == 0 {
		c.Worker.BatchSize = 20
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelay == 0 {
		c.Worker.InitialDelay = Duration(2 * time.Second)
	}
	if c.Worker.MaxDelay == 0 {
		c.Worker.MaxDelay = Duration(time.Minute)
	}
	if c.Worker.BackoffFactor == 0 {
		c.Worker.BackoffFactor = 2
	}
	if c.Worker.OverdueSweep == 0 {
		c.Worker.OverdueSweep = Duration(time.Hour)
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Google.LedgerSheetName == "" {
		c.Google.LedgerSheetName = "Fees"
	}
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Billing.FeePercent < 0 || c.Billing.FeePercent >= 100 {
		return fmt.Errorf("billing fee_percent must be in [0, 100), got %v", c.Billing.FeePercent)
	}
	if c.Billing.DueTermDays < 0 {
		return errors.New("billing due_term_days must not be negative")
	}
	if c.Notifications.Enabled && c.Notifications.BotToken == "" {
		return errors.New("notifications.bot_token is required when notifications are enabled")
	}
	if c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api.auth.api_keys must not be empty when auth is enabled")
	}
	for _, key := range c.API.Auth.APIKeys {
		if key.Key == "" {
			return fmt.Errorf("api key for client %q is empty", key.Name)
		}
	}
	return nil
}
