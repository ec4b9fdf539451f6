package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Inventory  InventoryConfig  `mapstructure:"inventory"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Report     ReportConfig     `mapstructure:"report"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// BackendConfig holds the operations backend (checklists, appointments) API configuration
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// InventoryConfig holds the inventory service API configuration
type InventoryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PaymentConfig holds the payment provider API configuration
type PaymentConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SettlementConfig holds settlement polling configuration
type SettlementConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	FailureThreshold int           `mapstructure:"failure_threshold"` // consecutive poll errors before a warning
	ReconcileEvery   time.Duration `mapstructure:"reconcile_every"`   // appointment status retry sweep
}

// ReportConfig holds settlement report export configuration
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/garageflow.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// External service defaults
	viper.SetDefault("backend.timeout", 15*time.Second)
	viper.SetDefault("inventory.timeout", 10*time.Second)
	viper.SetDefault("payment.timeout", 15*time.Second)

	// Settlement defaults
	viper.SetDefault("settlement.poll_interval", 5*time.Second)
	viper.SetDefault("settlement.failure_threshold", 5)
	viper.SetDefault("settlement.reconcile_every", time.Minute)

	// Report defaults
	viper.SetDefault("report.output_dir", "reports")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("backend.api_key", "BACKEND_API_KEY")
	viper.BindEnv("inventory.api_key", "INVENTORY_API_KEY")
	viper.BindEnv("payment.api_key", "PAYMENT_API_KEY")
	viper.BindEnv("backend.base_url", "BACKEND_BASE_URL")
	viper.BindEnv("inventory.base_url", "INVENTORY_BASE_URL")
	viper.BindEnv("payment.base_url", "PAYMENT_BASE_URL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Inventory.BaseURL == "" {
		return fmt.Errorf("inventory.base_url is required")
	}
	if c.Payment.BaseURL == "" {
		return fmt.Errorf("payment.base_url is required")
	}
	if c.Payment.APIKey == "" {
		return fmt.Errorf("payment.api_key is required")
	}
	if c.Settlement.PollInterval <= 0 {
		return fmt.Errorf("settlement.poll_interval must be positive")
	}
	if c.Settlement.FailureThreshold <= 0 {
		return fmt.Errorf("settlement.failure_threshold must be positive")
	}
	return nil
}
