package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for HMS FireTV.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	Lightning LightningConfig `yaml:"lightning"`
	Cache     CacheConfig     `yaml:"cache"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DatabaseConfig contains PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// PoolSize is the number of live connections held by the resource pool.
	PoolSize int `yaml:"pool_size"`

	// AcquireTimeout is the maximum time (seconds) a caller waits for a
	// pooled connection before the operation fails.
	AcquireTimeout int `yaml:"acquire_timeout"`
}

// ConnString builds a pgx-compatible connection string.
func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, sslMode)
}

// GetAcquireTimeout returns the pool acquire timeout as a Duration.
func (c DatabaseConfig) GetAcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeout) * time.Second
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicConfig     `yaml:"topics"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// MQTTTopicConfig contains the topic roots the bridge publishes and
// subscribes under. The button prefix matches the topics the Home Assistant
// discovery entities press on.
type MQTTTopicConfig struct {
	Prefix          string `yaml:"prefix"`
	ButtonPrefix    string `yaml:"button_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LightningConfig contains Fire TV Lightning protocol settings.
type LightningConfig struct {
	// APIKey is the default Lightning API key used for devices that do not
	// carry their own. The protocol ships a well-known default.
	APIKey string `yaml:"api_key"`

	// ControlPort is the authenticated HTTPS control port on the device.
	ControlPort int `yaml:"control_port"`

	// WakePort is the plaintext wake/health port on the device.
	WakePort int `yaml:"wake_port"`

	Timeouts LightningTimeoutConfig `yaml:"timeouts"`

	// WakeSettle is how long (seconds) to wait after a wake call before
	// re-checking API availability.
	WakeSettle int `yaml:"wake_settle"`

	// PINTTL is how long (minutes) a displayed pairing PIN stays valid.
	PINTTL int `yaml:"pin_ttl"`
}

// LightningTimeoutConfig contains per-tier request timeouts (seconds).
type LightningTimeoutConfig struct {
	Wake    int `yaml:"wake"`
	Health  int `yaml:"health"`
	Command int `yaml:"command"`
}

// GetWakeSettle returns the post-wake settle interval as a Duration.
func (c LightningConfig) GetWakeSettle() time.Duration {
	return time.Duration(c.WakeSettle) * time.Second
}

// GetPINTTL returns the pairing PIN lifetime as a Duration.
func (c LightningConfig) GetPINTTL() time.Duration {
	return time.Duration(c.PINTTL) * time.Minute
}

// CacheConfig contains Lightning client cache settings.
type CacheConfig struct {
	Capacity int `yaml:"capacity"`

	// TTL is the client entry lifetime in seconds.
	TTL int `yaml:"ttl"`

	// SweepInterval is how often (seconds) expired entries are proactively
	// evicted. Zero disables the background sweep.
	SweepInterval int `yaml:"sweep_interval"`
}

// GetTTL returns the cache entry lifetime as a Duration.
func (c CacheConfig) GetTTL() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// GetSweepInterval returns the sweep period as a Duration.
func (c CacheConfig) GetSweepInterval() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

// HistoryConfig contains background command-history logger settings.
type HistoryConfig struct {
	// QueueSize is the maximum number of pending history writes. Entries
	// beyond this are dropped and counted rather than blocking commands.
	QueueSize int `yaml:"queue_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HMSFIRETV_SECTION_KEY
// For example: HMSFIRETV_DATABASE_HOST, HMSFIRETV_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no config file is present.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Name:           "firetv",
			User:           "firetv_user",
			SSLMode:        "disable",
			PoolSize:       8,
			AcquireTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hms-firetv",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     64,
			},
			Topics: MQTTTopicConfig{
				Prefix:          "maestro_hub/firetv",
				ButtonPrefix:    "maestro_hub/colada",
				DiscoveryPrefix: "homeassistant",
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8888,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Lightning: LightningConfig{
			APIKey:      "0987654321",
			ControlPort: 8080,
			WakePort:    8009,
			Timeouts: LightningTimeoutConfig{
				Wake:    5,
				Health:  2,
				Command: 10,
			},
			WakeSettle: 3,
			PINTTL:     5,
		},
		Cache: CacheConfig{
			Capacity:      100,
			TTL:           3600,
			SweepInterval: 300,
		},
		History: HistoryConfig{
			QueueSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HMSFIRETV_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("HMSFIRETV_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("HMSFIRETV_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("HMSFIRETV_DATABASE_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("HMSFIRETV_DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("HMSFIRETV_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}

	// MQTT
	if v := os.Getenv("HMSFIRETV_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HMSFIRETV_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HMSFIRETV_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HMSFIRETV_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HMSFIRETV_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HMSFIRETV_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Lightning
	if v := os.Getenv("HMSFIRETV_LIGHTNING_API_KEY"); v != "" {
		cfg.Lightning.APIKey = v
	}

	// Logging
	if v := os.Getenv("HMSFIRETV_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Name == "" {
		errs = append(errs, "database.name is required")
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, "database.pool_size must be at least 1")
	}
	if c.Database.AcquireTimeout < 1 {
		errs = append(errs, "database.acquire_timeout must be at least 1 second")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.Prefix == "" || c.MQTT.Topics.ButtonPrefix == "" {
		errs = append(errs, "mqtt.topics.prefix and mqtt.topics.button_prefix are required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Lightning validation
	if c.Lightning.ControlPort < 1 || c.Lightning.ControlPort > 65535 {
		errs = append(errs, "lightning.control_port must be between 1 and 65535")
	}
	if c.Lightning.WakePort < 1 || c.Lightning.WakePort > 65535 {
		errs = append(errs, "lightning.wake_port must be between 1 and 65535")
	}
	if c.Lightning.PINTTL < 1 {
		errs = append(errs, "lightning.pin_ttl must be at least 1 minute")
	}

	// Cache validation
	if c.Cache.Capacity < 1 {
		errs = append(errs, "cache.capacity must be at least 1")
	}
	if c.Cache.TTL < 1 {
		errs = append(errs, "cache.ttl must be at least 1 second")
	}

	// History validation
	if c.History.QueueSize < 1 {
		errs = append(errs, "history.queue_size must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
