package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file used when AM43_CONFIG is unset.
const DefaultPath = "configs/config.yaml"

// Transport names accepted by link.transport.
const (
	TransportMQTT      = "mqtt"
	TransportSimulated = "simulated"
)

// Config is the root configuration structure for the AM43 drive service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service     ServiceConfig    `yaml:"service"`
	API         APIConfig        `yaml:"api"`
	Link        LinkConfig       `yaml:"link"`
	Discovery   DiscoveryConfig  `yaml:"discovery"`
	DevicesFile string           `yaml:"devices_file"`
	MQTT        MQTTConfig       `yaml:"mqtt"`
	Database    DatabaseConfig   `yaml:"database"`
	Logging     LoggingConfig    `yaml:"logging"`
	Security    SecurityConfig   `yaml:"security"`
	Schedules   []ScheduleConfig `yaml:"schedules"`
}

// ServiceConfig identifies this service instance.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
//
// The write timeout must cover a whole dispatch: every device can take
// connect_attempts × connect_delay plus three notification waits.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LinkConfig contains drive connection settings.
type LinkConfig struct {
	// ConnectAttempts is the number of connection attempts per drive.
	// Default: 10
	ConnectAttempts int `yaml:"connect_attempts"`

	// ConnectDelay is the fixed pause between connection attempts.
	// Default: 2s
	ConnectDelay time.Duration `yaml:"connect_delay"`

	// NotifyTimeout bounds the wait for a status notification.
	// Default: 10s
	NotifyTimeout time.Duration `yaml:"notify_timeout"`

	// WriteTimeout bounds a single characteristic write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Transport selects the wireless backend: "mqtt" (BLE gateway over the
	// broker) or "simulated" (in-memory drives for development).
	// Default: "mqtt"
	Transport string `yaml:"transport"`

	// GatewayID names the BLE gateway on the broker.
	// Default: "ble-gateway-01"
	GatewayID string `yaml:"gateway_id"`

	// ServiceUUID is the AM43 GATT service.
	// Default: "fe50"
	ServiceUUID string `yaml:"service_uuid"`

	// CharacteristicUUID is the AM43 control characteristic.
	// Default: "fe51"
	CharacteristicUUID string `yaml:"characteristic_uuid"`

	// RequestTimeout bounds a single gateway request.
	// Default: 15s
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DiscoveryConfig contains pre-dispatch scan settings.
type DiscoveryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Attempts    int           `yaml:"attempts"`
	Delay       time.Duration `yaml:"delay"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`

	// RestartCommand is run between attempts when configured drives are
	// missing (e.g. "systemctl restart bluetooth" on the gateway host).
	// Empty disables the hook.
	RestartCommand []string `yaml:"restart_command"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// ScheduleConfig is one scheduled action.
type ScheduleConfig struct {
	Name string `yaml:"name"`

	// Cron is a 5-field cron expression, a descriptor such as "@daily",
	// or a Go duration ("30m") for fixed intervals.
	Cron string `yaml:"cron"`

	// Action is an action token: open, close, stop, getStatus or 0..100.
	Action string `yaml:"action"`

	Target ScheduleTarget `yaml:"target"`
}

// ScheduleTarget selects the devices a schedule acts on.
type ScheduleTarget struct {
	Kind string `yaml:"kind"` // all (default), group or device
	Name string `yaml:"name"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AM43_SECTION_KEY
// For example: AM43_API_PORT, AM43_LINK_TRANSPORT
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

// PathFromEnv returns the config path from AM43_CONFIG, or DefaultPath.
func PathFromEnv() string {
	if v := os.Getenv("AM43_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "am43-01",
			Name: "A-OK AM43 BLE Smart Blinds Drive Service",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 600,
				Idle:  60,
			},
		},
		Link: LinkConfig{
			ConnectAttempts:    10,
			ConnectDelay:       2 * time.Second,
			NotifyTimeout:      10 * time.Second,
			WriteTimeout:       5 * time.Second,
			Transport:          TransportMQTT,
			GatewayID:          "ble-gateway-01",
			ServiceUUID:        "fe50",
			CharacteristicUUID: "fe51",
			RequestTimeout:     15 * time.Second,
		},
		Discovery: DiscoveryConfig{
			Enabled:     false,
			Attempts:    2,
			Delay:       2 * time.Second,
			ScanTimeout: 10 * time.Second,
		},
		DevicesFile: "configs/devices.yaml",
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "am43-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "am43",
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/am43.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AM43_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("AM43_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("AM43_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Link
	if v := os.Getenv("AM43_LINK_TRANSPORT"); v != "" {
		cfg.Link.Transport = v
	}
	if v := os.Getenv("AM43_LINK_GATEWAY_ID"); v != "" {
		cfg.Link.GatewayID = v
	}

	// Devices
	if v := os.Getenv("AM43_DEVICES_FILE"); v != "" {
		cfg.DevicesFile = v
	}

	// Database
	if v := os.Getenv("AM43_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("AM43_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AM43_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AM43_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Logging
	if v := os.Getenv("AM43_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Link validation
	if c.Link.ConnectAttempts < 1 {
		errs = append(errs, "link.connect_attempts must be at least 1")
	}
	if c.Link.ConnectDelay < 0 {
		errs = append(errs, "link.connect_delay must not be negative")
	}
	if c.Link.NotifyTimeout <= 0 {
		errs = append(errs, "link.notify_timeout must be positive")
	}
	switch c.Link.Transport {
	case TransportSimulated:
	case TransportMQTT:
		if !c.MQTT.Enabled {
			errs = append(errs, "link.transport \"mqtt\" requires mqtt.enabled")
		}
		if c.Link.GatewayID == "" {
			errs = append(errs, "link.gateway_id is required for the mqtt transport")
		}
	default:
		errs = append(errs, fmt.Sprintf("link.transport must be %q or %q", TransportMQTT, TransportSimulated))
	}

	// Discovery validation
	if c.Discovery.Enabled && c.Discovery.Attempts < 1 {
		errs = append(errs, "discovery.attempts must be at least 1")
	}

	if c.DevicesFile == "" {
		errs = append(errs, "devices_file is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Security validation
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RequestsPerMinute < 1 {
		errs = append(errs, "security.rate_limit.requests_per_minute must be at least 1")
	}

	// Schedules
	seen := make(map[string]bool, len(c.Schedules))
	for i, s := range c.Schedules {
		prefix := fmt.Sprintf("schedules[%d]", i)
		if s.Name == "" {
			errs = append(errs, prefix+".name is required")
		} else if seen[s.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is duplicated", prefix, s.Name))
		}
		seen[s.Name] = true
		if s.Cron == "" {
			errs = append(errs, prefix+".cron is required")
		}
		if s.Action == "" {
			errs = append(errs, prefix+".action is required")
		}
		switch strings.ToLower(s.Target.Kind) {
		case "", "all":
		case "group", "device":
			if s.Target.Name == "" {
				errs = append(errs, fmt.Sprintf("%s.target.name is required for kind %q", prefix, s.Target.Kind))
			}
		default:
			errs = append(errs, prefix+".target.kind must be all, group or device")
		}
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
