package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the IoT bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Platform   PlatformConfig   `yaml:"platform"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	Database   DatabaseConfig   `yaml:"database"`
	Identities IdentitiesConfig `yaml:"identities"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Admin      AdminConfig      `yaml:"admin"`
	Rules      []RuleConfig     `yaml:"rules"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PlatformConfig describes how device clients reach the IoT platform.
type PlatformConfig struct {
	// ServerURI is the platform MQTT endpoint, e.g. ssl://iot.example.com:8883.
	ServerURI string `yaml:"server_uri"`

	// CAFile is the PEM bundle used to verify the platform certificate.
	// Empty means the system roots are used.
	CAFile string `yaml:"ca_file"`

	// BridgeID switches clients to bridge login mode. Empty means direct mode,
	// where the MQTT CONNACK is the login.
	BridgeID string `yaml:"bridge_id"`

	QoS            int                     `yaml:"qos"`
	RequestTimeout time.Duration           `yaml:"request_timeout"`
	ConnectTimeout time.Duration           `yaml:"connect_timeout"`
	Reconnect      PlatformReconnectConfig `yaml:"reconnect"`
}

// PlatformReconnectConfig contains MQTT reconnection settings, in seconds.
type PlatformReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// BridgeConfig contains the external transport and session settings.
type BridgeConfig struct {
	// Listen is the TCP address external devices connect to.
	Listen string `yaml:"listen"`

	// AutoAckCommands makes the bridge answer every platform command with
	// result code 0 as soon as it is written to the device connection.
	// The device's actual execution is not confirmed.
	AutoAckCommands bool `yaml:"auto_ack_commands"`

	MaxFrameBytes int           `yaml:"max_frame_bytes"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// IdentitiesConfig points at the optional identity seed file imported on start.
type IdentitiesConfig struct {
	SeedFile string `yaml:"seed_file"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// AdminConfig contains the admin HTTP server settings (health, metrics, sessions).
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// JWTSecret signs operator tokens. Required when operators are configured.
	JWTSecret string           `yaml:"jwt_secret"`
	TokenTTL  time.Duration    `yaml:"token_ttl"`
	Operators []OperatorConfig `yaml:"operators"`

	// CORSOrigins lists browser origins allowed to call the API.
	// Empty allows any origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// OperatorConfig is one admin API account.
// PasswordHash is an Argon2id PHC string, see `iotbridge hash-password`.
type OperatorConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
}

// RuleConfig is one scheduled device rule.
type RuleConfig struct {
	ID       string             `yaml:"id"`
	DeviceID string             `yaml:"device_id"`
	Interval time.Duration      `yaml:"interval"`
	Window   *RuleWindowConfig  `yaml:"window,omitempty"`
	Actions  []RuleActionConfig `yaml:"actions"`
}

// RuleWindowConfig restricts a rule to a daily time window.
// Start and End use "HH:MM"; Days uses 1 (Monday) through 7 (Sunday).
type RuleWindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
	Days  []int  `yaml:"days,omitempty"`
}

// RuleActionConfig is a command delivered to the device when a rule fires.
type RuleActionConfig struct {
	ServiceID   string         `yaml:"service_id"`
	CommandName string         `yaml:"command_name"`
	Paras       map[string]any `yaml:"paras"`
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
// Environment variables follow the pattern: IOTBRIDGE_SECTION_KEY
// For example: IOTBRIDGE_PLATFORM_SERVER_URI, IOTBRIDGE_BRIDGE_LISTEN
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

// minJWTSecretLen is the shortest accepted HS256 signing secret.
const minJWTSecretLen = 32

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Platform: PlatformConfig{
			QoS:            1,
			RequestTimeout: 10 * time.Second,
			ConnectTimeout: 10 * time.Second,
			Reconnect: PlatformReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Bridge: BridgeConfig{
			Listen:          "0.0.0.0:8080",
			AutoAckCommands: true,
			MaxFrameBytes:   64 * 1024,
			WriteTimeout:    5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/iotbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Admin: AdminConfig{
			Enabled:  true,
			Host:     "127.0.0.1",
			Port:     9090,
			TokenTTL: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Platform
	if v := os.Getenv("IOTBRIDGE_PLATFORM_SERVER_URI"); v != "" {
		cfg.Platform.ServerURI = v
	}
	if v := os.Getenv("IOTBRIDGE_PLATFORM_CA_FILE"); v != "" {
		cfg.Platform.CAFile = v
	}
	if v := os.Getenv("IOTBRIDGE_PLATFORM_BRIDGE_ID"); v != "" {
		cfg.Platform.BridgeID = v
	}

	// Bridge
	if v := os.Getenv("IOTBRIDGE_BRIDGE_LISTEN"); v != "" {
		cfg.Bridge.Listen = v
	}
	if v := os.Getenv("IOTBRIDGE_BRIDGE_AUTO_ACK_COMMANDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Bridge.AutoAckCommands = b
		}
	}

	// Database
	if v := os.Getenv("IOTBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("IOTBRIDGE_IDENTITIES_SEED_FILE"); v != "" {
		cfg.Identities.SeedFile = v
	}

	// Admin
	if v := os.Getenv("IOTBRIDGE_ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}

	// InfluxDB
	if v := os.Getenv("IOTBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("IOTBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are reported together so an operator can fix the file in one pass.
func (c *Config) Validate() error {
	var errs []string

	// Platform validation
	if c.Platform.ServerURI == "" {
		errs = append(errs, "platform.server_uri is required")
	} else if u, err := url.Parse(c.Platform.ServerURI); err != nil || u.Host == "" {
		errs = append(errs, "platform.server_uri must be a URI such as ssl://host:8883")
	} else if !validScheme(u.Scheme) {
		errs = append(errs, "platform.server_uri scheme must be tcp, ssl, tls, mqtt, mqtts, ws or wss")
	}
	if c.Platform.QoS < 0 || c.Platform.QoS > 1 {
		errs = append(errs, "platform.qos must be 0 or 1")
	}
	if c.Platform.RequestTimeout <= 0 {
		errs = append(errs, "platform.request_timeout must be positive")
	}
	if c.Platform.ConnectTimeout <= 0 {
		errs = append(errs, "platform.connect_timeout must be positive")
	}

	// Bridge validation
	if c.Bridge.Listen == "" {
		errs = append(errs, "bridge.listen is required")
	}
	if c.Bridge.MaxFrameBytes <= 0 {
		errs = append(errs, "bridge.max_frame_bytes must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Admin validation
	if c.Admin.Enabled && (c.Admin.Port < 1 || c.Admin.Port > 65535) {
		errs = append(errs, "admin.port must be between 1 and 65535")
	}
	if c.Admin.Enabled && len(c.Admin.Operators) > 0 && len(c.Admin.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Sprintf("admin.jwt_secret must be at least %d characters when operators are configured", minJWTSecretLen))
	}
	for i, op := range c.Admin.Operators {
		if op.Username == "" || op.PasswordHash == "" {
			errs = append(errs, fmt.Sprintf("admin.operators[%d] needs username and password_hash", i))
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	errs = append(errs, c.validateRules()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateRules checks each configured device rule.
func (c *Config) validateRules() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Rules))

	for i, r := range c.Rules {
		prefix := fmt.Sprintf("rules[%d]", i)
		switch {
		case r.ID == "":
			errs = append(errs, prefix+".id is required")
		case seen[r.ID]:
			errs = append(errs, prefix+".id "+strconv.Quote(r.ID)+" is duplicated")
		}
		seen[r.ID] = true

		if r.DeviceID == "" {
			errs = append(errs, prefix+".device_id is required")
		}
		if r.Interval <= 0 {
			errs = append(errs, prefix+".interval must be positive")
		}
		if len(r.Actions) == 0 {
			errs = append(errs, prefix+".actions must not be empty")
		}
		for j, a := range r.Actions {
			if a.CommandName == "" {
				errs = append(errs, fmt.Sprintf("%s.actions[%d].command_name is required", prefix, j))
			}
		}
	}

	return errs
}

func validScheme(scheme string) bool {
	switch scheme {
	case "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss":
		return true
	default:
		return false
	}
}

// AdminAddress returns the admin server listen address.
func (c *Config) AdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}
