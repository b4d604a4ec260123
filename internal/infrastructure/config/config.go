package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Hardware backends selectable in engine.hardware.
const (
	HardwareSim  = "sim"
	HardwareMQTT = "mqtt"
)

// Config is the root configuration structure for the card controller.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Engine    EngineConfig    `yaml:"engine"`
	RTC       RTCConfig       `yaml:"rtc"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig identifies the controller.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout" validate:"gte=0"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"gte=1,lte=65535"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay" validate:"gte=0"`
	MaxDelay     int `yaml:"max_delay" validate:"gte=0"`
	MaxAttempts  int `yaml:"max_attempts" validate:"gte=0"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read" validate:"gte=0"`
	Write int `yaml:"write" validate:"gte=0"`
	Idle  int `yaml:"idle" validate:"gte=0"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size" validate:"gte=0"`
	// PushInterval is how often snapshots are checked for a new sequence, in milliseconds.
	PushInterval int `yaml:"push_interval_ms" validate:"gte=10"`
	// HeartbeatInterval is the idle time before a heartbeat event, in seconds.
	HeartbeatInterval int `yaml:"heartbeat_interval" validate:"gte=1"`
	PingInterval      int `yaml:"ping_interval" validate:"gte=1"`
	PongTimeout       int `yaml:"pong_timeout" validate:"gte=1"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size" validate:"gte=0"`
	FlushInterval int    `yaml:"flush_interval" validate:"gte=0"`
	// SampleInterval is how often the telemetry publisher samples the snapshot, in seconds.
	SampleInterval int `yaml:"sample_interval" validate:"gte=1"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EngineConfig contains scan engine settings.
type EngineConfig struct {
	ScanIntervalMs int    `yaml:"scan_interval_ms" validate:"gte=1,lte=60000"`
	SlowIntervalMs int    `yaml:"slow_interval_ms" validate:"gte=1,lte=600000"`
	QueueCapacity  int    `yaml:"queue_capacity" validate:"gte=1,lte=4096"`
	PauseTimeoutMs int    `yaml:"pause_timeout_ms" validate:"gte=1"`
	Hardware       string `yaml:"hardware" validate:"oneof=sim mqtt"`
	// LayoutFile is imported when the config store holds no revision yet.
	LayoutFile string `yaml:"layout_file"`
	// Layout sizes the default profile used when neither store nor file provide cards.
	Layout LayoutConfig `yaml:"layout"`
}

// LayoutConfig is the per-family card count.
type LayoutConfig struct {
	DI   int `yaml:"di" validate:"gte=0"`
	DO   int `yaml:"do" validate:"gte=0"`
	AI   int `yaml:"ai" validate:"gte=0"`
	SIO  int `yaml:"sio" validate:"gte=0"`
	Math int `yaml:"math" validate:"gte=0"`
	RTC  int `yaml:"rtc" validate:"gte=0"`
}

// RTCConfig contains the schedule poller settings.
type RTCConfig struct {
	PollInterval int    `yaml:"poll_interval" validate:"gte=1,lte=30"`
	Timezone     string `yaml:"timezone"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// AccessTokenTTL is the lifetime of minted operator tokens, in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl" validate:"gte=1"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CARDCORE_SECTION_KEY
// For example: CARDCORE_DATABASE_PATH, CARDCORE_API_PORT
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

// Default returns the default configuration with environment overrides
// applied. It is not validated.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "controller-001",
			Name: "Card Controller",
		},
		Database: DatabaseConfig{
			Path:        "./data/cardcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "cardcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize:    8192,
			PushInterval:      100,
			HeartbeatInterval: 5,
			PingInterval:      30,
			PongTimeout:       10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:      100,
			FlushInterval:  10,
			SampleInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Engine: EngineConfig{
			ScanIntervalMs: 10,
			SlowIntervalMs: 500,
			QueueCapacity:  64,
			PauseTimeoutMs: 500,
			Hardware:       HardwareSim,
			Layout: LayoutConfig{
				DI: 8, DO: 8, AI: 4, SIO: 4, Math: 4, RTC: 4,
			},
		},
		RTC: RTCConfig{
			PollInterval: 1,
			Timezone:     "UTC",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides lets CARDCORE_SECTION_KEY variables replace file
// values. Unparseable numbers are ignored.
func applyEnvOverrides(cfg *Config) {
	strs := map[string]*string{
		"CARDCORE_SITE_ID":            &cfg.Site.ID,
		"CARDCORE_DATABASE_PATH":      &cfg.Database.Path,
		"CARDCORE_MQTT_HOST":          &cfg.MQTT.Broker.Host,
		"CARDCORE_MQTT_USERNAME":      &cfg.MQTT.Auth.Username,
		"CARDCORE_MQTT_PASSWORD":      &cfg.MQTT.Auth.Password,
		"CARDCORE_API_HOST":           &cfg.API.Host,
		"CARDCORE_INFLUXDB_URL":       &cfg.InfluxDB.URL,
		"CARDCORE_INFLUXDB_TOKEN":     &cfg.InfluxDB.Token,
		"CARDCORE_ENGINE_HARDWARE":    &cfg.Engine.Hardware,
		"CARDCORE_ENGINE_LAYOUT_FILE": &cfg.Engine.LayoutFile,
		"CARDCORE_RTC_TIMEZONE":       &cfg.RTC.Timezone,
		"CARDCORE_JWT_SECRET":         &cfg.Security.JWT.Secret,
	}
	for name, dst := range strs {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"CARDCORE_MQTT_PORT": &cfg.MQTT.Broker.Port,
		"CARDCORE_API_PORT":  &cfg.API.Port,
	}
	for name, dst := range ints {
		if n, err := strconv.Atoi(os.Getenv(name)); err == nil {
			*dst = n
		}
	}
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for errors and security issues.
// Every problem is collected into a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Engine.Hardware == HardwareMQTT && !c.MQTT.Enabled {
		errs = append(errs, "engine.hardware mqtt requires mqtt.enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	if _, err := time.LoadLocation(c.RTC.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("rtc.timezone %q is not a known location", c.RTC.Timezone))
	}

	// Mutating endpoints are guarded by operator tokens, so a weak secret
	// would let anyone drive outputs.
	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set CARDCORE_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s fails %q (value %v)", fe.Namespace(), fe.ActualTag(), fe.Value()))
			}
		} else {
			errs = append(errs, err.Error())
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

// ScanInterval returns the normal-mode scan period.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.Engine.ScanIntervalMs) * time.Millisecond
}

// SlowInterval returns the slow-mode scan period.
func (c *Config) SlowInterval() time.Duration {
	return time.Duration(c.Engine.SlowIntervalMs) * time.Millisecond
}

// PauseTimeout returns how long a config apply waits for the engine to pause.
func (c *Config) PauseTimeout() time.Duration {
	return time.Duration(c.Engine.PauseTimeoutMs) * time.Millisecond
}

// Location returns the RTC time zone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.RTC.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
