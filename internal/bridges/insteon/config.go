package insteon

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultModemPort is the usual device node of a USB PowerLinc modem.
const DefaultModemPort = "/dev/ttyUSB0"

// Config is the root configuration for the Insteon bridge.
// Loaded from YAML with environment variable overrides.
type Config struct {
	Bridge  BridgeConfig   `yaml:"bridge"`
	Modem   ModemSettings  `yaml:"modem"`
	MQTT    MQTTSettings   `yaml:"mqtt"`
	Devices []DeviceConfig `yaml:"devices"`
	Logging LoggingConfig  `yaml:"logging"`
}

// BridgeConfig contains bridge identity and operational settings.
type BridgeConfig struct {
	// ID uniquely identifies this bridge instance.
	ID string `yaml:"id"`

	// HealthInterval is how often to publish health status (seconds).
	// Default: 30 seconds.
	HealthInterval int `yaml:"health_interval"`
}

// ModemSettings contains serial modem settings.
type ModemSettings struct {
	// Port is the serial device path.
	// Default: "/dev/ttyUSB0"
	Port string `yaml:"port"`

	// BaudRate of the serial link. PowerLinc modems only speak 19200.
	BaudRate int `yaml:"baud_rate"`

	// ResponseTimeout is how long to wait for a device reply (milliseconds).
	// Default: 3000.
	ResponseTimeout int `yaml:"response_timeout"`
}

// MQTTSettings contains MQTT broker connection settings.
type MQTTSettings struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`

	// Password for MQTT authentication (optional).
	// WARNING: Never log this value. Use String() method for safe logging.
	Password string `yaml:"password"`

	QoS       int `yaml:"qos"`
	KeepAlive int `yaml:"keep_alive"`
}

// String returns a string representation with password masked.
func (m MQTTSettings) String() string {
	password := ""
	if m.Password != "" {
		password = "[REDACTED]"
	}
	return fmt.Sprintf("MQTTSettings{Broker:%q, ClientID:%q, Username:%q, Password:%s, QoS:%d, KeepAlive:%d}",
		m.Broker, m.ClientID, m.Username, password, m.QoS, m.KeepAlive)
}

// MarshalJSON implements json.Marshaler to redact password in JSON output.
func (m MQTTSettings) MarshalJSON() ([]byte, error) {
	type redacted MQTTSettings
	safe := redacted(m)
	if safe.Password != "" {
		safe.Password = "[REDACTED]"
	}
	return json.Marshal(safe)
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DeviceConfig defines one dimmable light on the Insteon network.
type DeviceConfig struct {
	// DeviceID is the Gray Logic device identifier.
	DeviceID string `yaml:"device_id"`

	// Name is a human-readable label, used in logs only.
	Name string `yaml:"name"`

	// Address is the Insteon address, e.g. "1A.2B.3C".
	Address string `yaml:"address"`

	// EmitOnAck controls whether the device's direct acks produce events.
	// Default: true.
	EmitOnAck *bool `yaml:"emit_on_ack"`
}

// LoadConfig reads configuration from a YAML file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INSTEON_BRIDGE_SECTION_KEY
// For example: INSTEON_BRIDGE_MODEM_PORT, INSTEON_BRIDGE_MQTT_BROKER
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func LoadConfig(path string) (*Config, error) {
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

func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "insteon-bridge-01",
			HealthInterval: 30,
		},
		Modem: ModemSettings{
			Port:            DefaultModemPort,
			BaudRate:        DefaultBaudRate,
			ResponseTimeout: int(defaultResponseTimeout / time.Millisecond),
		},
		MQTT: MQTTSettings{
			Broker:    "tcp://localhost:1883",
			QoS:       1,
			KeepAlive: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Devices: []DeviceConfig{},
	}
}

// applyEnvOverrides applies INSTEON_BRIDGE_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INSTEON_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}

	if v := os.Getenv("INSTEON_BRIDGE_MODEM_PORT"); v != "" {
		cfg.Modem.Port = v
	}
	if v := os.Getenv("INSTEON_BRIDGE_MODEM_RESPONSE_TIMEOUT"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Modem.ResponseTimeout = ms
		}
	}

	if v := os.Getenv("INSTEON_BRIDGE_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("INSTEON_BRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("INSTEON_BRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	errs = append(errs, c.validateBridge()...)
	errs = append(errs, c.validateModem()...)
	errs = append(errs, c.validateMQTT()...)
	errs = append(errs, c.validateDevices()...)
	errs = append(errs, c.validateLogging()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateBridge() []string {
	var errs []string
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}
	return errs
}

func (c *Config) validateModem() []string {
	var errs []string
	if c.Modem.Port == "" {
		errs = append(errs, "modem.port is required")
	}
	if c.Modem.BaudRate < 1 {
		errs = append(errs, "modem.baud_rate must be positive")
	}
	if c.Modem.ResponseTimeout < 100 {
		errs = append(errs, "modem.response_timeout must be at least 100 ms")
	}
	return errs
}

func (c *Config) validateMQTT() []string {
	var errs []string
	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	return errs
}

// validateDevices checks ids and addresses. Two devices may not share an
// address, since notifications are routed by address.
func (c *Config) validateDevices() []string {
	var errs []string
	deviceIDs := make(map[string]bool)
	addresses := make(map[Address]string)

	for i, dev := range c.Devices {
		if dev.DeviceID == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].device_id is required", i))
			continue
		}
		if deviceIDs[dev.DeviceID] {
			errs = append(errs, fmt.Sprintf("devices[%d].device_id %q is duplicate", i, dev.DeviceID))
		}
		deviceIDs[dev.DeviceID] = true

		if dev.Address == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].address is required", i))
			continue
		}
		addr, err := ParseAddress(dev.Address)
		if err != nil {
			errs = append(errs, fmt.Sprintf("devices[%d].address %q is invalid: %v", i, dev.Address, err))
			continue
		}
		if other, ok := addresses[addr]; ok {
			errs = append(errs, fmt.Sprintf("devices[%d].address %s is already used by %q", i, addr, other))
		}
		addresses[addr] = dev.DeviceID
	}

	return errs
}

func (c *Config) validateLogging() []string {
	var errs []string

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid (use debug, info, warn, or error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format %q is invalid (use json or text)", c.Logging.Format))
	}

	return errs
}

// ToModemConfig converts settings to a ModemConfig.
func (c *Config) ToModemConfig() ModemConfig {
	return ModemConfig{
		Port:            c.Modem.Port,
		BaudRate:        c.Modem.BaudRate,
		ResponseTimeout: time.Duration(c.Modem.ResponseTimeout) * time.Millisecond,
	}
}

// GetHealthInterval returns the health reporting interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetMQTTClientID returns the MQTT client ID, defaulting to bridge ID if not set.
func (c *Config) GetMQTTClientID() string {
	if c.MQTT.ClientID != "" {
		return c.MQTT.ClientID
	}
	return c.Bridge.ID + "-mqtt"
}

// DeviceMapping is a configured device resolved to its parsed address.
type DeviceMapping struct {
	DeviceID  string
	Name      string
	Address   Address
	EmitOnAck *bool
}

// BuildDeviceIndex resolves configured devices, keyed by address.
// Entries with an unparsable address are skipped; Validate reports them.
func (c *Config) BuildDeviceIndex() map[Address]DeviceMapping {
	index := make(map[Address]DeviceMapping, len(c.Devices))
	for _, dev := range c.Devices {
		addr, err := ParseAddress(dev.Address)
		if err != nil {
			continue
		}
		index[addr] = DeviceMapping{
			DeviceID:  dev.DeviceID,
			Name:      dev.Name,
			Address:   addr,
			EmitOnAck: dev.EmitOnAck,
		}
	}
	return index
}
