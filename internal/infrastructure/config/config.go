package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/riverwatch/rivercore/internal/reading"
)

// Config is the root configuration for a river-control node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Node     NodeConfig            `yaml:"node"`
	Store    StoreConfig           `yaml:"store"`
	MQTT     MQTTConfig            `yaml:"mqtt"`
	InfluxDB InfluxDBConfig        `yaml:"influxdb"`
	Logging  LoggingConfig         `yaml:"logging"`
	Sites    map[string]SiteConfig `yaml:"sites"`
}

// NodeConfig identifies this node within the site registry.
type NodeConfig struct {
	// SiteID is the id this node runs as. Must be a key of Sites.
	SiteID string `yaml:"site_id"`

	// CoordinatorID names the distinguished site that performs full store
	// reinitialisation and system-tick persistence.
	CoordinatorID string `yaml:"coordinator_id"`
}

// StoreConfig contains the shared-store connection settings.
//
// The store is one SQLite database shared by every node (served from the
// coordinator's export). Host is the machine the database lives on; it is
// what the liveness checker pings before and during a session.
type StoreConfig struct {
	Path        string `yaml:"path"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// PingTimeout is the liveness probe timeout in seconds.
	PingTimeout int `yaml:"ping_timeout"`
}

// MQTTConfig contains the broadcast-boundary broker settings.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// InfluxDBConfig contains the optional readings-mirror settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SiteConfig describes one site in the registry.
type SiteConfig struct {
	// Name is the human-readable site name, e.g. "Wendy Street Butts Pi".
	Name string `yaml:"name"`

	// Host is the site's address on the control network.
	Host string `yaml:"host"`

	// Devices lists controllable devices as full "<site>:<sensor>" ids,
	// e.g. "SUMP:P0" for the butts return pump.
	Devices []string `yaml:"devices"`

	// Probes lists monitorable sensors as full "<site>:<sensor>" ids,
	// e.g. "G4:M0" for a hall-effect probe.
	Probes []string `yaml:"probes"`

	// HasReadings reports whether the site persists a readings history
	// table. The coordinator stores ticks instead of readings.
	HasReadings bool `yaml:"has_readings"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern RIVERCORE_SECTION_KEY,
// e.g. RIVERCORE_NODE_SITE_ID, RIVERCORE_STORE_PATH.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			CoordinatorID: "NAS",
		},
		Store: StoreConfig{
			Path:        "./data/rivercontrol.db",
			Host:        "127.0.0.1",
			WALMode:     true,
			BusyTimeout: 5,
			PingTimeout: 2,
		},
		MQTT: MQTTConfig{
			Host: "localhost",
			Port: 1883,
			QoS:  1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies RIVERCORE_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RIVERCORE_NODE_SITE_ID"); v != "" {
		cfg.Node.SiteID = v
	}
	if v := os.Getenv("RIVERCORE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("RIVERCORE_STORE_HOST"); v != "" {
		cfg.Store.Host = v
	}
	if v := os.Getenv("RIVERCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("RIVERCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("RIVERCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("RIVERCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("RIVERCORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Node.SiteID == "" {
		errs = append(errs, "node.site_id is required")
	} else if _, ok := c.Sites[c.Node.SiteID]; !ok {
		errs = append(errs, fmt.Sprintf("node.site_id %q is not in the site registry", c.Node.SiteID))
	}

	if c.Node.CoordinatorID == "" {
		errs = append(errs, "node.coordinator_id is required")
	} else if _, ok := c.Sites[c.Node.CoordinatorID]; !ok {
		errs = append(errs, fmt.Sprintf("node.coordinator_id %q is not in the site registry", c.Node.CoordinatorID))
	}

	if c.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}
	if c.Store.Host == "" {
		errs = append(errs, "store.host is required")
	}
	if c.Store.BusyTimeout < 0 {
		errs = append(errs, "store.busy_timeout must not be negative")
	}

	if len(c.Sites) == 0 {
		errs = append(errs, "at least one site must be configured")
	}

	// Registry ids must parse; the owning site half may differ from the
	// hosting site (e.g. G1..G3 hang off GR), so only the shape is checked.
	for siteID, site := range c.Sites {
		for _, id := range append(append([]string{}, site.Devices...), site.Probes...) {
			if _, _, err := reading.SplitID(id); err != nil {
				errs = append(errs, fmt.Sprintf("site %s: malformed device id %q", siteID, id))
			}
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.Host == "" {
			errs = append(errs, "mqtt.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1 or 2")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// IsCoordinator reports whether this node is the coordinator site.
func (c *Config) IsCoordinator() bool {
	return c.Node.SiteID == c.Node.CoordinatorID
}

// HasSite reports whether the given site id is in the registry.
func (c *Config) HasSite(siteID string) bool {
	_, ok := c.Sites[siteID]
	return ok
}

// HasSensor reports whether "<siteID>:<sensorID>" names a configured device
// or probe at the given site. The whole-site virtual device (sensorID equal
// to siteID) is deliberately not matched here; control-path callers accept
// it separately.
func (c *Config) HasSensor(siteID, sensorID string) bool {
	site, ok := c.Sites[siteID]
	if !ok {
		return false
	}
	full := siteID + reading.IDSeparator + sensorID
	for _, id := range site.Devices {
		if id == full {
			return true
		}
	}
	for _, id := range site.Probes {
		if id == full {
			return true
		}
	}
	return false
}

// SiteIDs returns all registered site ids in stable order.
func (c *Config) SiteIDs() []string {
	ids := make([]string, 0, len(c.Sites))
	for id := range c.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
