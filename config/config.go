package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DBConfig struct {
	Driver string `yaml:"driver"`
	// Name is the sqlite database file.
	Name string `yaml:"name"`
	// DSN is the postgres connection string.
	DSN         string `yaml:"dsn"`
	SlowQueryMS int    `yaml:"slow_query_ms"`
}

// SlowQueryThreshold returns the duration above which a call is logged as slow.
func (c DBConfig) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}

type MQConfig struct {
	// URL enables task events; empty means no broker.
	URL          string `yaml:"url"`
	Exchange     string `yaml:"exchange"`
	ExchangeKind string `yaml:"exchange_kind"`
	// ConnectionName is shown in the broker's management UI.
	ConnectionName string `yaml:"connection_name"`
	HeartbeatSec   int    `yaml:"heartbeat_sec"`
}

// Heartbeat is the AMQP heartbeat interval.
func (c MQConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSec) * time.Second
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// Mode is the gin mode: debug, release or test.
	Mode string `yaml:"mode"`
}

// Addr is the listen address for Port.
func (c ServerConfig) Addr() string {
	return ":" + c.Port
}

type TasksConfig struct {
	// TimeZone names the zone whose calendar day decides whether a
	// date-only due date is due soon, e.g. "Europe/Berlin".
	TimeZone string `yaml:"time_zone"`
}

// Location loads TimeZone. Validate has already checked it.
func (c TasksConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	MQ     MQConfig     `yaml:"mq"`
	Tasks  TasksConfig  `yaml:"tasks"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the configuration used when no file or env var says otherwise.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "3000", Mode: "release"},
		DB: DBConfig{
			Driver:      DriverSQLite,
			Name:        "todo.db",
			SlowQueryMS: 100,
		},
		MQ: MQConfig{
			Exchange:       "events",
			ExchangeKind:   "topic",
			ConnectionName: "todo-api",
			HeartbeatSec:   10,
		},
		Tasks: TasksConfig{TimeZone: "UTC"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads the YAML file named by CONFIG_PATH (default config.yaml), applies
// environment overrides and validates the result. A missing file is not an error.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// defaults + env only
	default:
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideFromEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.DB.Driver = driver
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.DB.Name = name
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.DB.DSN = dsn
	}
	if ms := os.Getenv("DB_SLOW_QUERY_MS"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			cfg.DB.SlowQueryMS = v
		}
	}

	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.MQ.URL = url
	}
	if exchange := os.Getenv("MQ_EXCHANGE"); exchange != "" {
		cfg.MQ.Exchange = exchange
	}

	if tz := os.Getenv("TASKS_TIME_ZONE"); tz != "" {
		cfg.Tasks.TimeZone = tz
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

// Validate checks the settings that would otherwise fail late at startup.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %q", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server mode %q", c.Server.Mode)
	}

	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Name == "" {
			return errors.New("db name must not be empty")
		}
	case DriverPostgres:
		if c.DB.DSN == "" {
			return errors.New("postgres driver requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}

	if c.DB.SlowQueryMS < 0 {
		return fmt.Errorf("invalid slow query threshold %dms", c.DB.SlowQueryMS)
	}

	if _, err := c.Tasks.Location(); err != nil {
		return fmt.Errorf("invalid tasks time zone %q: %w", c.Tasks.TimeZone, err)
	}

	if c.MQ.URL != "" {
		if c.MQ.Exchange == "" {
			return errors.New("mq exchange must not be empty")
		}
		switch c.MQ.ExchangeKind {
		case "topic", "direct", "fanout":
		default:
			return fmt.Errorf("unsupported mq exchange kind %q", c.MQ.ExchangeKind)
		}
		if c.MQ.HeartbeatSec < 0 {
			return fmt.Errorf("invalid mq heartbeat %ds", c.MQ.HeartbeatSec)
		}
	}
	return nil
}
