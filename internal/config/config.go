// Package config loads the servo bridge's JSON tuning file. Fields omitted
// from the file keep their defaults, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gimbalworks/servolink/internal/serialmux"
	"github.com/gimbalworks/servolink/internal/units"
)

// DefaultConfigPath is where servod looks for tuning values when no -config
// flag is given.
const DefaultConfigPath = "config/servolink.json"

// Actuator driver names accepted in the config file.
const (
	ActuatorFeetech = "feetech"
	ActuatorSim     = "sim"
)

// Config mirrors the JSON tuning file. All fields are pointers so that a
// partial file only overrides what it names.
type Config struct {
	// Serial link to the host.
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	DataBits   *int    `json:"data_bits,omitempty"`
	StopBits   *int    `json:"stop_bits,omitempty"`
	Parity     *string `json:"parity,omitempty"`

	// HTTP and storage.
	Listen        *string `json:"listen,omitempty"`
	DBPath        *string `json:"db_path,omitempty"`
	MigrationsDir *string `json:"migrations_dir,omitempty"`

	// Interpreter behaviour.
	DefaultAngle *int    `json:"default_angle,omitempty"`
	SettleDelay  *string `json:"settle_delay,omitempty"` // duration string like "500ms"

	// Host-side rate limiting (servoctl).
	MinInterval *string `json:"min_interval,omitempty"` // duration string like "50ms"
	MinStep     *int    `json:"min_step,omitempty"`

	// Actuator driver.
	Actuator    *string `json:"actuator,omitempty"` // "feetech" or "sim"
	BusPort     *string `json:"bus_port,omitempty"`
	BusBaud     *int    `json:"bus_baud,omitempty"`
	ServoID     *int    `json:"servo_id,omitempty"`
	ServoRawMin *int    `json:"servo_raw_min,omitempty"`
	ServoRawMax *int    `json:"servo_raw_max,omitempty"`
}

// Settings holds the fully resolved configuration.
type Settings struct {
	SerialPort string
	Port       serialmux.PortOptions

	Listen        string
	DBPath        string
	MigrationsDir string

	DefaultAngle int
	SettleDelay  time.Duration

	MinInterval time.Duration
	MinStep     int

	Actuator    string
	BusPort     string
	BusBaud     int
	ServoID     int
	ServoRawMin int
	ServoRawMax int
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		SerialPort:    "/dev/ttyUSB0",
		Port:          serialmux.PortOptions{BaudRate: serialmux.DefaultBaudRate},
		Listen:        ":8080",
		DBPath:        "servolink.db",
		MigrationsDir: "migrations",
		DefaultAngle:  90,
		SettleDelay:   500 * time.Millisecond,
		MinInterval:   50 * time.Millisecond,
		MinStep:       1,
		Actuator:      ActuatorSim,
		BusPort:       "/dev/ttyACM0",
		BusBaud:       1_000_000,
		ServoID:       1,
		ServoRawMin:   1024,
		ServoRawMax:   3072,
	}
}

// Load reads a Config from a JSON file. The file must have a .json extension
// and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// Apply overlays the config's set fields onto s and validates the result.
func (c *Config) Apply(s Settings) (Settings, error) {
	if c.SerialPort != nil {
		s.SerialPort = *c.SerialPort
	}
	if c.BaudRate != nil {
		s.Port.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		s.Port.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		s.Port.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		s.Port.Parity = *c.Parity
	}
	if c.Listen != nil {
		s.Listen = *c.Listen
	}
	if c.DBPath != nil {
		s.DBPath = *c.DBPath
	}
	if c.MigrationsDir != nil {
		s.MigrationsDir = *c.MigrationsDir
	}
	if c.DefaultAngle != nil {
		s.DefaultAngle = *c.DefaultAngle
	}
	if c.SettleDelay != nil {
		d, err := time.ParseDuration(*c.SettleDelay)
		if err != nil {
			return s, fmt.Errorf("invalid settle_delay: %w", err)
		}
		s.SettleDelay = d
	}
	if c.MinInterval != nil {
		d, err := time.ParseDuration(*c.MinInterval)
		if err != nil {
			return s, fmt.Errorf("invalid min_interval: %w", err)
		}
		s.MinInterval = d
	}
	if c.MinStep != nil {
		s.MinStep = *c.MinStep
	}
	if c.Actuator != nil {
		s.Actuator = *c.Actuator
	}
	if c.BusPort != nil {
		s.BusPort = *c.BusPort
	}
	if c.BusBaud != nil {
		s.BusBaud = *c.BusBaud
	}
	if c.ServoID != nil {
		s.ServoID = *c.ServoID
	}
	if c.ServoRawMin != nil {
		s.ServoRawMin = *c.ServoRawMin
	}
	if c.ServoRawMax != nil {
		s.ServoRawMax = *c.ServoRawMax
	}

	if !units.InRange(s.DefaultAngle) {
		return s, fmt.Errorf("default_angle %d outside [%d, %d]", s.DefaultAngle, units.MinAngle, units.MaxAngle)
	}
	if s.Actuator != ActuatorFeetech && s.Actuator != ActuatorSim {
		return s, fmt.Errorf("unknown actuator %q: expected %q or %q", s.Actuator, ActuatorFeetech, ActuatorSim)
	}
	if _, err := s.Port.Normalize(); err != nil {
		return s, err
	}
	return s, nil
}

// LoadSettings loads path and resolves it against the defaults. A missing
// file is not an error when path is the default location; the defaults are
// returned unchanged.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if _, err := os.Stat(path); os.IsNotExist(err) && path == DefaultConfigPath {
		return s, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return s, err
	}
	return cfg.Apply(s)
}
