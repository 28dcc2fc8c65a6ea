package app

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/cw-radar/internal/config"
	"github.com/roman-kulish/cw-radar/internal/sdr/soapy"
)

const (
	DeviceSynthetic DeviceType = "synthetic"
	DeviceSoapy     DeviceType = "soapy"

	defaultCatalogPath = "catalog.sqlite"
)

type DeviceType string

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings"`
	Radar    config.Config `yaml:"radar"`
	Device   DeviceConfig  `yaml:"device"`
	Trigger  TriggerConfig `yaml:"trigger"`
	Catalog  CatalogConfig `yaml:"catalog"`
	Plot     PlotConfig    `yaml:"plot"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	Workers  int    `yaml:"workers"` // spectrogram goroutines, 0 uses GOMAXPROCS

	// Process analyses every saved capture right away
	Process bool `yaml:"process"`

	// Timestamped appends the arm time to the output file name so that
	// consecutive sessions do not overwrite each other
	Timestamped bool `yaml:"timestamped"`
}

// DeviceConfig selects the radio front end
type DeviceConfig struct {
	Name      string          `yaml:"name"`
	Type      DeviceType      `yaml:"type"`
	Soapy     *soapy.Config   `yaml:"soapy"`
	Synthetic SyntheticConfig `yaml:"synthetic"`
}

// SyntheticConfig describes the simulated target of the synthetic front end
type SyntheticConfig struct {
	Beat    float64 `yaml:"beat"`    // Hz, Doppler shift of the echo
	Echo    float64 `yaml:"echo"`    // echo amplitude, 0 for the default
	Leakage float64 `yaml:"leakage"` // transmit leakage amplitude, 0 for the default
	Noise   float64 `yaml:"noise"`   // noise standard deviation, 0 for the default
	Seed    uint64  `yaml:"seed"`    // 0 seeds from the clock
}

// TriggerConfig selects where save requests come from
type TriggerConfig struct {
	Source      string `yaml:"source"`      // "-" for the terminal, "auto" to discover a serial device, or a path such as /dev/ttyUSB0
	Match       string `yaml:"match"`       // only lines starting with Match fire
	Description string `yaml:"description"` // USB product matched by "auto", "Nano" by default
	BaudRate    int    `yaml:"baudRate"`    // configures Source as a serial port, 9600 for "auto" when unset
}

// CatalogConfig represents capture catalog settings
type CatalogConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// PlotConfig represents spectrogram image settings
type PlotConfig struct {
	Theme        string  `yaml:"theme"`
	MaxFrequency float64 `yaml:"maxFrequency"` // Hz, 0 draws the whole band
}

// DefaultConfig returns a configuration driving the synthetic front end with
// the calibrated radar defaults.
func DefaultConfig() *Config {
	return &Config{
		Settings: Settings{LogLevel: slog.LevelInfo.String()},
		Radar:    config.Default(),
		Device:   DeviceConfig{Name: "radar", Type: DeviceSynthetic},
		Trigger:  TriggerConfig{Source: "-"},
		Catalog:  CatalogConfig{Path: defaultCatalogPath},
	}
}

// LoadConfig reads a YAML configuration file. Settings missing from the file
// keep their defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the parts of the configuration the radar packages do not
// validate themselves.
func (c *Config) Validate() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Settings.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level '%s': %w", c.Settings.LogLevel, err)
	}

	switch c.Device.Type {
	case DeviceSynthetic:
	case DeviceSoapy:
		if c.Device.Soapy == nil {
			return errors.New("soapy device requires a 'soapy' section")
		}
		if err := c.Device.Soapy.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown device type '%s'", c.Device.Type)
	}

	if c.Trigger.BaudRate < 0 {
		return fmt.Errorf("invalid trigger baud rate: %d", c.Trigger.BaudRate)
	}

	if c.Settings.Workers < 0 {
		return fmt.Errorf("invalid workers: %d", c.Settings.Workers)
	}
	return nil
}

// CatalogPath returns the catalog database path, or "" when the catalog is
// disabled.
func (c *Config) CatalogPath() string {
	if c.Catalog.Disabled {
		return ""
	}
	if c.Catalog.Path == "" {
		return defaultCatalogPath
	}
	return c.Catalog.Path
}
