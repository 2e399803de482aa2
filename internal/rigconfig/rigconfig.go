// Package rigconfig loads the JSON rig description: which instruments are
// connected where, the measurement channels, and optional tuning overrides
// for the drive and sweep timing.
package rigconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/labsweep/internal/drive"
	"github.com/banshee-data/labsweep/internal/drivers"
	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/sweep"
	"github.com/banshee-data/labsweep/internal/timeutil"
)

// DeviceConfig describes one connected instrument.
type DeviceConfig struct {
	Name  string           `json:"name"`
	Class instrument.Class `json:"class"`

	// Driver selects the hardware family: "scpi-serial", "ips120-gpib"
	// or "mercury-serial".
	Driver string `json:"driver"`

	Port        string `json:"port,omitempty"`
	Baud        int    `json:"baud,omitempty"`
	GPIBAddress int    `json:"gpib_address,omitempty"`

	// Variables is the SCPI table for scpi-serial devices.
	Variables map[string]drivers.VariableSpec `json:"variables,omitempty"`

	// Initial seeds simulated devices in dev mode; variables present here
	// exist on the sim even without a SCPI table.
	Initial map[string]float64 `json:"initial,omitempty"`
}

// ChannelConfig declares one measured column: a logical name bound to a
// device variable. Order in the config is column order.
type ChannelConfig struct {
	Name     string `json:"name"`
	Device   string `json:"device"`
	Variable string `json:"variable"`
}

// TuningConfig carries optional overrides for the tuned timing constants.
// Fields omitted from the JSON keep the built-in defaults, so partial
// configs are safe.
type TuningConfig struct {
	SettleSeconds     *float64 `json:"settle_seconds,omitempty"`
	StepIntervalMs    *int     `json:"step_interval_ms,omitempty"`
	MagnetPollMs      *int     `json:"magnet_poll_ms,omitempty"`
	MagnetStallPolls  *int     `json:"magnet_stall_polls,omitempty"`
	MagnetMaxRate     *float64 `json:"magnet_max_rate,omitempty"`
	MercuryPollMs     *int     `json:"mercury_poll_ms,omitempty"`
	MercuryStuckPolls *int     `json:"mercury_stuck_polls,omitempty"`
	MaxWaitSeconds    *float64 `json:"max_wait_seconds,omitempty"`
	StabilityPollSecs *float64 `json:"stability_poll_seconds,omitempty"`
	RecordMaxPoints   *int     `json:"record_max_points,omitempty"`
}

// Config is the root rig description.
type Config struct {
	// DataDir is where sweep data files are created. Defaults to ".".
	DataDir string `json:"data_dir,omitempty"`

	Devices  []DeviceConfig  `json:"devices"`
	Channels []ChannelConfig `json:"channels"`
	Tuning   *TuningConfig   `json:"tuning,omitempty"`
}

// Load reads and validates a rig config from a JSON file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("rig config must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat rig config: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("rig config too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read rig config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rig config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rig config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the rig description for internal consistency.
func (c *Config) Validate() error {
	if len(c.Devices) == 0 {
		return fmt.Errorf("no devices declared")
	}
	names := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		if d.Name == "" {
			return fmt.Errorf("device %d has no name", i)
		}
		if names[d.Name] {
			return fmt.Errorf("duplicate device name %q", d.Name)
		}
		names[d.Name] = true
		switch d.Class {
		case instrument.ClassGeneric, instrument.ClassIPS120, instrument.ClassMercuryIPS:
		default:
			return fmt.Errorf("device %q: unknown class %q", d.Name, d.Class)
		}
		switch d.Driver {
		case "scpi-serial", "ips120-gpib", "mercury-serial", "":
		default:
			return fmt.Errorf("device %q: unknown driver %q", d.Name, d.Driver)
		}
	}
	chans := make(map[string]bool, len(c.Channels))
	for i, ch := range c.Channels {
		if ch.Name == "" {
			return fmt.Errorf("channel %d has no name", i)
		}
		if chans[ch.Name] {
			return fmt.Errorf("duplicate channel name %q", ch.Name)
		}
		chans[ch.Name] = true
		if !names[ch.Device] {
			return fmt.Errorf("channel %q references unknown device %q", ch.Name, ch.Device)
		}
	}
	if c.Tuning != nil {
		if c.Tuning.SettleSeconds != nil && *c.Tuning.SettleSeconds < 0 {
			return fmt.Errorf("settle_seconds must not be negative")
		}
		if c.Tuning.MaxWaitSeconds != nil && *c.Tuning.MaxWaitSeconds < 0 {
			return fmt.Errorf("max_wait_seconds must not be negative")
		}
	}
	return nil
}

// DriveConfig returns the drive config with any tuning overrides applied.
func (c *Config) DriveConfig() drive.Config {
	cfg := drive.DefaultConfig()
	t := c.Tuning
	if t == nil {
		return cfg
	}
	if t.StepIntervalMs != nil {
		cfg.StepInterval = time.Duration(*t.StepIntervalMs) * time.Millisecond
	}
	if t.MagnetPollMs != nil {
		cfg.MagnetPollInterval = time.Duration(*t.MagnetPollMs) * time.Millisecond
	}
	if t.MagnetStallPolls != nil {
		cfg.MagnetStallPolls = *t.MagnetStallPolls
	}
	if t.MagnetMaxRate != nil {
		cfg.MagnetMaxRate = *t.MagnetMaxRate
	}
	if t.MercuryPollMs != nil {
		cfg.MercuryPollInterval = time.Duration(*t.MercuryPollMs) * time.Millisecond
	}
	if t.MercuryStuckPolls != nil {
		cfg.MercuryStuckPolls = *t.MercuryStuckPolls
	}
	if t.MaxWaitSeconds != nil {
		cfg.MaxWait = time.Duration(*t.MaxWaitSeconds * float64(time.Second))
	}
	return cfg
}

// SweepConfig returns the sweep config with any tuning overrides applied.
func (c *Config) SweepConfig() sweep.Config {
	cfg := sweep.DefaultConfig()
	t := c.Tuning
	if t == nil {
		return cfg
	}
	if t.SettleSeconds != nil {
		cfg.Settle = time.Duration(*t.SettleSeconds * float64(time.Second))
	}
	if t.StabilityPollSecs != nil {
		cfg.StabilityPollInterval = time.Duration(*t.StabilityPollSecs * float64(time.Second))
	}
	if t.RecordMaxPoints != nil {
		cfg.RecordMaxPoints = *t.RecordMaxPoints
	}
	return cfg
}

// OpenDevices builds the registry from real hardware drivers.
func (c *Config) OpenDevices() (*instrument.Registry, error) {
	return c.buildRegistry(openReal)
}

// SimDevices builds the registry from simulated devices for dev mode. The
// clock should be the same one the drive engine runs on.
func (c *Config) SimDevices(clock timeutil.Clock) (*instrument.Registry, error) {
	return c.buildRegistry(func(d DeviceConfig) (instrument.Device, error) {
		return openSim(d, clock)
	})
}

func (c *Config) buildRegistry(open func(DeviceConfig) (instrument.Device, error)) (*instrument.Registry, error) {
	reg := instrument.NewRegistry()
	for _, d := range c.Devices {
		dev, err := open(d)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", d.Name, err)
		}
		if _, err := reg.Register(d.Name, d.Class, dev); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func openReal(d DeviceConfig) (instrument.Device, error) {
	switch d.Driver {
	case "scpi-serial", "":
		return drivers.OpenSCPISerial(d.Name, d.Port, d.Baud, d.Variables)
	case "ips120-gpib":
		return drivers.OpenIPS120(d.Name, d.Port, d.Baud, d.GPIBAddress)
	case "mercury-serial":
		return drivers.OpenMercury(d.Name, d.Port, d.Baud)
	default:
		return nil, fmt.Errorf("unknown driver %q", d.Driver)
	}
}

func openSim(d DeviceConfig, clock timeutil.Clock) (instrument.Device, error) {
	initial := make(map[string]float64)
	for v := range d.Variables {
		initial[v] = 0
	}
	for v, x := range d.Initial {
		initial[v] = x
	}
	switch d.Class {
	case instrument.ClassIPS120:
		start := initial[drivers.FieldVariable]
		return instrument.NewSimRateMagnet(clock, drivers.FieldVariable, start), nil
	case instrument.ClassMercuryIPS:
		if len(initial) == 0 {
			initial = map[string]float64{"x": 0, "y": 0, "z": 0}
		}
		return instrument.NewSimStateMagnet(clock, initial), nil
	default:
		if len(initial) == 0 {
			return nil, fmt.Errorf("sim device needs variables or initial values")
		}
		return instrument.NewSimSource(initial), nil
	}
}

// MeasurementSet builds the ordered measurement set from the channel list.
func (c *Config) MeasurementSet(reg *instrument.Registry) (*instrument.MeasurementSet, error) {
	set := instrument.NewMeasurementSet()
	for _, ch := range c.Channels {
		entry, err := reg.Lookup(ch.Device)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", ch.Name, err)
		}
		if err := set.Add(ch.Name, entry.Device, ch.Variable); err != nil {
			return nil, err
		}
	}
	return set, nil
}
