package rigconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/labsweep/internal/drive"
	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/timeutil"
)

const validConfig = `{
	"data_dir": "data",
	"devices": [
		{
			"name": "gate",
			"class": "generic",
			"driver": "scpi-serial",
			"port": "/dev/ttyUSB0",
			"variables": {
				"dcv": {"read": "MEAS:VOLT:DC?", "write": "SOUR:VOLT %.6f"}
			}
		},
		{
			"name": "magnet",
			"class": "ips120",
			"driver": "ips120-gpib",
			"port": "/dev/ttyUSB1",
			"gpib_address": 25
		},
		{
			"name": "vector",
			"class": "mercury-ips",
			"driver": "mercury-serial",
			"port": "/dev/ttyUSB2"
		}
	],
	"channels": [
		{"name": "vxx", "device": "gate", "variable": "dcv"},
		{"name": "field", "device": "magnet", "variable": "field"}
	],
	"tuning": {
		"settle_seconds": 0.5,
		"step_interval_ms": 50,
		"magnet_stall_polls": 8
	}
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rig.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	require.Len(t, cfg.Devices, 3)
	assert.Equal(t, instrument.ClassIPS120, cfg.Devices[1].Class)
	assert.Equal(t, 25, cfg.Devices[1].GPIBAddress)
	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, "vxx", cfg.Channels[0].Name)
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadMalformedJSON(t *testing.T) {
	_, err := Load(writeConfig(t, "{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse rig config")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Devices: []DeviceConfig{
				{Name: "gate", Class: instrument.ClassGeneric, Driver: "scpi-serial"},
			},
			Channels: []ChannelConfig{
				{Name: "vxx", Device: "gate", Variable: "dcv"},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no devices", func(c *Config) { c.Devices = nil }, "no devices"},
		{"unnamed device", func(c *Config) { c.Devices[0].Name = "" }, "has no name"},
		{"duplicate device", func(c *Config) {
			c.Devices = append(c.Devices, c.Devices[0])
		}, "duplicate device"},
		{"bad class", func(c *Config) { c.Devices[0].Class = "quantum" }, "unknown class"},
		{"bad driver", func(c *Config) { c.Devices[0].Driver = "usb-tmc" }, "unknown driver"},
		{"unnamed channel", func(c *Config) { c.Channels[0].Name = "" }, "has no name"},
		{"duplicate channel", func(c *Config) {
			c.Channels = append(c.Channels, c.Channels[0])
		}, "duplicate channel"},
		{"dangling channel", func(c *Config) { c.Channels[0].Device = "ghost" }, "unknown device"},
		{"negative settle", func(c *Config) {
			neg := -1.0
			c.Tuning = &TuningConfig{SettleSeconds: &neg}
		}, "settle_seconds"},
		{"negative max wait", func(c *Config) {
			neg := -1.0
			c.Tuning = &TuningConfig{MaxWaitSeconds: &neg}
		}, "max_wait_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestTuningOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	dc := cfg.DriveConfig()
	assert.Equal(t, 50*time.Millisecond, dc.StepInterval)
	assert.Equal(t, 8, dc.MagnetStallPolls)
	// Untouched fields keep their defaults.
	assert.Equal(t, drive.DefaultConfig().MagnetPollInterval, dc.MagnetPollInterval)
	assert.Equal(t, drive.DefaultConfig().MagnetMaxRate, dc.MagnetMaxRate)

	sc := cfg.SweepConfig()
	assert.Equal(t, 500*time.Millisecond, sc.Settle)
}

func TestTuningDefaultsWhenAbsent(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, drive.DefaultConfig(), cfg.DriveConfig())
}

func TestSimDevices(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	reg, err := cfg.SimDevices(clock)
	require.NoError(t, err)

	gate, err := reg.Lookup("gate")
	require.NoError(t, err)
	v, err := gate.Device.Read("dcv")
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	// The sim ips120 satisfies the rate-limited magnet capability.
	magnet, err := reg.Lookup("magnet")
	require.NoError(t, err)
	_, ok := magnet.Device.(instrument.RateLimitedMagnet)
	assert.True(t, ok)

	vector, err := reg.Lookup("vector")
	require.NoError(t, err)
	_, ok = vector.Device.(instrument.StatePolledMagnet)
	assert.True(t, ok)
}

func TestSimDeviceWithoutVariables(t *testing.T) {
	cfg := &Config{Devices: []DeviceConfig{{Name: "bare", Class: instrument.ClassGeneric}}}
	clock := timeutil.NewMockClock(time.Now())
	_, err := cfg.SimDevices(clock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bare")
}

func TestMeasurementSetOrder(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	clock := timeutil.NewMockClock(time.Now())
	reg, err := cfg.SimDevices(clock)
	require.NoError(t, err)

	set, err := cfg.MeasurementSet(reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"vxx", "field"}, set.Names())
}

func TestMeasurementSetDanglingDevice(t *testing.T) {
	cfg := &Config{
		Devices:  []DeviceConfig{{Name: "gate", Class: instrument.ClassGeneric, Initial: map[string]float64{"dcv": 0}}},
		Channels: []ChannelConfig{{Name: "vxx", Device: "ghost", Variable: "dcv"}},
	}
	clock := timeutil.NewMockClock(time.Now())
	reg, err := cfg.SimDevices(clock)
	require.NoError(t, err)

	_, err = cfg.MeasurementSet(reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, instrument.ErrUnknownDevice)
}
