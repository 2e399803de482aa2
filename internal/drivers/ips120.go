package drivers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/labsweep/internal/instrument"
)

// QueryCommander is the subset of the Prologix GPIB controller the IPS120
// driver uses. prologix.Controller satisfies it.
type QueryCommander interface {
	Query(query string) (string, error)
	Command(format string, a ...interface{}) error
}

// FieldVariable is the single variable an IPS120 exposes.
const FieldVariable = "field"

// ips120Precision is the decimal precision the controller reports field
// values at.
const ips120Precision = 4

// IPS120 drives an Oxford IPS120-style superconducting magnet PSU over a
// Prologix GPIB controller. The X command-set verbs used: R7 reads the
// output field, $J sets the field setpoint, $T sets the sweep rate, $A1
// ramps to setpoint, $A0 holds.
type IPS120 struct {
	name string
	gpib QueryCommander
}

// NewIPS120 wraps a GPIB controller as a rate-limited magnet device.
func NewIPS120(name string, gpib QueryCommander) *IPS120 {
	return &IPS120{name: name, gpib: gpib}
}

// Read queries the output field (R7). Replies look like "R+0.5000".
func (d *IPS120) Read(variable string) (float64, error) {
	if variable != FieldVariable {
		return 0, fmt.Errorf("%w: %s.%s", instrument.ErrUnknownVariable, d.name, variable)
	}
	reply, err := d.gpib.Query("R7")
	if err != nil {
		return 0, fmt.Errorf("%s: query field: %w", d.name, err)
	}
	s := strings.TrimSpace(reply)
	s = strings.TrimPrefix(s, "R")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parse field reply %q: %w", d.name, reply, err)
	}
	return v, nil
}

// Write sets the field setpoint ($J) and starts the ramp ($A1).
func (d *IPS120) Write(variable string, value float64) error {
	if variable != FieldVariable {
		return fmt.Errorf("%w: %s.%s", instrument.ErrUnknownVariable, d.name, variable)
	}
	if err := d.gpib.Command("$J%.4f", value); err != nil {
		return fmt.Errorf("%s: set field setpoint: %w", d.name, err)
	}
	if err := d.gpib.Command("$A1"); err != nil {
		return fmt.Errorf("%s: ramp to setpoint: %w", d.name, err)
	}
	return nil
}

// WriteRate sets the field sweep rate in tesla per minute ($T).
func (d *IPS120) WriteRate(perMinute float64) error {
	if err := d.gpib.Command("$T%.4f", perMinute); err != nil {
		return fmt.Errorf("%s: set sweep rate: %w", d.name, err)
	}
	return nil
}

// Hold stops the ramp at the present field ($A0).
func (d *IPS120) Hold() error {
	if err := d.gpib.Command("$A0"); err != nil {
		return fmt.Errorf("%s: hold: %w", d.name, err)
	}
	return nil
}

// Precision reports the controller's 4 decimal places.
func (d *IPS120) Precision() int { return ips120Precision }
