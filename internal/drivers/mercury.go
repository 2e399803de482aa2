package drivers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/labsweep/internal/instrument"
)

// Mercury drives a MercuryiPS-style vector magnet PSU over serial SCPI.
// Each axis variable maps to one device group (x -> GRPX and so on); the
// controller ramps autonomously and reports HOLD/RTOS per axis.
type Mercury struct {
	name   string
	c      *conn
	groups map[string]string
}

// DefaultMercuryGroups maps the conventional axis variables to their
// MercuryiPS device groups.
func DefaultMercuryGroups() map[string]string {
	return map[string]string{"x": "GRPX", "y": "GRPY", "z": "GRPZ"}
}

// NewMercury wraps a transport with the given axis-to-group table.
func NewMercury(name string, tr Transport, groups map[string]string) *Mercury {
	if groups == nil {
		groups = DefaultMercuryGroups()
	}
	return &Mercury{name: name, c: newConn(tr, "\r\n"), groups: groups}
}

func (d *Mercury) group(variable string) (string, error) {
	g, ok := d.groups[variable]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", instrument.ErrUnknownVariable, d.name, variable)
	}
	return g, nil
}

// set issues a SET command and checks the echoed reply for validity. The
// controller answers every command; an ":INVALID" tail marks a rejected
// one.
func (d *Mercury) set(cmd string) error {
	reply, err := d.c.ask(cmd)
	if err != nil {
		return err
	}
	if strings.HasSuffix(reply, ":INVALID") {
		return fmt.Errorf("%s: command %q rejected: %s", d.name, cmd, reply)
	}
	return nil
}

// parseSignal extracts the numeric value from a reply such as
// "STAT:DEV:GRPZ:PSU:SIG:FLD:1.2000T" where the final segment carries a
// unit suffix.
func parseSignal(reply string) (float64, error) {
	parts := strings.Split(reply, ":")
	last := parts[len(parts)-1]
	last = strings.TrimRight(last, "TAVKm/")
	return strconv.ParseFloat(last, 64)
}

// Read queries the output field of one axis.
func (d *Mercury) Read(variable string) (float64, error) {
	g, err := d.group(variable)
	if err != nil {
		return 0, err
	}
	reply, err := d.c.ask(fmt.Sprintf("READ:DEV:%s:PSU:SIG:FLD", g))
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", d.name, variable, err)
	}
	v, err := parseSignal(reply)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: parse reply %q: %w", d.name, variable, reply, err)
	}
	return v, nil
}

// Write sets one axis's field target and starts it ramping to setpoint.
func (d *Mercury) Write(variable string, value float64) error {
	g, err := d.group(variable)
	if err != nil {
		return err
	}
	if err := d.set(fmt.Sprintf("SET:DEV:%s:PSU:SIG:FSET:%.4f", g, value)); err != nil {
		return fmt.Errorf("%s.%s: set target: %w", d.name, variable, err)
	}
	if err := d.set(fmt.Sprintf("SET:DEV:%s:PSU:ACTN:RTOS", g)); err != nil {
		return fmt.Errorf("%s.%s: ramp to setpoint: %w", d.name, variable, err)
	}
	return nil
}

// WriteRate sets one axis's field ramp rate in tesla per minute.
func (d *Mercury) WriteRate(variable string, perMinute float64) error {
	g, err := d.group(variable)
	if err != nil {
		return err
	}
	if err := d.set(fmt.Sprintf("SET:DEV:%s:PSU:SIG:RFST:%.4f", g, perMinute)); err != nil {
		return fmt.Errorf("%s.%s: set rate: %w", d.name, variable, err)
	}
	return nil
}

// ReadStatus queries one axis's ramp action state.
func (d *Mercury) ReadStatus(variable string) (instrument.Status, error) {
	g, err := d.group(variable)
	if err != nil {
		return instrument.StatusMoving, err
	}
	reply, err := d.c.ask(fmt.Sprintf("READ:DEV:%s:PSU:ACTN", g))
	if err != nil {
		return instrument.StatusMoving, fmt.Errorf("%s.%s: %w", d.name, variable, err)
	}
	if strings.HasSuffix(reply, ":HOLD") {
		return instrument.StatusHold, nil
	}
	return instrument.StatusMoving, nil
}

// Hold forces one axis into HOLD.
func (d *Mercury) Hold(variable string) error {
	g, err := d.group(variable)
	if err != nil {
		return err
	}
	if err := d.set(fmt.Sprintf("SET:DEV:%s:PSU:ACTN:HOLD", g)); err != nil {
		return fmt.Errorf("%s.%s: hold: %w", d.name, variable, err)
	}
	return nil
}

// Close closes the underlying transport.
func (d *Mercury) Close() error {
	return d.c.Close()
}
