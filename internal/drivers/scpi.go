package drivers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/labsweep/internal/instrument"
)

// VariableSpec maps one logical variable to its SCPI strings: a read query
// and an optional write format taking the value as its single argument. A
// variable with no write format is read-only.
type VariableSpec struct {
	ReadQuery   string `json:"read"`
	WriteFormat string `json:"write,omitempty"`
}

// SCPIDevice is a table-driven SCPI instrument over a line transport. It
// covers plain sources and meters (the generic device class): writes take
// effect as soon as the command is accepted.
type SCPIDevice struct {
	name string
	c    *conn
	vars map[string]VariableSpec
}

// NewSCPIDevice wraps a transport with the given variable table. The
// terminator is the usual SCPI newline.
func NewSCPIDevice(name string, tr Transport, vars map[string]VariableSpec) *SCPIDevice {
	return &SCPIDevice{name: name, c: newConn(tr, "\n"), vars: vars}
}

func (d *SCPIDevice) spec(variable string) (VariableSpec, error) {
	vs, ok := d.vars[variable]
	if !ok {
		return VariableSpec{}, fmt.Errorf("%w: %s.%s", instrument.ErrUnknownVariable, d.name, variable)
	}
	return vs, nil
}

// Read issues the variable's read query and parses the numeric reply.
func (d *SCPIDevice) Read(variable string) (float64, error) {
	vs, err := d.spec(variable)
	if err != nil {
		return 0, err
	}
	reply, err := d.c.ask(vs.ReadQuery)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", d.name, variable, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, fmt.Errorf("%s.%s: parse reply %q: %w", d.name, variable, reply, err)
	}
	return v, nil
}

// Write formats and issues the variable's write command.
func (d *SCPIDevice) Write(variable string, value float64) error {
	vs, err := d.spec(variable)
	if err != nil {
		return err
	}
	if vs.WriteFormat == "" {
		return fmt.Errorf("%s.%s is read-only", d.name, variable)
	}
	if err := d.c.send(fmt.Sprintf(vs.WriteFormat, value)); err != nil {
		return fmt.Errorf("%s.%s: %w", d.name, variable, err)
	}
	return nil
}

// Close closes the underlying transport.
func (d *SCPIDevice) Close() error {
	return d.c.Close()
}
