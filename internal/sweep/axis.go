package sweep

import (
	"fmt"

	"github.com/banshee-data/labsweep/internal/instrument"
)

// Axis describes one sweep dimension: which device variable to move, the
// range, the move rate and the number of points. Immutable once a sweep
// begins.
type Axis struct {
	Entry    *instrument.Entry
	Variable string
	Start    float64
	Stop     float64
	Rate     float64
	Points   int

	// Name is the column name for this axis's setpoint. Defaults to
	// "<device>:<variable>" when empty.
	Name string
}

// Label returns the axis's column name.
func (a Axis) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("%s:%s", a.Entry.Name, a.Variable)
}

// Describe renders the axis range for the data-file description line.
func (a Axis) Describe() string {
	return fmt.Sprintf("%s %g to %g at %g/s, %d points", a.Label(), a.Start, a.Stop, a.Rate, a.Points)
}

// curve materialises the axis's setpoint sequence.
func (a Axis) curve(scale Scale) ([]float64, error) {
	c, err := Curve(a.Start, a.Stop, a.Points, scale)
	if err != nil {
		return nil, fmt.Errorf("axis %s: %w", a.Label(), err)
	}
	return c, nil
}
