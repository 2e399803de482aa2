package instrument

import (
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/labsweep/internal/timeutil"
)

// SimSource is a simulated generic instrument: writes take effect
// immediately and reads return the last written value. Used by dev mode and
// by package tests.
type SimSource struct {
	mu     sync.Mutex
	values map[string]float64
}

// NewSimSource creates a simulated source with the given initial values.
// Variables not present in the map are unknown to the device.
func NewSimSource(initial map[string]float64) *SimSource {
	values := make(map[string]float64, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &SimSource{values: values}
}

// Read returns the current value of variable.
func (s *SimSource) Read(variable string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[variable]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariable, variable)
	}
	return v, nil
}

// Write sets variable to value immediately.
func (s *SimSource) Write(variable string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[variable]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVariable, variable)
	}
	s.values[variable] = value
	return nil
}

// SimRateMagnet simulates an IPS120-style rate-limited magnet PSU with a
// single field variable. The field ramps toward its setpoint at the written
// rate as observed through the clock, so tests driving a MockClock see the
// ramp progress exactly as fast as they sleep.
type SimRateMagnet struct {
	mu        sync.Mutex
	clock     timeutil.Clock
	variable  string
	value     float64
	target    float64
	perMinute float64
	lastTick  time.Time
}

// NewSimRateMagnet creates a simulated rate-limited magnet whose field
// variable starts at initial.
func NewSimRateMagnet(clock timeutil.Clock, variable string, initial float64) *SimRateMagnet {
	return &SimRateMagnet{
		clock:     clock,
		variable:  variable,
		value:     initial,
		target:    initial,
		perMinute: 0.1,
		lastTick:  clock.Now(),
	}
}

// advance moves the simulated field toward its target by the elapsed clock
// time at the current rate. Callers must hold mu.
func (s *SimRateMagnet) advance() {
	now := s.clock.Now()
	dt := now.Sub(s.lastTick).Seconds()
	s.lastTick = now
	if dt <= 0 || s.value == s.target {
		return
	}
	step := s.perMinute / 60 * dt
	if s.value < s.target {
		s.value += step
		if s.value > s.target {
			s.value = s.target
		}
	} else {
		s.value -= step
		if s.value < s.target {
			s.value = s.target
		}
	}
}

// Read returns the current simulated field value.
func (s *SimRateMagnet) Read(variable string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if variable != s.variable {
		return 0, fmt.Errorf("%w: %q", ErrUnknownVariable, variable)
	}
	s.advance()
	return s.value, nil
}

// Write sets the field setpoint; the value ramps toward it.
func (s *SimRateMagnet) Write(variable string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if variable != s.variable {
		return fmt.Errorf("%w: %q", ErrUnknownVariable, variable)
	}
	s.advance()
	s.target = value
	return nil
}

// WriteRate sets the ramp rate in units per minute.
func (s *SimRateMagnet) WriteRate(perMinute float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	s.perMinute = perMinute
	return nil
}

// Precision reports 4 decimal places, matching the real controller.
func (s *SimRateMagnet) Precision() int { return 4 }

type simAxis struct {
	value     float64
	target    float64
	perMinute float64
	holding   bool
}

// SimStateMagnet simulates a MercuryiPS-style state-polled magnet PSU with
// one independently ramping field per axis variable.
type SimStateMagnet struct {
	mu       sync.Mutex
	clock    timeutil.Clock
	axes     map[string]*simAxis
	lastTick time.Time
}

// NewSimStateMagnet creates a simulated state-polled magnet with the given
// axis variables, all starting at the mapped values and holding.
func NewSimStateMagnet(clock timeutil.Clock, initial map[string]float64) *SimStateMagnet {
	axes := make(map[string]*simAxis, len(initial))
	for name, v := range initial {
		axes[name] = &simAxis{value: v, target: v, perMinute: 0.1, holding: true}
	}
	return &SimStateMagnet{clock: clock, axes: axes, lastTick: clock.Now()}
}

func (s *SimStateMagnet) axis(variable string) (*simAxis, error) {
	a, ok := s.axes[variable]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariable, variable)
	}
	return a, nil
}

// advance ramps every non-holding axis toward its target by the elapsed
// clock time. Callers must hold mu.
func (s *SimStateMagnet) advance() {
	now := s.clock.Now()
	dt := now.Sub(s.lastTick).Seconds()
	s.lastTick = now
	if dt <= 0 {
		return
	}
	for _, a := range s.axes {
		if a.holding || a.value == a.target {
			continue
		}
		step := a.perMinute / 60 * dt
		if a.value < a.target {
			a.value += step
			if a.value > a.target {
				a.value = a.target
			}
		} else {
			a.value -= step
			if a.value < a.target {
				a.value = a.target
			}
		}
		if a.value == a.target {
			a.holding = true
		}
	}
}

// Read returns the current value of one axis.
func (s *SimStateMagnet) Read(variable string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.axis(variable)
	if err != nil {
		return 0, err
	}
	s.advance()
	return a.value, nil
}

// Write sets one axis's setpoint and starts it ramping.
func (s *SimStateMagnet) Write(variable string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.axis(variable)
	if err != nil {
		return err
	}
	s.advance()
	a.target = value
	a.holding = a.value == a.target
	return nil
}

// WriteRate sets one axis's ramp rate in units per minute.
func (s *SimStateMagnet) WriteRate(variable string, perMinute float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.axis(variable)
	if err != nil {
		return err
	}
	s.advance()
	a.perMinute = perMinute
	return nil
}

// ReadStatus returns HOLD once the axis has reached its setpoint.
func (s *SimStateMagnet) ReadStatus(variable string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.axis(variable)
	if err != nil {
		return StatusMoving, err
	}
	s.advance()
	if a.holding {
		return StatusHold, nil
	}
	return StatusMoving, nil
}

// Hold freezes one axis at its current value.
func (s *SimStateMagnet) Hold(variable string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.axis(variable)
	if err != nil {
		return err
	}
	s.advance()
	a.target = a.value
	a.holding = true
	return nil
}
