// Package drive implements the convergence engine: it moves one variable of
// one registered device to a target setpoint and blocks until the device has
// settled, using a per-class policy.
package drive

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/monitoring"
	"github.com/banshee-data/labsweep/internal/timeutil"
	"github.com/banshee-data/labsweep/internal/units"
)

var (
	// ErrInvalidRate is returned when a zero or negative rate is requested
	// for a move with a nonzero displacement.
	ErrInvalidRate = errors.New("invalid move rate")

	// ErrNotConverged is returned when a magnet policy exceeds the
	// configured MaxWait without settling. With the default unbounded
	// MaxWait it is never returned.
	ErrNotConverged = errors.New("device did not converge")
)

// Config holds the tuned timing constants of the three convergence
// policies. The defaults reproduce the behaviour the policies were tuned to
// on real hardware; override individual fields only when the hardware
// timing genuinely differs.
type Config struct {
	// StepInterval is the pause between successive setpoint writes of the
	// generic linear-ramp policy.
	StepInterval time.Duration

	// StepPrecision is the decimal precision the generic policy rounds
	// its intermediate setpoints to.
	StepPrecision int

	// MagnetPollInterval is the poll cadence of the rate-limited policy.
	MagnetPollInterval time.Duration

	// MagnetStallPolls is the number of consecutive non-matching polls
	// after which the rate-limited policy re-issues the setpoint write.
	MagnetStallPolls int

	// MagnetMaxRate and MagnetMinRate clamp and floor the per-minute ramp
	// rate written to a rate-limited magnet.
	MagnetMaxRate float64
	MagnetMinRate float64

	// MercuryPollInterval is the poll cadence of the state-polled policy.
	MercuryPollInterval time.Duration

	// MercuryMaxRate and MercuryMinRate clamp and floor the per-minute
	// ramp rate written to a state-polled magnet axis.
	MercuryMaxRate float64
	MercuryMinRate float64

	// MercuryTolerance is the settlement band of the state-polled policy.
	MercuryTolerance float64

	// MercuryStuckPolls is the number of consecutive no-progress polls
	// after which the state-polled policy forces HOLD and re-issues the
	// setpoint.
	MercuryStuckPolls int

	// MaxWait bounds the total wait of the two magnet policies. Zero
	// means unbounded, which matches the original behaviour and is the
	// default.
	MaxWait time.Duration
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		StepInterval:        20 * time.Millisecond,
		StepPrecision:       3,
		MagnetPollInterval:  200 * time.Millisecond,
		MagnetStallPolls:    5,
		MagnetMaxRate:       0.4,
		MagnetMinRate:       0.1,
		MercuryPollInterval: 500 * time.Millisecond,
		MercuryMaxRate:      0.2,
		MercuryMinRate:      0.1,
		MercuryTolerance:    1e-4,
		MercuryStuckPolls:   10,
	}
}

// Engine moves device variables to setpoints. All pauses go through its
// Clock so tests can run convergence loops without real waiting.
type Engine struct {
	cfg   Config
	clock timeutil.Clock
}

// New creates an engine with the given config and clock.
func New(cfg Config, clock timeutil.Clock) *Engine {
	return &Engine{cfg: cfg, clock: clock}
}

// Move drives variable of the registered device toward setpoint at the
// requested rate (device units per second) and returns once the policy's
// settlement condition holds. The policy is selected by the entry's class.
func (e *Engine) Move(entry *instrument.Entry, variable string, setpoint, rate float64) error {
	switch entry.Class {
	case instrument.ClassIPS120:
		return e.moveRateLimited(entry, variable, setpoint, rate)
	case instrument.ClassMercuryIPS:
		return e.moveStatePolled(entry, variable, setpoint, rate)
	default:
		return e.moveGeneric(entry, variable, setpoint, rate)
	}
}

// moveGeneric ramps a plain device by writing a sequence of intermediate
// setpoints at StepInterval cadence. Devices of this class accept a
// setpoint instantly, so there is no settlement check beyond the final
// write.
func (e *Engine) moveGeneric(entry *instrument.Entry, variable string, setpoint, rate float64) error {
	v0, err := entry.Device.Read(variable)
	if err != nil {
		return fmt.Errorf("move %s.%s: read current value: %w", entry.Name, variable, err)
	}
	if v0 == setpoint {
		return nil
	}
	if rate <= 0 {
		return fmt.Errorf("%w: rate %g for move of %s.%s from %g to %g",
			ErrInvalidRate, rate, entry.Name, variable, v0, setpoint)
	}

	dt := e.cfg.StepInterval.Seconds()
	steps := int(units.RoundTo(abs(setpoint-v0)/rate/dt, 0))
	if steps == 0 {
		// Displacement smaller than one step: already at target for this
		// policy's purposes.
		return nil
	}

	monitoring.Logf("[drive] %s.%s: %g -> %g in %d steps at %g/s", entry.Name, variable, v0, setpoint, steps, rate)
	for i := 1; i <= steps; i++ {
		v := v0 + (setpoint-v0)*float64(i)/float64(steps)
		if i == steps {
			v = setpoint
		} else {
			v = units.RoundTo(v, e.cfg.StepPrecision)
		}
		if err := entry.Device.Write(variable, v); err != nil {
			return fmt.Errorf("move %s.%s: write step %d/%d: %w", entry.Name, variable, i, steps, err)
		}
		e.clock.Sleep(e.cfg.StepInterval)
	}
	return nil
}

// moveRateLimited writes a clamped per-minute ramp rate and a single
// rounded setpoint, then polls at MagnetPollInterval until the rounded
// reading matches. After MagnetStallPolls consecutive mismatches it
// re-issues the setpoint once per stall and keeps polling.
func (e *Engine) moveRateLimited(entry *instrument.Entry, variable string, setpoint, rate float64) error {
	magnet, ok := entry.Device.(instrument.RateLimitedMagnet)
	if !ok {
		return fmt.Errorf("%w: %s", instrument.ErrCapability, entry.Name)
	}
	precision := magnet.Precision()
	target := units.RoundTo(setpoint, precision)

	cur, err := magnet.Read(variable)
	if err != nil {
		return fmt.Errorf("move %s.%s: read current value: %w", entry.Name, variable, err)
	}
	if units.RoundTo(cur, precision) == target {
		return nil
	}

	perMinute := units.Clamp(units.PerMinute(rate), 0, e.cfg.MagnetMaxRate)
	if units.RoundTo(perMinute, 1) == 0 {
		// A rate that rounds to zero would stall the ramp entirely.
		perMinute = e.cfg.MagnetMinRate
	}
	if err := magnet.WriteRate(perMinute); err != nil {
		return fmt.Errorf("move %s.%s: write rate: %w", entry.Name, variable, err)
	}
	if err := magnet.Write(variable, target); err != nil {
		return fmt.Errorf("move %s.%s: write setpoint: %w", entry.Name, variable, err)
	}
	monitoring.Logf("[drive] %s.%s: ramping %g -> %g at %g/min", entry.Name, variable, cur, target, perMinute)

	started := e.clock.Now()
	stalls := 0
	for {
		e.clock.Sleep(e.cfg.MagnetPollInterval)
		cur, err = magnet.Read(variable)
		if err != nil {
			return fmt.Errorf("move %s.%s: poll: %w", entry.Name, variable, err)
		}
		if units.RoundTo(cur, precision) == target {
			return nil
		}
		stalls++
		if stalls >= e.cfg.MagnetStallPolls {
			monitoring.Logf("[drive] %s.%s: no match after %d polls, re-issuing setpoint %g", entry.Name, variable, stalls, target)
			if err := magnet.Write(variable, target); err != nil {
				return fmt.Errorf("move %s.%s: re-issue setpoint: %w", entry.Name, variable, err)
			}
			stalls = 0
		}
		if e.cfg.MaxWait > 0 && e.clock.Since(started) > e.cfg.MaxWait {
			return fmt.Errorf("%w: %s.%s still at %g after %s (target %g)",
				ErrNotConverged, entry.Name, variable, cur, e.cfg.MaxWait, target)
		}
	}
}

// moveStatePolled writes an axis rate and the setpoint, then polls status
// and value until the axis reports HOLD within tolerance of the target. If
// the axis is not holding and the value makes no progress for
// MercuryStuckPolls consecutive polls, it forces HOLD and re-issues the
// setpoint to recover a stuck ramp.
func (e *Engine) moveStatePolled(entry *instrument.Entry, variable string, setpoint, rate float64) error {
	magnet, ok := entry.Device.(instrument.StatePolledMagnet)
	if !ok {
		return fmt.Errorf("%w: %s", instrument.ErrCapability, entry.Name)
	}

	cur, err := magnet.Read(variable)
	if err != nil {
		return fmt.Errorf("move %s.%s: read current value: %w", entry.Name, variable, err)
	}
	status, err := magnet.ReadStatus(variable)
	if err != nil {
		return fmt.Errorf("move %s.%s: read status: %w", entry.Name, variable, err)
	}
	if status == instrument.StatusHold && units.Within(cur, setpoint, e.cfg.MercuryTolerance) {
		return nil
	}

	perMinute := units.Clamp(units.PerMinute(rate), 0, e.cfg.MercuryMaxRate)
	if units.RoundTo(perMinute, 1) == 0 {
		perMinute = e.cfg.MercuryMinRate
	}
	if err := magnet.WriteRate(variable, perMinute); err != nil {
		return fmt.Errorf("move %s.%s: write rate: %w", entry.Name, variable, err)
	}
	if err := magnet.Write(variable, setpoint); err != nil {
		return fmt.Errorf("move %s.%s: write setpoint: %w", entry.Name, variable, err)
	}
	monitoring.Logf("[drive] %s.%s: ramping %g -> %g at %g/min", entry.Name, variable, cur, setpoint, perMinute)

	started := e.clock.Now()
	last := cur
	stuck := 0
	for {
		e.clock.Sleep(e.cfg.MercuryPollInterval)
		status, err = magnet.ReadStatus(variable)
		if err != nil {
			return fmt.Errorf("move %s.%s: poll status: %w", entry.Name, variable, err)
		}
		cur, err = magnet.Read(variable)
		if err != nil {
			return fmt.Errorf("move %s.%s: poll value: %w", entry.Name, variable, err)
		}

		if status == instrument.StatusHold && units.Within(cur, setpoint, e.cfg.MercuryTolerance) {
			return nil
		}

		if status != instrument.StatusHold && units.Within(cur, last, e.cfg.MercuryTolerance) {
			stuck++
			if stuck >= e.cfg.MercuryStuckPolls {
				monitoring.Logf("[drive] %s.%s: stuck at %g for %d polls, forcing hold and re-issuing setpoint %g",
					entry.Name, variable, cur, stuck, setpoint)
				if err := magnet.Hold(variable); err != nil {
					return fmt.Errorf("move %s.%s: force hold: %w", entry.Name, variable, err)
				}
				if err := magnet.Write(variable, setpoint); err != nil {
					return fmt.Errorf("move %s.%s: re-issue setpoint: %w", entry.Name, variable, err)
				}
				stuck = 0
			}
		} else {
			stuck = 0
		}
		last = cur

		if e.cfg.MaxWait > 0 && e.clock.Since(started) > e.cfg.MaxWait {
			return fmt.Errorf("%w: %s.%s still %s at %g after %s (target %g)",
				ErrNotConverged, entry.Name, variable, status, cur, e.cfg.MaxWait, setpoint)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
