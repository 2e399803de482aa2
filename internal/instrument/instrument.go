// Package instrument defines the capability surface of the lab instruments
// the sweep engine drives, plus the registry and measurement set that bind
// short names to device variables.
package instrument

import (
	"errors"
	"fmt"
)

// Device is the minimal capability every instrument exposes: named scalar
// variables that can be read and written synchronously.
type Device interface {
	// Read returns the current value of the named variable.
	Read(variable string) (float64, error)

	// Write sets the named variable to value.
	Write(variable string, value float64) error
}

// Status is the reported ramp state of a state-polled magnet controller.
type Status int

const (
	// StatusHold means the controller is holding at its setpoint.
	StatusHold Status = iota
	// StatusMoving means the controller is ramping toward its setpoint.
	StatusMoving
)

func (s Status) String() string {
	switch s {
	case StatusHold:
		return "HOLD"
	case StatusMoving:
		return "MOVING"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// RateLimitedMagnet is a magnet PSU that takes a ramp rate in units per
// minute and reports values at a fixed decimal precision (IPS120-style).
type RateLimitedMagnet interface {
	Device

	// WriteRate sets the ramp rate in units per minute.
	WriteRate(perMinute float64) error

	// Precision returns the number of decimal places the controller
	// reports values at.
	Precision() int
}

// StatePolledMagnet is a magnet PSU whose axes ramp autonomously and report
// a HOLD/MOVING state (MercuryiPS-style). Rates, status and hold are all
// per axis; the axis is named by the same variable used for Read/Write.
type StatePolledMagnet interface {
	Device

	// WriteRate sets the ramp rate for one axis in units per minute.
	WriteRate(variable string, perMinute float64) error

	// ReadStatus returns the ramp state of one axis.
	ReadStatus(variable string) (Status, error)

	// Hold forces one axis into the HOLD state.
	Hold(variable string) error
}

// Class selects the convergence policy used to move a device. It is fixed
// at registration time; nothing inspects the live value type per call.
type Class string

const (
	// ClassGeneric is any device that accepts a setpoint instantly.
	ClassGeneric Class = "generic"
	// ClassIPS120 is a rate-limited magnet PSU.
	ClassIPS120 Class = "ips120"
	// ClassMercuryIPS is a state-polled magnet PSU.
	ClassMercuryIPS Class = "mercury-ips"
)

var (
	// ErrUnknownDevice is returned when a name is not in the registry.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrUnknownVariable is returned by drivers for a variable they do
	// not expose.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrCapability is returned at registration when a device value does
	// not satisfy the interface its class requires.
	ErrCapability = errors.New("device does not satisfy class capability")
)

// Entry is one registered device: its short name, its class tag, and the
// device value itself.
type Entry struct {
	Name   string
	Class  Class
	Device Device
}

// Registry maps short device names to registered entries. Registration
// validates the class capability once so the drive engine never has to
// type-inspect mid-move.
type Registry struct {
	entries map[string]*Entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a device under name with the given class tag. It fails if
// the name is taken, the class is unknown, or the device value does not
// implement the interface the class requires.
func (r *Registry) Register(name string, class Class, dev Device) (*Entry, error) {
	if name == "" {
		return nil, fmt.Errorf("device name must not be empty")
	}
	if _, ok := r.entries[name]; ok {
		return nil, fmt.Errorf("device %q already registered", name)
	}
	switch class {
	case ClassGeneric:
		// Read/Write is enough.
	case ClassIPS120:
		if _, ok := dev.(RateLimitedMagnet); !ok {
			return nil, fmt.Errorf("%w: %q registered as %s but has no rate-limited capability", ErrCapability, name, class)
		}
	case ClassMercuryIPS:
		if _, ok := dev.(StatePolledMagnet); !ok {
			return nil, fmt.Errorf("%w: %q registered as %s but has no state-polled capability", ErrCapability, name, class)
		}
	default:
		return nil, fmt.Errorf("unknown device class %q", class)
	}
	e := &Entry{Name: name, Class: class, Device: dev}
	r.entries[name] = e
	r.order = append(r.order, name)
	return e, nil
}

// Lookup returns the entry registered under name.
func (r *Registry) Lookup(name string) (*Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return e, nil
}

// Names returns the registered device names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
