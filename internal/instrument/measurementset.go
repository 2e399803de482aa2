package instrument

import "fmt"

// Channel binds a logical column name to one variable of one device.
type Channel struct {
	Name     string
	Device   Device
	Variable string
}

// MeasurementSet is the ordered mapping of channel name to channel that
// defines the measured columns of every emitted row. Insertion order is the
// column order; the set is read-only for the duration of a run.
type MeasurementSet struct {
	channels []Channel
	index    map[string]int
}

// NewMeasurementSet returns an empty measurement set.
func NewMeasurementSet() *MeasurementSet {
	return &MeasurementSet{index: make(map[string]int)}
}

// Add appends a channel. Channel names must be unique within the set.
func (m *MeasurementSet) Add(name string, dev Device, variable string) error {
	if name == "" {
		return fmt.Errorf("channel name must not be empty")
	}
	if _, ok := m.index[name]; ok {
		return fmt.Errorf("channel %q already in measurement set", name)
	}
	m.index[name] = len(m.channels)
	m.channels = append(m.channels, Channel{Name: name, Device: dev, Variable: variable})
	return nil
}

// Len returns the number of channels.
func (m *MeasurementSet) Len() int {
	return len(m.channels)
}

// Channels returns the channels in insertion order.
func (m *MeasurementSet) Channels() []Channel {
	out := make([]Channel, len(m.channels))
	copy(out, m.channels)
	return out
}

// Names returns the channel names in insertion order.
func (m *MeasurementSet) Names() []string {
	out := make([]string, len(m.channels))
	for i, c := range m.channels {
		out[i] = c.Name
	}
	return out
}

// Channel returns the named channel.
func (m *MeasurementSet) Channel(name string) (Channel, bool) {
	i, ok := m.index[name]
	if !ok {
		return Channel{}, false
	}
	return m.channels[i], true
}
