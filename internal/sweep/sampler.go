package sweep

import (
	"fmt"

	"github.com/banshee-data/labsweep/internal/datafile"
	"github.com/banshee-data/labsweep/internal/instrument"
)

// Sample takes one synchronous snapshot across every channel of the
// measurement set, returning one freshly read value per channel in
// insertion order. No caching and no retries: a failed read aborts the
// snapshot.
func Sample(set *instrument.MeasurementSet) (datafile.Row, error) {
	row := make(datafile.Row, 0, set.Len())
	for _, ch := range set.Channels() {
		v, err := ch.Device.Read(ch.Variable)
		if err != nil {
			return nil, fmt.Errorf("sample channel %q: %w", ch.Name, err)
		}
		row = append(row, v)
	}
	return row, nil
}
