package sweep

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/monitoring"
)

// WaitFor blocks until the device's variable has stayed within ±threshold
// of setpoint for a contiguous duration of at least tmin. A single
// out-of-band sample fully resets the stability timer; there is no decaying
// accumulation.
func (r *Runner) WaitFor(ctx context.Context, entry *instrument.Entry, variable string, setpoint, threshold float64, tmin time.Duration) error {
	monitoring.Logf("[sweep] waitfor %s.%s: %g +/- %g for %s", entry.Name, variable, setpoint, threshold, tmin)
	var stableSince time.Time
	for {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		v, err := entry.Device.Read(variable)
		if err != nil {
			return fmt.Errorf("waitfor %s.%s: %w", entry.Name, variable, err)
		}
		now := r.clock.Now()
		if math.Abs(v-setpoint) <= threshold {
			if stableSince.IsZero() {
				stableSince = now
			}
			if now.Sub(stableSince) >= tmin {
				monitoring.Logf("[sweep] waitfor %s.%s: stable at %g", entry.Name, variable, v)
				return nil
			}
		} else {
			if !stableSince.IsZero() {
				monitoring.Logf("[sweep] waitfor %s.%s: excursion to %g, stability timer reset", entry.Name, variable, v)
			}
			stableSince = time.Time{}
		}
		r.clock.Sleep(r.cfg.StabilityPollInterval)
	}
}
