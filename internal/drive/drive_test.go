package drive

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/monitoring"
	"github.com/banshee-data/labsweep/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

// fakeDevice is a generic device that records every write and serves reads
// from a scripted sequence (the last value repeats).
type fakeDevice struct {
	reads   []float64
	readIdx int
	writes  []float64
	readErr error
}

func (f *fakeDevice) Read(string) (float64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	v := f.reads[f.readIdx]
	if f.readIdx < len(f.reads)-1 {
		f.readIdx++
	}
	return v, nil
}

func (f *fakeDevice) Write(_ string, v float64) error {
	f.writes = append(f.writes, v)
	return nil
}

// fakeRateMagnet adds the rate-limited capability to fakeDevice.
type fakeRateMagnet struct {
	fakeDevice
	rates []float64
}

func (f *fakeRateMagnet) WriteRate(perMinute float64) error {
	f.rates = append(f.rates, perMinute)
	return nil
}

func (f *fakeRateMagnet) Precision() int { return 4 }

// fakeStateMagnet adds the state-polled capability, with a scripted status
// sequence alongside the value sequence.
type fakeStateMagnet struct {
	fakeDevice
	statuses  []instrument.Status
	statusIdx int
	rates     []float64
	holds     int
}

func (f *fakeStateMagnet) WriteRate(_ string, perMinute float64) error {
	f.rates = append(f.rates, perMinute)
	return nil
}

func (f *fakeStateMagnet) ReadStatus(string) (instrument.Status, error) {
	s := f.statuses[f.statusIdx]
	if f.statusIdx < len(f.statuses)-1 {
		f.statusIdx++
	}
	return s, nil
}

func (f *fakeStateMagnet) Hold(string) error {
	f.holds++
	return nil
}

func newEngine(cfg Config) (*Engine, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(cfg, clock), clock
}

func entryFor(class instrument.Class, dev instrument.Device) *instrument.Entry {
	return &instrument.Entry{Name: "dev", Class: class, Device: dev}
}

func TestGenericMoveNoOpAtTarget(t *testing.T) {
	dev := &fakeDevice{reads: []float64{5}}
	engine, _ := newEngine(DefaultConfig())

	err := engine.Move(entryFor(instrument.ClassGeneric, dev), "dcv", 5, 0.1)
	require.NoError(t, err)
	assert.Empty(t, dev.writes, "no writes when already at target")
}

func TestGenericMoveInvalidRate(t *testing.T) {
	for _, rate := range []float64{0, -1} {
		t.Run(fmt.Sprintf("rate=%g", rate), func(t *testing.T) {
			dev := &fakeDevice{reads: []float64{0}}
			engine, _ := newEngine(DefaultConfig())
			err := engine.Move(entryFor(instrument.ClassGeneric, dev), "dcv", 1, rate)
			assert.ErrorIs(t, err, ErrInvalidRate)
			assert.Empty(t, dev.writes)
		})
	}
}

func TestGenericMoveSteps(t *testing.T) {
	dev := &fakeDevice{reads: []float64{0}}
	engine, clock := newEngine(DefaultConfig())

	// |10-0| / 100 per s / 0.02 s = 5 steps.
	err := engine.Move(entryFor(instrument.ClassGeneric, dev), "dcv", 10, 100)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6, 8, 10}, dev.writes)
	assert.Equal(t, 5*20*time.Millisecond, clock.SleepTotal())
}

func TestGenericMoveFinalWriteIsExactSetpoint(t *testing.T) {
	dev := &fakeDevice{reads: []float64{0.1}}
	engine, _ := newEngine(DefaultConfig())

	err := engine.Move(entryFor(instrument.ClassGeneric, dev), "dcv", 1.0/3.0, 1)
	require.NoError(t, err)
	require.NotEmpty(t, dev.writes)
	assert.Equal(t, 1.0/3.0, dev.writes[len(dev.writes)-1], "final write is the unrounded setpoint")
}

func TestGenericMoveTinyDisplacementIsNoOp(t *testing.T) {
	dev := &fakeDevice{reads: []float64{0}}
	engine, _ := newEngine(DefaultConfig())

	// 0.0001 / 1 / 0.02 rounds to zero steps.
	err := engine.Move(entryFor(instrument.ClassGeneric, dev), "dcv", 0.0001, 1)
	require.NoError(t, err)
	assert.Empty(t, dev.writes)
}

func TestRateLimitedClampAndTarget(t *testing.T) {
	dev := &fakeRateMagnet{fakeDevice: fakeDevice{reads: []float64{0, 1}}}
	engine, _ := newEngine(DefaultConfig())

	// 0.1/s converts to 6/min, clamped to 0.4.
	err := engine.Move(entryFor(instrument.ClassIPS120, dev), "field", 1.00004, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4}, dev.rates)
	assert.Equal(t, []float64{1.0}, dev.writes, "setpoint written once, rounded to device precision")
}

func TestRateLimitedRateFloor(t *testing.T) {
	dev := &fakeRateMagnet{fakeDevice: fakeDevice{reads: []float64{0, 1}}}
	engine, _ := newEngine(DefaultConfig())

	// 0.0001/s converts to 0.006/min, which rounds to zero and gets
	// floored to keep the ramp alive.
	err := engine.Move(entryFor(instrument.ClassIPS120, dev), "field", 1, 0.0001)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1}, dev.rates)
}

func TestRateLimitedNoOpWithinPrecision(t *testing.T) {
	dev := &fakeRateMagnet{fakeDevice: fakeDevice{reads: []float64{1.00004}}}
	engine, _ := newEngine(DefaultConfig())

	err := engine.Move(entryFor(instrument.ClassIPS120, dev), "field", 1, 0.001)
	require.NoError(t, err)
	assert.Empty(t, dev.writes)
	assert.Empty(t, dev.rates)
}

func TestRateLimitedStallReissue(t *testing.T) {
	// Initial read 0, then five stalled polls, then a match.
	dev := &fakeRateMagnet{fakeDevice: fakeDevice{reads: []float64{0, 0, 0, 0, 0, 0, 1}}}
	engine, _ := newEngine(DefaultConfig())

	err := engine.Move(entryFor(instrument.ClassIPS120, dev), "field", 1, 0.001)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, dev.writes, "setpoint re-issued once after the stall threshold")
}

func TestRateLimitedMaxWait(t *testing.T) {
	dev := &fakeRateMagnet{fakeDevice: fakeDevice{reads: []float64{0}}}
	cfg := DefaultConfig()
	cfg.MaxWait = time.Second
	engine, _ := newEngine(cfg)

	err := engine.Move(entryFor(instrument.ClassIPS120, dev), "field", 1, 0.001)
	assert.ErrorIs(t, err, ErrNotConverged)
}

func TestStatePolledSettles(t *testing.T) {
	dev := &fakeStateMagnet{
		fakeDevice: fakeDevice{reads: []float64{0, 0.3, 0.6, 1.0}},
		statuses: []instrument.Status{
			instrument.StatusMoving,
			instrument.StatusMoving, instrument.StatusMoving, instrument.StatusHold,
		},
	}
	engine, _ := newEngine(DefaultConfig())

	// 0.05/s converts to 3/min, clamped to 0.2.
	err := engine.Move(entryFor(instrument.ClassMercuryIPS, dev), "z", 1, 0.05)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2}, dev.rates)
	assert.Equal(t, []float64{1}, dev.writes)
	assert.Zero(t, dev.holds)
}

func TestStatePolledNoOpWhenHoldingAtTarget(t *testing.T) {
	dev := &fakeStateMagnet{
		fakeDevice: fakeDevice{reads: []float64{1.00005}},
		statuses:   []instrument.Status{instrument.StatusHold},
	}
	engine, _ := newEngine(DefaultConfig())

	err := engine.Move(entryFor(instrument.ClassMercuryIPS, dev), "z", 1, 0.05)
	require.NoError(t, err)
	assert.Empty(t, dev.writes)
	assert.Empty(t, dev.rates)
}

func TestStatePolledStuckRecovery(t *testing.T) {
	// Value parks at 0.5 while the controller claims to be moving; after
	// ten no-progress polls the engine forces HOLD and re-issues the
	// setpoint, after which the ramp completes.
	reads := []float64{0}
	statuses := []instrument.Status{instrument.StatusMoving}
	for i := 0; i < 11; i++ {
		reads = append(reads, 0.5)
		statuses = append(statuses, instrument.StatusMoving)
	}
	reads = append(reads, 1.0)
	statuses = append(statuses, instrument.StatusHold)

	dev := &fakeStateMagnet{fakeDevice: fakeDevice{reads: reads}, statuses: statuses}
	engine, _ := newEngine(DefaultConfig())

	err := engine.Move(entryFor(instrument.ClassMercuryIPS, dev), "z", 1, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.holds, "exactly one forced hold")
	assert.Equal(t, []float64{1, 1}, dev.writes, "setpoint re-issued after recovery")
}

func TestStatePolledMaxWait(t *testing.T) {
	dev := &fakeStateMagnet{
		fakeDevice: fakeDevice{reads: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}},
		statuses:   []instrument.Status{instrument.StatusMoving},
	}
	cfg := DefaultConfig()
	cfg.MaxWait = 2 * time.Second
	engine, _ := newEngine(cfg)

	err := engine.Move(entryFor(instrument.ClassMercuryIPS, dev), "z", 10, 0.05)
	assert.ErrorIs(t, err, ErrNotConverged)
}

func TestMoveDispatchesByClass(t *testing.T) {
	// A generic entry wrapping a magnet-capable value must still use the
	// generic policy: class, not live type, selects the policy.
	dev := &fakeRateMagnet{fakeDevice: fakeDevice{reads: []float64{0}}}
	engine, _ := newEngine(DefaultConfig())

	err := engine.Move(entryFor(instrument.ClassGeneric, dev), "field", 10, 100)
	require.NoError(t, err)
	assert.Empty(t, dev.rates, "generic policy never writes a ramp rate")
	assert.Len(t, dev.writes, 5)
}
