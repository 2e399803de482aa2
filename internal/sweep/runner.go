package sweep

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/labsweep/internal/datafile"
	"github.com/banshee-data/labsweep/internal/drive"
	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/monitoring"
	"github.com/banshee-data/labsweep/internal/timeutil"
)

// Status represents the current state of a run.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// RunState is a snapshot of a runner's progress, queryable while an
// operation is in flight.
type RunState struct {
	RunID           string     `json:"run_id,omitempty"`
	Operation       string     `json:"operation,omitempty"`
	Status          Status     `json:"status"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	TotalPoints     int        `json:"total_points"`
	CompletedPoints int        `json:"completed_points"`
	Warnings        []string   `json:"warnings,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Config holds the orchestration timing shared by all sweep operations.
type Config struct {
	// Settle is the pause between an axis reaching a sweep point and the
	// sample being taken.
	Settle time.Duration

	// StabilityPollInterval is the WaitFor poll cadence.
	StabilityPollInterval time.Duration

	// RecordMaxPoints bounds RecordUntil when the caller gives no bound.
	RecordMaxPoints int
}

// DefaultConfig returns the standard orchestration timing.
func DefaultConfig() Config {
	return Config{
		Settle:                time.Second,
		StabilityPollInterval: 10 * time.Second,
		RecordMaxPoints:       100000,
	}
}

// Runner executes sweep operations strictly sequentially on the calling
// goroutine: axes move one at a time, every move completes before the
// point's sample is taken, and every sample is fully assembled before its
// row is appended. State is mutexed only so other goroutines may observe
// progress.
type Runner struct {
	engine *drive.Engine
	clock  timeutil.Clock
	cfg    Config

	mu    sync.RWMutex
	state RunState
}

// NewRunner creates a runner over the given convergence engine.
func NewRunner(engine *drive.Engine, clock timeutil.Clock, cfg Config) *Runner {
	if cfg.Settle == 0 {
		cfg.Settle = DefaultConfig().Settle
	}
	if cfg.StabilityPollInterval == 0 {
		cfg.StabilityPollInterval = DefaultConfig().StabilityPollInterval
	}
	if cfg.RecordMaxPoints == 0 {
		cfg.RecordMaxPoints = DefaultConfig().RecordMaxPoints
	}
	return &Runner{
		engine: engine,
		clock:  clock,
		cfg:    cfg,
		state:  RunState{Status: StatusIdle},
	}
}

// State returns a copy of the current run state.
func (r *Runner) State() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state := r.state
	state.Warnings = append([]string(nil), r.state.Warnings...)
	return state
}

// begin records the start of an operation.
func (r *Runner) begin(operation string, totalPoints int) {
	now := time.Now()
	r.mu.Lock()
	r.state = RunState{
		RunID:       uuid.NewString(),
		Operation:   operation,
		Status:      StatusRunning,
		StartedAt:   &now,
		TotalPoints: totalPoints,
	}
	r.mu.Unlock()
	monitoring.Logf("[sweep] %s: starting run %s (%d points)", operation, r.State().RunID, totalPoints)
}

// step records one completed point.
func (r *Runner) step() {
	r.mu.Lock()
	r.state.CompletedPoints++
	r.mu.Unlock()
}

// finish records the end of an operation and passes err through.
func (r *Runner) finish(err error) error {
	now := time.Now()
	r.mu.Lock()
	r.state.CompletedAt = &now
	if err != nil {
		r.state.Status = StatusError
		r.state.Error = err.Error()
	} else {
		r.state.Status = StatusComplete
	}
	op := r.state.Operation
	done := r.state.CompletedPoints
	r.mu.Unlock()
	if err != nil {
		monitoring.Logf("[sweep] %s: aborted after %d points: %v", op, done, err)
	} else {
		monitoring.Logf("[sweep] %s: complete, %d points", op, done)
	}
	return err
}

// checkCancelled returns the context error, if any, between sweep points.
func checkCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// settleAndEmit waits the settle delay, samples the measurement set, and
// appends setpoints ++ sample to sink as one row.
func (r *Runner) settleAndEmit(setpoints []float64, set *instrument.MeasurementSet, sink *datafile.Writer) error {
	r.clock.Sleep(r.cfg.Settle)
	sample, err := Sample(set)
	if err != nil {
		return err
	}
	row := make(datafile.Row, 0, len(setpoints)+len(sample))
	row = append(row, setpoints...)
	row = append(row, sample...)
	if err := sink.WriteRow(row); err != nil {
		return err
	}
	r.step()
	return nil
}

// move drives one axis to a setpoint through the convergence engine.
func (r *Runner) move(axis Axis, setpoint float64) error {
	return r.engine.Move(axis.Entry, axis.Variable, setpoint, axis.Rate)
}

// preroll moves the listed axes to their start values, strictly
// sequentially in declaration order.
func (r *Runner) preroll(axes []Axis) error {
	for _, axis := range axes {
		monitoring.Logf("[sweep] pre-roll: %s -> %g", axis.Label(), axis.Start)
		if err := r.move(axis, axis.Start); err != nil {
			return fmt.Errorf("pre-roll %s: %w", axis.Label(), err)
		}
	}
	return nil
}
