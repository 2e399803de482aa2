package sweep

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/labsweep/internal/datafile"
	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/monitoring"
)

// CompareOp is the comparison a RecordUntil stop condition applies to the
// monitored channel.
type CompareOp string

const (
	OpGreater CompareOp = ">"
	OpLess    CompareOp = "<"
	OpEqual   CompareOp = "=="
)

// ParseCompareOp validates a comparison operator from user input.
func ParseCompareOp(s string) (CompareOp, error) {
	switch CompareOp(s) {
	case OpGreater, OpLess, OpEqual:
		return CompareOp(s), nil
	default:
		return "", fmt.Errorf("unknown comparison operator %q (want >, < or ==)", s)
	}
}

func (op CompareOp) satisfied(v, threshold float64) bool {
	switch op {
	case OpGreater:
		return v > threshold
	case OpLess:
		return v < threshold
	default:
		return v == threshold
	}
}

// Record samples the measurement set at a fixed cadence for exactly points
// rows. Each row is [elapsed seconds] ++ sample.
func (r *Runner) Record(ctx context.Context, set *instrument.MeasurementSet, interval time.Duration, points int, sink *datafile.Writer) error {
	if points < 1 {
		return fmt.Errorf("%w: got %d", ErrPointCount, points)
	}
	r.begin("record", points)
	series := newSeries(set)

	start := r.clock.Now()
	for i := 0; i < points; i++ {
		if err := checkCancelled(ctx); err != nil {
			return r.finish(err)
		}
		if err := r.recordPoint(set, sink, start, series); err != nil {
			return r.finish(err)
		}
		r.clock.Sleep(interval)
	}
	series.logSummary()
	return r.finish(nil)
}

// RecordUntil samples at a fixed cadence until the monitored channel's
// value satisfies the comparison, or maxPoints rows have been written
// (<= 0 means the configured safety bound). The row containing the
// satisfying sample is still written.
func (r *Runner) RecordUntil(ctx context.Context, set *instrument.MeasurementSet, interval time.Duration, channel string, op CompareOp, threshold float64, maxPoints int, sink *datafile.Writer) error {
	ch, ok := set.Channel(channel)
	if !ok {
		return fmt.Errorf("record until: channel %q not in measurement set", channel)
	}
	chIndex := 0
	for i, c := range set.Channels() {
		if c.Name == ch.Name {
			chIndex = i
		}
	}
	if maxPoints <= 0 {
		maxPoints = r.cfg.RecordMaxPoints
	}
	r.begin("record_until", maxPoints)
	series := newSeries(set)

	start := r.clock.Now()
	for i := 0; i < maxPoints; i++ {
		if err := checkCancelled(ctx); err != nil {
			return r.finish(err)
		}
		sample, err := r.recordPointSampled(set, sink, start, series)
		if err != nil {
			return r.finish(err)
		}
		if op.satisfied(sample[chIndex], threshold) {
			monitoring.Logf("[record] stop condition met: %s = %g %s %g", channel, sample[chIndex], op, threshold)
			series.logSummary()
			return r.finish(nil)
		}
		r.clock.Sleep(interval)
	}
	monitoring.Logf("[record] stop condition never met within %d points", maxPoints)
	series.logSummary()
	return r.finish(nil)
}

// recordPoint samples and emits one row without returning the sample.
func (r *Runner) recordPoint(set *instrument.MeasurementSet, sink *datafile.Writer, start time.Time, series *channelSeries) error {
	_, err := r.recordPointSampled(set, sink, start, series)
	return err
}

// recordPointSampled samples the set, emits [elapsed] ++ sample, and
// returns the sample for stop-condition checks.
func (r *Runner) recordPointSampled(set *instrument.MeasurementSet, sink *datafile.Writer, start time.Time, series *channelSeries) (datafile.Row, error) {
	sample, err := Sample(set)
	if err != nil {
		return nil, err
	}
	elapsed := r.clock.Now().Sub(start).Seconds()
	row := make(datafile.Row, 0, len(sample)+1)
	row = append(row, elapsed)
	row = append(row, sample...)
	if err := sink.WriteRow(row); err != nil {
		return nil, err
	}
	r.step()
	series.add(sample)
	return sample, nil
}

// channelSeries accumulates per-channel values for the end-of-run summary.
type channelSeries struct {
	names  []string
	values [][]float64
}

func newSeries(set *instrument.MeasurementSet) *channelSeries {
	return &channelSeries{
		names:  set.Names(),
		values: make([][]float64, set.Len()),
	}
}

func (s *channelSeries) add(sample datafile.Row) {
	for i, v := range sample {
		s.values[i] = append(s.values[i], v)
	}
}

// logSummary narrates mean and standard deviation per channel.
func (s *channelSeries) logSummary() {
	for i, name := range s.names {
		if len(s.values[i]) == 0 {
			continue
		}
		mean := stat.Mean(s.values[i], nil)
		sd := stat.StdDev(s.values[i], nil)
		monitoring.Logf("[record] %s: n=%d mean=%.6f stddev=%.6f", name, len(s.values[i]), mean, sd)
	}
}
