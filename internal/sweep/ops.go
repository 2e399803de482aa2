package sweep

import (
	"context"
	"fmt"

	"github.com/banshee-data/labsweep/internal/datafile"
	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/monitoring"
)

// Sweep runs a single-axis sweep: pre-roll to start, then for each curve
// point move, settle, sample, and append [setpoint] ++ sample to sink.
func (r *Runner) Sweep(ctx context.Context, axis Axis, scale Scale, set *instrument.MeasurementSet, sink *datafile.Writer) error {
	curve, err := axis.curve(scale)
	if err != nil {
		return err
	}
	r.begin("sweep", len(curve))

	if err := r.preroll([]Axis{axis}); err != nil {
		return r.finish(err)
	}
	for i, v := range curve {
		if err := checkCancelled(ctx); err != nil {
			return r.finish(err)
		}
		monitoring.Logf("[sweep] point %d/%d: %s -> %g", i+1, len(curve), axis.Label(), v)
		if err := r.move(axis, v); err != nil {
			return r.finish(err)
		}
		if err := r.settleAndEmit([]float64{v}, set, sink); err != nil {
			return r.finish(err)
		}
	}
	return r.finish(nil)
}

// Megasweep runs a nested two-axis sweep. For each slow-axis point it moves
// the slow axis, then visits the fast axis's curve per the traversal mode,
// emitting [slow, fast] ++ sample at every inner point. Split mode routes
// the reverse half to a sibling sink derived from the primary's path.
func (r *Runner) Megasweep(ctx context.Context, slow, fast Axis, mode Traversal, set *instrument.MeasurementSet, sink *datafile.Writer) error {
	slowCurve, err := slow.curve(ScaleLin)
	if err != nil {
		return err
	}
	fastCurve, err := fast.curve(ScaleLin)
	if err != nil {
		return err
	}

	total := len(slowCurve) * len(fastCurve)
	if mode == TraversalUpDown || mode == TraversalSplit {
		total *= 2
	}
	r.begin(fmt.Sprintf("megasweep/%s", mode), total)

	var revSink *datafile.Writer
	if mode == TraversalSplit {
		revSink, err = sink.Sibling("_rev")
		if err != nil {
			return r.finish(fmt.Errorf("create reverse sink: %w", err))
		}
		defer revSink.Close()
		monitoring.Logf("[sweep] split mode: reverse half goes to %s", revSink.Path())
	}

	if err := r.preroll([]Axis{slow, fast}); err != nil {
		return r.finish(err)
	}

	reverse := Reverse(fastCurve)
	for si, sv := range slowCurve {
		if err := checkCancelled(ctx); err != nil {
			return r.finish(err)
		}
		monitoring.Logf("[sweep] slow point %d/%d: %s -> %g", si+1, len(slowCurve), slow.Label(), sv)
		if err := r.move(slow, sv); err != nil {
			return r.finish(err)
		}

		// Inner visitation: a list of (curve, sink) passes per slow step.
		type pass struct {
			points []float64
			out    *datafile.Writer
		}
		var passes []pass
		switch mode {
		case TraversalStandard:
			passes = []pass{{fastCurve, sink}}
		case TraversalUpDown:
			passes = []pass{{fastCurve, sink}, {reverse, sink}}
		case TraversalSerpentine:
			if si%2 == 0 {
				passes = []pass{{fastCurve, sink}}
			} else {
				passes = []pass{{reverse, sink}}
			}
		case TraversalSplit:
			passes = []pass{{fastCurve, sink}, {reverse, revSink}}
		default:
			return r.finish(fmt.Errorf("unknown traversal mode %q", mode))
		}

		for _, p := range passes {
			for _, fv := range p.points {
				if err := checkCancelled(ctx); err != nil {
					return r.finish(err)
				}
				if err := r.move(fast, fv); err != nil {
					return r.finish(err)
				}
				if err := r.settleAndEmit([]float64{sv, fv}, set, p.out); err != nil {
					return r.finish(err)
				}
			}
		}
	}
	return r.finish(nil)
}

// Multisweep moves N axes together through their independently spaced
// linear curves: at index i every axis is moved (sequentially, in
// declaration order) to the i-th point of its own curve, then one sample is
// taken. All curves share the same point count.
func (r *Runner) Multisweep(ctx context.Context, axes []Axis, points int, set *instrument.MeasurementSet, sink *datafile.Writer) error {
	curves, err := multiCurves(axes, points)
	if err != nil {
		return err
	}
	r.begin("multisweep", points)

	if err := r.preroll(axes); err != nil {
		return r.finish(err)
	}
	for i := 0; i < points; i++ {
		if err := checkCancelled(ctx); err != nil {
			return r.finish(err)
		}
		setpoints, err := r.moveAll(axes, curves, i)
		if err != nil {
			return r.finish(err)
		}
		monitoring.Logf("[sweep] point %d/%d: %v", i+1, points, setpoints)
		if err := r.settleAndEmit(setpoints, set, sink); err != nil {
			return r.finish(err)
		}
	}
	return r.finish(nil)
}

// Multimegasweep nests two multisweeps: for each outer combination it runs
// a full inner multisweep (pre-roll included), emitting
// [outer setpoints] ++ [inner setpoints] ++ sample per inner point.
func (r *Runner) Multimegasweep(ctx context.Context, outer, inner []Axis, outerPoints, innerPoints int, set *instrument.MeasurementSet, sink *datafile.Writer) error {
	outerCurves, err := multiCurves(outer, outerPoints)
	if err != nil {
		return err
	}
	innerCurves, err := multiCurves(inner, innerPoints)
	if err != nil {
		return err
	}
	r.begin("multimegasweep", outerPoints*innerPoints)

	if err := r.preroll(outer); err != nil {
		return r.finish(err)
	}
	for oi := 0; oi < outerPoints; oi++ {
		if err := checkCancelled(ctx); err != nil {
			return r.finish(err)
		}
		outerSetpoints, err := r.moveAll(outer, outerCurves, oi)
		if err != nil {
			return r.finish(err)
		}
		monitoring.Logf("[sweep] outer point %d/%d: %v", oi+1, outerPoints, outerSetpoints)

		if err := r.preroll(inner); err != nil {
			return r.finish(err)
		}
		for ii := 0; ii < innerPoints; ii++ {
			if err := checkCancelled(ctx); err != nil {
				return r.finish(err)
			}
			innerSetpoints, err := r.moveAll(inner, innerCurves, ii)
			if err != nil {
				return r.finish(err)
			}
			setpoints := make([]float64, 0, len(outerSetpoints)+len(innerSetpoints))
			setpoints = append(setpoints, outerSetpoints...)
			setpoints = append(setpoints, innerSetpoints...)
			if err := r.settleAndEmit(setpoints, set, sink); err != nil {
				return r.finish(err)
			}
		}
	}
	return r.finish(nil)
}

// multiCurves materialises one linear curve per axis, all with the same
// point count.
func multiCurves(axes []Axis, points int) ([][]float64, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("no axes given")
	}
	curves := make([][]float64, len(axes))
	for i, axis := range axes {
		c, err := Curve(axis.Start, axis.Stop, points, ScaleLin)
		if err != nil {
			return nil, fmt.Errorf("axis %s: %w", axis.Label(), err)
		}
		curves[i] = c
	}
	return curves, nil
}

// moveAll moves every axis to the i-th point of its curve, strictly
// sequentially, and returns the setpoints in axis order.
func (r *Runner) moveAll(axes []Axis, curves [][]float64, i int) ([]float64, error) {
	setpoints := make([]float64, len(axes))
	for j, axis := range axes {
		if err := r.move(axis, curves[j][i]); err != nil {
			return nil, err
		}
		setpoints[j] = curves[j][i]
	}
	return setpoints, nil
}

// AxisLabels returns the setpoint column names for a list of axes.
func AxisLabels(axes []Axis) []string {
	out := make([]string, len(axes))
	for i, a := range axes {
		out[i] = a.Label()
	}
	return out
}
