// Package sweep composes setpoint curves, traversal patterns and the move /
// settle / sample / emit loop into the sweep family of operations.
package sweep

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Scale selects how a curve's points are spaced between start and stop.
type Scale string

const (
	// ScaleLin spaces points linearly.
	ScaleLin Scale = "lin"
	// ScaleLog spaces points logarithmically; start and stop must be
	// strictly positive.
	ScaleLog Scale = "log"
)

var (
	// ErrLogBounds is returned for logarithmic spacing with non-positive
	// bounds.
	ErrLogBounds = errors.New("logarithmic scale requires strictly positive start and stop")
	// ErrPointCount is returned for a point count below one.
	ErrPointCount = errors.New("point count must be at least 1")
)

// Curve materialises n setpoints from start to stop inclusive of both ends.
// n == 1 yields {start}.
func Curve(start, stop float64, n int, scale Scale) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrPointCount, n)
	}
	if n == 1 {
		return []float64{start}, nil
	}
	dst := make([]float64, n)
	switch scale {
	case ScaleLin, "":
		floats.Span(dst, start, stop)
	case ScaleLog:
		if start <= 0 || stop <= 0 {
			return nil, fmt.Errorf("%w: start %g, stop %g", ErrLogBounds, start, stop)
		}
		floats.Span(dst, math.Log10(start), math.Log10(stop))
		for i, v := range dst {
			dst[i] = math.Pow(10, v)
		}
	default:
		return nil, fmt.Errorf("unknown scale %q", scale)
	}
	// Span is endpoint-inclusive by construction; pin the ends exactly so
	// log curves do not drift in the last ulp.
	dst[0] = start
	dst[n-1] = stop
	return dst, nil
}

// Reverse returns a reversed copy of curve.
func Reverse(curve []float64) []float64 {
	out := make([]float64, len(curve))
	for i, v := range curve {
		out[len(curve)-1-i] = v
	}
	return out
}

// Traversal selects how a megasweep's fast axis visits its curve per slow
// step.
type Traversal string

const (
	// TraversalStandard visits the fast curve forward only.
	TraversalStandard Traversal = "standard"
	// TraversalUpDown visits forward then reverse within the same slow
	// step, doubling the inner point count.
	TraversalUpDown Traversal = "updown"
	// TraversalSerpentine alternates direction per slow step: first step
	// forward, second reverse, and so on.
	TraversalSerpentine Traversal = "serpentine"
	// TraversalSplit follows the updown trajectory but routes the forward
	// half to the primary sink and the reverse half to a sibling sink.
	TraversalSplit Traversal = "split"
)

// ParseTraversal validates a traversal tag from user input.
func ParseTraversal(s string) (Traversal, error) {
	switch Traversal(s) {
	case TraversalStandard, TraversalUpDown, TraversalSerpentine, TraversalSplit:
		return Traversal(s), nil
	case "":
		return TraversalStandard, nil
	default:
		return "", fmt.Errorf("unknown traversal mode %q", s)
	}
}
