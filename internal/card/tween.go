package card

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// Ease maps linear progress in [0,1] to eased progress.
type Ease func(t float64) float64

func Linear(t float64) float64 { return t }

// CubicBezier builds a CSS-style timing function with control points
// (x1,y1) and (x2,y2).
func CubicBezier(x1, y1, x2, y2 float64) Ease {
	cx := 3 * x1
	bx := 3*(x2-x1) - cx
	ax := 1 - cx - bx
	cy := 3 * y1
	by := 3*(y2-y1) - cy
	ay := 1 - cy - by

	sampleX := func(t float64) float64 { return ((ax*t+bx)*t + cx) * t }
	sampleY := func(t float64) float64 { return ((ay*t+by)*t + cy) * t }
	slopeX := func(t float64) float64 { return (3*ax*t+2*bx)*t + cx }

	return func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		if x >= 1 {
			return 1
		}
		t := x
		for i := 0; i < 8; i++ {
			err := sampleX(t) - x
			if math.Abs(err) < 1e-6 {
				return sampleY(t)
			}
			d := slopeX(t)
			if math.Abs(d) < 1e-6 {
				break
			}
			t -= err / d
		}
		low, hi := 0.0, 1.0
		t = x
		for i := 0; i < 32; i++ {
			v := sampleX(t)
			if math.Abs(v-x) < 1e-6 {
				break
			}
			if v < x {
				low = t
			} else {
				hi = t
			}
			t = (low + hi) / 2
		}
		return sampleY(t)
	}
}

var EaseOut = CubicBezier(0, 0, 0.58, 1)

// Tween interpolates a scalar from From to To over Duration.
type Tween struct {
	From     float64
	To       float64
	Duration time.Duration
	Ease     Ease
}

// At returns the value after elapsed time. Past Duration it is exactly To.
func (tw Tween) At(elapsed time.Duration) float64 {
	if tw.Duration <= 0 || elapsed >= tw.Duration {
		return tw.To
	}
	if elapsed <= 0 {
		return tw.From
	}
	ease := tw.Ease
	if ease == nil {
		ease = Linear
	}
	p := ease(float64(elapsed) / float64(tw.Duration))
	return tw.From + (tw.To-tw.From)*p
}

// DurationFor sizes an offset transition from its distance and a target
// speed in units per second, clamped to [minD, maxD]. A zero distance needs
// no animation.
func DurationFor(distance, speed float64, minD, maxD time.Duration) time.Duration {
	if distance == 0 {
		return 0
	}
	if speed <= 0 {
		return maxD
	}
	d := time.Duration(math.Abs(distance) / speed * float64(time.Second))
	if maxD < minD {
		maxD = minD
	}
	return lo.Clamp(d, minD, maxD)
}

// Interpolate maps x through the piecewise-linear ranges in and out, clamping
// outside the input range. in must be ascending and the same length as out.
func Interpolate(x float64, in, out []float64) float64 {
	if len(in) == 0 || len(in) != len(out) {
		return 0
	}
	if x <= in[0] {
		return out[0]
	}
	last := len(in) - 1
	if x >= in[last] {
		return out[last]
	}
	for i := 1; i <= last; i++ {
		if x <= in[i] {
			span := in[i] - in[i-1]
			if span == 0 {
				return out[i]
			}
			p := (x - in[i-1]) / span
			return out[i-1] + (out[i]-out[i-1])*p
		}
	}
	return out[last]
}
