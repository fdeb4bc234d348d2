package fusion

import (
	"gonum.org/v1/gonum/interp"
)

// PathXY is the model's planned path: lateral offset Y sampled at
// longitudinal distances X.
type PathXY struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// curve is a fitted piecewise-linear function that holds its end values
// outside the sampled range.
type curve struct {
	pl     interp.PiecewiseLinear
	x0, xn float64
	y0, yn float64
	ok     bool
}

func fitCurve(xs, ys []float64) curve {
	if len(xs) == 0 || len(xs) != len(ys) {
		return curve{}
	}
	c := curve{x0: xs[0], xn: xs[len(xs)-1], y0: ys[0], yn: ys[len(ys)-1]}
	if len(xs) == 1 {
		c.ok = true
		return c
	}
	if err := c.pl.Fit(xs, ys); err != nil {
		return curve{}
	}
	c.ok = true
	return c
}

func mustFitCurve(xs, ys []float64) curve {
	c := fitCurve(xs, ys)
	if !c.ok {
		panic("fusion: invalid interpolation curve")
	}
	return c
}

// at evaluates the curve, clamping outside the fitted range. An unfitted
// curve evaluates to 0.
func (c curve) at(x float64) float64 {
	switch {
	case !c.ok:
		return 0
	case x <= c.x0:
		return c.y0
	case x >= c.xn:
		return c.yn
	}
	return c.pl.Predict(x)
}

// Fixed weighting curves.
var (
	// trust in a radar track by lead speed: stopped objects are often clutter
	trackSpeedWeight = mustFitCurve([]float64{0, 10}, []float64{0.3, 1})
	// weight of the model's relative speed vs. the differentiated distance
	visionModelWeight = mustFitCurve([]float64{0.97, 1.0}, []float64{0.4, 0.0})
)

// pathSampler interpolates lateral path offsets at arbitrary distances. It is
// fitted once per cycle and shared by every track.
type pathSampler struct {
	c curve
}

func newPathSampler(p PathXY) pathSampler {
	return pathSampler{c: fitCurve(p.X, p.Y)}
}

// at returns the path's lateral offset at distance d.
func (s pathSampler) at(d float64) float64 {
	return s.c.at(d)
}
