package fusion

// firstOrderFilter is a discrete low-pass filter: each update moves the state
// towards the input by alpha = dt/(rc+dt).
type firstOrderFilter struct {
	x     float64
	alpha float64
}

func newFirstOrderFilter(x0, rc, dt float64) firstOrderFilter {
	alpha := 1.0
	if rc+dt > 0 {
		alpha = dt / (rc + dt)
	}
	return firstOrderFilter{x: x0, alpha: alpha}
}

func (f *firstOrderFilter) update(in float64) float64 {
	f.x = (1-f.alpha)*f.x + f.alpha*in
	return f.x
}
