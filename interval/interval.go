package interval

import "math"

// Interval is a closed interval [Lo, Hi]. Lo > Hi denotes the empty set;
// use Empty to construct it and IsEmpty to test for it.
type Interval struct {
	Lo, Hi float64
}

// New returns the interval [lo, hi].
func New(lo, hi float64) Interval { return Interval{Lo: lo, Hi: hi} }

// Point returns the degenerate interval [v, v].
func Point(v float64) Interval { return Interval{Lo: v, Hi: v} }

// Entire returns (-inf, +inf).
func Entire() Interval { return Interval{Lo: math.Inf(-1), Hi: math.Inf(1)} }

// Empty returns the canonical empty interval.
func Empty() Interval { return Interval{Lo: math.Inf(1), Hi: math.Inf(-1)} }

// IsEmpty reports whether iv contains no points.
func (iv Interval) IsEmpty() bool { return iv.Lo > iv.Hi }

// IsPoint reports whether iv is a single point.
func (iv Interval) IsPoint() bool { return iv.Lo == iv.Hi }

// Contains reports whether v lies in iv.
func (iv Interval) Contains(v float64) bool { return iv.Lo <= v && v <= iv.Hi }

// Width returns Hi - Lo, or 0 for the empty interval.
func (iv Interval) Width() float64 {
	if iv.IsEmpty() {
		return 0
	}
	return iv.Hi - iv.Lo
}

// Mid returns the midpoint of iv. For half-unbounded intervals it returns
// the finite endpoint; for the entire line it returns 0.
func (iv Interval) Mid() float64 {
	loInf, hiInf := math.IsInf(iv.Lo, -1), math.IsInf(iv.Hi, 1)
	switch {
	case loInf && hiInf:
		return 0
	case loInf:
		return iv.Hi
	case hiInf:
		return iv.Lo
	}
	return 0.5 * (iv.Lo + iv.Hi)
}

// AbsMax returns max(|Lo|, |Hi|).
func (iv Interval) AbsMax() float64 { return math.Max(math.Abs(iv.Lo), math.Abs(iv.Hi)) }

// Neg returns -iv.
func (iv Interval) Neg() Interval { return Interval{Lo: -iv.Hi, Hi: -iv.Lo} }

// Add returns iv + o.
func (iv Interval) Add(o Interval) Interval {
	return Interval{Lo: iv.Lo + o.Lo, Hi: iv.Hi + o.Hi}
}

// Sub returns iv - o.
func (iv Interval) Sub(o Interval) Interval {
	return Interval{Lo: iv.Lo - o.Hi, Hi: iv.Hi - o.Lo}
}

// Scale returns c * iv.
func (iv Interval) Scale(c float64) Interval {
	if c >= 0 {
		return Interval{Lo: c * iv.Lo, Hi: c * iv.Hi}
	}
	return Interval{Lo: c * iv.Hi, Hi: c * iv.Lo}
}

// mulEndpoint multiplies endpoints with the convention 0*inf = 0, which is
// the correct outward choice for interval products.
func mulEndpoint(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a * b
}

// Mul returns the product interval iv * o.
func (iv Interval) Mul(o Interval) Interval {
	p1 := mulEndpoint(iv.Lo, o.Lo)
	p2 := mulEndpoint(iv.Lo, o.Hi)
	p3 := mulEndpoint(iv.Hi, o.Lo)
	p4 := mulEndpoint(iv.Hi, o.Hi)
	return Interval{
		Lo: math.Min(math.Min(p1, p2), math.Min(p3, p4)),
		Hi: math.Max(math.Max(p1, p2), math.Max(p3, p4)),
	}
}

// Div returns iv / o. If o contains zero in its interior (or spans it), the
// result widens to the entire line.
func (iv Interval) Div(o Interval) Interval {
	if o.Contains(0) {
		if o.IsPoint() {
			return Entire() // 0/0 territory; widest sound answer
		}
		if o.Lo == 0 {
			return iv.Mul(Interval{Lo: 1 / o.Hi, Hi: math.Inf(1)})
		}
		if o.Hi == 0 {
			return iv.Mul(Interval{Lo: math.Inf(-1), Hi: 1 / o.Lo})
		}
		return Entire()
	}
	return iv.Mul(Interval{Lo: 1 / o.Hi, Hi: 1 / o.Lo})
}

// PowInt returns iv^n for integer n >= 0.
func (iv Interval) PowInt(n int) Interval {
	switch {
	case n == 0:
		return Point(1)
	case n == 1:
		return iv
	}
	lo := math.Pow(iv.Lo, float64(n))
	hi := math.Pow(iv.Hi, float64(n))
	if n%2 == 1 {
		return Interval{Lo: lo, Hi: hi}
	}
	// Even power: minimum at zero when the interval straddles it.
	if iv.Contains(0) {
		return Interval{Lo: 0, Hi: math.Max(lo, hi)}
	}
	return Interval{Lo: math.Min(lo, hi), Hi: math.Max(lo, hi)}
}

// Pow returns iv^p for real p, restricted to the non-negative part of iv
// when p is fractional.
func (iv Interval) Pow(p float64) Interval {
	if p == math.Trunc(p) && math.Abs(p) < 1e9 {
		n := int(p)
		if n >= 0 {
			return iv.PowInt(n)
		}
		return Point(1).Div(iv.PowInt(-n))
	}
	lo := math.Max(iv.Lo, 0)
	hi := math.Max(iv.Hi, 0)
	a, b := math.Pow(lo, p), math.Pow(hi, p)
	return Interval{Lo: math.Min(a, b), Hi: math.Max(a, b)}
}

// Exp returns e^iv (monotone increasing).
func (iv Interval) Exp() Interval {
	return Interval{Lo: math.Exp(iv.Lo), Hi: math.Exp(iv.Hi)}
}

// Log returns ln(iv). Parts of iv at or below zero widen the lower endpoint
// to -inf; an interval entirely at or below zero yields the empty interval.
func (iv Interval) Log() Interval {
	if iv.Hi <= 0 {
		return Empty()
	}
	lo := math.Inf(-1)
	if iv.Lo > 0 {
		lo = math.Log(iv.Lo)
	}
	return Interval{Lo: lo, Hi: math.Log(iv.Hi)}
}

// Sqrt returns the square root of the non-negative part of iv, or the empty
// interval if iv is entirely negative.
func (iv Interval) Sqrt() Interval {
	if iv.Hi < 0 {
		return Empty()
	}
	return Interval{Lo: math.Sqrt(math.Max(iv.Lo, 0)), Hi: math.Sqrt(iv.Hi)}
}

// Sin returns a sound enclosure of sin(iv). The enclosure is exact when iv
// spans less than a full period and [-1, 1] otherwise.
func (iv Interval) Sin() Interval {
	return trigEnclosure(iv, math.Sin, math.Pi/2)
}

// Cos returns a sound enclosure of cos(iv).
func (iv Interval) Cos() Interval {
	return trigEnclosure(iv, math.Cos, 0)
}

// trigEnclosure bounds a unit-amplitude 2π-periodic function over iv.
// peakAt is the phase of the maximum (π/2 for sin, 0 for cos).
func trigEnclosure(iv Interval, f func(float64) float64, peakAt float64) Interval {
	if iv.Width() >= 2*math.Pi || math.IsInf(iv.Lo, 0) || math.IsInf(iv.Hi, 0) {
		return Interval{Lo: -1, Hi: 1}
	}
	lo := math.Min(f(iv.Lo), f(iv.Hi))
	hi := math.Max(f(iv.Lo), f(iv.Hi))
	// Check whether a peak or trough of the wave falls inside iv.
	for _, phase := range []float64{peakAt, peakAt + math.Pi} {
		k := math.Ceil((iv.Lo - phase) / (2 * math.Pi))
		if x := phase + 2*math.Pi*k; x <= iv.Hi {
			v := f(x)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return Interval{Lo: lo, Hi: hi}
}

// Intersect returns the intersection of iv and o (possibly empty).
func (iv Interval) Intersect(o Interval) Interval {
	return Interval{Lo: math.Max(iv.Lo, o.Lo), Hi: math.Min(iv.Hi, o.Hi)}
}

// Union returns the smallest interval containing both iv and o.
func (iv Interval) Union(o Interval) Interval {
	if iv.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return iv
	}
	return Interval{Lo: math.Min(iv.Lo, o.Lo), Hi: math.Max(iv.Hi, o.Hi)}
}
