// Package transfer maps scalar intensity to color and opacity: piecewise
// linear color stops, a window/level derived opacity ramp, and a global
// opacity multiplier applied on top of both.
package transfer

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWindow is returned when a window width is not strictly positive.
var ErrInvalidWindow = errors.New("window width must be positive")

// ColorStop maps a scalar value to an RGB color. Channels are in [0, 1].
type ColorStop struct {
	Scalar float64 `json:"scalar" yaml:"scalar"`
	R      float64 `json:"r" yaml:"r"`
	G      float64 `json:"g" yaml:"g"`
	B      float64 `json:"b" yaml:"b"`
}

// OpacityPoint maps a scalar value to an opacity in [0, 1].
type OpacityPoint struct {
	Scalar float64 `json:"scalar"`
	Alpha  float64 `json:"alpha"`
}

// Window defines the scalar range mapped to the visible opacity ramp.
type Window struct {
	Width  float64 `json:"width" yaml:"width"`
	Center float64 `json:"center" yaml:"center"`
}

// Min returns the lower edge of the window.
func (w Window) Min() float64 { return w.Center - w.Width/2 }

// Max returns the upper edge of the window.
func (w Window) Max() float64 { return w.Center + w.Width/2 }

// Tissue is a clinically defined scalar range with a fixed display color.
type Tissue struct {
	Name     string
	RangeMin float64
	RangeMax float64
	Color    [3]float64
}

// Tissues lists the supported tissue ranges in ascending range order. The
// ranges are Hounsfield-unit conventions for CT.
var Tissues = []Tissue{
	{Name: "lung", RangeMin: -1000, RangeMax: -100, Color: [3]float64{0.6, 0.6, 0.9}},
	{Name: "softTissue", RangeMin: -100, RangeMax: 200, Color: [3]float64{0.9, 0.7, 0.6}},
	{Name: "vessel", RangeMin: 100, RangeMax: 400, Color: [3]float64{0.8, 0.1, 0.1}},
	{Name: "bone", RangeMin: 200, RangeMax: 2000, Color: [3]float64{1.0, 0.98, 0.9}},
}

// Function is the transfer-function state for one viewer: color stops, the
// window-derived opacity ramp, and the global opacity multiplier.
type Function struct {
	stops     []ColorStop
	ramp      []OpacityPoint
	window    Window
	hasWindow bool
	global    float64
}

// New returns a transfer function with no stops, no window and full opacity.
func New() *Function {
	return &Function{global: 1.0}
}

// SetWindowLevel replaces the opacity ramp with the two-point ramp derived
// from the window: (min, 0) and (max, 1). A non-positive width is rejected
// and leaves all state untouched.
func (f *Function) SetWindowLevel(width, center float64) error {
	if width <= 0 {
		return fmt.Errorf("set window level (width=%v, center=%v): %w", width, center, ErrInvalidWindow)
	}

	w := Window{Width: width, Center: center}
	f.window = w
	f.hasWindow = true
	f.ramp = []OpacityPoint{
		{Scalar: w.Min(), Alpha: 0.0},
		{Scalar: w.Max(), Alpha: 1.0},
	}
	return nil
}

// WindowLevel returns the current window and whether one has been set.
func (f *Function) WindowLevel() (Window, bool) {
	return f.window, f.hasWindow
}

// SetRGBPoints discards all existing color stops and inserts the given stops
// in the order provided. The caller is responsible for ascending scalar
// order; stops are not re-sorted, and out-of-order input yields undefined
// interpolation.
func (f *Function) SetRGBPoints(stops []ColorStop) {
	f.stops = make([]ColorStop, len(stops))
	copy(f.stops, stops)
}

// RGBPoints returns a copy of the current color stops.
func (f *Function) RGBPoints() []ColorStop {
	out := make([]ColorStop, len(f.stops))
	copy(out, f.stops)
	return out
}

// SetGlobalOpacity sets the multiplier applied uniformly on top of the
// opacity ramp. Values outside [0, 1] are clamped.
func (f *Function) SetGlobalOpacity(x float64) {
	f.global = clamp01(x)
}

// GlobalOpacity returns the global opacity multiplier.
func (f *Function) GlobalOpacity() float64 {
	return f.global
}

// SetTissueOpacities rebuilds the color stops and opacity ramp from scratch
// using the fixed tissue table: for each requested tissue both range
// boundaries are inserted with the tissue color and the requested opacity.
// Unknown tissue names are ignored. Returns the number of tissues applied.
func (f *Function) SetTissueOpacities(opacities map[string]float64) int {
	f.stops = f.stops[:0]
	f.ramp = f.ramp[:0]

	applied := 0
	for _, t := range Tissues {
		alpha, ok := opacities[t.Name]
		if !ok {
			continue
		}
		alpha = clamp01(alpha)
		for _, scalar := range []float64{t.RangeMin, t.RangeMax} {
			f.stops = append(f.stops, ColorStop{
				Scalar: scalar,
				R:      t.Color[0],
				G:      t.Color[1],
				B:      t.Color[2],
			})
			f.ramp = append(f.ramp, OpacityPoint{Scalar: scalar, Alpha: alpha})
		}
		applied++
	}
	return applied
}

// Snapshot returns an independent copy of the transfer function. Renderers
// read the copy without holding the owner's lock; later mutations of the
// original are not visible through it.
func (f *Function) Snapshot() *Function {
	c := &Function{
		window:    f.window,
		hasWindow: f.hasWindow,
		global:    f.global,
	}
	c.stops = append([]ColorStop(nil), f.stops...)
	c.ramp = append([]OpacityPoint(nil), f.ramp...)
	return c
}

// ColorAt interpolates the color stops piecewise linearly at the given
// scalar. Values outside the stop range clamp to the end stops. With no
// stops the result is black.
func (f *Function) ColorAt(scalar float64) (r, g, b float64) {
	n := len(f.stops)
	if n == 0 {
		return 0, 0, 0
	}
	if scalar <= f.stops[0].Scalar {
		s := f.stops[0]
		return s.R, s.G, s.B
	}
	if scalar >= f.stops[n-1].Scalar {
		s := f.stops[n-1]
		return s.R, s.G, s.B
	}

	for i := 1; i < n; i++ {
		lo, hi := f.stops[i-1], f.stops[i]
		if scalar > hi.Scalar {
			continue
		}
		span := hi.Scalar - lo.Scalar
		if span == 0 {
			return hi.R, hi.G, hi.B
		}
		t := (scalar - lo.Scalar) / span
		return lerp(lo.R, hi.R, t), lerp(lo.G, hi.G, t), lerp(lo.B, hi.B, t)
	}
	s := f.stops[n-1]
	return s.R, s.G, s.B
}

// OpacityAt interpolates the opacity ramp at the given scalar and applies
// the global multiplier. With no ramp the result is the multiplier alone.
func (f *Function) OpacityAt(scalar float64) float64 {
	n := len(f.ramp)
	if n == 0 {
		return f.global
	}
	if scalar <= f.ramp[0].Scalar {
		return f.ramp[0].Alpha * f.global
	}
	if scalar >= f.ramp[n-1].Scalar {
		return f.ramp[n-1].Alpha * f.global
	}

	for i := 1; i < n; i++ {
		lo, hi := f.ramp[i-1], f.ramp[i]
		if scalar > hi.Scalar {
			continue
		}
		span := hi.Scalar - lo.Scalar
		if span == 0 {
			return hi.Alpha * f.global
		}
		t := (scalar - lo.Scalar) / span
		return lerp(lo.Alpha, hi.Alpha, t) * f.global
	}
	return f.ramp[n-1].Alpha * f.global
}

// Fingerprint returns a value that changes whenever the visible mapping
// changes. Used for cache keys.
func (f *Function) Fingerprint() uint64 {
	h := uint64(14695981039346656037)
	mix := func(v float64) {
		bits := math.Float64bits(v)
		for i := 0; i < 8; i++ {
			h ^= bits & 0xff
			h *= 1099511628211
			bits >>= 8
		}
	}
	mix(f.global)
	mix(f.window.Width)
	mix(f.window.Center)
	for _, s := range f.stops {
		mix(s.Scalar)
		mix(s.R)
		mix(s.G)
		mix(s.B)
	}
	for _, p := range f.ramp {
		mix(p.Scalar)
		mix(p.Alpha)
	}
	return h
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
