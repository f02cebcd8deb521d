package camera

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func approxVec(a, b r3.Vec) bool {
	return approx(a.X, b.X) && approx(a.Y, b.Y) && approx(a.Z, b.Z)
}

func cubeBounds() Bounds {
	return Bounds{Min: r3.Vec{}, Max: r3.Vec{X: 100, Y: 100, Z: 100}}
}

func TestResetToBounds(t *testing.T) {
	c := New(cubeBounds())

	if !approxVec(c.FocalPoint, r3.Vec{X: 50, Y: 50, Z: 50}) {
		t.Errorf("focal point = %+v, want (50,50,50)", c.FocalPoint)
	}

	diag := cubeBounds().Diagonal()
	if !approx(diag, 100*math.Sqrt(3)) {
		t.Errorf("diagonal = %v, want %v", diag, 100*math.Sqrt(3))
	}

	want := r3.Vec{
		X: 50 + 0.8*diag,
		Y: 50 - 0.8*diag,
		Z: 50 + 0.8*diag,
	}
	if !approxVec(c.Position, want) {
		t.Errorf("position = %+v, want %+v", c.Position, want)
	}
	if !approxVec(c.ViewUp, r3.Vec{Z: 1}) {
		t.Errorf("view up = %+v, want (0,0,1)", c.ViewUp)
	}
	if !c.ParallelProjection {
		t.Error("expected parallel projection after reset")
	}
	if !approx(c.ClippingRange[0], 0.01*diag) || !approx(c.ClippingRange[1], 100*diag) {
		t.Errorf("clipping range = %v, want (%v, %v)", c.ClippingRange, 0.01*diag, 100*diag)
	}
}

func TestRotateAroundAxisInverse(t *testing.T) {
	angles := []float64{15, 37.5, 90, 180, 270, 359}

	for _, axis := range []Axis{AxisX, AxisY, AxisZ} {
		for _, deg := range angles {
			c := New(cubeBounds())
			// Nudge the up vector off-axis so all components participate.
			c.RotateAroundAxis(AxisX, 30)

			pos, up := c.Position, c.ViewUp
			c.RotateAroundAxis(axis, deg)
			c.RotateAroundAxis(axis, -deg)

			if !approxVec(c.Position, pos) {
				t.Errorf("axis %v deg %v: position %+v, want %+v", axis, deg, c.Position, pos)
			}
			if !approxVec(c.ViewUp, up) {
				t.Errorf("axis %v deg %v: view up %+v, want %+v", axis, deg, c.ViewUp, up)
			}
		}
	}
}

func TestRotateAroundAxisZ(t *testing.T) {
	c := &Camera{
		Position:   r3.Vec{X: 10, Y: 0, Z: 5},
		FocalPoint: r3.Vec{},
		ViewUp:     r3.Vec{Z: 1},
	}
	c.RotateAroundAxis(AxisZ, 90)

	if !approxVec(c.Position, r3.Vec{X: 0, Y: 10, Z: 5}) {
		t.Errorf("position = %+v, want (0,10,5)", c.Position)
	}
	// Up vector is parallel to z; a z rotation must leave it unchanged.
	if !approxVec(c.ViewUp, r3.Vec{Z: 1}) {
		t.Errorf("view up = %+v, want (0,0,1)", c.ViewUp)
	}
}

func TestRotateHoldsNamedCoordinate(t *testing.T) {
	cases := []struct {
		axis Axis
		get  func(*Camera) float64
	}{
		{AxisX, func(c *Camera) float64 { return c.Position.X }},
		{AxisY, func(c *Camera) float64 { return c.Position.Y }},
		{AxisZ, func(c *Camera) float64 { return c.Position.Z }},
	}
	for _, tc := range cases {
		c := New(cubeBounds())
		before := tc.get(c)
		c.RotateAroundAxis(tc.axis, 73)
		if !approx(tc.get(c), before) {
			t.Errorf("axis %v: named coordinate changed from %v to %v", tc.axis, before, tc.get(c))
		}
	}
}

func TestSetPresetView(t *testing.T) {
	b := cubeBounds()
	diag := b.Diagonal()
	center := r3.Vec{X: 50, Y: 50, Z: 50}

	cases := []struct {
		name   string
		preset ViewPreset
		pos    r3.Vec
		up     r3.Vec
	}{
		{"anterior", ViewAnterior, r3.Add(center, r3.Vec{Y: -diag}), r3.Vec{Z: 1}},
		{"posterior", ViewPosterior, r3.Add(center, r3.Vec{Y: diag}), r3.Vec{Z: 1}},
		{"left", ViewLeft, r3.Add(center, r3.Vec{X: diag}), r3.Vec{Z: 1}},
		{"right", ViewRight, r3.Add(center, r3.Vec{X: -diag}), r3.Vec{Z: 1}},
		{"superior", ViewSuperior, r3.Add(center, r3.Vec{Z: diag}), r3.Vec{Y: 1}},
		{"inferior", ViewInferior, r3.Add(center, r3.Vec{Z: -diag}), r3.Vec{Y: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(b)
			c.SetPresetView(tc.preset, b)
			if !approxVec(c.Position, tc.pos) {
				t.Errorf("position = %+v, want %+v", c.Position, tc.pos)
			}
			if !approxVec(c.ViewUp, tc.up) {
				t.Errorf("view up = %+v, want %+v", c.ViewUp, tc.up)
			}
			if !approxVec(c.FocalPoint, center) {
				t.Errorf("focal point = %+v, want %+v", c.FocalPoint, center)
			}
			if !approx(r3.Norm(c.Direction()), diag) {
				t.Errorf("distance = %v, want %v", r3.Norm(c.Direction()), diag)
			}
		})
	}
}

func TestParseAxis(t *testing.T) {
	if a, ok := ParseAxis("y"); !ok || a != AxisY {
		t.Errorf("ParseAxis(y) = %v, %v", a, ok)
	}
	if _, ok := ParseAxis("w"); ok {
		t.Error("ParseAxis(w) should fail")
	}
}

func TestParseViewPreset(t *testing.T) {
	if v, ok := ParseViewPreset("superior"); !ok || v != ViewSuperior {
		t.Errorf("ParseViewPreset(superior) = %v, %v", v, ok)
	}
	if _, ok := ParseViewPreset("oblique"); ok {
		t.Error("ParseViewPreset(oblique) should fail")
	}
}
