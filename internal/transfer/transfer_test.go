package transfer

import (
	"errors"
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSetWindowLevelRoundTrip(t *testing.T) {
	cases := []struct {
		width  float64
		center float64
	}{
		{2000, 300},
		{1, 0},
		{400, -600},
		{0.5, 40.25},
	}

	for _, tc := range cases {
		f := New()
		if err := f.SetWindowLevel(tc.width, tc.center); err != nil {
			t.Fatalf("SetWindowLevel(%v, %v): %v", tc.width, tc.center, err)
		}
		w, ok := f.WindowLevel()
		if !ok {
			t.Fatal("expected window to be set")
		}
		if !approx(w.Width, tc.width) || !approx(w.Center, tc.center) {
			t.Errorf("got {%v, %v}, want {%v, %v}", w.Width, w.Center, tc.width, tc.center)
		}
	}
}

func TestSetWindowLevelRamp(t *testing.T) {
	f := New()
	if err := f.SetWindowLevel(2000, 300); err != nil {
		t.Fatal(err)
	}

	// min = -700 maps to 0, max = 1300 maps to 1.
	if got := f.OpacityAt(-700); !approx(got, 0) {
		t.Errorf("OpacityAt(min) = %v, want 0", got)
	}
	if got := f.OpacityAt(1300); !approx(got, 1) {
		t.Errorf("OpacityAt(max) = %v, want 1", got)
	}
	if got := f.OpacityAt(300); !approx(got, 0.5) {
		t.Errorf("OpacityAt(center) = %v, want 0.5", got)
	}
	// Outside the ramp clamps to the ends.
	if got := f.OpacityAt(-5000); !approx(got, 0) {
		t.Errorf("OpacityAt(below) = %v, want 0", got)
	}
	if got := f.OpacityAt(5000); !approx(got, 1) {
		t.Errorf("OpacityAt(above) = %v, want 1", got)
	}
}

func TestSetWindowLevelRejectsNonPositiveWidth(t *testing.T) {
	f := New()
	if err := f.SetWindowLevel(400, 40); err != nil {
		t.Fatal(err)
	}

	for _, width := range []float64{0, -1, -2000} {
		err := f.SetWindowLevel(width, 100)
		if !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("width %v: error = %v, want ErrInvalidWindow", width, err)
		}
	}

	// Prior state must be untouched.
	w, ok := f.WindowLevel()
	if !ok || !approx(w.Width, 400) || !approx(w.Center, 40) {
		t.Errorf("window after rejected call = %+v (set=%v), want {400, 40}", w, ok)
	}
}

func TestSetRGBPointsReplacesAll(t *testing.T) {
	f := New()
	f.SetRGBPoints([]ColorStop{
		{Scalar: -1000, R: 0, G: 0, B: 0},
		{Scalar: 2000, R: 1, G: 1, B: 1},
	})
	f.SetRGBPoints([]ColorStop{
		{Scalar: 0, R: 1, G: 0, B: 0},
	})

	stops := f.RGBPoints()
	if len(stops) != 1 {
		t.Fatalf("expected old stops to be discarded, got %d stops", len(stops))
	}
	if stops[0].Scalar != 0 || stops[0].R != 1 {
		t.Errorf("unexpected stop: %+v", stops[0])
	}
}

func TestColorAtInterpolation(t *testing.T) {
	f := New()
	f.SetRGBPoints([]ColorStop{
		{Scalar: 0, R: 0, G: 0, B: 0},
		{Scalar: 100, R: 1, G: 0.5, B: 0},
	})

	r, g, b := f.ColorAt(50)
	if !approx(r, 0.5) || !approx(g, 0.25) || !approx(b, 0) {
		t.Errorf("ColorAt(50) = (%v, %v, %v), want (0.5, 0.25, 0)", r, g, b)
	}

	// Clamping at both ends.
	r, _, _ = f.ColorAt(-10)
	if !approx(r, 0) {
		t.Errorf("ColorAt(-10) r = %v, want 0", r)
	}
	r, _, _ = f.ColorAt(500)
	if !approx(r, 1) {
		t.Errorf("ColorAt(500) r = %v, want 1", r)
	}
}

func TestGlobalOpacity(t *testing.T) {
	f := New()
	if err := f.SetWindowLevel(100, 50); err != nil {
		t.Fatal(err)
	}
	f.SetGlobalOpacity(0.7)

	if got := f.GlobalOpacity(); !approx(got, 0.7) {
		t.Errorf("GlobalOpacity = %v, want 0.7", got)
	}
	if got := f.OpacityAt(100); !approx(got, 0.7) {
		t.Errorf("OpacityAt(max) = %v, want 0.7", got)
	}

	f.SetGlobalOpacity(1.5)
	if got := f.GlobalOpacity(); !approx(got, 1) {
		t.Errorf("GlobalOpacity after clamp = %v, want 1", got)
	}
	f.SetGlobalOpacity(-2)
	if got := f.GlobalOpacity(); !approx(got, 0) {
		t.Errorf("GlobalOpacity after clamp = %v, want 0", got)
	}
}

func TestSetTissueOpacities(t *testing.T) {
	f := New()
	f.SetRGBPoints([]ColorStop{{Scalar: 0, R: 1, G: 1, B: 1}})

	applied := f.SetTissueOpacities(map[string]float64{
		"bone":    0.9,
		"lung":    0.2,
		"unknown": 1.0,
	})
	if applied != 2 {
		t.Fatalf("applied = %d, want 2 (unknown ignored)", applied)
	}

	stops := f.RGBPoints()
	if len(stops) != 4 {
		t.Fatalf("expected 4 stops (2 per tissue), got %d", len(stops))
	}
	// Fixed table order: lung before bone.
	if stops[0].Scalar != -1000 || stops[1].Scalar != -100 {
		t.Errorf("lung boundaries = %v, %v, want -1000, -100", stops[0].Scalar, stops[1].Scalar)
	}
	if stops[2].Scalar != 200 || stops[3].Scalar != 2000 {
		t.Errorf("bone boundaries = %v, %v, want 200, 2000", stops[2].Scalar, stops[3].Scalar)
	}

	// Opacity within bone range reflects the requested opacity.
	if got := f.OpacityAt(1000); !approx(got, 0.9) {
		t.Errorf("OpacityAt(1000) = %v, want 0.9", got)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	f := New()
	if err := f.SetWindowLevel(400, 40); err != nil {
		t.Fatal(err)
	}
	f.SetRGBPoints([]ColorStop{
		{Scalar: 0, R: 0, G: 0, B: 0},
		{Scalar: 400, R: 1, G: 1, B: 1},
	})
	f.SetGlobalOpacity(0.5)

	snap := f.Snapshot()

	// Mutate the original in every dimension the snapshot copies.
	if err := f.SetWindowLevel(2000, 300); err != nil {
		t.Fatal(err)
	}
	f.SetRGBPoints([]ColorStop{{Scalar: 0, R: 1, G: 0, B: 0}})
	f.SetGlobalOpacity(1)
	f.SetTissueOpacities(map[string]float64{"bone": 1})

	w, ok := snap.WindowLevel()
	if !ok || !approx(w.Width, 400) || !approx(w.Center, 40) {
		t.Errorf("snapshot window = %+v (set=%v), want {400, 40}", w, ok)
	}
	if got := snap.GlobalOpacity(); !approx(got, 0.5) {
		t.Errorf("snapshot global opacity = %v, want 0.5", got)
	}
	// Ramp max is 240 (center+width/2), alpha 1 times global 0.5.
	if got := snap.OpacityAt(240); !approx(got, 0.5) {
		t.Errorf("snapshot OpacityAt(240) = %v, want 0.5", got)
	}
	r, g, b := snap.ColorAt(200)
	if !approx(r, 0.5) || !approx(g, 0.5) || !approx(b, 0.5) {
		t.Errorf("snapshot ColorAt(200) = (%v, %v, %v), want mid gray", r, g, b)
	}
}

func TestFingerprintChanges(t *testing.T) {
	f := New()
	a := f.Fingerprint()
	if err := f.SetWindowLevel(100, 0); err != nil {
		t.Fatal(err)
	}
	b := f.Fingerprint()
	if a == b {
		t.Error("fingerprint should change when the window changes")
	}
	f.SetGlobalOpacity(0.3)
	if f.Fingerprint() == b {
		t.Error("fingerprint should change when global opacity changes")
	}
}
