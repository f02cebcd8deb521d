package colormap

import (
	"math"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPaletteAtClamps(t *testing.T) {
	first := Grayscale.At(-0.5)
	if !approx(first.R, 0) || !approx(first.G, 0) || !approx(first.B, 0) {
		t.Errorf("At(-0.5) = %+v, want black", first)
	}
	last := Grayscale.At(1.5)
	if !approx(last.R, 1) || !approx(last.G, 1) || !approx(last.B, 1) {
		t.Errorf("At(1.5) = %+v, want white", last)
	}
}

func TestPaletteAtInterpolates(t *testing.T) {
	mid := Grayscale.At(0.5)
	if !approx(mid.R, 0.5) || !approx(mid.G, 0.5) || !approx(mid.B, 0.5) {
		t.Errorf("At(0.5) = %+v, want mid gray", mid)
	}
}

func TestGet(t *testing.T) {
	for _, name := range []string{"grayscale", "hot-metal", "ct-bone", "ct-angio", "rainbow"} {
		p, ok := Get(name)
		if !ok {
			t.Errorf("Get(%q) not found", name)
			continue
		}
		if p.Name() != name {
			t.Errorf("Get(%q).Name() = %q", name, p.Name())
		}
		if len(p.Colors()) < 2 {
			t.Errorf("palette %q has %d colors", name, len(p.Colors()))
		}
	}
	if _, ok := Get("viridis"); ok {
		t.Error("Get(viridis) should not exist")
	}
}
