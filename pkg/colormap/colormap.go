// Package colormap provides clinical color palettes for volume shading.
package colormap

// RGB is a color with channels in [0, 1].
type RGB struct {
	R, G, B float64
}

// Palette maps normalized values [0, 1] to colors by piecewise linear
// interpolation over an ordered color list.
type Palette struct {
	name   string
	colors []RGB
}

// Name returns the palette name.
func (p Palette) Name() string { return p.name }

// Colors returns the ordered color list.
func (p Palette) Colors() []RGB {
	out := make([]RGB, len(p.colors))
	copy(out, p.colors)
	return out
}

// At returns the color at position t (0-1).
func (p Palette) At(t float64) RGB {
	if len(p.colors) == 0 {
		return RGB{}
	}
	if t <= 0 {
		return p.colors[0]
	}
	if t >= 1 {
		return p.colors[len(p.colors)-1]
	}

	idx := t * float64(len(p.colors)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(p.colors) {
		upper = len(p.colors) - 1
	}

	frac := idx - float64(lower)
	return interpolate(p.colors[lower], p.colors[upper], frac)
}

func interpolate(c1, c2 RGB, t float64) RGB {
	return RGB{
		R: c1.R + t*(c2.R-c1.R),
		G: c1.G + t*(c2.G-c1.G),
		B: c1.B + t*(c2.B-c1.B),
	}
}

// Grayscale is the plain monochrome display palette.
var Grayscale = Palette{
	name: "grayscale",
	colors: []RGB{
		{0, 0, 0},
		{1, 1, 1},
	},
}

// HotMetal is the classic hot-body palette used for MIP display.
var HotMetal = Palette{
	name: "hot-metal",
	colors: []RGB{
		{0, 0, 0},
		{0.4, 0, 0},
		{0.8, 0.2, 0},
		{1, 0.5, 0},
		{1, 0.8, 0.2},
		{1, 1, 0.8},
	},
}

// CTBone shades soft tissue in muted browns up into off-white bone.
var CTBone = Palette{
	name: "ct-bone",
	colors: []RGB{
		{0, 0, 0},
		{0.4, 0.2, 0.1},
		{0.8, 0.6, 0.4},
		{0.95, 0.9, 0.8},
		{1, 0.98, 0.9},
	},
}

// CTAngio emphasizes contrast-filled vessels in reds over dark tissue.
var CTAngio = Palette{
	name: "ct-angio",
	colors: []RGB{
		{0, 0, 0},
		{0.3, 0.05, 0.05},
		{0.7, 0.1, 0.1},
		{1, 0.3, 0.2},
		{1, 0.85, 0.7},
	},
}

// Rainbow is the legacy full-spectrum palette.
var Rainbow = Palette{
	name: "rainbow",
	colors: []RGB{
		{0, 0, 1},
		{0, 1, 1},
		{0, 1, 0},
		{1, 1, 0},
		{1, 0, 0},
	},
}

var palettes = map[string]Palette{
	"grayscale": Grayscale,
	"hot-metal": HotMetal,
	"ct-bone":   CTBone,
	"ct-angio":  CTAngio,
	"rainbow":   Rainbow,
}

// Get returns a palette by name.
func Get(name string) (Palette, bool) {
	p, ok := palettes[name]
	return p, ok
}
