package viewer

import (
	"github.com/voluscope/server/internal/transfer"
	"github.com/voluscope/server/pkg/colormap"
)

// Preset is a named visualization bundle: a color map over a scalar range,
// an optional window and an optional global opacity. Nil fields leave the
// corresponding viewer state untouched.
type Preset struct {
	Name          string
	ColorStops    []transfer.ColorStop
	Window        *transfer.Window
	GlobalOpacity *float64
}

func window(width, center float64) *transfer.Window {
	return &transfer.Window{Width: width, Center: center}
}

func mustPalette(name string) colormap.Palette {
	p, ok := colormap.Get(name)
	if !ok {
		panic("colormap: unknown palette " + name)
	}
	return p
}

func opacity(x float64) *float64 {
	return &x
}

// paletteStops samples a palette at n evenly spaced scalars across
// [min, max].
func paletteStops(p colormap.Palette, min, max float64, n int) []transfer.ColorStop {
	stops := make([]transfer.ColorStop, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		c := p.At(t)
		stops[i] = transfer.ColorStop{
			Scalar: min + t*(max-min),
			R:      c.R,
			G:      c.G,
			B:      c.B,
		}
	}
	return stops
}

// presets is the catalog of visualization presets, keyed by name. Scalar
// ranges are in Hounsfield units.
var presets = map[string]Preset{
	"ct-bone": {
		Name:          "ct-bone",
		ColorStops:    paletteStops(mustPalette("ct-bone"), -200, 1500, 8),
		Window:        window(1000, 400),
		GlobalOpacity: opacity(1.0),
	},
	"ct-lung": {
		Name:          "ct-lung",
		ColorStops:    paletteStops(mustPalette("grayscale"), -1000, -100, 6),
		Window:        window(1500, -600),
		GlobalOpacity: opacity(0.8),
	},
	"ct-angio": {
		Name:          "ct-angio",
		ColorStops:    paletteStops(mustPalette("ct-angio"), 0, 600, 8),
		Window:        window(600, 300),
		GlobalOpacity: opacity(0.9),
	},
	"ct-soft-tissue": {
		Name:          "ct-soft-tissue",
		ColorStops:    paletteStops(mustPalette("grayscale"), -160, 240, 6),
		Window:        window(400, 40),
		GlobalOpacity: opacity(1.0),
	},
	"mip": {
		Name:          "mip",
		ColorStops:    paletteStops(mustPalette("hot-metal"), -1000, 2000, 8),
		Window:        window(2000, 300),
		GlobalOpacity: opacity(1.0),
	},
}

// PresetByName looks up a catalog preset.
func PresetByName(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// PresetNames returns the catalog preset names.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}

// opacityPresets are named per-tissue opacity bundles. Tissues absent from
// a bundle become fully transparent when it is applied.
var opacityPresets = map[string]map[string]float64{
	"all": {
		"lung":       0.3,
		"softTissue": 0.4,
		"vessel":     0.8,
		"bone":       1.0,
	},
	"bone-only": {
		"bone": 1.0,
	},
	"vessels": {
		"vessel": 1.0,
		"bone":   0.2,
	},
	"airways": {
		"lung":       0.9,
		"softTissue": 0.1,
	},
	"translucent": {
		"lung":       0.1,
		"softTissue": 0.15,
		"vessel":     0.3,
		"bone":       0.4,
	},
}

// OpacityPresetByName looks up a named tissue-opacity bundle.
func OpacityPresetByName(name string) (map[string]float64, bool) {
	p, ok := opacityPresets[name]
	return p, ok
}

// OpacityPresetNames returns the opacity preset names.
func OpacityPresetNames() []string {
	names := make([]string, 0, len(opacityPresets))
	for name := range opacityPresets {
		names = append(names, name)
	}
	return names
}
