// Package render draws 2D cut previews through the current volume using
// fogleman/gg. The preview shades each sample through the active transfer
// function; the 3D projection itself is the job of the external volume
// engine, not this package.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/voluscope/server/internal/transfer"
	"github.com/voluscope/server/internal/volume"
)

// Plane identifies a cut orientation.
type Plane uint8

const (
	Axial    Plane = iota // fixed z
	Coronal               // fixed y
	Sagittal              // fixed x
)

var planeNames = map[string]Plane{
	"axial":    Axial,
	"coronal":  Coronal,
	"sagittal": Sagittal,
}

// ParsePlane maps a plane name to a Plane.
func ParsePlane(s string) (Plane, bool) {
	p, ok := planeNames[s]
	return p, ok
}

func (p Plane) String() string {
	switch p {
	case Axial:
		return "axial"
	case Coronal:
		return "coronal"
	case Sagittal:
		return "sagittal"
	}
	return "?"
}

// Config contains renderer configuration.
type Config struct {
	PreviewSize int // output edge length in pixels
}

// Previewer renders slice previews.
type Previewer struct {
	config     Config
	bufferPool sync.Pool
}

// NewPreviewer creates a new preview renderer.
func NewPreviewer(cfg Config) *Previewer {
	if cfg.PreviewSize <= 0 {
		cfg.PreviewSize = 512
	}
	return &Previewer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
}

// RenderSlice renders the cut at the given plane index, shaded through the
// transfer function and composited over black, and returns it PNG-encoded.
func (p *Previewer) RenderSlice(vol *volume.Volume, tf *transfer.Function, plane Plane, index int) ([]byte, error) {
	w, h, err := cutSize(vol, plane, index)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := sampleCut(vol, plane, index, x, y)
			r, g, b := tf.ColorAt(v)
			a := tf.OpacityAt(v)
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(clamp01(r*a) * 255),
				G: uint8(clamp01(g*a) * 255),
				B: uint8(clamp01(b*a) * 255),
				A: 255,
			})
		}
	}

	// Scale to the configured preview size, preserving aspect ratio.
	size := float64(p.config.PreviewSize)
	scale := size / float64(w)
	if sh := size / float64(h); sh < scale {
		scale = sh
	}
	outW := int(float64(w) * scale)
	outH := int(float64(h) * scale)

	dc := gg.NewContext(outW, outH)
	dc.SetColor(color.Black)
	dc.Clear()
	dc.Scale(scale, scale)
	dc.DrawImage(img, 0, 0)

	return p.encodeContext(dc)
}

func cutSize(vol *volume.Volume, plane Plane, index int) (w, h int, err error) {
	switch plane {
	case Axial:
		if index < 0 || index >= vol.Dims[2] {
			return 0, 0, fmt.Errorf("axial index %d out of range [0, %d)", index, vol.Dims[2])
		}
		return vol.Dims[0], vol.Dims[1], nil
	case Coronal:
		if index < 0 || index >= vol.Dims[1] {
			return 0, 0, fmt.Errorf("coronal index %d out of range [0, %d)", index, vol.Dims[1])
		}
		return vol.Dims[0], vol.Dims[2], nil
	case Sagittal:
		if index < 0 || index >= vol.Dims[0] {
			return 0, 0, fmt.Errorf("sagittal index %d out of range [0, %d)", index, vol.Dims[0])
		}
		return vol.Dims[1], vol.Dims[2], nil
	}
	return 0, 0, fmt.Errorf("unknown plane %d", plane)
}

func sampleCut(vol *volume.Volume, plane Plane, index, x, y int) float64 {
	switch plane {
	case Axial:
		return vol.At(x, y, index)
	case Coronal:
		return vol.At(x, index, y)
	case Sagittal:
		return vol.At(index, x, y)
	}
	return 0
}

func (p *Previewer) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := p.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		p.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
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
