// Package camera maintains the 3D view of the bound volume: position,
// focal point, up vector, projection and anatomical view presets.
package camera

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultViewAngle is the fixed view angle applied on every reset, in degrees.
const DefaultViewAngle = 30.0

// resetOffset is the oblique unit offset used when framing a volume. Scaled by
// the bounds diagonal it guarantees the volume is fully visible regardless of
// its aspect ratio.
var resetOffset = r3.Vec{X: 0.8, Y: -0.8, Z: 0.8}

// Axis identifies one of the three world axes.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// ParseAxis maps "x", "y" or "z" to an Axis.
func ParseAxis(s string) (Axis, bool) {
	switch s {
	case "x", "X":
		return AxisX, true
	case "y", "Y":
		return AxisY, true
	case "z", "Z":
		return AxisZ, true
	}
	return 0, false
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	}
	return "?"
}

// ViewPreset is a named anatomical viewing direction.
type ViewPreset uint8

const (
	ViewAnterior ViewPreset = iota
	ViewPosterior
	ViewLeft
	ViewRight
	ViewSuperior
	ViewInferior
)

var viewPresetNames = map[string]ViewPreset{
	"anterior":  ViewAnterior,
	"posterior": ViewPosterior,
	"left":      ViewLeft,
	"right":     ViewRight,
	"superior":  ViewSuperior,
	"inferior":  ViewInferior,
}

// ParseViewPreset maps a preset name to a ViewPreset.
func ParseViewPreset(s string) (ViewPreset, bool) {
	v, ok := viewPresetNames[s]
	return v, ok
}

func (v ViewPreset) String() string {
	for name, p := range viewPresetNames {
		if p == v {
			return name
		}
	}
	return "?"
}

// Bounds are axis-aligned volume bounds in world coordinates.
type Bounds struct {
	Min r3.Vec
	Max r3.Vec
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Diagonal returns the Euclidean length of the bounds' extent vector.
func (b Bounds) Diagonal() float64 {
	return r3.Norm(r3.Sub(b.Max, b.Min))
}

// Camera holds the view state for a single viewer. Position and FocalPoint
// must never coincide; all mutation goes through the methods below, which
// preserve that invariant.
type Camera struct {
	Position           r3.Vec
	FocalPoint         r3.Vec
	ViewUp             r3.Vec
	ParallelProjection bool
	ViewAngle          float64    // degrees
	ClippingRange      [2]float64 // near, far

	// Roll is a display-level rotation in degrees layered on top of the
	// camera transform. It never alters Position or FocalPoint.
	Roll float64
}

// New returns a camera framing the given bounds.
func New(b Bounds) *Camera {
	c := &Camera{}
	c.ResetToBounds(b)
	return c
}

// ResetToBounds recenters the camera on the volume bounds: focal point at the
// midpoint, position offset along the fixed oblique direction by the bounds
// diagonal, up vector +z, parallel projection with the default view angle.
func (c *Camera) ResetToBounds(b Bounds) {
	center := b.Center()
	diag := b.Diagonal()

	c.FocalPoint = center
	c.Position = r3.Add(center, r3.Scale(diag, resetOffset))
	c.ViewUp = r3.Vec{X: 0, Y: 0, Z: 1}
	c.ClippingRange = [2]float64{0.01 * diag, 100 * diag}
	c.ParallelProjection = true
	c.ViewAngle = DefaultViewAngle
}

// RotateAroundAxis rotates the camera position and up vector about the named
// world axis, holding the focal point fixed. The rotation is planar in the
// two non-named axes; the named axis coordinate is left untouched for both
// position and up vector. Rotations about different axes therefore do not
// compose like true 3D rotations. That behavior is load-bearing for users of
// the per-axis controls and must not be replaced with a general rotation.
func (c *Camera) RotateAroundAxis(axis Axis, degrees float64) {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)

	dir := r3.Sub(c.Position, c.FocalPoint)
	up := c.ViewUp

	switch axis {
	case AxisX:
		c.Position.Y = c.FocalPoint.Y + dir.Y*cos - dir.Z*sin
		c.Position.Z = c.FocalPoint.Z + dir.Y*sin + dir.Z*cos
		c.ViewUp.Y = up.Y*cos - up.Z*sin
		c.ViewUp.Z = up.Y*sin + up.Z*cos
	case AxisY:
		c.Position.Z = c.FocalPoint.Z + dir.Z*cos - dir.X*sin
		c.Position.X = c.FocalPoint.X + dir.Z*sin + dir.X*cos
		c.ViewUp.Z = up.Z*cos - up.X*sin
		c.ViewUp.X = up.Z*sin + up.X*cos
	case AxisZ:
		c.Position.X = c.FocalPoint.X + dir.X*cos - dir.Y*sin
		c.Position.Y = c.FocalPoint.Y + dir.X*sin + dir.Y*cos
		c.ViewUp.X = up.X*cos - up.Y*sin
		c.ViewUp.Y = up.X*sin + up.Y*cos
	}
}

// SetPresetView places the camera at bounds center ± diagonal along the axis
// implied by the anatomical preset. The four horizontal views keep +z up;
// superior and inferior look along z and use +y up instead.
func (c *Camera) SetPresetView(v ViewPreset, b Bounds) {
	center := b.Center()
	diag := b.Diagonal()

	offset := r3.Vec{}
	up := r3.Vec{X: 0, Y: 0, Z: 1}

	switch v {
	case ViewAnterior:
		offset = r3.Vec{Y: -diag}
	case ViewPosterior:
		offset = r3.Vec{Y: diag}
	case ViewLeft:
		offset = r3.Vec{X: diag}
	case ViewRight:
		offset = r3.Vec{X: -diag}
	case ViewSuperior:
		offset = r3.Vec{Z: diag}
		up = r3.Vec{X: 0, Y: 1, Z: 0}
	case ViewInferior:
		offset = r3.Vec{Z: -diag}
		up = r3.Vec{X: 0, Y: 1, Z: 0}
	}

	c.FocalPoint = center
	c.Position = r3.Add(center, offset)
	c.ViewUp = up
}

// Direction returns the vector from focal point to position.
func (c *Camera) Direction() r3.Vec {
	return r3.Sub(c.Position, c.FocalPoint)
}
