// Package volume builds and owns the single current 3D scalar volume
// reconstructed from an ordered stack of 2D slices.
package volume

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/voluscope/server/internal/camera"
)

var (
	// ErrTooFewSlices is returned when fewer than two slices are supplied.
	ErrTooFewSlices = errors.New("at least 2 slices are required to build a volume")
	// ErrLoadInFlight is returned when a bind is requested while another
	// load has not finished.
	ErrLoadInFlight = errors.New("a volume load is already in flight")
)

// Metadata describes the source study a volume was reconstructed from.
type Metadata struct {
	PatientName  string     `json:"patient_name"`
	StudyDate    string     `json:"study_date"`
	Modality     string     `json:"modality"`
	Rows         int        `json:"rows"`
	Columns      int        `json:"columns"`
	PixelSpacing [2]float64 `json:"pixel_spacing"` // row, column spacing in mm
	SliceSpacing float64    `json:"slice_spacing"` // mm between consecutive slices
	WindowCenter float64    `json:"window_center"`
	WindowWidth  float64    `json:"window_width"`
}

// Slice is one decoded cross-section: scalar samples in row-major order.
type Slice struct {
	Path           string
	InstanceNumber int
	Rows           int
	Columns        int
	Pixels         []float64
}

// Volume is an immutable-once-built 3D scalar grid. It is owned by the
// Manager; other components hold references only.
type Volume struct {
	ID          string
	Dims        [3]int     // x (columns), y (rows), z (slices)
	Spacing     [3]float64 // mm per voxel along x, y, z
	ScalarRange [2]float64
	Meta        Metadata

	data []float64
}

// Build constructs a volume from an ordered slice stack. All slices must
// share the same dimensions; fewer than two slices violate the contract.
func Build(slices []Slice, meta Metadata) (*Volume, error) {
	if len(slices) < 2 {
		return nil, fmt.Errorf("build volume from %d slice(s): %w", len(slices), ErrTooFewSlices)
	}

	rows, cols := slices[0].Rows, slices[0].Columns
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("build volume: invalid slice dimensions %dx%d", rows, cols)
	}
	for i, s := range slices {
		if s.Rows != rows || s.Columns != cols {
			return nil, fmt.Errorf("build volume: slice %d is %dx%d, expected %dx%d",
				i, s.Rows, s.Columns, rows, cols)
		}
		if len(s.Pixels) != rows*cols {
			return nil, fmt.Errorf("build volume: slice %d has %d samples, expected %d",
				i, len(s.Pixels), rows*cols)
		}
	}

	depth := len(slices)
	data := make([]float64, cols*rows*depth)
	lo, hi := math.Inf(1), math.Inf(-1)
	for z, s := range slices {
		base := z * rows * cols
		for i, v := range s.Pixels {
			data[base+i] = v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}

	spacing := [3]float64{meta.PixelSpacing[1], meta.PixelSpacing[0], meta.SliceSpacing}
	for i, s := range spacing {
		if s <= 0 {
			spacing[i] = 1
		}
	}

	return &Volume{
		ID:          uuid.NewString(),
		Dims:        [3]int{cols, rows, depth},
		Spacing:     spacing,
		ScalarRange: [2]float64{lo, hi},
		Meta:        meta,
		data:        data,
	}, nil
}

// SliceCount returns the number of source slices (the z dimension).
func (v *Volume) SliceCount() int {
	return v.Dims[2]
}

// At returns the scalar at voxel (x, y, z). Out-of-range coordinates return
// the low end of the scalar range.
func (v *Volume) At(x, y, z int) float64 {
	if x < 0 || y < 0 || z < 0 || x >= v.Dims[0] || y >= v.Dims[1] || z >= v.Dims[2] {
		return v.ScalarRange[0]
	}
	return v.data[z*v.Dims[0]*v.Dims[1]+y*v.Dims[0]+x]
}

// SliceData returns a copy of the scalar samples of slice z in row-major
// order.
func (v *Volume) SliceData(z int) ([]float64, error) {
	if z < 0 || z >= v.Dims[2] {
		return nil, fmt.Errorf("slice %d out of range [0, %d)", z, v.Dims[2])
	}
	n := v.Dims[0] * v.Dims[1]
	out := make([]float64, n)
	copy(out, v.data[z*n:(z+1)*n])
	return out, nil
}

// Bounds returns the axis-aligned physical bounds of the volume in mm,
// anchored at the origin.
func (v *Volume) Bounds() camera.Bounds {
	return camera.Bounds{
		Min: r3.Vec{},
		Max: r3.Vec{
			X: float64(v.Dims[0]-1) * v.Spacing[0],
			Y: float64(v.Dims[1]-1) * v.Spacing[1],
			Z: float64(v.Dims[2]-1) * v.Spacing[2],
		},
	}
}
