// Package dicomdir loads stacks of per-slice DICOM files into decoded slices
// and a representative metadata record.
package dicomdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/voluscope/server/internal/volume"
)

// LoadedSlice is one successfully parsed file: the decoded slice plus the
// descriptive fields read from the same dataset.
type LoadedSlice struct {
	Slice volume.Slice
	Meta  volume.Metadata
}

// FailedFile records a file that could not be parsed.
type FailedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// LoadResult partitions the input files into parsed slices and failures.
// Successful slices are ordered by instance number when any file carries
// one, otherwise by input order.
type LoadResult struct {
	Successful []LoadedSlice
	Failed     []FailedFile
}

// Metadata returns the representative metadata record: the first successful
// slice's fields.
func (r LoadResult) Metadata() volume.Metadata {
	if len(r.Successful) == 0 {
		return volume.Metadata{}
	}
	return r.Successful[0].Meta
}

// Slices returns the decoded slices in result order.
func (r LoadResult) Slices() []volume.Slice {
	out := make([]volume.Slice, len(r.Successful))
	for i, s := range r.Successful {
		out[i] = s.Slice
	}
	return out
}

// Loader parses DICOM files from the local filesystem.
type Loader struct{}

// NewLoader creates a slice loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadSlices parses each file and partitions the results. Parse failures do
// not abort the load; they are reported per file.
func (l *Loader) LoadSlices(paths []string) LoadResult {
	var res LoadResult
	for _, p := range paths {
		ls, err := parseFile(p)
		if err != nil {
			res.Failed = append(res.Failed, FailedFile{Name: filepath.Base(p), Error: err.Error()})
			continue
		}
		res.Successful = append(res.Successful, ls)
	}
	sortSlices(res.Successful)
	return res
}

// LoadDirectory loads every regular file in a directory, in name order.
func (l *Loader) LoadDirectory(dir string) (LoadResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return LoadResult{}, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return l.LoadSlices(paths), nil
}

// sortSlices orders by instance number when at least one slice carries one;
// slices without a number keep their relative input order at the end.
func sortSlices(slices []LoadedSlice) {
	any := false
	for _, s := range slices {
		if s.Slice.InstanceNumber > 0 {
			any = true
			break
		}
	}
	if !any {
		return
	}
	sort.SliceStable(slices, func(i, j int) bool {
		a, b := slices[i].Slice.InstanceNumber, slices[j].Slice.InstanceNumber
		if a > 0 && b > 0 {
			return a < b
		}
		return b <= 0 && a > 0
	})
}

func parseFile(path string) (LoadedSlice, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return LoadedSlice{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	rows := firstInt(&ds, tag.Rows)
	cols := firstInt(&ds, tag.Columns)
	if rows <= 0 || cols <= 0 {
		return LoadedSlice{}, fmt.Errorf("parse %s: missing Rows/Columns", filepath.Base(path))
	}

	slope := firstFloat(&ds, tag.RescaleSlope, 1)
	intercept := firstFloat(&ds, tag.RescaleIntercept, 0)

	pixels, err := decodePixels(&ds, rows, cols, slope, intercept)
	if err != nil {
		return LoadedSlice{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	meta := volume.Metadata{
		PatientName:  firstString(&ds, tag.PatientName),
		StudyDate:    firstString(&ds, tag.StudyDate),
		Modality:     firstString(&ds, tag.Modality),
		Rows:         rows,
		Columns:      cols,
		WindowCenter: firstFloat(&ds, tag.WindowCenter, 0),
		WindowWidth:  firstFloat(&ds, tag.WindowWidth, 0),
	}

	if sp := floatList(&ds, tag.PixelSpacing); len(sp) == 2 {
		meta.PixelSpacing = [2]float64{sp[0], sp[1]}
	}
	meta.SliceSpacing = firstFloat(&ds, tag.SpacingBetweenSlices, 0)
	if meta.SliceSpacing == 0 {
		meta.SliceSpacing = firstFloat(&ds, tag.SliceThickness, 0)
	}

	return LoadedSlice{
		Slice: volume.Slice{
			Path:           path,
			InstanceNumber: firstInt(&ds, tag.InstanceNumber),
			Rows:           rows,
			Columns:        cols,
			Pixels:         pixels,
		},
		Meta: meta,
	}, nil
}

func decodePixels(ds *dicom.Dataset, rows, cols int, slope, intercept float64) ([]float64, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("missing PixelData: %w", err)
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("PixelData has no frames")
	}

	img, err := info.Frames[0].GetImage()
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	pixels := make([]float64, rows*cols)
	b := img.Bounds()
	for y := 0; y < rows && y < b.Dy(); y++ {
		for x := 0; x < cols && x < b.Dx(); x++ {
			// Grayscale frames report the stored value in the red channel.
			raw, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pixels[y*cols+x] = float64(raw)*slope + intercept
		}
	}
	return pixels, nil
}

func firstString(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return ""
	}
	if vals, ok := el.Value.GetValue().([]string); ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return strings.Trim(el.Value.String(), " []")
}

func firstInt(ds *dicom.Dataset, t tag.Tag) int {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return 0
	}
	switch vals := el.Value.GetValue().(type) {
	case []int:
		if len(vals) > 0 {
			return vals[0]
		}
	case []string:
		if len(vals) > 0 {
			if v, err := strconv.Atoi(strings.TrimSpace(vals[0])); err == nil {
				return v
			}
		}
	}
	return 0
}

func firstFloat(ds *dicom.Dataset, t tag.Tag, fallback float64) float64 {
	if vals := floatList(ds, t); len(vals) > 0 {
		return vals[0]
	}
	return fallback
}

// floatList reads a decimal-string or integer multi-valued element.
func floatList(ds *dicom.Dataset, t tag.Tag) []float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return nil
	}
	switch vals := el.Value.GetValue().(type) {
	case []string:
		out := make([]float64, 0, len(vals))
		for _, s := range vals {
			if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				out = append(out, v)
			}
		}
		return out
	case []float64:
		return vals
	case []int:
		out := make([]float64, len(vals))
		for i, v := range vals {
			out[i] = float64(v)
		}
		return out
	}
	return nil
}
