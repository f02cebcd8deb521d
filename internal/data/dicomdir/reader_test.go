package dicomdir

import (
	"testing"

	"github.com/voluscope/server/internal/volume"
)

func slicesWithInstances(nums ...int) []LoadedSlice {
	out := make([]LoadedSlice, len(nums))
	for i, n := range nums {
		out[i] = LoadedSlice{Slice: volume.Slice{InstanceNumber: n, Path: string(rune('a' + i))}}
	}
	return out
}

func instanceOrder(slices []LoadedSlice) []int {
	out := make([]int, len(slices))
	for i, s := range slices {
		out[i] = s.Slice.InstanceNumber
	}
	return out
}

func TestSortSlicesByInstanceNumber(t *testing.T) {
	slices := slicesWithInstances(3, 1, 2)
	sortSlices(slices)

	got := instanceOrder(slices)
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", got)
	}
}

func TestSortSlicesKeepsInputOrderWithoutNumbers(t *testing.T) {
	slices := slicesWithInstances(0, 0, 0)
	slices[0].Slice.Path = "c"
	slices[1].Slice.Path = "a"
	slices[2].Slice.Path = "b"
	sortSlices(slices)

	if slices[0].Slice.Path != "c" || slices[1].Slice.Path != "a" || slices[2].Slice.Path != "b" {
		t.Errorf("input order not preserved: %v %v %v",
			slices[0].Slice.Path, slices[1].Slice.Path, slices[2].Slice.Path)
	}
}

func TestSortSlicesMixed(t *testing.T) {
	// Numbered slices sort first; unnumbered ones keep relative order after.
	slices := slicesWithInstances(0, 5, 2)
	sortSlices(slices)

	got := instanceOrder(slices)
	if got[0] != 2 || got[1] != 5 || got[2] != 0 {
		t.Errorf("order = %v, want [2 5 0]", got)
	}
}

func TestLoadSlicesReportsFailures(t *testing.T) {
	l := NewLoader()
	res := l.LoadSlices([]string{"/nonexistent/slice_001.dcm"})

	if len(res.Successful) != 0 {
		t.Errorf("expected no successful slices, got %d", len(res.Successful))
	}
	if len(res.Failed) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(res.Failed))
	}
	if res.Failed[0].Name != "slice_001.dcm" {
		t.Errorf("failure name = %q, want slice_001.dcm", res.Failed[0].Name)
	}
	if res.Failed[0].Error == "" {
		t.Error("expected a failure message")
	}
}

func TestMetadataEmptyResult(t *testing.T) {
	var res LoadResult
	if md := res.Metadata(); md != (volume.Metadata{}) {
		t.Errorf("expected zero metadata, got %+v", md)
	}
}
