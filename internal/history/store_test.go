package history

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndFinishLoad(t *testing.T) {
	s := newTestStore(t)

	rec := &LoadRecord{
		ID:          "load-1",
		ViewerID:    "main",
		Status:      StatusLoading,
		SliceCount:  120,
		PatientName: "DOE^JANE",
		Modality:    "CT",
		CreatedAt:   time.Now(),
	}
	if err := s.CreateLoad(rec); err != nil {
		t.Fatal(err)
	}
	if err := s.FinishLoad("load-1", StatusCompleted, "vol-abc", ""); err != nil {
		t.Fatal(err)
	}

	loads, err := s.List("main", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(loads) != 1 {
		t.Fatalf("got %d loads, want 1", len(loads))
	}
	got := loads[0]
	if got.Status != StatusCompleted || got.VolumeID != "vol-abc" {
		t.Errorf("load = %+v, want completed with volume vol-abc", got)
	}
	if got.SliceCount != 120 || got.PatientName != "DOE^JANE" {
		t.Errorf("load metadata = %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("expected a finished_at timestamp")
	}
}

func TestListIsScopedAndNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i, viewerID := range []string{"main", "main", "compare"} {
		rec := &LoadRecord{
			ID:        "load-" + string(rune('a'+i)),
			ViewerID:  viewerID,
			Status:    StatusLoading,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateLoad(rec); err != nil {
			t.Fatal(err)
		}
	}

	loads, err := s.List("main", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(loads) != 2 {
		t.Fatalf("got %d loads for main, want 2", len(loads))
	}
	if !loads[0].CreatedAt.After(loads[1].CreatedAt) {
		t.Errorf("loads not newest first: %v then %v", loads[0].CreatedAt, loads[1].CreatedAt)
	}
}

func TestMarkLoadingAsFailed(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateLoad(&LoadRecord{
		ID:        "stale",
		ViewerID:  "main",
		Status:    StatusLoading,
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkLoadingAsFailed("server restarted"); err != nil {
		t.Fatal(err)
	}

	loads, err := s.List("main", 10)
	if err != nil {
		t.Fatal(err)
	}
	if loads[0].Status != StatusFailed || loads[0].Error != "server restarted" {
		t.Errorf("stale load = %+v, want failed with restart reason", loads[0])
	}
}
