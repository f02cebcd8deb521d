package cache

import (
	"bytes"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		PreviewCacheSizeMB: 16,
		PreviewTTL:         time.Minute,
		FrameCacheSize:     8,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestPreviewRoundTrip(t *testing.T) {
	m := newTestManager(t)

	key := PreviewKey("main", "vol-1", "axial", 12, 0xdead)
	payload := []byte{1, 2, 3, 4}

	if _, ok := m.GetPreview(key); ok {
		t.Fatal("unexpected cache hit")
	}
	if err := m.SetPreview(key, payload); err != nil {
		t.Fatal(err)
	}
	got, ok := m.GetPreview(key)
	if !ok || !bytes.Equal(got, payload) {
		t.Errorf("GetPreview = %v, %v", got, ok)
	}
}

func TestFrameRoundTripCompressed(t *testing.T) {
	m := newTestManager(t)

	// Highly compressible payload.
	payload := bytes.Repeat([]byte{7}, 64*1024)
	key := FrameKey("vol-1", 3)

	m.SetFrame(key, payload)
	got, ok := m.GetFrame(key)
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("frame round trip failed (hit=%v, len=%d)", ok, len(got))
	}
}

func TestPreviewKeyIncludesFingerprint(t *testing.T) {
	a := PreviewKey("main", "vol-1", "axial", 0, 1)
	b := PreviewKey("main", "vol-1", "axial", 0, 2)
	if a == b {
		t.Error("keys with different fingerprints must differ")
	}
}
