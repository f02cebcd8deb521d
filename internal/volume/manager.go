package volume

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voluscope/server/internal/history"
)

// LoadHandle tracks one asynchronous volume construction. Callers must not
// use the volume until Done is closed.
type LoadHandle struct {
	LoadID string

	done chan struct{}
	vol  *Volume
	err  error
}

// Done is closed when the load has finished, successfully or not.
func (h *LoadHandle) Done() <-chan struct{} {
	return h.done
}

// Result returns the built volume or the load error. Blocks until done.
func (h *LoadHandle) Result() (*Volume, error) {
	<-h.done
	return h.vol, h.err
}

// Manager owns the single current volume for one viewer and tracks the one
// load allowed to be in flight at a time.
type Manager struct {
	viewerID string
	store    *history.Store // optional

	mu      sync.Mutex
	current *Volume
	pending *LoadHandle

	// OnReady runs on the loader goroutine after a successful bind, with
	// the new volume already current.
	OnReady func(*Volume)
}

// NewManager creates a lifecycle manager. The history store may be nil.
func NewManager(viewerID string, store *history.Store) *Manager {
	return &Manager{viewerID: viewerID, store: store}
}

// Current returns the bound volume, or nil.
func (m *Manager) Current() *Volume {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Loading reports whether a load is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Evict drops the current volume, leaving the viewer volume-less.
func (m *Manager) Evict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked()
}

func (m *Manager) evictLocked() {
	if m.current != nil {
		log.Printf("[VolumeManager %s] evicting volume %s", m.viewerID, m.current.ID)
		m.current = nil
	}
}

// Bind evicts the current volume and constructs a new one from the slice
// stack asynchronously. It rejects fewer than two slices and a bind while a
// previous load is still in flight. On load failure the previous volume is
// not restored; the viewer is left volume-less.
func (m *Manager) Bind(slices []Slice, meta Metadata) (*LoadHandle, error) {
	if len(slices) < 2 {
		return nil, fmt.Errorf("bind volume with %d slice(s): %w", len(slices), ErrTooFewSlices)
	}

	m.mu.Lock()
	if m.pending != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("bind volume: %w", ErrLoadInFlight)
	}

	// Single-volume model: the old volume goes away before construction
	// starts, not after it succeeds.
	m.evictLocked()

	h := &LoadHandle{
		LoadID: uuid.NewString(),
		done:   make(chan struct{}),
	}
	m.pending = h
	m.mu.Unlock()

	if m.store != nil {
		rec := &history.LoadRecord{
			ID:          h.LoadID,
			ViewerID:    m.viewerID,
			Status:      history.StatusLoading,
			SliceCount:  len(slices),
			PatientName: meta.PatientName,
			StudyDate:   meta.StudyDate,
			Modality:    meta.Modality,
			CreatedAt:   time.Now(),
		}
		if err := m.store.CreateLoad(rec); err != nil {
			log.Printf("[VolumeManager %s] failed to record load %s: %v", m.viewerID, h.LoadID, err)
		}
	}

	go m.runLoad(h, slices, meta)
	return h, nil
}

func (m *Manager) runLoad(h *LoadHandle, slices []Slice, meta Metadata) {
	vol, err := Build(slices, meta)

	m.mu.Lock()
	if err == nil {
		m.current = vol
	}
	m.mu.Unlock()

	h.vol, h.err = vol, err

	if err != nil {
		log.Printf("[VolumeManager %s] load %s failed: %v", m.viewerID, h.LoadID, err)
		if m.store != nil {
			if serr := m.store.FinishLoad(h.LoadID, history.StatusFailed, "", err.Error()); serr != nil {
				log.Printf("[VolumeManager %s] failed to update load %s: %v", m.viewerID, h.LoadID, serr)
			}
		}
		m.finish(h)
		return
	}

	log.Printf("[VolumeManager %s] volume %s ready (%dx%dx%d)",
		m.viewerID, vol.ID, vol.Dims[0], vol.Dims[1], vol.Dims[2])
	if m.store != nil {
		if serr := m.store.FinishLoad(h.LoadID, history.StatusCompleted, vol.ID, ""); serr != nil {
			log.Printf("[VolumeManager %s] failed to update load %s: %v", m.viewerID, h.LoadID, serr)
		}
	}
	if m.OnReady != nil {
		m.OnReady(vol)
	}
	m.finish(h)
}

// finish releases the in-flight slot. A load stays pending until the ready
// callback has run, so a second Bind is rejected for the whole duration.
func (m *Manager) finish(h *LoadHandle) {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
	close(h.done)
}
