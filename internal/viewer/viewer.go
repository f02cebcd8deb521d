// Package viewer owns the per-viewer view state: camera, transfer function,
// tool bindings, rendering mode and the bound volume. All operations go
// through the Viewer so their dependencies stay explicit.
package viewer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"

	"github.com/voluscope/server/internal/cache"
	"github.com/voluscope/server/internal/camera"
	"github.com/voluscope/server/internal/render"
	"github.com/voluscope/server/internal/tools"
	"github.com/voluscope/server/internal/transfer"
	"github.com/voluscope/server/internal/volume"
)

// ErrNotInitialized is returned when an operation runs before Initialize.
var ErrNotInitialized = errors.New("viewer is not initialized")

// RenderingMode is the compositing rule applied along a viewing ray.
type RenderingMode uint8

const (
	Composite RenderingMode = iota
	MaximumIntensity
	MinimumIntensity
)

var renderingModeNames = map[string]RenderingMode{
	"composite":         Composite,
	"maximum-intensity": MaximumIntensity,
	"minimum-intensity": MinimumIntensity,
}

// ParseRenderingMode maps a mode name to a RenderingMode.
func ParseRenderingMode(s string) (RenderingMode, bool) {
	m, ok := renderingModeNames[s]
	return m, ok
}

func (m RenderingMode) String() string {
	switch m {
	case Composite:
		return "composite"
	case MaximumIntensity:
		return "maximum-intensity"
	case MinimumIntensity:
		return "minimum-intensity"
	}
	return "?"
}

// Config contains viewer configuration.
type Config struct {
	ID            string
	DefaultMode   RenderingMode
	DefaultPreset string
	Volumes       *volume.Manager
	Previewer     *render.Previewer
	Cache         *cache.Manager
}

// Viewer is the view-state aggregate for one viewport. Operations serialize
// on an internal mutex; each runs to completion before the next starts.
type Viewer struct {
	id            string
	defaultMode   RenderingMode
	defaultPreset string
	volumes       *volume.Manager
	previewer     *render.Previewer
	cache         *cache.Manager

	mu              sync.Mutex
	initialized     bool
	cam             *camera.Camera
	tf              *transfer.Function
	bindings        *tools.Bindings
	mode            RenderingMode
	rotationEnabled bool
	viewportW       int
	viewportH       int
}

// New creates a viewer. It is unusable until Initialize is called.
func New(cfg Config) *Viewer {
	v := &Viewer{
		id:            cfg.ID,
		defaultMode:   cfg.DefaultMode,
		defaultPreset: cfg.DefaultPreset,
		volumes:       cfg.Volumes,
		previewer:     cfg.Previewer,
		cache:         cfg.Cache,
	}
	if v.volumes != nil {
		v.volumes.OnReady = v.onVolumeReady
	}
	return v
}

// ID returns the viewer id.
func (v *Viewer) ID() string { return v.id }

// Initialize sets up the initial tool bindings and transfer function.
// Calling it again on an initialized viewer is a no-op.
func (v *Viewer) Initialize() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.initialized {
		return nil
	}
	if v.volumes == nil {
		return fmt.Errorf("initialize viewer %s: no volume manager configured", v.id)
	}

	v.tf = transfer.New()
	v.bindings = tools.New()
	v.mode = v.defaultMode
	v.rotationEnabled = true
	v.initialized = true
	log.Printf("[Viewer %s] initialized (tool=%s, mode=%s)", v.id, v.bindings.ActiveTool(), v.mode)
	return nil
}

// Destroy evicts the bound volume and returns the viewer to its
// uninitialized state.
func (v *Viewer) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.volumes != nil {
		v.volumes.Evict()
	}
	v.cam = nil
	v.tf = nil
	v.bindings = nil
	v.initialized = false
	log.Printf("[Viewer %s] destroyed", v.id)
}

func (v *Viewer) ensureInit(op string) bool {
	if !v.initialized {
		log.Printf("[Viewer %s] %s: %v", v.id, op, ErrNotInitialized)
		return false
	}
	return true
}

// currentVolume returns the bound volume, logging the skip when there is
// none. Callers hold v.mu.
func (v *Viewer) currentVolume(op string) *volume.Volume {
	vol := v.volumes.Current()
	if vol == nil {
		log.Printf("[Viewer %s] %s skipped: no volume bound", v.id, op)
	}
	return vol
}

// BindVolume evicts the current volume and starts the asynchronous
// construction of a new one. The camera, rendering mode and default window
// are reconfigured when the load completes.
func (v *Viewer) BindVolume(slices []volume.Slice, meta volume.Metadata) (*volume.LoadHandle, error) {
	v.mu.Lock()
	if !v.ensureInit("bind volume") {
		v.mu.Unlock()
		return nil, ErrNotInitialized
	}
	v.mu.Unlock()

	return v.volumes.Bind(slices, meta)
}

// Loading reports whether a volume load is in flight.
func (v *Viewer) Loading() bool {
	return v.volumes.Loading()
}

// onVolumeReady runs on the loader goroutine once a volume is current. It
// establishes the default framing, blend mode and windowing.
func (v *Viewer) onVolumeReady(vol *volume.Volume) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return
	}

	v.cam = camera.New(vol.Bounds())
	v.mode = v.defaultMode

	applied := false
	if v.defaultPreset != "" {
		if p, ok := PresetByName(v.defaultPreset); ok {
			v.applyPresetLocked(p)
			applied = true
		}
	}
	// Fall back to the study's own window when no preset is configured.
	if !applied && vol.Meta.WindowWidth > 0 {
		if err := v.tf.SetWindowLevel(vol.Meta.WindowWidth, vol.Meta.WindowCenter); err != nil {
			log.Printf("[Viewer %s] default window rejected: %v", v.id, err)
		}
	}

	log.Printf("[Viewer %s] volume %s bound (%d slices, mode=%s)",
		v.id, vol.ID, vol.SliceCount(), v.mode)
}

// ResetCamera reframes the camera on the current volume bounds.
func (v *Viewer) ResetCamera() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("reset camera") {
		return
	}
	vol := v.currentVolume("reset camera")
	if vol == nil || v.cam == nil {
		return
	}
	v.cam.ResetToBounds(vol.Bounds())
}

// RotateAroundAxis rotates the camera about the named world axis.
func (v *Viewer) RotateAroundAxis(axisName string, degrees float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("rotate") {
		return
	}
	axis, ok := camera.ParseAxis(axisName)
	if !ok {
		log.Printf("[Viewer %s] rotate skipped: unknown axis %q", v.id, axisName)
		return
	}
	if vol := v.currentVolume("rotate"); vol == nil || v.cam == nil {
		return
	}
	v.cam.RotateAroundAxis(axis, degrees)
}

// SetPresetView snaps the camera to a named anatomical view.
func (v *Viewer) SetPresetView(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("preset view") {
		return
	}
	preset, ok := camera.ParseViewPreset(name)
	if !ok {
		log.Printf("[Viewer %s] preset view skipped: unknown view %q", v.id, name)
		return
	}
	vol := v.currentVolume("preset view")
	if vol == nil || v.cam == nil {
		return
	}
	v.cam.SetPresetView(preset, vol.Bounds())
}

// ApplyRandomRotation sets the display-level roll to a uniformly random
// angle. Position and focal point are untouched.
func (v *Viewer) ApplyRandomRotation() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("random rotation") {
		return
	}
	if !v.rotationEnabled {
		log.Printf("[Viewer %s] random rotation skipped: rotation disabled", v.id)
		return
	}
	if vol := v.currentVolume("random rotation"); vol == nil || v.cam == nil {
		return
	}
	v.cam.Roll = rand.Float64() * 360
}

// SetRotationEnabled toggles the display-level rotation. Disabling it also
// clears any applied roll.
func (v *Viewer) SetRotationEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("set rotation enabled") {
		return
	}
	v.rotationEnabled = enabled
	if !enabled && v.cam != nil {
		v.cam.Roll = 0
	}
}

// SetActiveTool binds the named tool to the primary button. Unknown names
// are skipped with a warning.
func (v *Viewer) SetActiveTool(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("set active tool") {
		return
	}
	tool, ok := tools.Parse(name)
	if !ok {
		log.Printf("[Viewer %s] set active tool skipped: unknown tool %q", v.id, name)
		return
	}
	v.bindings.SetActiveTool(tool)
}

// ActiveTool returns the tool bound to the primary button.
func (v *Viewer) ActiveTool() (tools.Tool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return 0, false
	}
	return v.bindings.ActiveTool(), true
}

// SetRenderingMode sets the volume's blend mode. Skipped with a warning
// when the name is unknown or no volume is bound.
func (v *Viewer) SetRenderingMode(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("set rendering mode") {
		return
	}
	mode, ok := ParseRenderingMode(name)
	if !ok {
		log.Printf("[Viewer %s] set rendering mode skipped: unknown mode %q", v.id, name)
		return
	}
	if vol := v.currentVolume("set rendering mode"); vol == nil {
		return
	}
	v.mode = mode
}

// Mode returns the current rendering mode.
func (v *Viewer) Mode() RenderingMode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// SetWindowLevel applies a window to the opacity ramp. A non-positive width
// is rejected; with no volume bound the call is skipped.
func (v *Viewer) SetWindowLevel(width, center float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("set window level") {
		return ErrNotInitialized
	}
	if width <= 0 {
		return fmt.Errorf("viewer %s: %w", v.id, transfer.ErrInvalidWindow)
	}
	if vol := v.currentVolume("set window level"); vol == nil {
		return nil
	}
	return v.tf.SetWindowLevel(width, center)
}

// GetWindowLevel returns the current window, if one is set.
func (v *Viewer) GetWindowLevel() (transfer.Window, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return transfer.Window{}, false
	}
	return v.tf.WindowLevel()
}

// SetVolumeOpacity sets the global opacity multiplier.
func (v *Viewer) SetVolumeOpacity(x float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("set volume opacity") {
		return
	}
	if vol := v.currentVolume("set volume opacity"); vol == nil {
		return
	}
	v.tf.SetGlobalOpacity(x)
}

// GlobalOpacity returns the global opacity multiplier.
func (v *Viewer) GlobalOpacity() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.initialized {
		return 1
	}
	return v.tf.GlobalOpacity()
}

// SetTissueOpacities rebuilds the transfer function from the fixed tissue
// table. Unknown tissue names are ignored.
func (v *Viewer) SetTissueOpacities(opacities map[string]float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("set tissue opacities") {
		return
	}
	if vol := v.currentVolume("set tissue opacities"); vol == nil {
		return
	}
	applied := v.tf.SetTissueOpacities(opacities)
	log.Printf("[Viewer %s] tissue opacities applied to %d tissue(s)", v.id, applied)
}

// ApplyOpacityPreset applies a named tissue-opacity bundle.
func (v *Viewer) ApplyOpacityPreset(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("apply opacity preset") {
		return
	}
	opacities, ok := OpacityPresetByName(name)
	if !ok {
		log.Printf("[Viewer %s] opacity preset skipped: unknown preset %q", v.id, name)
		return
	}
	if vol := v.currentVolume("apply opacity preset"); vol == nil {
		return
	}
	v.tf.SetTissueOpacities(opacities)
}

// ApplyPreset applies a preset bundle atomically: window, then color stops,
// then global opacity. With no volume bound the whole sequence is skipped.
func (v *Viewer) ApplyPreset(p Preset) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("apply preset") {
		return
	}
	if vol := v.currentVolume("apply preset"); vol == nil {
		return
	}
	v.applyPresetLocked(p)
}

// ApplyPresetByName looks up a catalog preset and applies it.
func (v *Viewer) ApplyPresetByName(name string) {
	p, ok := PresetByName(name)
	if !ok {
		log.Printf("[Viewer %s] apply preset skipped: unknown preset %q", v.id, name)
		return
	}
	v.ApplyPreset(p)
}

func (v *Viewer) applyPresetLocked(p Preset) {
	if p.Window != nil {
		if err := v.tf.SetWindowLevel(p.Window.Width, p.Window.Center); err != nil {
			log.Printf("[Viewer %s] preset %q window rejected: %v", v.id, p.Name, err)
		}
	}
	if len(p.ColorStops) > 0 {
		v.tf.SetRGBPoints(p.ColorStops)
	}
	if p.GlobalOpacity != nil {
		v.tf.SetGlobalOpacity(*p.GlobalOpacity)
	}
	log.Printf("[Viewer %s] preset %q applied", v.id, p.Name)
}

// Resize records the viewport size for the render surface.
func (v *Viewer) Resize(width, height int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.ensureInit("resize") {
		return
	}
	if width <= 0 || height <= 0 {
		log.Printf("[Viewer %s] resize skipped: invalid size %dx%d", v.id, width, height)
		return
	}
	v.viewportW, v.viewportH = width, height
}

// Preview renders a 2D cut through the current volume, shaded by the active
// transfer function, with a cache in front.
func (v *Viewer) Preview(planeName string, index int) ([]byte, error) {
	plane, ok := render.ParsePlane(planeName)
	if !ok {
		return nil, fmt.Errorf("unknown plane %q", planeName)
	}

	v.mu.Lock()
	if !v.initialized {
		v.mu.Unlock()
		return nil, ErrNotInitialized
	}
	vol := v.volumes.Current()
	if vol == nil {
		v.mu.Unlock()
		return nil, fmt.Errorf("viewer %s: no volume bound", v.id)
	}
	// The renderer works on a snapshot so concurrent window/opacity changes
	// never touch the state it is reading.
	tf := v.tf.Snapshot()
	v.mu.Unlock()

	key := cache.PreviewKey(v.id, vol.ID, plane.String(), index, tf.Fingerprint())
	if v.cache != nil {
		if data, ok := v.cache.GetPreview(key); ok {
			return data, nil
		}
	}

	data, err := v.previewer.RenderSlice(vol, tf, plane, index)
	if err != nil {
		return nil, err
	}
	if v.cache != nil {
		if err := v.cache.SetPreview(key, data); err != nil {
			log.Printf("[Viewer %s] preview cache set failed: %v", v.id, err)
		}
	}
	return data, nil
}

// Frame returns the raw scalar samples of one axial slice as little-endian
// float32, row-major. Payloads are held in the compressed frame cache.
func (v *Viewer) Frame(index int) ([]byte, error) {
	v.mu.Lock()
	if !v.initialized {
		v.mu.Unlock()
		return nil, ErrNotInitialized
	}
	vol := v.volumes.Current()
	v.mu.Unlock()
	if vol == nil {
		return nil, fmt.Errorf("viewer %s: no volume bound", v.id)
	}

	key := cache.FrameKey(vol.ID, index)
	if v.cache != nil {
		if data, ok := v.cache.GetFrame(key); ok {
			return data, nil
		}
	}

	samples, err := vol.SliceData(index)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(float32(s)))
	}
	if v.cache != nil {
		v.cache.SetFrame(key, data)
	}
	return data, nil
}

// Camera returns a copy of the camera state and whether one exists.
func (v *Viewer) Camera() (camera.Camera, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cam == nil {
		return camera.Camera{}, false
	}
	return *v.cam, true
}

// Status is a snapshot of the viewer state for the API.
type Status struct {
	ID              string           `json:"id"`
	Initialized     bool             `json:"initialized"`
	Loading         bool             `json:"loading"`
	RenderingMode   string           `json:"rendering_mode"`
	ActiveTool      string           `json:"active_tool,omitempty"`
	RotationEnabled bool             `json:"rotation_enabled"`
	GlobalOpacity   float64          `json:"global_opacity"`
	Window          *transfer.Window `json:"window,omitempty"`
	Volume          *VolumeStatus    `json:"volume,omitempty"`
}

// VolumeStatus describes the bound volume.
type VolumeStatus struct {
	ID          string          `json:"id"`
	Dims        [3]int          `json:"dims"`
	Spacing     [3]float64      `json:"spacing"`
	ScalarRange [2]float64      `json:"scalar_range"`
	SliceCount  int             `json:"slice_count"`
	Meta        volume.Metadata `json:"metadata"`
}

// Status returns a snapshot of the viewer state.
func (v *Viewer) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()

	st := Status{
		ID:            v.id,
		Initialized:   v.initialized,
		Loading:       v.volumes != nil && v.volumes.Loading(),
		RenderingMode: v.mode.String(),
		GlobalOpacity: 1,
	}
	if !v.initialized {
		return st
	}

	st.ActiveTool = v.bindings.ActiveTool().String()
	st.RotationEnabled = v.rotationEnabled
	st.GlobalOpacity = v.tf.GlobalOpacity()
	if w, ok := v.tf.WindowLevel(); ok {
		st.Window = &w
	}
	if vol := v.volumes.Current(); vol != nil {
		st.Volume = &VolumeStatus{
			ID:          vol.ID,
			Dims:        vol.Dims,
			Spacing:     vol.Spacing,
			ScalarRange: vol.ScalarRange,
			SliceCount:  vol.SliceCount(),
			Meta:        vol.Meta,
		}
	}
	return st
}
