// Package api provides HTTP handlers for the VoluScope server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/voluscope/server/internal/data/dicomdir"
	"github.com/voluscope/server/internal/history"
	"github.com/voluscope/server/internal/viewer"
	"github.com/voluscope/server/internal/volume"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *ViewerRegistry
	CORSOrigins []string
	Loader      *dicomdir.Loader
	History     *history.Store
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Global endpoints (not viewer-scoped)
	r.Get("/api/viewers", viewersHandler(cfg.Registry))
	r.Get("/api/presets", presetsHandler)

	// Viewer-scoped routes: /v/{viewer}/...
	r.Route("/v/{viewer}", func(r chi.Router) {
		r.Use(viewerMiddleware(cfg.Registry))

		// Preview endpoints
		r.Get("/preview/{plane}/{index}.png", previewHandler)
		r.Get("/preview/{plane}/{index}", previewHandler)

		// API endpoints
		r.Route("/api", func(r chi.Router) {
			r.Get("/status", statusHandler)
			r.Post("/initialize", initializeHandler)
			r.Post("/volume", bindVolumeHandler(cfg.Loader))
			r.Get("/volume/frames/{index}", frameHandler)
			r.Get("/history", historyHandler(cfg.History))

			r.Route("/camera", func(r chi.Router) {
				r.Get("/", cameraHandler)
				r.Post("/reset", cameraResetHandler)
				r.Post("/rotate", cameraRotateHandler)
				r.Post("/view", cameraViewHandler)
				r.Post("/random-rotation", randomRotationHandler)
				r.Put("/rotation-enabled", rotationEnabledHandler)
			})

			r.Put("/tool", toolHandler)
			r.Put("/rendering-mode", renderingModeHandler)
			r.Get("/window", getWindowHandler)
			r.Put("/window", setWindowHandler)
			r.Put("/opacity", opacityHandler)
			r.Post("/opacity/preset", opacityPresetHandler)
			r.Put("/tissues", tissuesHandler)
			r.Post("/preset", presetHandler)
			r.Post("/resize", resizeHandler)
			r.Post("/destroy", destroyHandler)
		})
	})

	return r
}

// Context key for the resolved viewer
type ctxKey string

const viewerKey ctxKey = "viewer"

// viewerMiddleware resolves the viewer from the URL and injects it into the
// request context.
func viewerMiddleware(registry *ViewerRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewerID := chi.URLParam(r, "viewer")
			v := registry.Get(viewerID)
			if v == nil {
				http.Error(w, "viewer not found: "+viewerID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), viewerKey, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getViewer(r *http.Request) *viewer.Viewer {
	if v, ok := r.Context().Value(viewerKey).(*viewer.Viewer); ok {
		return v
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// viewersHandler returns the list of configured viewers.
func viewersHandler(registry *ViewerRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"default": registry.DefaultViewerID(),
			"viewers": registry.Viewers(),
			"title":   registry.Title(),
		})
	}
}

// presetsHandler returns the preset catalogs.
func presetsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets":         viewer.PresetNames(),
		"opacity_presets": viewer.OpacityPresetNames(),
	})
}

// initializeHandler (re-)initializes the viewer. Idempotent.
func initializeHandler(w http.ResponseWriter, r *http.Request) {
	if err := getViewer(r).Initialize(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeOK(w)
}

// frameHandler returns one axial slice's scalars as little-endian float32.
func frameHandler(w http.ResponseWriter, r *http.Request) {
	indexStr := chi.URLParam(r, "index")
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		http.Error(w, "invalid slice index: "+indexStr, http.StatusBadRequest)
		return
	}

	data, err := getViewer(r).Frame(index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// statusHandler returns the viewer state snapshot.
func statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, getViewer(r).Status())
}

// bindVolumeHandler loads a slice stack from disk and binds it to the
// viewer asynchronously.
func bindVolumeHandler(loader *dicomdir.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Directory string   `json:"directory"`
			Paths     []string `json:"paths"`
		}
		if !decodeBody(w, r, &req) {
			return
		}

		var result dicomdir.LoadResult
		switch {
		case req.Directory != "":
			var err error
			result, err = loader.LoadDirectory(req.Directory)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
		case len(req.Paths) > 0:
			result = loader.LoadSlices(req.Paths)
		default:
			http.Error(w, "either directory or paths is required", http.StatusBadRequest)
			return
		}

		h, err := getViewer(r).BindVolume(result.Slices(), result.Metadata())
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, volume.ErrLoadInFlight) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"load_id":      h.LoadID,
			"slice_count":  len(result.Successful),
			"failed_files": result.Failed,
		})
	}
}

// historyHandler returns past volume loads for the viewer, newest first.
func historyHandler(store *history.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"loads": []history.LoadRecord{}})
			return
		}

		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit: "+s, http.StatusBadRequest)
				return
			}
			limit = n
		}

		loads, err := store.List(getViewer(r).ID(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"loads": loads})
	}
}

// cameraHandler returns the camera state, if a volume is bound.
func cameraHandler(w http.ResponseWriter, r *http.Request) {
	cam, ok := getViewer(r).Camera()
	if !ok {
		http.Error(w, "no volume bound", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"position":            [3]float64{cam.Position.X, cam.Position.Y, cam.Position.Z},
		"focal_point":         [3]float64{cam.FocalPoint.X, cam.FocalPoint.Y, cam.FocalPoint.Z},
		"view_up":             [3]float64{cam.ViewUp.X, cam.ViewUp.Y, cam.ViewUp.Z},
		"parallel_projection": cam.ParallelProjection,
		"view_angle":          cam.ViewAngle,
		"clipping_range":      cam.ClippingRange,
		"roll":                cam.Roll,
	})
}

func cameraResetHandler(w http.ResponseWriter, r *http.Request) {
	getViewer(r).ResetCamera()
	writeOK(w)
}

func cameraRotateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Axis    string  `json:"axis"`
		Degrees float64 `json:"degrees"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).RotateAroundAxis(req.Axis, req.Degrees)
	writeOK(w)
}

func cameraViewHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).SetPresetView(req.Name)
	writeOK(w)
}

func randomRotationHandler(w http.ResponseWriter, r *http.Request) {
	getViewer(r).ApplyRandomRotation()
	writeOK(w)
}

func rotationEnabledHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).SetRotationEnabled(req.Enabled)
	writeOK(w)
}

func toolHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).SetActiveTool(req.Name)
	writeOK(w)
}

func renderingModeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).SetRenderingMode(req.Name)
	writeOK(w)
}

func getWindowHandler(w http.ResponseWriter, r *http.Request) {
	window, ok := getViewer(r).GetWindowLevel()
	if !ok {
		http.Error(w, "no window set", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, window)
}

func setWindowHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width  float64 `json:"width"`
		Center float64 `json:"center"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := getViewer(r).SetWindowLevel(req.Width, req.Center); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeOK(w)
}

func opacityHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value float64 `json:"value"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).SetVolumeOpacity(req.Value)
	writeOK(w)
}

func opacityPresetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).ApplyOpacityPreset(req.Name)
	writeOK(w)
}

func tissuesHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Opacities map[string]float64 `json:"opacities"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).SetTissueOpacities(req.Opacities)
	writeOK(w)
}

func presetHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if _, ok := viewer.PresetByName(req.Name); !ok {
		http.Error(w, "unknown preset: "+req.Name, http.StatusNotFound)
		return
	}
	getViewer(r).ApplyPresetByName(req.Name)
	writeOK(w)
}

func resizeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	getViewer(r).Resize(req.Width, req.Height)
	writeOK(w)
}

func destroyHandler(w http.ResponseWriter, r *http.Request) {
	getViewer(r).Destroy()
	writeOK(w)
}

// previewHandler renders a 2D cut through the bound volume as PNG.
func previewHandler(w http.ResponseWriter, r *http.Request) {
	plane := chi.URLParam(r, "plane")
	// The fallback route captures the full segment including the extension.
	indexStr := strings.TrimSuffix(chi.URLParam(r, "index"), ".png")
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		http.Error(w, "invalid slice index: "+indexStr, http.StatusBadRequest)
		return
	}

	data, err := getViewer(r).Preview(plane, index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write(data)
}
