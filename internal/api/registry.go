package api

import (
	"github.com/voluscope/server/internal/viewer"
)

// ViewerInfo contains information about a viewer for the API response.
type ViewerInfo struct {
	ID string `json:"id"`
}

// ViewerRegistry holds the configured viewers.
type ViewerRegistry struct {
	viewers       map[string]*viewer.Viewer
	defaultViewer string
	viewerOrder   []string
	title         string
}

// NewViewerRegistry creates a new viewer registry.
func NewViewerRegistry(defaultViewer string, order []string, title string) *ViewerRegistry {
	return &ViewerRegistry{
		viewers:       make(map[string]*viewer.Viewer),
		defaultViewer: defaultViewer,
		viewerOrder:   order,
		title:         title,
	}
}

// Register adds a viewer.
func (r *ViewerRegistry) Register(viewerID string, v *viewer.Viewer) {
	r.viewers[viewerID] = v
}

// Get returns the viewer with the given id, or nil if not found.
func (r *ViewerRegistry) Get(viewerID string) *viewer.Viewer {
	return r.viewers[viewerID]
}

// Default returns the default viewer.
func (r *ViewerRegistry) Default() *viewer.Viewer {
	return r.viewers[r.defaultViewer]
}

// DefaultViewerID returns the default viewer id.
func (r *ViewerRegistry) DefaultViewerID() string {
	return r.defaultViewer
}

// Title returns the configured site title.
func (r *ViewerRegistry) Title() string {
	if r.title != "" {
		return r.title
	}
	return "VoluScope"
}

// Viewers returns viewer info for all registered viewers.
func (r *ViewerRegistry) Viewers() []ViewerInfo {
	infos := make([]ViewerInfo, 0, len(r.viewerOrder))
	for _, id := range r.viewerOrder {
		infos = append(infos, ViewerInfo{ID: id})
	}
	return infos
}
