// Package main is the entry point for the VoluScope server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voluscope/server/internal/api"
	"github.com/voluscope/server/internal/cache"
	"github.com/voluscope/server/internal/config"
	"github.com/voluscope/server/internal/data/dicomdir"
	"github.com/voluscope/server/internal/history"
	"github.com/voluscope/server/internal/render"
	"github.com/voluscope/server/internal/viewer"
	"github.com/voluscope/server/internal/volume"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting VoluScope server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Initialize cache manager (shared across all viewers)
	cacheManager, err := cache.NewManager(cache.Config{
		PreviewCacheSizeMB: cfg.Cache.PreviewSizeMB,
		PreviewTTL:         time.Duration(cfg.Cache.PreviewTTLMinutes) * time.Minute,
		FrameCacheSize:     cfg.Cache.FrameCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	// Initialize preview renderer (shared across all viewers)
	previewer := render.NewPreviewer(render.Config{
		PreviewSize: cfg.Render.PreviewSize,
	})

	// Initialize load-history store
	store, err := history.NewStore(cfg.History.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to initialize history store: %v", err)
	}
	defer store.Close()

	// Loads left dangling by a previous shutdown can never complete.
	if err := store.MarkLoadingAsFailed("server restarted"); err != nil {
		log.Printf("Failed to mark stale loads as failed: %v", err)
	}

	// Initialize viewer registry
	viewerIDs := make([]string, 0, len(cfg.Viewers))
	for _, vc := range cfg.Viewers {
		viewerIDs = append(viewerIDs, vc.ID)
	}
	registry := api.NewViewerRegistry(viewerIDs[0], viewerIDs, cfg.Server.Title)

	log.Printf("Initializing %d viewer(s), default: %s", len(viewerIDs), viewerIDs[0])

	for _, vc := range cfg.Viewers {
		mode, ok := viewer.ParseRenderingMode(vc.RenderingMode)
		if !ok {
			log.Fatalf("  [%s] Unknown rendering mode %q", vc.ID, vc.RenderingMode)
		}
		if vc.DefaultPreset != "" {
			if _, ok := viewer.PresetByName(vc.DefaultPreset); !ok {
				log.Fatalf("  [%s] Unknown default preset %q", vc.ID, vc.DefaultPreset)
			}
		}

		v := viewer.New(viewer.Config{
			ID:            vc.ID,
			DefaultMode:   mode,
			DefaultPreset: vc.DefaultPreset,
			Volumes:       volume.NewManager(vc.ID, store),
			Previewer:     previewer,
			Cache:         cacheManager,
		})
		if err := v.Initialize(); err != nil {
			log.Fatalf("  [%s] Failed to initialize viewer: %v", vc.ID, err)
		}
		registry.Register(vc.ID, v)
		log.Printf("  [%s] Ready (mode=%s, preset=%q)", vc.ID, mode, vc.DefaultPreset)
	}

	// Set up HTTP router
	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Loader:      dicomdir.NewLoader(),
		History:     store,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
