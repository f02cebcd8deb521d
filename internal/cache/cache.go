// Package cache provides caching for rendered previews and decoded slice
// frames.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
)

// Config contains cache configuration.
type Config struct {
	PreviewCacheSizeMB int
	PreviewTTL         time.Duration
	FrameCacheSize     int
}

// Manager manages the preview and frame caches. Frame payloads are stored
// zstd-compressed; preview PNGs are stored as-is.
type Manager struct {
	previewCache *bigcache.BigCache
	frameCache   *lru.Cache[string, []byte]
	encoder      *zstd.Encoder
	decoder      *zstd.Decoder
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	previewConfig := bigcache.Config{
		Shards:             256,
		LifeWindow:         cfg.PreviewTTL,
		CleanWindow:        cfg.PreviewTTL / 2,
		MaxEntriesInWindow: 10000,
		MaxEntrySize:       512 * 1024, // 512KB per preview
		HardMaxCacheSize:   cfg.PreviewCacheSizeMB,
		Verbose:            false,
	}

	previewCache, err := bigcache.New(context.Background(), previewConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create preview cache: %w", err)
	}

	frameCache, err := lru.New[string, []byte](cfg.FrameCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame cache: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Manager{
		previewCache: previewCache,
		frameCache:   frameCache,
		encoder:      encoder,
		decoder:      decoder,
	}, nil
}

// GetPreview retrieves an encoded preview from cache.
func (m *Manager) GetPreview(key string) ([]byte, bool) {
	data, err := m.previewCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetPreview stores an encoded preview in cache.
func (m *Manager) SetPreview(key string, data []byte) error {
	return m.previewCache.Set(key, data)
}

// GetFrame retrieves and decompresses a frame payload.
func (m *Manager) GetFrame(key string) ([]byte, bool) {
	compressed, ok := m.frameCache.Get(key)
	if !ok {
		return nil, false
	}
	data, err := m.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetFrame compresses and stores a frame payload.
func (m *Manager) SetFrame(key string, data []byte) {
	m.frameCache.Add(key, m.encoder.EncodeAll(data, nil))
}

// PreviewKey generates a cache key for a rendered preview. The transfer
// function fingerprint keys the cache off the visible mapping.
func PreviewKey(viewerID, volumeID, plane string, index int, fingerprint uint64) string {
	return fmt.Sprintf("preview:%s:%s:%s/%d:%x", viewerID, volumeID, plane, index, fingerprint)
}

// FrameKey generates a cache key for a decoded slice frame.
func FrameKey(volumeID string, index int) string {
	return fmt.Sprintf("frame:%s/%d", volumeID, index)
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"preview_cache_len": m.previewCache.Len(),
		"preview_cache_cap": m.previewCache.Capacity(),
		"frame_cache_len":   m.frameCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	m.encoder.Close()
	m.decoder.Close()
	return m.previewCache.Close()
}
