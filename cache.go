package ouicomply

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// DocumentHandle identifies a document already known to the remote
// service. Immutable once created; evicted only by an explicit Clear.
type DocumentHandle struct {
	ContentHash string    `json:"content_hash"`
	RemoteID    string    `json:"remote_id"`
	MediaType   string    `json:"media_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// CacheStats is the observability snapshot exposed to admin tooling.
type CacheStats struct {
	Entries int `json:"entries"`
}

// DocumentCache maps a SHA-256 digest of raw document bytes to the handle
// obtained from a previous upload, so byte-identical re-submissions never
// hit the remote service twice. Entries are never evicted automatically;
// a long-lived server should call Clear from its admin surface.
type DocumentCache struct {
	uploader Uploader
	log      *slog.Logger

	mu       sync.Mutex
	handles  map[string]DocumentHandle
	inflight map[string]chan struct{}
}

// NewDocumentCache builds an empty cache over the given uploader.
func NewDocumentCache(uploader Uploader, log *slog.Logger) *DocumentCache {
	return &DocumentCache{
		uploader: uploader,
		log:      orDefault(log),
		handles:  make(map[string]DocumentHandle),
		inflight: make(map[string]chan struct{}),
	}
}

// GetOrUpload returns the cached handle for the exact bytes, uploading on
// first sight. Concurrent callers with the same content collapse onto a
// single upload: later arrivals wait for the in-flight one and re-check.
// Upload failure propagates unmodified and caches nothing.
func (c *DocumentCache) GetOrUpload(ctx context.Context, data []byte, mediaType string) (DocumentHandle, error) {
	if len(data) == 0 {
		return DocumentHandle{}, ErrEmptyDocument
	}
	if mediaType == "" {
		mediaType = mimetype.Detect(data).String()
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	for {
		c.mu.Lock()
		if h, ok := c.handles[hash]; ok {
			c.mu.Unlock()
			c.log.Debug("document cache hit", "hash", hash, "remote_id", h.RemoteID)
			return h, nil
		}
		wait, racing := c.inflight[hash]
		if !racing {
			done := make(chan struct{})
			c.inflight[hash] = done
			c.mu.Unlock()

			h, err := c.upload(ctx, hash, data, mediaType)

			c.mu.Lock()
			delete(c.inflight, hash)
			if err == nil {
				c.handles[hash] = h
			}
			c.mu.Unlock()
			close(done)
			return h, err
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return DocumentHandle{}, ctx.Err()
		case <-wait:
			// The winner either cached a handle or failed; loop and re-check.
			// On failure we take our own turn at uploading.
		}
	}
}

func (c *DocumentCache) upload(ctx context.Context, hash string, data []byte, mediaType string) (DocumentHandle, error) {
	c.log.Debug("uploading document", "hash", hash, "size", len(data), "media_type", mediaType)
	remoteID, err := c.uploader.Upload(ctx, data, mediaType)
	if err != nil {
		return DocumentHandle{}, fmt.Errorf("upload document: %w", err)
	}
	h := DocumentHandle{
		ContentHash: hash,
		RemoteID:    remoteID,
		MediaType:   mediaType,
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
	}
	c.log.Debug("document uploaded", "hash", hash, "remote_id", remoteID)
	return h, nil
}

// peek returns the cached handle for the exact bytes without uploading.
func (c *DocumentCache) peek(data []byte) (DocumentHandle, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handles[hash]; ok {
		return h, nil
	}
	return DocumentHandle{}, fmt.Errorf("no handle for hash %s", hash)
}

// Stats reports the current entry count. No side effects.
func (c *DocumentCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.handles)}
}

// Clear drops all entries. Remote-side documents are not revoked; the
// service exposes no delete API for them.
func (c *DocumentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = make(map[string]DocumentHandle)
}
