// Package httpcache caches HTTP responses from the availability endpoint
// in memory, with an optional gob snapshot on disk so the cache survives
// restarts.
package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

const snapshotName = "avail-cache.gob"

// Entry is one cached response body with its expiry.
type Entry struct {
	ExpiresAt time.Time `json:"expires_at"`
	ETag      string    `json:"etag,omitempty"`
	Data      []byte    `json:"data"`
}

// Cache is an otter-backed response cache keyed by URL digest.
type Cache struct {
	cache      otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	mu         sync.Mutex
}

// New creates a disk-backed cache under dir, loading any previous
// snapshot and saving periodically until the context is done.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	c := newMemory(ttl, logger)
	c.dir = dir

	if err := c.loadFromDisk(); err != nil {
		logger.Warn("failed to load cache from disk", "error", err)
	}
	logger.Info("cache initialized", "dir", dir, "entries_loaded", c.cache.EstimatedSize())

	c.startPeriodicSave(ctx)
	return c, nil
}

// NewMemoryOnly creates a cache that never touches disk, for server
// deployments with ephemeral filesystems.
func NewMemoryOnly(ttl time.Duration, logger *slog.Logger) *Cache {
	c := newMemory(ttl, logger)
	logger.Info("memory-only cache initialized", "ttl", ttl)
	return c
}

func newMemory(ttl time.Duration, logger *slog.Logger) *Cache {
	cache := otter.Must(&otter.Options[string, Entry]{
		MaximumSize:      100_000,
		InitialCapacity:  10_000,
		ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
	})
	return &Cache{
		cache:  *cache,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(url string) string {
	h := sha256.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached body and ETag for url, if present and fresh.
func (c *Cache) Get(url string) (data []byte, etag string, ok bool) {
	entry, found := c.cache.GetIfPresent(cacheKey(url))
	if !found {
		c.logger.Debug("cache miss", "url", url, "reason", "not_found")
		return nil, "", false
	}

	// Otter expires on write TTL already; double-check against entries
	// restored from an old snapshot.
	if time.Now().After(entry.ExpiresAt) {
		c.logger.Debug("cache miss", "url", url, "reason", "expired", "expired_at", entry.ExpiresAt)
		c.cache.Invalidate(cacheKey(url))
		return nil, "", false
	}

	return entry.Data, entry.ETag, true
}

// Set stores a response body for url.
func (c *Cache) Set(url string, data []byte, etag string) {
	entry := Entry{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
		ETag:      etag,
	}
	c.cache.Set(cacheKey(url), entry)
	c.logger.Debug("cache set", "url", url, "expires_at", entry.ExpiresAt, "size", len(data))
}

func (c *Cache) loadFromDisk() error {
	cachePath := filepath.Join(c.dir, snapshotName)

	file, err := os.Open(cachePath)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Info("no existing cache file found", "path", cachePath)
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			c.logger.Debug("failed to close cache file", "error", closeErr)
		}
	}()

	var entries map[string]Entry
	if err := gob.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}

	now := time.Now()
	valid := 0
	for key, entry := range entries {
		if now.Before(entry.ExpiresAt) {
			c.cache.Set(key, entry)
			valid++
		}
	}

	c.logger.Info("cache loaded from disk",
		"path", cachePath,
		"total_entries", len(entries),
		"valid_entries", valid,
		"expired_entries", len(entries)-valid)
	return nil
}

func (c *Cache) saveToDisk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cachePath := filepath.Join(c.dir, snapshotName)
	tempPath := cachePath + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			c.logger.Debug("failed to remove temp file", "error", removeErr)
		}
	}()

	entries := make(map[string]Entry)
	now := time.Now()
	c.cache.All()(func(key string, entry Entry) bool {
		if now.Before(entry.ExpiresAt) {
			entries[key] = entry
		}
		return true
	})

	if err := gob.NewEncoder(file).Encode(entries); err != nil {
		return fmt.Errorf("encoding cache to file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}

	if err := os.Rename(tempPath, cachePath); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}

	c.logger.Info("cache saved to disk", "entries", len(entries), "path", cachePath)
	return nil
}

func (c *Cache) startPeriodicSave(ctx context.Context) {
	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel

	c.saveWg.Add(1)
	go func() {
		defer c.saveWg.Done()

		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := c.saveToDisk(); err != nil {
					c.logger.Error("periodic cache save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the periodic saver and, for disk-backed caches, writes a
// final snapshot.
func (c *Cache) Close() error {
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()

	if c.dir == "" {
		return nil
	}
	if err := c.saveToDisk(); err != nil {
		c.logger.Error("final cache save failed", "error", err)
		return err
	}
	c.logger.Info("cache closed and saved to disk")
	return nil
}

// Stats reports basic cache statistics.
func (c *Cache) Stats() map[string]any {
	return map[string]any{
		"size": c.cache.EstimatedSize(),
	}
}

// Doer is the subset of http.Client the cached client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps an HTTP client with read-through caching of GET
// responses. Non-GET requests pass straight through.
type Client struct {
	cache  *Cache
	doer   Doer
	logger *slog.Logger
}

// NewClient creates a cached HTTP client. A nil cache disables caching.
func NewClient(cache *Cache, doer Doer, logger *slog.Logger) *Client {
	return &Client{cache: cache, doer: doer, logger: logger}
}

// Do performs req, serving GET responses from cache when fresh. Cached
// responses carry an X-From-Cache header.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.cache == nil || req.Method != http.MethodGet {
		return c.doer.Do(req)
	}

	url := req.URL.String()
	if data, etag, found := c.cache.Get(url); found {
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
			Request:    req,
		}
		resp.Header.Set("X-From-Cache", "true")
		if etag != "" {
			resp.Header.Set("ETag", etag)
		}
		return resp, nil
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close response body", "error", closeErr)
		}
		if err != nil {
			return nil, err
		}

		c.cache.Set(url, body, resp.Header.Get("ETag"))
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	return resp, nil
}
