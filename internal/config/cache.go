package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/lai-prep-bridge/internal/domain"
)

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Reloads   int64     `json:"reloads"`
	Errors    int64     `json:"errors"`
	Entries   int       `json:"entries"`
	LastReset time.Time `json:"last_reset"`
}

type cacheEntry struct {
	cfg     *domain.Configuration
	modTime time.Time
	size    int64
}

// Cache keeps recently loaded configurations keyed by absolute path so
// long-running callers do not re-read and re-validate the file on every
// request. An entry is reloaded when the file's modification time or size
// changes, or once its TTL has elapsed.
type Cache struct {
	entries *expirable.LRU[string, cacheEntry]
	load    func(string) (*domain.Configuration, error)
	logger  *logrus.Logger

	mu    sync.Mutex
	stats CacheStats
}

// NewCache creates a configuration cache holding at most size entries.
func NewCache(size int, ttl time.Duration, logger *logrus.Logger) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Cache{
		entries: expirable.NewLRU[string, cacheEntry](size, nil, ttl),
		load:    Load,
		logger:  logger,
		stats:   CacheStats{LastReset: time.Now()},
	}, nil
}

// Get returns the configuration at path, loading it on a miss. An empty path
// is resolved with Find.
func (c *Cache) Get(path string) (*domain.Configuration, error) {
	if path == "" {
		found, err := Find()
		if err != nil {
			c.count(func(s *CacheStats) { s.Errors++ })
			return nil, err
		}
		path = found
	}

	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}

	info, statErr := os.Stat(key)
	if entry, ok := c.entries.Get(key); ok {
		if statErr == nil && info.ModTime().Equal(entry.modTime) && info.Size() == entry.size {
			c.count(func(s *CacheStats) { s.Hits++ })
			return entry.cfg, nil
		}
		c.entries.Remove(key)
		c.count(func(s *CacheStats) { s.Reloads++ })
		c.logger.WithField("path", key).Info("Configuration changed on disk, reloading")
	} else {
		c.count(func(s *CacheStats) { s.Misses++ })
	}

	cfg, err := c.load(key)
	if err != nil {
		c.count(func(s *CacheStats) { s.Errors++ })
		return nil, err
	}

	entry := cacheEntry{cfg: cfg}
	if statErr == nil {
		entry.modTime = info.ModTime()
		entry.size = info.Size()
	}
	c.entries.Add(key, entry)

	c.logger.WithFields(logrus.Fields{
		"path":    key,
		"version": cfg.Version,
	}).Debug("Configuration cached")
	return cfg, nil
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	c.entries.Remove(key)
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.entries.Len()
	return s
}

func (c *Cache) count(fn func(*CacheStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}
