// Package cache keeps lookup responses (DNS, WHOIS, geolocation) on disk so
// repeated runs inside cache_ttl do not hit upstream services again.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/pantest/internal/logger"
)

type Cache struct {
	dir    string
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time

	mu  sync.RWMutex
	mem map[string]*entry
}

type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	Key       string          `json:"key"`
}

// New opens a cache rooted at dir.
func New(dir string, ttl time.Duration, log *logger.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		dir:    dir,
		ttl:    ttl,
		logger: log.WithComponent("cache"),
		now:    time.Now,
		mem:    make(map[string]*entry),
	}, nil
}

// Key joins a service name and request parts into a cache key.
func Key(service string, parts ...string) string {
	return service + ":" + strings.Join(parts, ":")
}

func (c *Cache) fresh(e *entry) bool {
	return c.now().Sub(e.Timestamp) < c.ttl
}

// Get decodes the cached value for key into out and reports a hit.
func (c *Cache) Get(key string, out interface{}) bool {
	if c == nil {
		return false
	}

	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()

	if !ok {
		data, err := os.ReadFile(c.filename(key))
		if err != nil {
			return false
		}
		e = &entry{}
		if err := json.Unmarshal(data, e); err != nil {
			_ = os.Remove(c.filename(key))
			return false
		}
	}

	if !c.fresh(e) {
		c.mu.Lock()
		delete(c.mem, key)
		c.mu.Unlock()
		_ = os.Remove(c.filename(key))
		return false
	}

	if err := json.Unmarshal(e.Data, out); err != nil {
		return false
	}

	c.mu.Lock()
	c.mem[key] = e
	c.mu.Unlock()

	c.logger.Debugw("Cache hit", "key", key)
	return true
}

func (c *Cache) Set(key string, value interface{}) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e := &entry{Data: data, Timestamp: c.now(), Key: key}

	c.mu.Lock()
	c.mem[key] = e
	c.mu.Unlock()

	encoded, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.filename(key), encoded, 0644)
}

func (c *Cache) Delete(key string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	delete(c.mem, key)
	c.mu.Unlock()

	err := os.Remove(c.filename(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// GetOrFetch serves key from the cache or calls fetch and stores its result.
// A nil cache always fetches.
func (c *Cache) GetOrFetch(key string, out interface{}, fetch func() (interface{}, error)) error {
	if c.Get(key, out) {
		return nil
	}

	data, err := fetch()
	if err != nil {
		return err
	}

	if err := c.Set(key, data); err != nil {
		c.logger.Warnw("Failed to cache response", "key", key, "error", err)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// Prune removes expired files and returns how many were dropped.
func (c *Cache) Prune() int {
	if c == nil {
		return 0
	}
	files, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0
	}

	expired := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil || !c.fresh(&e) {
			_ = os.Remove(file)
			expired++

			c.mu.Lock()
			delete(c.mem, e.Key)
			c.mu.Unlock()
		}
	}

	if expired > 0 {
		c.logger.Debugw("Cache pruned", "expired", expired)
	}
	return expired
}

func (c *Cache) filename(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}
