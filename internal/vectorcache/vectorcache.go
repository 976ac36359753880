// Package vectorcache keeps a JSON-file-backed window of recently accepted
// articles and their embedding vectors. The pipeline compares new candidates
// against this window to reject semantic duplicates.
package vectorcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Entry is one accepted article remembered for duplicate comparison.
type Entry struct {
	Hash     string    `json:"hash"`
	Title    string    `json:"title"`
	Link     string    `json:"link"`
	Vector   []float32 `json:"vector,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

// Cache is a mutex-guarded in-memory map persisted to a JSON file.
type Cache struct {
	filePath string
	ttlHours int
	entries  map[string]Entry
	mu       sync.RWMutex
}

func New(filePath string, ttlHours int) *Cache {
	return &Cache{
		filePath: filePath,
		ttlHours: ttlHours,
		entries:  make(map[string]Entry),
	}
}

// Load reads the cache file, dropping entries outside the TTL window. A
// missing file is a valid empty cache.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("unmarshal cache: %w", err)
	}

	cutoff := c.cutoff()
	for _, e := range entries {
		if e.StoredAt.After(cutoff) {
			c.entries[e.Hash] = e
		}
	}
	return nil
}

// Save writes all current entries back to the file.
func (c *Cache) Save() error {
	c.mu.RLock()
	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if err := os.WriteFile(c.filePath, data, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// Hash builds a stable identity for an article from its normalized title and
// the link's domain, so the same story re-published under a tracking URL
// still collides.
func Hash(title, link string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(title))), " ")
	h := sha256.New()
	h.Write([]byte(normalized + "|" + extractDomain(link)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Contains reports whether an unexpired entry with this hash exists.
func (c *Cache) Contains(hash string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[hash]
	return ok && e.StoredAt.After(c.cutoff())
}

// Add records an accepted article with its vector.
func (c *Cache) Add(hash, title, link string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[hash] = Entry{
		Hash:     hash,
		Title:    title,
		Link:     link,
		Vector:   vector,
		StoredAt: time.Now(),
	}
}

// Recent returns all unexpired entries for vector comparison.
func (c *Cache) Recent() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cutoff := c.cutoff()
	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.StoredAt.After(cutoff) {
			entries = append(entries, e)
		}
	}
	return entries
}

// Cleanup drops expired entries from memory.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.cutoff()
	for hash, e := range c.entries {
		if e.StoredAt.Before(cutoff) {
			delete(c.entries, hash)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) cutoff() time.Time {
	return time.Now().Add(-time.Duration(c.ttlHours) * time.Hour)
}

func extractDomain(link string) string {
	if link == "" {
		return "unknown"
	}
	link = strings.TrimPrefix(link, "http://")
	link = strings.TrimPrefix(link, "https://")

	domain := strings.Split(link, "/")[0]
	domain = strings.TrimPrefix(domain, "www.")
	return strings.ToLower(domain)
}
