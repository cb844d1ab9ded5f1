package task

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Cache resolves a task reference through three layers: an in-memory
// registry (Register, for tests and embedded tasks), an on-disk cache
// root laid out `<dir>/<Name>/<version>/task.json`, and finally a
// network/local source lookup — not implemented here; a miss at this
// layer is a ManifestError, matching upstream's "task not found"
// behavior for anything not already cached.
type Cache struct {
	mu  sync.Mutex
	dir string
	mem map[string]*Manifest
}

// NewCache returns a Cache backed by dir for its on-disk layer. dir may
// be empty, in which case only the in-memory layer is consulted.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir, mem: make(map[string]*Manifest)}
}

// Register adds a manifest to the in-memory layer directly, keyed
// "Name@version", skipping the on-disk lookup entirely.
func (c *Cache) Register(name, version string, m *Manifest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[cacheKey(name, version)] = m
}

// Load resolves name@version through the in-memory layer, then the
// on-disk layer, returning the task's root directory (empty for
// in-memory-only entries) alongside the parsed manifest.
func (c *Cache) Load(name, version string) (*Manifest, string, error) {
	key := cacheKey(name, version)

	c.mu.Lock()
	if m, ok := c.mem[key]; ok {
		c.mu.Unlock()
		return m, "", nil
	}
	c.mu.Unlock()

	if c.dir == "" {
		return nil, "", manifestErr("task %q not found (no cache directory configured)", key)
	}

	root := filepath.Join(c.dir, name, version)
	manifestPath := filepath.Join(root, "task.json")
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, "", manifestErr("task %q: %v", key, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, "", manifestErr("task %q: invalid task.json: %v", key, err)
	}

	c.mu.Lock()
	c.mem[key] = &m
	c.mu.Unlock()

	return &m, root, nil
}

func cacheKey(name, version string) string {
	return name + "@" + version
}
