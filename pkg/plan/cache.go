package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Cache holds every plan loaded from a hold tree (spec.md GLOSSARY:
// "the on-disk root containing all plans"), keyed by package name, and
// reloads entries when the underlying plan file changes. Lifetimes
// (spec.md §3): "plans are owned by the plan cache (reloadable from
// disk)".
type Cache struct {
	root string

	mu    sync.RWMutex
	plans map[string]*Plan

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewCache loads the `plan.toml` file of each immediate subdirectory of
// root (one plan directory per package, `<root>/<name>/plan.toml`) and
// starts a filesystem watch on root and on each loaded plan directory for live
// reloads, using fsnotify the same way config-reload watchers commonly
// do: react to on-disk changes without polling.
func NewCache(root string) (*Cache, error) {
	c := &Cache{root: root, plans: make(map[string]*Plan), done: make(chan struct{})}
	if err := c.loadAll(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		// A cache without live-reload still serves the initial load; the
		// watch is a convenience, not a correctness requirement.
		log.Warn().Err(err).Msg("plan cache: filesystem watch unavailable, reload disabled")
		return c, nil
	}
	c.watcher = w
	if err := w.Add(root); err != nil {
		log.Warn().Err(err).Str("root", root).Msg("plan cache: failed to watch hold tree root")
	}
	for _, p := range c.plans {
		if err := w.Add(p.Dir); err != nil {
			log.Warn().Err(err).Str("dir", p.Dir).Msg("plan cache: failed to watch plan directory")
		}
	}
	go c.watchLoop()
	return c, nil
}

func (c *Cache) loadAll() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("plan cache: reading hold tree %s: %w", c.root, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		planFile := filepath.Join(c.root, e.Name(), "plan.toml")
		if _, err := os.Stat(planFile); err != nil {
			continue
		}
		p, err := ParseFile(planFile)
		if err != nil {
			log.Warn().Err(err).Str("plan", planFile).Msg("plan cache: skipping invalid plan")
			continue
		}
		c.plans[p.Name] = p
	}
	return nil
}

func (c *Cache) watchLoop() {
	for {
		select {
		case ev, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c.reloadOne(ev.Name)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("plan cache: watch error")
		case <-c.done:
			return
		}
	}
}

func (c *Cache) reloadOne(changedPath string) {
	dir := filepath.Dir(changedPath)
	planFile := filepath.Join(dir, "plan.toml")
	p, err := ParseFile(planFile)
	if err != nil {
		log.Warn().Err(err).Str("plan", planFile).Msg("plan cache: reload failed, keeping prior version")
		return
	}
	c.mu.Lock()
	c.plans[p.Name] = p
	c.mu.Unlock()
}

// Lookup returns the plan by name, or nil if absent.
func (c *Cache) Lookup(name string) *Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.plans[name]
}

// All returns a snapshot of every cached plan.
func (c *Cache) All() []*Plan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	return out
}

// Close stops the filesystem watch.
func (c *Cache) Close() error {
	close(c.done)
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
