// Package toolcost is the tool cost catalog: a cached copy of the price
// list that callers construct explicitly and refresh on demand.
package toolcost

import (
	"context"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Loader reads the full price list from its source.
type Loader interface {
	LoadToolCosts(ctx context.Context) ([]Entry, error)
}

// Catalog caches the price list. Reads never hit the Loader.
type Catalog struct {
	loader Loader

	mu        sync.RWMutex
	entries   map[string]Entry
	refreshed time.Time
}

// NewCatalog creates an empty catalog. Call Refresh before serving.
func NewCatalog(loader Loader) *Catalog {
	return &Catalog{loader: loader, entries: make(map[string]Entry)}
}

// Refresh reloads the price list. On error the old list stays in place.
func (c *Catalog) Refresh(ctx context.Context) error {
	list, err := c.loader.LoadToolCosts(ctx)
	if err != nil {
		return err
	}

	entries := make(map[string]Entry, len(list))
	for _, e := range list {
		if err := e.Validate(); err != nil {
			log.WithError(err).Warn("Skipping invalid tool cost entry")
			continue
		}
		entries[e.ToolType] = e
	}

	c.mu.Lock()
	c.entries = entries
	c.refreshed = time.Now()
	c.mu.Unlock()

	log.WithField("tools", len(entries)).Debug("Tool cost catalog refreshed")
	return nil
}

// GetCost returns the configured cost, or 0 when the tool is unknown or
// inactive. Zero-cost tools are free.
func (c *Catalog) GetCost(toolType string) int64 {
	e, ok := c.Lookup(toolType)
	if !ok || !e.Active {
		return 0
	}
	return e.CreditCost
}

// Lookup returns the raw entry, active or not.
func (c *Catalog) Lookup(toolType string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[toolType]
	return e, ok
}

// Entries returns the active tools sorted by type.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Active {
			out = append(out, e)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ToolType < out[j].ToolType })
	return out
}

// RefreshedAt returns when the catalog was last loaded.
func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}
