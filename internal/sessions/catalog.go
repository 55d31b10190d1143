package sessions

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AaronLay10/ReelEngine/internal/events"
	"github.com/AaronLay10/ReelEngine/internal/scenario"
)

// Summary describes a catalog entry for listings.
type Summary struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Source    string `json:"source"`
	Nodes     int    `json:"nodes"`
	EntryNode string `json:"entry_node,omitempty"`
	Dangling  int    `json:"dangling"`
	Terminals int    `json:"terminals"`
}

// Catalog holds the validated scenarios sessions can be started from.
// Scenarios are immutable once added and shared by every session.
type Catalog struct {
	mu        sync.RWMutex
	scenarios map[string]*scenario.Scenario
	sources   map[string]string
}

func NewCatalog() *Catalog {
	return &Catalog{
		scenarios: make(map[string]*scenario.Scenario),
		sources:   make(map[string]string),
	}
}

// Add registers sc under its id.
func (c *Catalog) Add(sc *scenario.Scenario, source string) error {
	if sc.ID == "" {
		return fmt.Errorf("scenario from %s has no id", source)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.sources[sc.ID]; ok {
		return &DuplicateScenarioError{ID: sc.ID, Sources: []string{prev, source}}
	}
	c.scenarios[sc.ID] = sc
	c.sources[sc.ID] = source
	return nil
}

// LoadDir loads every scenario document (.json, .yaml, .yml) and package
// (.reel, .zip) directly under dir. Files that fail to load are reported and
// skipped; the returned error joins all of their errors.
func (c *Catalog) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var (
		loaded int
		errs   []error
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		sc, err := loadSource(path)
		if sc == nil && err == nil {
			continue
		}
		if err != nil {
			reportRejected(path, err)
		} else {
			err = c.register(sc, path)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}

	return loaded, errors.Join(errs...)
}

// AddPackage registers the scenario of an uploaded .reel package.
func (c *Catalog) AddPackage(r io.ReaderAt, size int64, source string) (*scenario.Scenario, error) {
	pkg, err := scenario.ReadPackageFrom(r, size)
	if err != nil {
		reportRejected(source, err)
		return nil, err
	}
	if err := c.register(pkg.Scenario, source); err != nil {
		return nil, err
	}
	if missing := pkg.MissingMedia(); len(missing) > 0 {
		events.Emit("warn", "scenario.media_missing", "", map[string]interface{}{
			"scenario_id": pkg.Scenario.ID,
			"missing":     missing,
		})
	}
	return pkg.Scenario, nil
}

// register adds sc and reports the outcome on the event log.
func (c *Catalog) register(sc *scenario.Scenario, source string) error {
	if err := c.Add(sc, source); err != nil {
		reportRejected(source, err)
		return err
	}
	events.Emit("info", "scenario.loaded", "", map[string]interface{}{
		"scenario_id": sc.ID,
		"source":      source,
		"nodes":       len(sc.Nodes),
	})
	if dangling := sc.Dangling(); len(dangling) > 0 {
		events.Emit("warn", "scenario.dangling", "", map[string]interface{}{
			"scenario_id": sc.ID,
			"count":       len(dangling),
		})
	}
	return nil
}

func reportRejected(source string, err error) {
	events.Emit("warn", "scenario.rejected", "", map[string]interface{}{
		"source": source,
		"error":  err.Error(),
	})
}

// loadSource returns nil, nil for files that are not scenarios.
func loadSource(path string) (*scenario.Scenario, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json", ".yaml", ".yml":
		return scenario.LoadFile(path)
	case ".reel", ".zip":
		pkg, err := scenario.ReadPackage(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if pkg.Scenario.ID == "" {
			pkg.Scenario.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return pkg.Scenario, nil
	}
	return nil, nil
}

// Get returns the scenario with the given id.
func (c *Catalog) Get(id string) (*scenario.Scenario, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sc, ok := c.scenarios[id]
	return sc, ok
}

// List returns summaries of every scenario sorted by id.
func (c *Catalog) List() []Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Summary, 0, len(c.scenarios))
	for id, sc := range c.scenarios {
		s := Summary{
			ID:        id,
			Title:     sc.Title,
			Source:    c.sources[id],
			Nodes:     len(sc.Nodes),
			Dangling:  len(sc.Dangling()),
			Terminals: len(sc.Terminals()),
		}
		if entry, err := scenario.ResolveEntryNode(sc); err == nil {
			s.EntryNode = entry
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of scenarios.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scenarios)
}
