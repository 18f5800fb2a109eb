// Package pickups answers "where does this tour pick up from" by preferring a
// locally indexed copy of the pickup data over the paid, rate-limited upstream
// lookup. The index is built from data files by an explicit rebuild, never on
// a request path.
package pickups

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshua0006/pineapple-tours--1--sub006/rezdy"
)

// productFile is the on-disk shape: one JSON file per product under the data
// directory.
type productFile struct {
	ProductCode string                 `json:"productCode"`
	Pickups     []rezdy.PickupLocation `json:"pickups"`
}

type indexEntry struct {
	pickups       []rezdy.PickupLocation
	hasPickupData bool

	// Usage telemetry, mutated on every local hit; independent of the
	// pickup data itself.
	lastAccessed time.Time
	accessCount  int64
}

type RefreshSummary struct {
	TotalProducts       int       `json:"totalProducts"`
	ProductsWithPickups int       `json:"productsWithPickups"`
	LastUpdated         time.Time `json:"lastUpdated"`
}

type LocationStats struct {
	TotalProducts       int `json:"totalProducts"`
	ProductsWithPickups int `json:"productsWithPickups"`
	TotalLocations      int `json:"totalLocations"`
}

type IndexMetadata struct {
	DataDir      string     `json:"dataDir"`
	BuiltAt      *time.Time `json:"builtAt,omitempty"`
	ProductCount int        `json:"productCount"`
	TotalReads   int64      `json:"totalReads"`
}

type Index struct {
	mu        sync.RWMutex
	byProduct map[string]*indexEntry
	builtAt   time.Time

	dataDir string
	logger  *logrus.Logger
	now     func() time.Time
}

func NewIndex(dataDir string, logger *logrus.Logger) *Index {
	return &Index{
		byProduct: map[string]*indexEntry{},
		dataDir:   dataDir,
		logger:    logger,
		now:       time.Now,
	}
}

// RefreshIndex rebuilds the whole index from the data directory and swaps it
// in atomically; readers see either the old index or the new one, never a
// partial rebuild. Unparseable files are skipped with a log line rather than
// failing the rebuild.
func (idx *Index) RefreshIndex() (RefreshSummary, error) {
	files, err := filepath.Glob(filepath.Join(idx.dataDir, "*.json"))
	if err != nil {
		return RefreshSummary{}, fmt.Errorf("scan pickup data dir %s: %w", idx.dataDir, err)
	}

	fresh := map[string]*indexEntry{}
	withPickups := 0
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			idx.logger.WithFields(logrus.Fields{"module": "pickups", "file": path}).Warn("skipping unreadable pickup file: " + err.Error())
			continue
		}
		var pf productFile
		if err := json.Unmarshal(raw, &pf); err != nil {
			idx.logger.WithFields(logrus.Fields{"module": "pickups", "file": path}).Warn("skipping malformed pickup file: " + err.Error())
			continue
		}
		code := strings.TrimSpace(pf.ProductCode)
		if code == "" {
			continue
		}
		entry := &indexEntry{
			pickups:       pf.Pickups,
			hasPickupData: len(pf.Pickups) > 0,
		}
		if entry.hasPickupData {
			withPickups++
		}
		fresh[code] = entry
	}

	built := idx.now()
	idx.mu.Lock()
	idx.byProduct = fresh
	idx.builtAt = built
	idx.mu.Unlock()

	summary := RefreshSummary{
		TotalProducts:       len(fresh),
		ProductsWithPickups: withPickups,
		LastUpdated:         built,
	}
	idx.logger.WithFields(logrus.Fields{
		"module":              "pickups",
		"totalProducts":       summary.TotalProducts,
		"productsWithPickups": summary.ProductsWithPickups,
	}).Info("pickup index rebuilt")
	return summary, nil
}

// lookup returns the indexed pickups and records the access. Telemetry is
// only touched on this branch; upstream fallbacks never mutate the index.
func (idx *Index) lookup(productCode string) ([]rezdy.PickupLocation, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	entry, ok := idx.byProduct[productCode]
	if !ok || !entry.hasPickupData {
		return nil, false
	}
	entry.lastAccessed = idx.now()
	entry.accessCount++
	return entry.pickups, true
}

func (idx *Index) Stats() LocationStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	stats := LocationStats{TotalProducts: len(idx.byProduct)}
	for _, entry := range idx.byProduct {
		if entry.hasPickupData {
			stats.ProductsWithPickups++
			stats.TotalLocations += len(entry.pickups)
		}
	}
	return stats
}

func (idx *Index) Metadata() IndexMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	meta := IndexMetadata{
		DataDir:      idx.dataDir,
		ProductCount: len(idx.byProduct),
	}
	if !idx.builtAt.IsZero() {
		built := idx.builtAt
		meta.BuiltAt = &built
	}
	for _, entry := range idx.byProduct {
		meta.TotalReads += entry.accessCount
	}
	return meta
}
