// Package tourcache is the read-through cache between the catalog routes and
// the booking platform. Entries are typed per entity and replaced atomically
// per key; upstream failures are surfaced, never cached. Concurrent misses for
// the same key may fetch more than once: fetches are idempotent reads and the
// duplicate call is cheaper than single-flight coordination here.
package tourcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshua0006/pineapple-tours--1--sub006/rezdy"
	"github.com/joshua0006/pineapple-tours--1--sub006/utils"
)

// Fetcher is the slice of the upstream client the warming operations need.
type Fetcher interface {
	GetCategories(ctx context.Context) ([]rezdy.Category, error)
	GetCategoryProducts(ctx context.Context, categoryID int) ([]rezdy.Product, error)
}

type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

type HealthReport struct {
	EntryCount      int     `json:"entryCount"`
	HitRateEstimate float64 `json:"hitRateEstimate"`
	OldestEntryAge  string  `json:"oldestEntryAge"`
}

type Metrics struct {
	Hits            uint64 `json:"hits"`
	Misses          uint64 `json:"misses"`
	FetchCount      uint64 `json:"fetchCount"`
	FetchErrors     uint64 `json:"fetchErrors"`
	AvgFetchLatency string `json:"avgFetchLatency"`
}

type Manager struct {
	mu      sync.RWMutex
	entries map[string]entry

	policy  map[EntityType]time.Duration
	fetcher Fetcher
	logger  *logrus.Logger

	statsMu    sync.Mutex
	hits       uint64
	misses     uint64
	fetchCount uint64
	fetchErrs  uint64
	fetchNanos int64

	now func() time.Time
}

func NewManager(fetcher Fetcher, logger *logrus.Logger) *Manager {
	return &Manager{
		entries: map[string]entry{},
		policy:  defaultPolicy(),
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// TTL exposes the policy for a given entity type (consumers mirror it into
// Cache-Control headers).
func (m *Manager) TTL(entity EntityType) time.Duration {
	return m.policy[entity]
}

// Put fully replaces the prior value for the key; there is no partial write.
func (m *Manager) Put(entity EntityType, cacheKey string, value any) {
	m.mu.Lock()
	m.entries[cacheKey] = entry{
		value:    value,
		storedAt: m.now(),
		ttl:      m.policy[entity],
	}
	m.mu.Unlock()
}

func (m *Manager) lookup(cacheKey string) (any, bool) {
	m.mu.RLock()
	e, ok := m.entries[cacheKey]
	m.mu.RUnlock()
	if !ok || m.now().Sub(e.storedAt) >= e.ttl {
		m.trackMiss()
		return nil, false
	}
	m.trackHit()
	return e.value, true
}

// Get reports a miss for expired entries at read time; nothing depends on a
// background eviction.
func Get[T any](m *Manager, cacheKey string) (T, bool) {
	var zero T
	raw, ok := m.lookup(cacheKey)
	if !ok {
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return value, true
}

// GetOrFetch returns (value, hit, err). On a miss it invokes the supplied
// fetch; the result is stored only on success, so a failed or cancelled fetch
// leaves no entry behind and a later Get still reports a miss.
func GetOrFetch[T any](ctx context.Context, m *Manager, entity EntityType, cacheKey string, fetch func(ctx context.Context) (T, error)) (T, bool, error) {
	if cached, ok := Get[T](m, cacheKey); ok {
		return cached, true, nil
	}

	started := time.Now()
	value, err := fetch(ctx)
	m.trackFetch(time.Since(started), err)
	if err != nil {
		var zero T
		return zero, false, fmt.Errorf("%w: fetch %s: %w", utils.ErrUpstreamUnavailable, cacheKey, err)
	}

	m.Put(entity, cacheKey, value)
	return value, false, nil
}

// InitializeCache warms the category list through the same read-through path
// a request would take, so warmed entries are indistinguishable from organic
// ones.
func (m *Manager) InitializeCache(ctx context.Context) error {
	if m.fetcher == nil {
		return utils.ErrConfigMissing
	}
	_, hit, err := GetOrFetch(ctx, m, EntityCategories, Key(EntityCategories, "visible"), func(ctx context.Context) ([]rezdy.Category, error) {
		return m.fetcher.GetCategories(ctx)
	})
	if err != nil {
		return err
	}
	m.logger.WithFields(logrus.Fields{
		"module":      "tourcache",
		"alreadyWarm": hit,
	}).Info("category cache initialized")
	return nil
}

func (m *Manager) PreloadCategory(ctx context.Context, categoryID int) error {
	if m.fetcher == nil {
		return utils.ErrConfigMissing
	}
	_, _, err := GetOrFetch(ctx, m, EntityProducts, Key(EntityProducts, "category", fmt.Sprint(categoryID)), func(ctx context.Context) ([]rezdy.Product, error) {
		return m.fetcher.GetCategoryProducts(ctx, categoryID)
	})
	return err
}

// HealthStatus and PerformanceMetrics are advisory snapshots; they never gate
// correctness.
func (m *Manager) HealthStatus() HealthReport {
	m.mu.RLock()
	count := len(m.entries)
	var oldest time.Time
	for _, e := range m.entries {
		if oldest.IsZero() || e.storedAt.Before(oldest) {
			oldest = e.storedAt
		}
	}
	m.mu.RUnlock()

	report := HealthReport{EntryCount: count}
	if !oldest.IsZero() {
		report.OldestEntryAge = m.now().Sub(oldest).Round(time.Second).String()
	}

	m.statsMu.Lock()
	if total := m.hits + m.misses; total > 0 {
		report.HitRateEstimate = float64(m.hits) / float64(total)
	}
	m.statsMu.Unlock()
	return report
}

func (m *Manager) PerformanceMetrics() Metrics {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	metrics := Metrics{
		Hits:        m.hits,
		Misses:      m.misses,
		FetchCount:  m.fetchCount,
		FetchErrors: m.fetchErrs,
	}
	if m.fetchCount > 0 {
		metrics.AvgFetchLatency = (time.Duration(m.fetchNanos) / time.Duration(m.fetchCount)).String()
	}
	return metrics
}

func (m *Manager) trackHit() {
	m.statsMu.Lock()
	m.hits++
	m.statsMu.Unlock()
}

func (m *Manager) trackMiss() {
	m.statsMu.Lock()
	m.misses++
	m.statsMu.Unlock()
}

func (m *Manager) trackFetch(took time.Duration, err error) {
	m.statsMu.Lock()
	m.fetchCount++
	m.fetchNanos += took.Nanoseconds()
	if err != nil {
		m.fetchErrs++
	}
	m.statsMu.Unlock()
}
