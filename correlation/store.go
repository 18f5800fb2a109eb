// Package correlation holds booking submissions between the checkout request
// and the payment return/webhook that completes them. Entries live in process
// memory with a fixed one hour lifespan; an optional durable backend (shared
// with the session store) is written through so the return leg can land on a
// different instance and still find the order.
package correlation

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshua0006/pineapple-tours--1--sub006/config"
	"github.com/joshua0006/pineapple-tours--1--sub006/kvstore"
	"github.com/joshua0006/pineapple-tours--1--sub006/utils"
)

const (
	entryTTL      = time.Hour
	sweepInterval = 10 * time.Minute

	durableKeyPrefix = "booking:"
)

type Guest struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	GuestType string  `json:"guestType,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// BookingPayload is pass-through data: this layer never interprets it beyond
// the order number it is keyed by.
type BookingPayload struct {
	OrderNumber  string  `json:"orderNumber"`
	ContactName  string  `json:"contactName"`
	ContactEmail string  `json:"contactEmail"`
	ContactPhone string  `json:"contactPhone,omitempty"`
	ProductCode  string  `json:"productCode"`
	TotalAmount  float64 `json:"totalAmount"`
	Guests       []Guest `json:"guests,omitempty"`
}

type entry struct {
	payload   BookingPayload
	createdAt time.Time
	expiresAt time.Time
}

type Stats struct {
	TotalEntries   int        `json:"totalEntries"`
	ExpiredEntries int        `json:"expiredEntries"`
	OldestEntry    *time.Time `json:"oldestEntry,omitempty"`
}

type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	durable kvstore.KV // nil when no durable backend is configured
	logger  *logrus.Logger

	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewStore starts the sweep goroutine; call Shutdown to stop it.
func NewStore(logger *logrus.Logger, durable kvstore.KV) *Store {
	s := &Store{
		entries: map[string]entry{},
		durable: durable,
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

func (s *Store) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Store always succeeds in process; the durable write-through is best effort.
// Storing the same order number again replaces the previous payload.
func (s *Store) Store(ctx context.Context, orderKey string, payload BookingPayload) {
	created := s.now()
	s.mu.Lock()
	s.entries[orderKey] = entry{
		payload:   payload,
		createdAt: created,
		expiresAt: created.Add(entryTTL),
	}
	s.mu.Unlock()

	if s.durable != nil {
		encoded, err := utils.MarshalToJSON(payload)
		if err == nil {
			err = s.durable.Set(ctx, durableKeyPrefix+orderKey, encoded, entryTTL)
		}
		if err != nil {
			config.LogError(s.logger, "correlation", "Store", "durable write-through", orderKey, err)
		}
	}
}

// Retrieve checks expiry at read time, so correctness never depends on the
// sweep having run.
func (s *Store) Retrieve(orderKey string) (BookingPayload, error) {
	if strings.TrimSpace(orderKey) == "" {
		return BookingPayload{}, utils.ErrNotFound
	}
	s.mu.RLock()
	e, ok := s.entries[orderKey]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return BookingPayload{}, utils.ErrNotFound
	}
	return e.payload, nil
}

// RetrieveWithFallbacks re-tries the lookup under alternative key forms. The
// order number can arrive mangled across the payment redirect boundary
// (case changes, stray whitespace, percent-encoding), so each form is tried in
// a fixed order and the first hit wins. The durable backend, when configured,
// is the last resort.
func (s *Store) RetrieveWithFallbacks(ctx context.Context, orderKey string) (BookingPayload, error) {
	if payload, err := s.Retrieve(orderKey); err == nil {
		return payload, nil
	}

	for _, candidate := range fallbackKeys(orderKey) {
		if payload, err := s.Retrieve(candidate); err == nil {
			return payload, nil
		}
	}

	if s.durable != nil {
		for _, candidate := range append([]string{orderKey}, fallbackKeys(orderKey)...) {
			encoded, found, err := s.durable.Get(ctx, durableKeyPrefix+candidate)
			if err != nil {
				config.LogError(s.logger, "correlation", "RetrieveWithFallbacks", "durable lookup", candidate, err)
				continue
			}
			if !found {
				continue
			}
			var payload BookingPayload
			if err := utils.UnmarshalFromJSON([]byte(encoded), &payload); err != nil {
				config.LogError(s.logger, "correlation", "RetrieveWithFallbacks", "durable decode", candidate, err)
				continue
			}
			return payload, nil
		}
	}

	return BookingPayload{}, utils.ErrNotFound
}

func fallbackKeys(orderKey string) []string {
	seen := map[string]bool{orderKey: true}
	var keys []string
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	trimmed := strings.TrimSpace(orderKey)
	add(trimmed)
	add(strings.ToUpper(trimmed))
	if decoded, err := url.QueryUnescape(trimmed); err == nil {
		decoded = strings.TrimSpace(decoded)
		add(decoded)
		add(strings.ToUpper(decoded))
	}
	return keys
}

// Remove is idempotent.
func (s *Store) Remove(ctx context.Context, orderKey string) {
	s.mu.Lock()
	delete(s.entries, orderKey)
	s.mu.Unlock()

	if s.durable != nil {
		if err := s.durable.Del(ctx, durableKeyPrefix+orderKey); err != nil {
			config.LogError(s.logger, "correlation", "Remove", "durable delete", orderKey, err)
		}
	}
}

// Stats is operational visibility only; never use it for correctness.
func (s *Store) Stats() Stats {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{TotalEntries: len(s.entries)}
	for _, e := range s.entries {
		if now.After(e.expiresAt) {
			stats.ExpiredEntries++
		}
		if stats.OldestEntry == nil || e.createdAt.Before(*stats.OldestEntry) {
			created := e.createdAt
			stats.OldestEntry = &created
		}
	}
	return stats
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := s.removeExpired(); removed > 0 {
				s.logger.WithFields(logrus.Fields{
					"module":  "correlation",
					"removed": removed,
				}).Debug("swept expired booking entries")
			}
		case <-s.stop:
			return
		}
	}
}

// removeExpired shares the request-path lock, so a concurrent Retrieve either
// wins the race and returns the payload or loses it and reports not found;
// both are correct because Retrieve re-checks expiry itself.
func (s *Store) removeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
