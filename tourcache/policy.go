package tourcache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type EntityType string

const (
	EntityCategories   EntityType = "categories"
	EntityProducts     EntityType = "products"
	EntityTour         EntityType = "tour"
	EntityAvailability EntityType = "availability"
	EntityPickups      EntityType = "pickups"
)

// TTL policy is keyed by entity type, not a single global value: availability
// is time-sensitive and must favor freshness, categories barely change.
// Env overrides: CACHE_TTL_<ENTITY>_SECONDS.
func defaultPolicy() map[EntityType]time.Duration {
	return map[EntityType]time.Duration{
		EntityCategories:   ttlFromEnv("CACHE_TTL_CATEGORIES_SECONDS", 30*time.Minute),
		EntityProducts:     ttlFromEnv("CACHE_TTL_PRODUCTS_SECONDS", 30*time.Minute),
		EntityTour:         ttlFromEnv("CACHE_TTL_TOUR_SECONDS", time.Hour),
		EntityAvailability: ttlFromEnv("CACHE_TTL_AVAILABILITY_SECONDS", time.Minute),
		EntityPickups:      ttlFromEnv("CACHE_TTL_PICKUPS_SECONDS", time.Hour),
	}
}

func ttlFromEnv(name string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

// Key builds the composite cache key: <entityType>:<canonicalized-params>.
// Distinct parameter sets must never collide, so every part is included in
// order.
func Key(entity EntityType, parts ...string) string {
	if len(parts) == 0 {
		return string(entity)
	}
	return string(entity) + ":" + strings.Join(parts, ":")
}
