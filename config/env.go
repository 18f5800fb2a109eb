package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env if present. Call once from main() before anything
// reads configuration; missing .env is not an error (Cloud Run sets env
// directly).
func LoadEnv() {
	godotenv.Load()
}

func RezdyBaseURL() string {
	v := strings.TrimSpace(os.Getenv("REZDY_BASE_URL"))
	if v == "" {
		return "https://api.rezdy.com/v1"
	}
	return strings.TrimRight(v, "/")
}

func RezdyAPIKey() string {
	return strings.TrimSpace(os.Getenv("REZDY_API_KEY"))
}

func RedisAddress() string {
	return strings.TrimSpace(os.Getenv("REDIS_ADDRESS"))
}

// SessionTTL is the default session lifespan. Env: SESSION_TTL_SECONDS (default 3600).
func SessionTTL() time.Duration {
	ttl := 3600
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func PickupDataDir() string {
	v := strings.TrimSpace(os.Getenv("PICKUP_DATA_DIR"))
	if v == "" {
		return "data/pickups"
	}
	return v
}

func AdminEmail() string {
	return strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
}

// AdminPasswordHash is a bcrypt hash. Login is disabled when unset.
func AdminPasswordHash() string {
	return strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))
}

func Port() string {
	v := strings.TrimSpace(os.Getenv("PORT"))
	if v == "" {
		return "8080"
	}
	return v
}
