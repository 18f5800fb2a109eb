package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joshua0006/pineapple-tours--1--sub006/kvstore"
	"github.com/joshua0006/pineapple-tours--1--sub006/utils"
)

// countingKV wraps a KV and counts backend round trips.
type countingKV struct {
	kvstore.KV
	gets int
}

func (c *countingKV) Get(ctx context.Context, key string) (string, bool, error) {
	c.gets++
	return c.KV.Get(ctx, key)
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kvstore.NewMemoryKV(), time.Hour)

	sess, err := store.CreateSession(ctx, "user@x.com")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("CreateSession returned an empty id")
	}

	got, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Subject != "user@x.com" {
		t.Fatalf("Subject = %q, want user@x.com", got.Subject)
	}

	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := store.GetSession(ctx, sess.ID); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("GetSession after delete = %v, want ErrNotFound", err)
	}
	// Idempotent revocation.
	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("second DeleteSession: %v", err)
	}
}

func TestSessionIdsAreUnrelated(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kvstore.NewMemoryKV(), time.Hour)

	a, err := store.CreateSession(ctx, "user@x.com")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	b, err := store.CreateSession(ctx, "user@x.com")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("two sessions for the same subject share an id")
	}

	// Revoking one must leave the other intact.
	if err := store.DeleteSession(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := store.GetSession(ctx, b.ID); err != nil {
		t.Fatalf("sibling session lost after revocation: %v", err)
	}
}

func TestMalformedIdShortCircuits(t *testing.T) {
	ctx := context.Background()
	kv := &countingKV{KV: kvstore.NewMemoryKV()}
	store := NewStore(kv, time.Hour)

	for _, id := range []string{"", "not-a-uuid", "session:abc"} {
		if _, err := store.GetSession(ctx, id); !errors.Is(err, utils.ErrNotFound) {
			t.Fatalf("GetSession(%q) = %v, want ErrNotFound", id, err)
		}
	}
	if kv.gets != 0 {
		t.Fatalf("malformed ids reached the backend %d times", kv.gets)
	}
}

func TestRefreshSlidesExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewStore(kvstore.NewMemoryKV(), time.Hour)
	current := time.Now()
	store.now = func() time.Time { return current }

	sess, err := store.CreateSession(ctx, "user@x.com")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	current = current.Add(30 * time.Minute)
	if err := store.RefreshSession(ctx, sess.ID); err != nil {
		t.Fatalf("RefreshSession: %v", err)
	}

	got, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.ExpiresAt.After(sess.ExpiresAt) {
		t.Fatalf("expiry did not slide forward: %v -> %v", sess.ExpiresAt, got.ExpiresAt)
	}

	// Refreshing a revoked session is a no-op, not an error.
	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := store.RefreshSession(ctx, sess.ID); err != nil {
		t.Fatalf("RefreshSession after delete: %v", err)
	}
}
