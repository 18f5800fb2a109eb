package kvstore

import (
	"context"
	"testing"
	"time"
)

func TestMemoryKV_SetGetDel(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	if err := kv.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok || val != "v" {
		t.Fatalf("Get = (%q, %v, %v), want (v, true, nil)", val, ok, err)
	}

	if err := kv.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatal("Get after Del reported a hit")
	}
	// Deleting again must be a no-op.
	if err := kv.Del(ctx, "k"); err != nil {
		t.Fatalf("second Del: %v", err)
	}
}

func TestMemoryKV_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	current := time.Now()
	kv.now = func() time.Time { return current }

	if err := kv.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); !ok {
		t.Fatal("entry missing before expiry")
	}

	current = current.Add(time.Minute + time.Second)
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Fatal("entry served past its ttl")
	}
}
