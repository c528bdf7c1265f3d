package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), ttl)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, s
}

func TestNewRedisStoreBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", time.Minute); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, s := setupTestRedis(t, 30*time.Minute)
	ctx := context.Background()

	walkAt := time.Date(2026, time.May, 10, 18, 30, 0, 0, time.UTC)
	err := store.Save(ctx, 42, &State{Step: StepLocation, TimeLabel: "18:30", WalkAt: walkAt})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if !s.Exists("walkbot:conversation:42") {
		t.Fatal("key not written")
	}
	if ttl := s.TTL("walkbot:conversation:42"); ttl != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", ttl)
	}

	st, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if st == nil || st.Step != StepLocation || st.TimeLabel != "18:30" || !st.WalkAt.Equal(walkAt) {
		t.Fatalf("state = %+v", st)
	}
}

func TestRedisStoreMissingAndCleared(t *testing.T) {
	store, _ := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	st, err := store.Get(ctx, 7)
	if err != nil || st != nil {
		t.Fatalf("Get of missing = %+v, %v; want nil, nil", st, err)
	}

	if err := store.Save(ctx, 7, &State{Step: StepTime}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Clear(ctx, 7); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if st, _ := store.Get(ctx, 7); st != nil {
		t.Errorf("state survived Clear: %+v", st)
	}
}

func TestRedisStoreExpires(t *testing.T) {
	store, s := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	if err := store.Save(ctx, 1, &State{Step: StepReminderMinutes}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	if st, _ := store.Get(ctx, 1); st != nil {
		t.Errorf("expired state returned: %+v", st)
	}
}

func TestRedisStoreCorruptValue(t *testing.T) {
	store, s := setupTestRedis(t, time.Minute)
	if err := s.Set("walkbot:conversation:5", "{not json"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(context.Background(), 5); err == nil {
		t.Error("expected decode error")
	}
}
