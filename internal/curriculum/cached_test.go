package curriculum

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestHierarchyCache_DegradesWithoutRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable cache test in short mode")
	}

	// Port 1 refuses immediately; every cache call fails and Load must
	// fall through to the store.
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })

	cache := NewHierarchyCache(client, time.Minute)
	store := seedMemoryStore()

	h, err := cache.Load(t.Context(), store, "quran-reading")
	if err != nil {
		t.Fatalf("Load() error = %v, cache failures must degrade to the store", err)
	}
	if h.Subject.ID != "subj-1" {
		t.Errorf("Subject.ID = %q, want subj-1", h.Subject.ID)
	}
}

func TestHierarchyCache_ErrorsNotMasked(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable cache test in short mode")
	}

	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 200 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })

	cache := NewHierarchyCache(client, 0)
	if _, err := cache.Load(t.Context(), seedMemoryStore(), "missing"); err == nil {
		t.Fatal("Load() error = nil for unknown subject")
	}
}
