package backend

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newClockedMemory(start time.Time) (*Memory, *time.Time) {
	now := start
	m := NewMemory()
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemoryPutGetRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Put(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	data, found, err := m.Get(ctx, "k")
	if err != nil || !found {
		t.Fatalf("get failed: found=%v err=%v", found, err)
	}
	if string(data) != "v" {
		t.Fatalf("expected v, got %q", data)
	}
}

func TestMemoryGetAbsentKey(t *testing.T) {
	m := NewMemory()

	_, found, err := m.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("absent key must not error: %v", err)
	}
	if found {
		t.Fatal("absent key reported found")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	m, now := newClockedMemory(time.Unix(1000, 0))
	ctx := context.Background()

	if err := m.Put(ctx, "k", []byte("v"), 60*time.Second); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	*now = now.Add(59 * time.Second)
	if _, found, _ := m.Get(ctx, "k"); !found {
		t.Fatal("key expired early")
	}

	*now = now.Add(2 * time.Second)
	if _, found, _ := m.Get(ctx, "k"); found {
		t.Fatal("key survived past its TTL")
	}
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	m, now := newClockedMemory(time.Unix(1000, 0))
	ctx := context.Background()

	if err := m.Put(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	*now = now.Add(1000 * time.Hour)
	if _, found, _ := m.Get(ctx, "k"); !found {
		t.Fatal("zero-TTL key expired")
	}
}

func TestMemoryReplacePreservesExpiry(t *testing.T) {
	m, now := newClockedMemory(time.Unix(1000, 0))
	ctx := context.Background()

	if err := m.Put(ctx, "k", []byte("v1"), 60*time.Second); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	*now = now.Add(30 * time.Second)
	ok, err := m.Replace(ctx, "k", []byte("v2"))
	if err != nil || !ok {
		t.Fatalf("replace failed: ok=%v err=%v", ok, err)
	}

	// Original deadline must still apply: 31s after the replace the key is
	// past createdAt+60s and must be gone.
	*now = now.Add(31 * time.Second)
	if _, found, _ := m.Get(ctx, "k"); found {
		t.Fatal("replace extended the TTL clock")
	}
}

func TestMemoryReplaceAbsentKey(t *testing.T) {
	m := NewMemory()

	ok, err := m.Replace(context.Background(), "missing", []byte("v"))
	if err != nil {
		t.Fatalf("replace errored: %v", err)
	}
	if ok {
		t.Fatal("replace reported success on absent key")
	}
}

func TestMemoryDeleteIdempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Put(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if _, found, _ := m.Get(ctx, "k"); found {
		t.Fatal("key resolvable after delete")
	}
}

func TestMemorySetOperations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, member := range []string{"a", "b", "b", "c"} {
		if err := m.AddToSet(ctx, "s", member); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	members, err := m.SetMembers(ctx, "s")
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}

	if err := m.RemoveFromSet(ctx, "s", "b"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	members, _ = m.SetMembers(ctx, "s")
	if len(members) != 2 {
		t.Fatalf("expected 2 members after removal, got %d", len(members))
	}

	// Removing a missing member is a no-op.
	if err := m.RemoveFromSet(ctx, "s", "zz"); err != nil {
		t.Fatalf("remove of missing member errored: %v", err)
	}
}

func TestMemorySetExpiry(t *testing.T) {
	m, now := newClockedMemory(time.Unix(1000, 0))
	ctx := context.Background()

	if err := m.AddToSet(ctx, "s", "a"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := m.ExpireSet(ctx, "s", 60*time.Second); err != nil {
		t.Fatalf("expire failed: %v", err)
	}

	*now = now.Add(61 * time.Second)
	members, err := m.SetMembers(ctx, "s")
	if err != nil {
		t.Fatalf("members failed: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected empty expired set, got %v", members)
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%8))
			for j := 0; j < 200; j++ {
				_ = m.Put(ctx, key, []byte("v"), time.Minute)
				_, _, _ = m.Get(ctx, key)
				_ = m.AddToSet(ctx, "shared", key)
				_, _ = m.SetMembers(ctx, "shared")
			}
		}(i)
	}
	wg.Wait()
}
