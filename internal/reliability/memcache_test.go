package reliability

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_SetGetDel(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	type payload struct{ Name string }
	if err := m.Set(ctx, "k", payload{Name: "Louvre"}, 60); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	ok, err := m.Get(ctx, "k", &got)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Name != "Louvre" {
		t.Fatalf("got %+v", got)
	}

	if err := m.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if ok, _ := m.Get(ctx, "k", &got); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	m := NewMemoryCache()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	var got string
	if ok, _ := m.Get(ctx, "k", &got); ok {
		t.Fatal("expected expired entry to miss")
	}
	// Expired entries are removed on access.
	m.mu.Lock()
	_, still := m.entries["k"]
	m.mu.Unlock()
	if still {
		t.Fatal("expected expired entry to be purged")
	}
}
