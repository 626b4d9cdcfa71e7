package cache

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Error("hit on empty cache")
	}

	if err := m.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get = %v, ok %v", err, ok)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("value = %q", got)
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("expired entry served")
	}
}

func TestMemoryNoTTLNeverExpires(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, ok, _ := m.Get(ctx, "k"); !ok {
		t.Error("permanent entry evicted")
	}
}
