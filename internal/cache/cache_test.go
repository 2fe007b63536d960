package cache

import (
	"testing"
	"time"
)

func TestKey_Stable(t *testing.T) {
	a := Key("model", "hello")
	b := Key("model", "hello")
	if a != b {
		t.Errorf("expected stable keys, got %s and %s", a, b)
	}
	if Key("model", "hello") == Key("modelh", "ello") {
		t.Error("expected part boundaries to matter")
	}
	if len(a) != len("adveritas:v1:")+64 {
		t.Errorf("unexpected key length %d", len(a))
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss")
	}
	_ = c.Set("k", []byte("v"), 0)
	val, ok := c.Get("k")
	if !ok || string(val) != "v" {
		t.Fatalf("expected hit with v, got %q %v", val, ok)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 item, got %d", c.Len())
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestDiskCache_RoundTripAndExpiry(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	key := Key("m", "text")
	if err := c.Set(key, []byte("payload"), 0); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	val, ok := c.Get(key)
	if !ok || string(val) != "payload" {
		t.Fatalf("expected payload, got %q %v", val, ok)
	}

	if err := c.Set("expired", []byte("x"), -time.Second); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := c.Get("expired"); ok {
		t.Error("expected expired entry to miss")
	}

	if err := c.Delete("missing"); err != nil {
		t.Errorf("deleting a missing key should not fail: %v", err)
	}
}

func TestLayeredCache_Backfill(t *testing.T) {
	mem := NewMemoryCache(time.Minute, time.Minute)
	disk := NewDiskCache(t.TempDir(), time.Hour)
	lc := NewLayeredCache(mem, nil, disk)

	_ = disk.Set("k", []byte("from-disk"), 0)
	val, ok := lc.Get("k")
	if !ok || string(val) != "from-disk" {
		t.Fatalf("expected disk hit, got %q %v", val, ok)
	}
	if _, ok := mem.Get("k"); !ok {
		t.Error("expected memory layer to be back-filled")
	}

	_ = lc.Set("k2", []byte("both"), 0)
	if _, ok := disk.Get("k2"); !ok {
		t.Error("expected Set to reach every layer")
	}

	_ = lc.Clear()
	if _, ok := lc.Get("k2"); ok {
		t.Error("expected miss after clear")
	}
}
