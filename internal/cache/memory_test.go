package cache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()

	if err := kv.Set(ctx, "user:id:1", payload{Name: "alpha", Score: 3}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out payload
	ok, err := kv.Get(ctx, "user:id:1", &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Name != "alpha" || out.Score != 3 {
		t.Fatalf("unexpected value: %+v", out)
	}

	if err := kv.Delete(ctx, "user:id:1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = kv.Get(ctx, "user:id:1", &out)
	if err != nil || ok {
		t.Fatalf("expected miss after delete, ok=%v err=%v", ok, err)
	}
}

func TestMemoryCache_MissOnUnknownKey(t *testing.T) {
	kv := NewMemory()

	var out payload
	ok, err := kv.Get(context.Background(), "nope", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()

	if err := kv.Set(ctx, "k", payload{Name: "x"}, 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	var out payload
	ok, err := kv.Get(ctx, "k", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestMemoryCache_DeleteByPrefix(t *testing.T) {
	kv := NewMemory()
	ctx := context.Background()

	keys := []string{
		"user_courses:user_id:7:page:1:size:10",
		"user_courses:user_id:7:page:2:size:10",
		"user_courses:user_id:8:page:1:size:10",
	}
	for _, k := range keys {
		if err := kv.Set(ctx, k, payload{Name: k}, 0); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	if err := kv.DeleteByPrefix(ctx, "user_courses:user_id:7"); err != nil {
		t.Fatalf("delete by prefix: %v", err)
	}

	var out payload
	for _, k := range keys[:2] {
		if ok, _ := kv.Get(ctx, k, &out); ok {
			t.Fatalf("key %s survived prefix delete", k)
		}
	}
	if ok, _ := kv.Get(ctx, keys[2], &out); !ok {
		t.Fatalf("unrelated key was deleted")
	}
}
