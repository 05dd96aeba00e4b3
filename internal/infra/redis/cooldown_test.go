package redis

import (
	"context"
	"testing"
	"time"
)

func TestCooldownSetInsertContainsExpire(t *testing.T) {
	t.Parallel()

	rdb, mr := newTestRedisClient(t)
	set, err := NewCooldownSet(rdb, "whatsapp")
	if err != nil {
		t.Fatalf("NewCooldownSet() error = %v", err)
	}
	ctx := context.Background()

	if err := set.Insert(ctx, "42", time.Minute); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if !mr.Exists("notify:cooldown:whatsapp:42") {
		t.Fatal("expected namespaced cooldown key")
	}

	ok, err := set.Contains(ctx, "42")
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if !ok {
		t.Fatal("key should be present inside the window")
	}

	mr.FastForward(time.Minute + time.Second)

	ok, err = set.Contains(ctx, "42")
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if ok {
		t.Fatal("key should expire after the window")
	}

	removed, err := set.Purge(ctx)
	if err != nil || removed != 0 {
		t.Fatalf("Purge() = %d, %v; want 0, nil", removed, err)
	}
}

func TestCooldownSetIsPerChannel(t *testing.T) {
	t.Parallel()

	rdb, _ := newTestRedisClient(t)
	voice, _ := NewCooldownSet(rdb, "voice")
	whatsapp, _ := NewCooldownSet(rdb, "whatsapp")
	ctx := context.Background()

	if err := voice.Insert(ctx, "42", time.Minute); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if ok, _ := whatsapp.Contains(ctx, "42"); ok {
		t.Fatal("cooldown must not leak across channels")
	}
}

func TestNewCooldownSetValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewCooldownSet(nil, "sms"); err == nil {
		t.Fatal("expected error for nil client")
	}
	rdb, _ := newTestRedisClient(t)
	if _, err := NewCooldownSet(rdb, ""); err == nil {
		t.Fatal("expected error for blank channel")
	}
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRedis("://bad"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewRedisConnects(t *testing.T) {
	t.Parallel()

	_, mr := newTestRedisClient(t)
	client, err := NewRedis("redis://" + mr.Addr() + "/0")
	if err != nil {
		t.Fatalf("NewRedis() error = %v", err)
	}
	_ = client.Close()
}
