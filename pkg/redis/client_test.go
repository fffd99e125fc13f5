package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "tenant-a", 2, time.Second)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if allowed != want || count != int64(i+1) {
			t.Fatalf("call %d: allowed=%v count=%d", i, allowed, count)
		}
	}
	if got := mock.ttls["sf:rate_limit:tenant-a"]; got != time.Second {
		t.Fatalf("expected window ttl set once to 1s, got %v", got)
	}
	if mock.expireCalls != 1 {
		t.Fatalf("expected a single expire, got %d", mock.expireCalls)
	}
}

func TestLookupHidesMissingKey(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	key := client.IdempotencyKey("POST:/api/v1/sales-orders", "abc")
	if _, found, err := client.Lookup(ctx, key); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	ok, err := client.SetNX(ctx, key, "pending", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = %v, %v", ok, err)
	}
	ok, err = client.SetNX(ctx, key, "other", time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX = %v, %v", ok, err)
	}
	value, found, err := client.Lookup(ctx, key)
	if err != nil || !found || value != "pending" {
		t.Fatalf("expected original value, got %q found=%v (%v)", value, found, err)
	}

	if err := client.Set(ctx, key, "done", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if value, _, _ := client.Lookup(ctx, key); value != "done" {
		t.Fatalf("expected overwrite, got %q", value)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, found, _ := client.Lookup(ctx, key); found {
		t.Fatal("expected key gone after delete")
	}
}

func TestLeaseReleaseRequiresOwner(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := LeaseKey("cron-worker", "prod")

	ok, err := client.AcquireLease(ctx, key, "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("acquire = %v, %v", ok, err)
	}
	if ok, _ := client.AcquireLease(ctx, key, "owner-b", time.Minute); ok {
		t.Fatal("second owner must not acquire a held lease")
	}

	released, err := client.ReleaseLease(ctx, key, "owner-b")
	if err != nil || released {
		t.Fatalf("foreign release = %v, %v", released, err)
	}
	released, err = client.ReleaseLease(ctx, key, "owner-a")
	if err != nil || !released {
		t.Fatalf("owner release = %v, %v", released, err)
	}
	if ok, _ := client.AcquireLease(ctx, key, "owner-b", time.Minute); !ok {
		t.Fatal("expected lease free after release")
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	ctx := context.Background()
	client := &Client{}
	if err := client.Ping(ctx); err == nil {
		t.Fatal("expected ping on empty client to fail")
	}
	if _, _, err := client.Lookup(ctx, "k"); err == nil {
		t.Fatal("expected lookup on empty client to fail")
	}
	if _, err := client.ReleaseLease(ctx, "k", "t"); err == nil {
		t.Fatal("expected release on empty client to fail")
	}
	if client.Close() != nil {
		t.Fatal("close on empty client should be a no-op")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	tests := []struct {
		got  string
		want string
	}{
		{client.IdempotencyKey("scope", "id"), "sf:idempotency:scope:id"},
		{client.IdempotencyKey("scope", ""), "sf:idempotency:scope"},
		{client.RateLimitKey("scope"), "sf:rate_limit:scope"},
		{LeaseKey("cron-worker", ""), "sf:lease:cron-worker:default"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("expected %s got %s", tt.want, tt.got)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:pw@cache.internal:6380/3",
		PoolSize:    7,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 3 || opts.Password != "pw" {
		t.Fatalf("url not honoured: %+v", opts)
	}
	if opts.PoolSize != 7 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("config fallbacks not applied: pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 1})
	if err != nil || opts.Addr != "localhost:6379" || opts.DB != 1 {
		t.Fatalf("address config = %+v, %v", opts, err)
	}

	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

// mockCmdable understands the two Lua scripts the package sends.
type mockCmdable struct {
	data        map[string]string
	counters    map[string]int64
	ttls        map[string]time.Duration
	expireCalls int
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:     make(map[string]string),
		counters: make(map[string]int64),
		ttls:     make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mockCmdable) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case fixedWindowScript:
		m.counters[key]++
		if m.counters[key] == 1 {
			m.expireCalls++
			m.ttls[key] = time.Duration(args[0].(int64)) * time.Millisecond
		}
		return redis.NewCmdResult(m.counters[key], nil)
	case releaseScript:
		if m.data[key] == fmt.Sprint(args[0]) {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}
