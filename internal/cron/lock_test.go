package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisStore struct {
	values map[string]string
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}}
}

func (f *fakeRedisStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedisStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "tw:lock:print-drain:term-1", 0)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatalf("expected first acquire to succeed")
	}

	other, err := NewRedisLock(store, "tw:lock:print-drain:term-1", 0)
	if err != nil {
		t.Fatalf("construct second lock: %v", err)
	}
	ok, err = other.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected held lock to reject second acquire")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = other.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if !ok {
		t.Fatalf("expected acquire to succeed after release")
	}
}

func TestRedisLockReleaseOnlyWhenOwner(t *testing.T) {
	store := newFakeRedisStore()
	key := "tw:lock:print-drain:term-1"
	lock, err := NewRedisLock(store, key, 0)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()

	if _, err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	// The TTL expired and another holder took the key.
	store.values[key] = "someone-else"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values[key] != "someone-else" {
		t.Fatalf("release deleted a lock it no longer owned")
	}
}

func TestRedisLockReleaseToleratesExpiredKey(t *testing.T) {
	store := newFakeRedisStore()
	key := "tw:lock:print-drain:term-1"
	lock, err := NewRedisLock(store, key, 0)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()

	if _, err := lock.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	delete(store.values, key)
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after expiry: %v", err)
	}
}
