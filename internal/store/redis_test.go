package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, DefaultRedisPrefix), mr
}

func TestRedis(t *testing.T) {
	s, _ := newTestRedis(t)
	runStoreContract(t, s)
}

func TestRedis_KeysArePrefixed(t *testing.T) {
	s, mr := newTestRedis(t)
	if err := s.Set(context.Background(), "settings", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("exam.settings") {
		t.Fatalf("keys = %v, want exam.settings", mr.Keys())
	}
}
