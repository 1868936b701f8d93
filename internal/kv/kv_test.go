package kv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// exercise：各后端共用的契约测试
func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key err = %v", err)
	}
	if err := s.Set(ctx, "dataService_cache_list_beach", `[{"id":"1"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.Get(ctx, "dataService_cache_list_beach")
	if err != nil || v != `[{"id":"1"}]` {
		t.Fatalf("get = %q, %v", v, err)
	}
	if err := s.Set(ctx, "dataService_cache_list_beach", "[]"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if v, _ := s.Get(ctx, "dataService_cache_list_beach"); v != "[]" {
		t.Fatalf("after overwrite = %q", v)
	}
	if err := s.Set(ctx, "a/b c", "x"); err != nil {
		t.Fatalf("set odd key: %v", err)
	}
	if v, _ := s.Get(ctx, "a/b c"); v != "x" {
		t.Fatalf("odd key = %q", v)
	}
	if err := s.Delete(ctx, "dataService_cache_list_beach"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "dataService_cache_list_beach"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete err = %v", err)
	}
	if err := s.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestMemory(t *testing.T) { exercise(t, NewMemory()) }

func TestFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, s)

	// 重新打开后数据仍在
	_ = s.Set(context.Background(), "favorites", `["1"]`)
	s2, _ := NewFile(dir)
	if v, _ := s2.Get(context.Background(), "favorites"); v != `["1"]` {
		t.Fatalf("reopened value = %q", v)
	}
	if _, err := NewFile(""); err == nil {
		t.Fatal("empty dir accepted")
	}
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(rc, "saludables:")
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	exercise(t, s)
	_ = s.Set(context.Background(), "k", "v")
	if got, _ := mr.Get("saludables:k"); got != "v" {
		t.Fatalf("namespaced key = %q", got)
	}
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "kv.sqlite")
	s, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exercise(t, s)
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	s, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exercise(t, s)
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()
	if s, c, err := Open(ctx, Options{Backend: "memory"}); err != nil || s == nil || c != nil {
		t.Fatalf("memory: %v %v %v", s, c, err)
	}
	if _, _, err := Open(ctx, Options{Backend: "file", FileDir: t.TempDir()}); err != nil {
		t.Fatalf("file: %v", err)
	}
	s, c, err := Open(ctx, Options{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "kv.sqlite")})
	if err != nil || s == nil || c == nil {
		t.Fatalf("sqlite: %v", err)
	}
	c.Close()
	if _, _, err := Open(ctx, Options{Backend: "etcd"}); err == nil {
		t.Fatal("unknown backend accepted")
	}
}
