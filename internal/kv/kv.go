// 包 kv：字符串键值持久化后端（内存/文件/Redis/PostgreSQL/SQLite），语义对齐设备端 KV 存储
package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound：键不存在
var ErrNotFound = errors.New("kv: key not found")

// Store：键值存储契约
// 约束：值为任意文本；Set 覆盖写；Delete 不存在的键不报错
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Options：后端选择与各后端参数
type Options struct {
	Backend     string // memory | file | redis | postgres | sqlite
	FileDir     string
	SQLitePath  string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	RedisKeyNS  string
	PostgresDSN string
}

// Open：按 Backend 打开存储；返回的 io.Closer 可能为 nil
func Open(ctx context.Context, o Options) (Store, io.Closer, error) {
	switch o.Backend {
	case "", "memory":
		return NewMemory(), nil, nil
	case "file":
		s, err := NewFile(o.FileDir)
		return s, nil, err
	case "redis":
		s := OpenRedis(o.RedisAddr, o.RedisPass, o.RedisDB, o.RedisKeyNS)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, s, nil
	case "postgres":
		s, err := OpenPostgres(ctx, o.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "sqlite":
		s, err := OpenSQLite(ctx, o.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("kv: unknown backend %q", o.Backend)
}
