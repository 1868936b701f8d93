// 包 cache：带写入时间戳的持久化 JSON 缓存，固定 24 小时有效期
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"saludables/internal/kv"
	"saludables/internal/logger"
	"saludables/internal/model"
)

// TTL：固定有效期，无软刷新窗口
const TTL = 24 * time.Hour

const (
	KeyPrefix       = "dataService_cache_list_"
	timestampSuffix = "_timestamp"
)

// Key：类别对应的数据键，时间戳键为其后加 _timestamp
func Key(c model.Category) string { return KeyPrefix + string(c) }

// Entry：读取结果；过期条目的 Payload 仍可作为兜底
type Entry struct {
	Payload   string
	WrittenAt time.Time
	Fresh     bool
}

// 文档注释：持久化缓存
// 约束：数据键与时间戳键任一缺失视为无缓存；时间戳无法解析时视为过期但保留 Payload。
type Store struct {
	kv  kv.Store
	ttl time.Duration
	now func() time.Time
}

// New：now 为 nil 时使用 time.Now
func New(s kv.Store, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{kv: s, ttl: TTL, now: now}
}

// Read：返回条目与是否存在；存储层错误原样上抛
func (s *Store) Read(ctx context.Context, key string) (Entry, bool, error) {
	payload, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache read %s: %w", key, err)
	}
	ts, err := s.kv.Get(ctx, key+timestampSuffix)
	if errors.Is(err, kv.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("cache read %s: %w", key+timestampSuffix, err)
	}
	if payload == "" {
		return Entry{}, false, nil
	}
	e := Entry{Payload: payload}
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		logger.L().Warn("cache_bad_timestamp", "key", key, "value", ts)
		return e, true, nil
	}
	e.WrittenAt = time.UnixMilli(ms)
	e.Fresh = s.now().UnixMilli()-ms < s.ttl.Milliseconds()
	return e, true, nil
}

// Write：写入数据与当前时间戳（毫秒）
func (s *Store) Write(ctx context.Context, key, payload string) error {
	if err := s.kv.Set(ctx, key, payload); err != nil {
		return fmt.Errorf("cache write %s: %w", key, err)
	}
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.kv.Set(ctx, key+timestampSuffix, ts); err != nil {
		return fmt.Errorf("cache write %s: %w", key+timestampSuffix, err)
	}
	return nil
}
