// 包 dataservice：组合持久化缓存与远端拉取，提供“获取类别当前数据”的单一入口
package dataservice

import (
	"context"
	"encoding/json"
	"fmt"

	"saludables/internal/cache"
	"saludables/internal/logger"
	"saludables/internal/metrics"
	"saludables/internal/model"
)

// MinCacheable：严格多于该数量的结果才写入缓存，防止退化快照覆盖离线兜底
const MinCacheable = 5

// Fetcher：远端快照来源
type Fetcher interface {
	Fetch(ctx context.Context, cat model.Category) ([]model.Item, error)
}

type Service struct {
	cache   *cache.Store
	fetcher Fetcher
}

func New(c *cache.Store, f Fetcher) *Service { return &Service{cache: c, fetcher: f} }

// 文档注释：获取类别数据
// 约束：顺序固定为 查缓存 → 拉取 → 写缓存。
// 新鲜缓存直接返回且不访问网络；缓存缺失或过期时拉取，拉取失败直接返回错误，不回退到过期缓存。
// 缓存读取或解析失败按未命中处理。
func (s *Service) GetItems(ctx context.Context, cat model.Category) ([]model.Item, error) {
	key := cache.Key(cat)
	label := string(cat)
	l := logger.L()

	e, ok, err := s.cache.Read(ctx, key)
	switch {
	case err != nil:
		l.Warn("cache_read_error", "category", label, "err", err)
		metrics.CacheReadsTotal.WithLabelValues(label, "miss").Inc()
	case !ok:
		metrics.CacheReadsTotal.WithLabelValues(label, "miss").Inc()
	case !e.Fresh:
		l.Debug("cache_stale", "category", label, "written_at", e.WrittenAt)
		metrics.CacheReadsTotal.WithLabelValues(label, "stale").Inc()
	default:
		items, derr := model.DecodeItems([]byte(e.Payload))
		if derr == nil {
			l.Debug("cache_hit", "category", label, "items", len(items))
			metrics.CacheReadsTotal.WithLabelValues(label, "fresh").Inc()
			return items, nil
		}
		l.Warn("cache_decode_error", "category", label, "err", derr)
		metrics.CacheReadsTotal.WithLabelValues(label, "miss").Inc()
	}

	return s.fetchAndStore(ctx, cat)
}

// Refetch：跳过新鲜度检查直接拉取，供定时刷新使用；写缓存规则与 GetItems 相同
func (s *Service) Refetch(ctx context.Context, cat model.Category) ([]model.Item, error) {
	logger.L().Debug("cache_bypass", "category", string(cat))
	return s.fetchAndStore(ctx, cat)
}

func (s *Service) fetchAndStore(ctx context.Context, cat model.Category) ([]model.Item, error) {
	key := cache.Key(cat)
	label := string(cat)
	l := logger.L()

	items, err := s.fetcher.Fetch(ctx, cat)
	if err != nil {
		l.Error("list_fetch_error", "category", label, "err", err)
		return nil, fmt.Errorf("list %s: %w", label, err)
	}

	if len(items) > MinCacheable {
		payload, merr := json.Marshal(items)
		if merr == nil {
			merr = s.cache.Write(ctx, key, string(payload))
		}
		if merr != nil {
			l.Error("cache_write_error", "category", label, "err", merr)
		} else {
			metrics.CacheWritesTotal.WithLabelValues(label, "written").Inc()
			l.Info("cache_written", "category", label, "items", len(items))
		}
	} else {
		metrics.CacheWritesTotal.WithLabelValues(label, "skipped").Inc()
		l.Info("cache_write_skipped", "category", label, "items", len(items))
	}
	return items, nil
}
