package locate

import (
	"context"
	"errors"
	"sync"
	"time"

	"saludables/internal/geo"
	"saludables/internal/logger"
	"saludables/internal/metrics"
)

// 文档注释：带记忆的设备定位器
// 约束：首次成功解析后在进程生命周期内复用，不会自动重新解析；需要新鲜位置时调用 Invalidate。
// 失败不记忆，下次调用会重新尝试；任何错误都不越过 CurrentPosition 边界。
type Geolocator struct {
	p  Provider
	mu sync.RWMutex
	// nil 表示尚未解析
	pos *geo.Position
}

func NewGeolocator(p Provider) *Geolocator { return &Geolocator{p: p} }

// CurrentPosition：返回记忆位置，没有则解析一次；失败返回 nil
func (g *Geolocator) CurrentPosition(ctx context.Context) *geo.Position {
	if p := g.Cached(); p != nil {
		return p
	}
	pos, ok := g.resolve(ctx)
	if !ok {
		return nil
	}
	g.Set(pos)
	return &pos
}

func (g *Geolocator) resolve(ctx context.Context) (pos geo.Position, ok bool) {
	if g.p == nil {
		metrics.LocateTotal.WithLabelValues("unavailable").Inc()
		return geo.Position{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("locate_panic", "panic", r)
			metrics.LocateTotal.WithLabelValues("unavailable").Inc()
			pos, ok = geo.Position{}, false
		}
	}()
	pos, err := g.p.CurrentPosition(ctx)
	switch {
	case err == nil:
		metrics.LocateTotal.WithLabelValues("ok").Inc()
		logger.L().Debug("locate_ok", "lat", pos.Lat, "lon", pos.Lon)
		return pos, true
	case errors.Is(err, ErrPermissionDenied):
		metrics.LocateTotal.WithLabelValues("denied").Inc()
		logger.L().Info("locate_denied")
	default:
		metrics.LocateTotal.WithLabelValues("unavailable").Inc()
		logger.L().Warn("locate_error", "err", err)
	}
	return geo.Position{}, false
}

// Cached：只读记忆位置，不触发解析
func (g *Geolocator) Cached() *geo.Position {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.pos == nil {
		return nil
	}
	p := *g.pos
	return &p
}

// Set：覆盖记忆位置
func (g *Geolocator) Set(p geo.Position) {
	g.mu.Lock()
	g.pos = &p
	g.mu.Unlock()
}

// Invalidate：清除记忆，下次调用重新解析
func (g *Geolocator) Invalidate() {
	g.mu.Lock()
	g.pos = nil
	g.mu.Unlock()
}

// 文档注释：周期性监听位置变化
// 约束：每个周期直接询问来源并更新记忆；仅当位置所在 geohash 网格变化时回调 fn；ctx 取消后返回。
// interval 非正表示不监听，立即返回。
func (g *Geolocator) Watch(ctx context.Context, interval time.Duration, fn func(geo.Position)) {
	if interval <= 0 {
		logger.L().Warn("locate_watch_disabled", "interval", interval)
		return
	}
	var lastCell string
	if p := g.Cached(); p != nil {
		lastCell = geo.Cell(*p)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pos, ok := g.resolve(ctx)
			if !ok {
				continue
			}
			g.Set(pos)
			cell := geo.Cell(pos)
			if cell == lastCell {
				continue
			}
			lastCell = cell
			logger.L().Debug("locate_moved", "cell", cell)
			fn(pos)
		}
	}
}
