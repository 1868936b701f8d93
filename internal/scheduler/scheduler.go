// 包 scheduler：每日定时刷新列表，运行在服务进程内的后台协程
package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"saludables/internal/logger"
	"saludables/internal/model"
)

// Refresher：按类别强制刷新（跳过缓存新鲜度检查）
type Refresher interface {
	ForceRefresh(ctx context.Context, cat model.Category) error
}

// RefreshFunc：单个类别的刷新动作
type RefreshFunc func(ctx context.Context, cat model.Category) error

// DefaultZone：上游采集器按利马时间 02:05/02:10 发布快照
const DefaultZone = "America/Lima"

// DefaultHour：晚于采集器发布时间
const DefaultHour = 3

// LoadZone：解析时区，失败时退回固定 UTC-5
func LoadZone(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.L().Warn("scheduler_zone_fallback", "zone", name, "err", err)
		return time.FixedZone("UTC-5", -5*3600)
	}
	return loc
}

// NextAt：计算 now 之后最近的整点 hour（loc 时区）
// 约束：恰好等于当前时刻时顺延至次日
func NextAt(now time.Time, loc *time.Location, hour int) time.Time {
	n := now.In(loc)
	t := time.Date(n.Year(), n.Month(), n.Day(), hour, 0, 0, 0, loc)
	if !t.After(n) {
		t = time.Date(n.Year(), n.Month(), n.Day()+1, hour, 0, 0, 0, loc)
	}
	return t
}

// RunOnce：并发刷新全部类别并等待完成；单个类别失败只记录日志，不影响其他类别
func RunOnce(ctx context.Context, refresh RefreshFunc) {
	l := logger.L()
	var g errgroup.Group
	for _, c := range model.Categories {
		g.Go(func() error {
			err := refresh(ctx, c)
			switch {
			case err == nil:
				l.Info("scheduled_refresh_done", "category", string(c))
			case errors.Is(err, context.Canceled):
			default:
				l.Error("scheduled_refresh_error", "category", string(c), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// 文档注释：每日定时刷新
// 约束：每天在 loc 时区的 hour 整点强制刷新两个类别（上次写入的缓存此时仍未过期）；
// 错误由日志记录，任务继续调度；ctx 取消后退出
func StartDaily(ctx context.Context, r Refresher, hour int, loc *time.Location) {
	l := logger.L()
	go func() {
		for {
			next := NextAt(time.Now(), loc, hour)
			l.Info("scheduler_next", "at", next)
			t := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				t.Stop()
				l.Info("scheduler_stop")
				return
			case <-t.C:
			}
			RunOnce(ctx, r.ForceRefresh)
		}
	}()
}
