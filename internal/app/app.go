// 包 app：按配置组装存储、取数、缓存、定位与列表状态，供服务与命令行共用
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"saludables/internal/cache"
	"saludables/internal/config"
	"saludables/internal/dataservice"
	"saludables/internal/fetch"
	"saludables/internal/kv"
	"saludables/internal/liststore"
	"saludables/internal/locate"
	"saludables/internal/logger"
)

type App struct {
	KV         kv.Store
	Fetcher    *fetch.Client
	Data       *dataservice.Service
	Geolocator *locate.Geolocator
	Store      *liststore.Store

	closers []io.Closer
}

// 文档注释：组装全部依赖
// 约束：STORAGE_API_URL 必填；GeoIP 打开失败仅记录日志并跳过该来源。
func Build(ctx context.Context, c config.Config) (*App, error) {
	l := logger.L()
	if c.StorageURL == "" {
		return nil, errors.New("STORAGE_API_URL is required")
	}
	store, closer, err := kv.Open(ctx, c.KV)
	if err != nil {
		return nil, fmt.Errorf("open kv %s: %w", c.KV.Backend, err)
	}
	a := &App{KV: store}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	l.Info("kv_open_ok", "backend", c.KV.Backend)

	// 超时为 0 时不设置，由调用方的 ctx 控制
	a.Fetcher = fetch.New(c.StorageURL, &http.Client{Timeout: c.FetchTimeout})
	a.Data = dataservice.New(cache.New(store, time.Now), a.Fetcher)

	var providers []locate.Provider
	if c.LocateDeny || c.StaticPos != nil {
		providers = append(providers, locate.Static{Pos: c.StaticPos, Denied: c.LocateDeny})
	}
	if c.GeoIPPath != "" {
		if g, err := locate.OpenGeoIP(c.GeoIPPath, c.GeoIPAddr); err == nil {
			providers = append(providers, g)
			a.closers = append(a.closers, g)
			l.Info("geoip_ready", "path", c.GeoIPPath)
		} else {
			l.Error("geoip_open_error", "err", err)
		}
	}
	a.Geolocator = locate.NewGeolocator(locate.NewChain(providers...))
	a.Store = liststore.New(ctx, a.Data, a.Geolocator, store)
	return a, nil
}

// Close：逆序关闭已打开的资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}
