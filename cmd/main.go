// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"saludables/internal/api"
	"saludables/internal/app"
	"saludables/internal/config"
	"saludables/internal/geo"
	"saludables/internal/logger"
	"saludables/internal/metrics"
	"saludables/internal/scheduler"
)

func main() {
	config.LoadDotenv()
	// 日志初始化
	l := logger.Setup(logger.Options{Level: os.Getenv("LOG_LEVEL"), Format: os.Getenv("LOG_FORMAT")})
	l.Debug("log_init_ok")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		l.Error("app_build_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.RefreshOnStart {
		go scheduler.RunOnce(ctx, a.Store.Refresh)
	}
	scheduler.StartDaily(ctx, a.Store, cfg.RefreshHour, scheduler.LoadZone(cfg.RefreshZone))

	// 位置跨网格变化时重排现有列表
	go a.Geolocator.Watch(ctx, cfg.WatchPeriod, func(p geo.Position) {
		a.Store.Rerank(ctx, p)
	})

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(a.Store, cfg.RefreshQPS)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	mux.HandleFunc(cfg.APIBase+"/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s := &http.Server{Addr: cfg.Addr, Handler: logger.AccessMiddleware(l)(mux)}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(sctx)
	}()
	l.Info("listening", "addr", cfg.Addr, "api_base", cfg.APIBase)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
	}
	l.Info("shutdown")
}
