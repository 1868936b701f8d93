package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"saludables/internal/liststore"
	"saludables/internal/logger"
	"saludables/internal/model"
)

// 文档注释：SSE 推送派生视图
// 约束：连接建立即推送当前值，之后每次视图变化推送一次；慢消费者只保留最新值；
// 客户端断开后取消订阅。category 为空时推送合并视图。
func watchHandler(st *liststore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fl, ok := w.(http.Flusher)
		if !ok {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
			return
		}
		updates := make(chan []model.RankedItem, 1)
		push := func(v []model.RankedItem) {
			select {
			case updates <- v:
			default:
				select {
				case <-updates:
				default:
				}
				select {
				case updates <- v:
				default:
				}
			}
		}

		var cancel func()
		var current func() []model.RankedItem
		label := "all"
		if raw := r.URL.Query().Get("category"); raw != "" {
			c, ok := category(w, r)
			if !ok {
				return
			}
			var err error
			if cancel, err = st.WatchView(c, push); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
				return
			}
			current = func() []model.RankedItem { return st.View(c) }
			label = string(c)
		} else {
			cancel = st.WatchAll(push)
			current = st.All
		}
		defer cancel()

		l := logger.L()
		l.Debug("watch_open", "category", label)
		w.Header().Set("content-type", "text/event-stream")
		w.Header().Set("cache-control", "no-store")
		w.Header().Set("connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		send := func(v []model.RankedItem) bool {
			b, err := json.Marshal(v)
			if err != nil {
				l.Error("watch_encode_error", "err", err)
				return false
			}
			if _, err := fmt.Fprintf(w, "event: view\ndata: %s\n\n", b); err != nil {
				return false
			}
			fl.Flush()
			return true
		}
		if !send(current()) {
			return
		}
		for {
			select {
			case <-r.Context().Done():
				l.Debug("watch_close", "category", label)
				return
			case v := <-updates:
				if !send(v) {
					return
				}
			}
		}
	}
}
