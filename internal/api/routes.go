// 包 api：集中注册 HTTP 路由，主入口挂载到 API_BASE 前缀下
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"saludables/internal/liststore"
	"saludables/internal/logger"
	"saludables/internal/model"
	"saludables/internal/planner"
)

type errorBody struct {
	Error string `json:"error"`
}

type refreshResult struct {
	Loading    bool   `json:"loading"`
	Error      string `json:"error"`
	Count      int    `json:"count"`
	Superseded bool   `json:"superseded,omitempty"`
}

type filterRequest struct {
	Query  *string `json:"query"`
	Health *bool   `json:"health"`
}

type favoriteResult struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// category：解析查询参数；非法时写 400 并返回 false
func category(w http.ResponseWriter, r *http.Request) (model.Category, bool) {
	c, err := model.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return "", false
	}
	return c, true
}

// 文档注释：构建路由
// 约束：refreshQPS 限制 /refresh 的每秒调用次数；其余路由不限流。
func BuildRoutes(st *liststore.Store, refreshQPS int) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /list", func(w http.ResponseWriter, r *http.Request) {
		c, ok := category(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, st.View(c))
	})

	mux.HandleFunc("GET /all", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.All())
	})

	refresh := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := category(w, r)
		if !ok {
			return
		}
		err := st.Refresh(r.Context(), c)
		res := refreshResult{Loading: st.Loading(), Error: st.Error(), Count: len(st.List(c))}
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, res)
		case errors.Is(err, liststore.ErrSuperseded):
			res.Superseded = true
			writeJSON(w, http.StatusAccepted, res)
		default:
			logger.L().Warn("api_refresh_error", "category", string(c), "err", err)
			writeJSON(w, http.StatusBadGateway, res)
		}
	})
	mux.Handle("POST /refresh", Gate(NewTokenBucket(refreshQPS), refresh))

	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, st.State())
	})

	mux.HandleFunc("DELETE /error", func(w http.ResponseWriter, r *http.Request) {
		st.ClearError()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /filter", func(w http.ResponseWriter, r *http.Request) {
		var req filterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid filter body"})
			return
		}
		if req.Query != nil {
			st.SetFilter(r.Context(), *req.Query)
		}
		if req.Health != nil {
			st.SetHealthFilter(r.Context(), *req.Health)
		}
		writeJSON(w, http.StatusOK, st.State())
	})

	mux.HandleFunc("POST /favorites/{id}/toggle", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		writeJSON(w, http.StatusOK, favoriteResult{ID: id, Favorite: st.ToggleFavorite(r.Context(), id)})
	})

	mux.HandleFunc("GET /favorites/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		writeJSON(w, http.StatusOK, favoriteResult{ID: id, Favorite: st.IsFavorite(id)})
	})

	mux.HandleFunc("GET /digest", func(w http.ResponseWriter, r *http.Request) {
		c, ok := category(w, r)
		if !ok {
			return
		}
		text, err := planner.Digest(c, st.View(c))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		w.Header().Set("content-type", "text/plain; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte(text))
	})

	mux.HandleFunc("GET /watch", watchHandler(st))

	return mux
}
