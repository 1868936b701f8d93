// 包 fetch：从静态 JSON 端点拉取类别快照
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"saludables/internal/logger"
	"saludables/internal/metrics"
	"saludables/internal/model"
)

var (
	// ErrNetwork：非 200 响应或传输层错误
	ErrNetwork = errors.New("network response was not ok")
	// ErrMalformed：响应缺少 data 数组或 JSON 无法解析
	ErrMalformed = errors.New("malformed snapshot")
)

// StatusError：非 200 响应
type StatusError struct{ Code int }

func (e *StatusError) Error() string { return fmt.Sprintf("%s: status %d", ErrNetwork, e.Code) }

func (e *StatusError) Unwrap() error { return ErrNetwork }

// Client：快照端点客户端，无鉴权头
type Client struct {
	baseURL string
	hc      *http.Client
}

// New：hc 为 nil 时使用无超时的默认客户端
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// URL：GET {base}/digesa-{category}.json
func (c *Client) URL(cat model.Category) string {
	return c.baseURL + "/digesa-" + string(cat) + ".json"
}

type envelope struct {
	Status  int           `json:"status"`
	Data    *[]model.Item `json:"data"`
	Updated string        `json:"updated"`
	Count   int           `json:"count"`
}

// 文档注释：拉取单个类别的快照
// 约束：返回 data 数组原样内容；坐标未知的记录保留，仅记录日志供排查上游。
func (c *Client) Fetch(ctx context.Context, cat model.Category) ([]model.Item, error) {
	u := c.URL(cat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	label := string(cat)
	t0 := time.Now()
	metrics.FetchRequestsTotal.WithLabelValues(label).Inc()
	logger.L().Debug("fetch_req", "category", label, "url", u)
	resp, err := c.hc.Do(req)
	if err != nil {
		logger.L().Error("fetch_http_error", "category", label, "err", err)
		metrics.FetchFailTotal.WithLabelValues(label, "transport").Inc()
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		logger.L().Error("fetch_status_error", "category", label, "status", resp.StatusCode)
		metrics.FetchFailTotal.WithLabelValues(label, "status").Inc()
		return nil, &StatusError{Code: resp.StatusCode}
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		logger.L().Error("fetch_decode_error", "category", label, "err", err)
		metrics.FetchFailTotal.WithLabelValues(label, "malformed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Data == nil {
		metrics.FetchFailTotal.WithLabelValues(label, "malformed").Inc()
		return nil, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	items := *env.Data
	unknown := 0
	for _, it := range items {
		if _, ok := it.Position(); !ok {
			unknown++
		}
	}
	dur := time.Since(t0).Milliseconds()
	metrics.FetchDurationMs.WithLabelValues(label).Observe(float64(dur))
	metrics.FetchSuccessTotal.WithLabelValues(label).Inc()
	logger.L().Info("fetch_ok", "category", label, "items", len(items), "unknown_coords", unknown, "updated", env.Updated, "duration_ms", dur)
	return items, nil
}
