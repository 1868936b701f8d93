// 包 planner：行程规划输入摘要与距离文案
package planner

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"saludables/internal/model"
)

// DigestLimit：摘要最多包含的记录数
const DigestLimit = 10

// Entry：摘要中的单条记录
type Entry struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DistanceM       float64 `json:"distance_m"`
	DistanceKm      string  `json:"distance_km"`
	Address         string  `json:"address"`
	SanitaryQuality string  `json:"sanitary_quality"`
}

// BlockName：摘要块标题
func BlockName(c model.Category) string {
	if c == model.Pool {
		return "AVAILABLE_POOLS_JSON"
	}
	return "AVAILABLE_BEACHES_JSON"
}

// Entries：取前 DigestLimit 条，编号从 1 开始；无距离按 0 处理
func Entries(items []model.RankedItem) []Entry {
	n := min(len(items), DigestLimit)
	out := make([]Entry, 0, n)
	for i, it := range items[:n] {
		var d float64
		if it.Distance != nil {
			d = *it.Distance
		}
		out = append(out, Entry{
			ID:              i + 1,
			Name:            it.Name,
			Description:     it.Description,
			DistanceM:       d,
			DistanceKm:      fmt.Sprintf("%.2f", d/1000),
			Address:         it.Address,
			SanitaryQuality: it.SanitaryQuality,
		})
	}
	return out
}

// 文档注释：生成规划器输入块
// 格式：`<BLOCK>:` 换行后接两空格缩进的 JSON 数组；不转义 HTML 字符
func Digest(c model.Category, items []model.RankedItem) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Entries(items)); err != nil {
		return "", fmt.Errorf("digest %s: %w", c, err)
	}
	return BlockName(c) + ":\n" + strings.TrimSuffix(buf.String(), "\n"), nil
}

// DistanceText：展示用距离文案
func DistanceText(d *float64) string {
	if d == nil || *d == 0 {
		return "No disponible"
	}
	if *d < 1000 {
		return fmt.Sprintf("%d m", int64(math.Round(*d)))
	}
	return fmt.Sprintf("%.2f km", *d/1000)
}

// IsNonSanitary：卫生代码为 "ns"（不区分大小写）
func IsNonSanitary(key string) bool {
	return strings.EqualFold(key, model.NonSanitaryKey)
}
