package liststore

import (
	"strings"

	"saludables/internal/model"
)

// 文档注释：派生过滤
// 约束：先按卫生开关剔除 key 为 "ns" 的记录，再按查询词（去空白、小写）匹配名称/大区/省/区的子串；
// 不改变上游顺序；结果总是非 nil 切片。
func Filter(items []model.RankedItem, query string, hideNonSanitary bool) []model.RankedItem {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.RankedItem, 0, len(items))
	for _, it := range items {
		if hideNonSanitary && it.NonSanitary() {
			continue
		}
		if q != "" && !matches(it.Item, q) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func matches(it model.Item, q string) bool {
	for _, f := range [...]string{it.Name, it.Department, it.Province, it.District} {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
