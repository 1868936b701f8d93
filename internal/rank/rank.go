// 包 rank：按与设备位置的距离为场所排序（纯函数，无副作用）
package rank

import (
	"cmp"
	"slices"

	"saludables/internal/geo"
	"saludables/internal/model"
)

// 文档注释：距离排序
// 约束：pos 为 nil 时原样透传，不附加 distance/mapUrl；
// 否则稳定升序排序，坐标未知的记录排在所有已知距离之后并保持输入相对顺序。
// 输入切片不被修改，相同输入得到相同输出。
func Rank(items []model.Item, pos *geo.Position) []model.RankedItem {
	if pos == nil {
		return model.Plain(items)
	}
	out := make([]model.RankedItem, len(items))
	for i, it := range items {
		r := model.RankedItem{Item: it}
		if it.HasCoordinates() {
			r.MapURL = geo.MapURL(it.Latitude, it.Longitude)
		}
		if p, ok := it.Position(); ok {
			d := geo.Distance(p, *pos)
			r.Distance = &d
		}
		out[i] = r
	}
	slices.SortStableFunc(out, byDistance)
	return out
}

// Rerank：对已排序列表按新位置重新排序，保留原有记录内容
func Rerank(items []model.RankedItem, pos *geo.Position) []model.RankedItem {
	raw := make([]model.Item, len(items))
	for i, r := range items {
		raw[i] = r.Item
	}
	return Rank(raw, pos)
}

func byDistance(a, b model.RankedItem) int {
	switch {
	case a.Distance != nil && b.Distance != nil:
		return cmp.Compare(*a.Distance, *b.Distance)
	case a.Distance != nil:
		return -1
	case b.Distance != nil:
		return 1
	}
	return 0
}
