// 包 model：场所记录、排序结果与类别定义；字段名对齐上游快照 JSON
package model

import (
	"encoding/json"
	"fmt"

	"saludables/internal/geo"
)

// 卫生质量代码：不合格
const NonSanitaryKey = "ns"

// Control：单项检查结果，Passed 取 0 或 1
type Control struct {
	Name   string `json:"control"`
	Passed int    `json:"valor"`
}

// 文档注释：场所记录（海滩或泳池）
// 约束：接收后只读；经纬度保持上游原始字符串，解析统一经 Position 完成。
type Item struct {
	ID                 string    `json:"id"`
	Name               string    `json:"strNombre"`
	Kind               string    `json:"strTipoPlaya,omitempty"`
	DepartmentID       string    `json:"idDepartamento"`
	ProvinceID         string    `json:"idProvincia"`
	DistrictID         string    `json:"idDistrito"`
	Address            string    `json:"strDireccion"`
	SanitaryQuality    string    `json:"strCalidadSanitaria"`
	SanitaryKey        string    `json:"keyCalidadSanitaria"`
	Description        string    `json:"strDescripcion"`
	LastInspectionDate string    `json:"dateUltimaInspeccion,omitempty"`
	Department         string    `json:"strDepartamento"`
	Province           string    `json:"strProvincia"`
	District           string    `json:"strDistrito"`
	PhotoURL           string    `json:"urlFoto"`
	Source             string    `json:"strSource,omitempty"`
	LastInspection     string    `json:"strUltimaInspeccion,omitempty"`
	Latitude           string    `json:"strLatitud"`
	Longitude          string    `json:"strLongitud"`
	Controls           []Control `json:"aControles"`
}

// Position：坐标未知（缺失或无法解析）时返回 false
func (it Item) Position() (geo.Position, bool) {
	return geo.ParseCoordinate(it.Latitude, it.Longitude)
}

// HasCoordinates：两个坐标字符串均非空
func (it Item) HasCoordinates() bool {
	return it.Latitude != "" && it.Longitude != ""
}

func (it Item) NonSanitary() bool { return it.SanitaryKey == NonSanitaryKey }

// 文档注释：带距离的场所记录
// 约束：Distance 仅在排序时有设备位置且记录坐标可解析时存在；MapURL 当且仅当两个坐标字符串非空时存在。
type RankedItem struct {
	Item
	Distance *float64 `json:"distance,omitempty"`
	MapURL   string   `json:"mapUrl,omitempty"`
}

// Plain：未排序的透传形式
func Plain(items []Item) []RankedItem {
	out := make([]RankedItem, len(items))
	for i, it := range items {
		out[i] = RankedItem{Item: it}
	}
	return out
}

// Snapshot：远端静态 JSON 的外层结构
type Snapshot struct {
	Status  int    `json:"status"`
	Data    []Item `json:"data"`
	Updated string `json:"updated"`
	Count   int    `json:"count"`
}

// DecodeItems：解析缓存中的 Item 数组
func DecodeItems(payload []byte) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}
