// 包 geo：大圆距离、导航深链与 geohash 网格键，供排序与定位监听共用
package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"
)

// 地球平均半径（米）
const EarthRadiusM = 6371000.0

// 网格精度 8 约 38m × 19m，用于判断设备位置是否发生有效移动
const CellPrecision = 8

const mapURLPrefix = "https://www.google.com/maps/dir/?api=1&destination="

// Position：WGS84 十进制度坐标
type Position struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180.0 }

// 文档注释：haversine 大圆距离（米）
// 约束：输入必须为有限数值；未知坐标应在调用前由 ParseCoordinate 过滤。
func Distance(a, b Position) float64 {
	phi1 := toRadians(a.Lat)
	phi2 := toRadians(b.Lat)
	dPhi := toRadians(b.Lat - a.Lat)
	dLambda := toRadians(b.Lon - a.Lon)
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusM * c
}

// 文档注释：解析字符串坐标
// 约束：空串、非数值、NaN/Inf 与越界值均返回 false（坐标未知），不产生 NaN。
func ParseCoordinate(lat, lon string) (Position, bool) {
	la, ok := parseDegrees(lat, 90)
	if !ok {
		return Position{}, false
	}
	lo, ok := parseDegrees(lon, 180)
	if !ok {
		return Position{}, false
	}
	return Position{Lat: la, Lon: lo}, true
}

func parseDegrees(s string, limit float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v < -limit || v > limit {
		return 0, false
	}
	return v, true
}

// MapURL：导航深链，原样拼接上游的经纬度字符串
func MapURL(lat, lon string) string {
	return mapURLPrefix + lat + "," + lon
}

// Cell：位置所在的 geohash 网格
func Cell(p Position) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lon, CellPrecision)
}
