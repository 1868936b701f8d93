// 包 locate：设备位置的获取与记忆；所有失败在边界处降级为“无位置”
package locate

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"saludables/internal/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
)

// Provider：一次性获取当前位置；拒绝授权返回 ErrPermissionDenied
type Provider interface {
	CurrentPosition(ctx context.Context) (geo.Position, error)
}

// ProviderFunc：函数适配器
type ProviderFunc func(ctx context.Context) (geo.Position, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context) (geo.Position, error) { return f(ctx) }

// Static：配置给定的固定位置；Denied 模拟用户拒绝授权
type Static struct {
	Pos    *geo.Position
	Denied bool
}

func (s Static) CurrentPosition(ctx context.Context) (geo.Position, error) {
	if s.Denied {
		return geo.Position{}, ErrPermissionDenied
	}
	if s.Pos == nil {
		return geo.Position{}, ErrUnavailable
	}
	return *s.Pos, nil
}

// 文档注释：基于 MaxMind GeoLite2-City 的 IP 定位
// 约束：精度为城市级；IP 为设备出口地址，未命中或坐标为 (0,0) 视为不可用。
type GeoIPProvider struct {
	db *geoip2.Reader
	ip net.IP
}

func OpenGeoIP(path, ip string) (*GeoIPProvider, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("geoip: bad ip %q", ip)
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip open: %w", err)
	}
	return &GeoIPProvider{db: db, ip: parsed}, nil
}

func (g *GeoIPProvider) CurrentPosition(ctx context.Context) (geo.Position, error) {
	if err := ctx.Err(); err != nil {
		return geo.Position{}, err
	}
	rec, err := g.db.City(g.ip)
	if err != nil {
		return geo.Position{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	lat, lon := rec.Location.Latitude, rec.Location.Longitude
	if lat == 0 && lon == 0 {
		return geo.Position{}, ErrUnavailable
	}
	return geo.Position{Lat: lat, Lon: lon}, nil
}

func (g *GeoIPProvider) Close() error { return g.db.Close() }

// 文档注释：按顺序尝试多个来源，首个成功者生效
// 约束：nil 来源跳过；全部失败时，若任一来源拒绝授权则返回 ErrPermissionDenied，否则返回最后一个错误。
type Chain struct {
	list []Provider
}

func NewChain(list ...Provider) *Chain { return &Chain{list: list} }

func (c *Chain) CurrentPosition(ctx context.Context) (geo.Position, error) {
	last := error(ErrUnavailable)
	denied := false
	for _, p := range c.list {
		if p == nil {
			continue
		}
		pos, err := p.CurrentPosition(ctx)
		if err == nil {
			return pos, nil
		}
		if errors.Is(err, ErrPermissionDenied) {
			denied = true
		}
		last = err
	}
	if denied {
		return geo.Position{}, ErrPermissionDenied
	}
	return geo.Position{}, last
}
