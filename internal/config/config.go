// 包 config：读取 .env 与环境变量，汇总为进程配置；非法数值静默回退默认值
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"saludables/internal/geo"
	"saludables/internal/kv"
	"saludables/internal/logger"
	"saludables/internal/scheduler"
)

// DefaultWatchPeriod：LOCATE_WATCH_SEC 缺省或非正时的位置轮询周期
const DefaultWatchPeriod = 60 * time.Second

type Config struct {
	Addr         string
	APIBase      string
	StorageURL   string
	FetchTimeout time.Duration

	KV kv.Options

	// 定位：静态坐标优先，其次 GeoIP
	StaticPos   *geo.Position
	GeoIPPath   string
	GeoIPAddr   string
	LocateDeny  bool
	WatchPeriod time.Duration

	RefreshHour    int
	RefreshZone    string
	RefreshOnStart bool
	RefreshQPS     int
}

// LoadDotenv：依次加载 .env 与 data/env/.env；文件缺失不报错，已存在的环境变量不被覆盖
func LoadDotenv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func num(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func flag(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// PostgresDSN：由 PG_* 组装连接串
func PostgresDSN() string {
	user := str("PG_USER", "postgres")
	dsn := "postgres://" + user
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + str("PG_HOST", "localhost") + ":" + str("PG_PORT", "5432") + "/" + str("PG_DB", "saludables")
	return dsn + "?sslmode=" + str("PG_SSLMODE", "disable")
}

// Load：读取环境变量（调用方按需先执行 LoadDotenv）
func Load() Config {
	c := Config{
		Addr:         str("ADDR", ":8080"),
		APIBase:      strings.TrimSuffix(str("API_BASE", "/api"), "/"),
		StorageURL:   strings.TrimSuffix(str("STORAGE_API_URL", ""), "/"),
		FetchTimeout: time.Duration(num("FETCH_TIMEOUT_MS", 0)) * time.Millisecond,
		KV: kv.Options{
			Backend:     str("KV_BACKEND", "file"),
			FileDir:     str("KV_FILE_DIR", filepath.Join("data", "kv")),
			SQLitePath:  str("SQLITE_PATH", filepath.Join("data", "saludables.db")),
			RedisAddr:   str("REDIS_HOST", "127.0.0.1") + ":" + str("REDIS_PORT", "6379"),
			RedisPass:   os.Getenv("REDIS_PASS"),
			RedisDB:     num("REDIS_DB", 0),
			RedisKeyNS:  str("REDIS_KEY_NS", "saludables:"),
			PostgresDSN: PostgresDSN(),
		},
		GeoIPPath:      os.Getenv("GEOIP_DB_PATH"),
		GeoIPAddr:      os.Getenv("GEOIP_IP"),
		LocateDeny:     flag("LOCATE_DENY", false),
		WatchPeriod:    time.Duration(num("LOCATE_WATCH_SEC", 0)) * time.Second,
		RefreshHour:    num("REFRESH_HOUR", scheduler.DefaultHour),
		RefreshZone:    str("REFRESH_TZ", scheduler.DefaultZone),
		RefreshOnStart: flag("REFRESH_ON_START", true),
		RefreshQPS:     num("REFRESH_QPS", 2),
	}
	if c.RefreshHour > 23 {
		c.RefreshHour = scheduler.DefaultHour
	}
	if c.WatchPeriod <= 0 {
		c.WatchPeriod = DefaultWatchPeriod
	}
	if c.RefreshQPS == 0 {
		c.RefreshQPS = 2
	}
	if p, ok := geo.ParseCoordinate(os.Getenv("LOCATE_LAT"), os.Getenv("LOCATE_LON")); ok {
		c.StaticPos = &p
	}
	logger.L().Debug("config_loaded",
		"addr", c.Addr,
		"api_base", c.APIBase,
		"storage_url", c.StorageURL,
		"kv_backend", c.KV.Backend,
		"static_pos", c.StaticPos != nil,
		"geoip", c.GeoIPPath != "",
		"refresh_hour", c.RefreshHour,
		"refresh_tz", c.RefreshZone,
	)
	return c
}
