// 包 liststore：进程级列表状态（按类别的排序列表、加载/错误标记、过滤条件、收藏）与派生视图
package liststore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"saludables/internal/geo"
	"saludables/internal/kv"
	"saludables/internal/logger"
	"saludables/internal/metrics"
	"saludables/internal/model"
	"saludables/internal/rank"
	"saludables/internal/reactive"
)

// ErrSuperseded：同类别有更新的刷新已开始，本次结果被丢弃
var ErrSuperseded = errors.New("refresh superseded by a newer one")

// 持久化键
const (
	KeyFavorites    = "favorites"
	KeyFilterHealth = "filter_health"
	KeyFilterQuery  = "filter_query"
)

// ListKey：类别排序列表的持久化键
func ListKey(c model.Category) string { return string(c) + "ListData" }

// DataSource：类别数据来源（缓存策略由实现负责）
type DataSource interface {
	GetItems(ctx context.Context, cat model.Category) ([]model.Item, error)
}

// Refetcher：可跳过缓存新鲜度检查的数据来源
type Refetcher interface {
	Refetch(ctx context.Context, cat model.Category) ([]model.Item, error)
}

// Locator：设备位置；失败返回 nil
type Locator interface {
	CurrentPosition(ctx context.Context) *geo.Position
}

// State：共享标记的快照
type State struct {
	Loading   bool     `json:"loading"`
	Error     string   `json:"error"`
	Filter    string   `json:"filter"`
	Health    bool     `json:"health"`
	Favorites []string `json:"favorites"`
}

type Store struct {
	data    DataSource
	loc     Locator
	persist kv.Store

	lists     map[model.Category]*reactive.Cell[[]model.RankedItem]
	loading   *reactive.Cell[bool]
	err       *reactive.Cell[string]
	filter    *reactive.Cell[string]
	health    *reactive.Cell[bool]
	favorites *reactive.Cell[[]string]

	views map[model.Category]*reactive.Derived[[]model.RankedItem]
	all   *reactive.Derived[[]model.RankedItem]
	state *reactive.Derived[State]

	mu       sync.Mutex
	versions map[model.Category]uint64
	inflight atomic.Int64

	commitMu sync.Mutex
	// rankEpoch 与 rankPos 由 commitMu 保护；每次 Rerank 递增
	rankEpoch uint64
	rankPos   *geo.Position

	persistMu sync.Mutex
}

// 文档注释：创建并从持久化存储恢复状态
// 约束：loc 为 nil 时不排序；persist 为 nil 时仅内存保存；恢复失败的键按默认值处理。
// 卫生开关默认开启。
func New(ctx context.Context, data DataSource, loc Locator, persist kv.Store) *Store {
	if persist == nil {
		persist = kv.NewMemory()
	}
	s := &Store{
		data:      data,
		loc:       loc,
		persist:   persist,
		lists:     make(map[model.Category]*reactive.Cell[[]model.RankedItem]),
		loading:   reactive.NewCell(false),
		err:       reactive.NewCell(""),
		filter:    reactive.NewCell(""),
		health:    reactive.NewCell(true),
		favorites: reactive.NewCell([]string{}),
		views:     make(map[model.Category]*reactive.Derived[[]model.RankedItem]),
		versions:  make(map[model.Category]uint64),
	}
	for _, c := range model.Categories {
		s.lists[c] = reactive.NewCell([]model.RankedItem{})
	}
	s.hydrate(ctx)
	for _, c := range model.Categories {
		list := s.lists[c]
		s.views[c] = reactive.Derive(func() []model.RankedItem {
			return Filter(list.Get(), s.filter.Get(), s.health.Get())
		}, list, s.filter, s.health)
	}
	beach, pool := s.views[model.Beach], s.views[model.Pool]
	s.all = reactive.Derive(func() []model.RankedItem {
		b, p := beach.Get(), pool.Get()
		out := make([]model.RankedItem, 0, len(b)+len(p))
		return append(append(out, b...), p...)
	}, beach, pool)
	s.state = reactive.Derive(s.snapshot, s.loading, s.err, s.filter, s.health, s.favorites)
	return s
}

func (s *Store) hydrate(ctx context.Context) {
	l := logger.L()
	for _, c := range model.Categories {
		var list []model.RankedItem
		if ok := s.load(ctx, ListKey(c), &list); ok && list != nil {
			s.lists[c].Set(list)
			l.Debug("store_hydrate_list", "category", string(c), "items", len(list))
		}
	}
	var favs []string
	if s.load(ctx, KeyFavorites, &favs) && favs != nil {
		s.favorites.Set(favs)
	}
	var health bool
	if s.load(ctx, KeyFilterHealth, &health) {
		s.health.Set(health)
	}
	var q string
	if s.load(ctx, KeyFilterQuery, &q) {
		s.filter.Set(q)
	}
}

func (s *Store) load(ctx context.Context, key string, v any) bool {
	raw, err := s.persist.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return false
	}
	if err == nil {
		err = json.Unmarshal([]byte(raw), v)
	}
	if err != nil {
		logger.L().Warn("store_hydrate_error", "key", key, "err", err)
		return false
	}
	return true
}

func (s *Store) save(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err == nil {
		err = s.persist.Set(ctx, key, string(b))
	}
	if err != nil {
		logger.L().Error("store_persist_error", "key", key, "err", err)
	}
}

func (s *Store) begin(cat model.Category) uint64 {
	s.mu.Lock()
	s.versions[cat]++
	v := s.versions[cat]
	s.mu.Unlock()
	s.inflight.Add(1)
	s.syncLoading()
	return v
}

func (s *Store) end() {
	s.inflight.Add(-1)
	s.syncLoading()
}

// syncLoading 在单元锁内读取计数，乱序完成时最后写入的仍是当前值
func (s *Store) syncLoading() {
	s.loading.Update(func(bool) bool { return s.inflight.Load() > 0 })
}

func (s *Store) current(cat model.Category, ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[cat] == ticket
}

// 文档注释：刷新类别列表
// 约束：步骤顺序固定为 取数（含缓存策略）→ 定位 → 排序 → 发布；
// 失败时写入错误信息并保留原列表；若期间同类别有更新的刷新开始，本次结果（含错误）被丢弃并返回 ErrSuperseded。
// 不自动重试，不设超时，由 ctx 控制。
func (s *Store) Refresh(ctx context.Context, cat model.Category) error {
	return s.refresh(ctx, cat, s.data.GetItems)
}

// ForceRefresh：与 Refresh 相同，但数据来源支持时跳过缓存新鲜度检查（定时刷新使用）
func (s *Store) ForceRefresh(ctx context.Context, cat model.Category) error {
	if r, ok := s.data.(Refetcher); ok {
		return s.refresh(ctx, cat, r.Refetch)
	}
	return s.refresh(ctx, cat, s.data.GetItems)
}

func (s *Store) refresh(ctx context.Context, cat model.Category, get func(context.Context, model.Category) ([]model.Item, error)) error {
	if !cat.Valid() {
		return fmt.Errorf("refresh: unknown category %q", cat)
	}
	label := string(cat)
	l := logger.L()
	ticket := s.begin(cat)
	defer s.end()
	l.Info("refresh_begin", "category", label, "ticket", ticket)

	items, err := get(ctx, cat)
	if err != nil {
		s.commitMu.Lock()
		defer s.commitMu.Unlock()
		if !s.current(cat, ticket) {
			return s.discard(cat, ticket)
		}
		s.err.Set(err.Error())
		metrics.RefreshTotal.WithLabelValues(label, "fail").Inc()
		l.Error("refresh_fail", "category", label, "err", err)
		return err
	}

	s.commitMu.Lock()
	epoch := s.rankEpoch
	s.commitMu.Unlock()
	var pos *geo.Position
	if s.loc != nil {
		pos = s.loc.CurrentPosition(ctx)
	}
	t0 := time.Now()
	ranked := rank.Rank(items, pos)
	metrics.RankDurationMs.Observe(float64(time.Since(t0).Microseconds()) / 1000)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	if !s.current(cat, ticket) {
		return s.discard(cat, ticket)
	}
	// 排序期间位置已被 Rerank 更新：按最新位置重排后再发布
	if s.rankEpoch != epoch && s.rankPos != nil {
		pos = s.rankPos
		ranked = rank.Rank(items, pos)
	}
	s.lists[cat].Set(ranked)
	s.save(ctx, ListKey(cat), ranked)
	metrics.RefreshTotal.WithLabelValues(label, "commit").Inc()
	l.Info("refresh_commit", "category", label, "items", len(ranked), "ranked", pos != nil)
	return nil
}

func (s *Store) discard(cat model.Category, ticket uint64) error {
	metrics.RefreshTotal.WithLabelValues(string(cat), "discard").Inc()
	logger.L().Info("refresh_discard_stale", "category", string(cat), "ticket", ticket)
	return ErrSuperseded
}

// Rerank：设备位置变化后按新位置重排两个类别的现有列表，不重新取数
func (s *Store) Rerank(ctx context.Context, pos geo.Position) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.rankEpoch++
	s.rankPos = &pos
	for _, c := range model.Categories {
		cell := s.lists[c]
		cur := cell.Get()
		if len(cur) == 0 {
			continue
		}
		ranked := rank.Rerank(cur, &pos)
		cell.Set(ranked)
		s.save(ctx, ListKey(c), ranked)
	}
	logger.L().Debug("store_rerank", "cell", geo.Cell(pos))
}

// List：类别的原始排序列表
func (s *Store) List(cat model.Category) []model.RankedItem {
	if c, ok := s.lists[cat]; ok {
		return c.Get()
	}
	return nil
}

// View：类别的派生过滤视图
func (s *Store) View(cat model.Category) []model.RankedItem {
	if v, ok := s.views[cat]; ok {
		return v.Get()
	}
	return nil
}

// All：合并视图，先海滩后泳池，不重新排序
func (s *Store) All() []model.RankedItem { return s.all.Get() }

func (s *Store) Loading() bool { return s.loading.Get() }

// Error：最近一次错误信息，空串表示无
func (s *Store) Error() string { return s.err.Get() }

func (s *Store) ClearError() { s.err.Set("") }

func (s *Store) FilterText() string { return s.filter.Get() }

func (s *Store) HealthFilter() bool { return s.health.Get() }

func (s *Store) SetFilter(ctx context.Context, q string) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.filter.Set(q)
	s.save(ctx, KeyFilterQuery, q)
}

func (s *Store) SetHealthFilter(ctx context.Context, on bool) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.health.Set(on)
	s.save(ctx, KeyFilterHealth, on)
}

// ToggleFavorite：存在则移除，否则追加；返回切换后的状态
func (s *Store) ToggleFavorite(ctx context.Context, id string) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	var now bool
	favs := s.favorites.Update(func(cur []string) []string {
		if i := slices.Index(cur, id); i >= 0 {
			now = false
			out := make([]string, 0, len(cur)-1)
			out = append(out, cur[:i]...)
			return append(out, cur[i+1:]...)
		}
		now = true
		out := make([]string, 0, len(cur)+1)
		out = append(out, cur...)
		return append(out, id)
	})
	s.save(ctx, KeyFavorites, favs)
	return now
}

func (s *Store) IsFavorite(id string) bool { return slices.Contains(s.favorites.Get(), id) }

func (s *Store) Favorites() []string { return slices.Clone(s.favorites.Get()) }

func (s *Store) snapshot() State {
	return State{
		Loading:   s.loading.Get(),
		Error:     s.err.Get(),
		Filter:    s.filter.Get(),
		Health:    s.health.Get(),
		Favorites: slices.Clone(s.favorites.Get()),
	}
}

// State：共享标记快照
func (s *Store) State() State { return s.state.Get() }

// WatchView：订阅类别视图；返回的取消函数须在消费者离开时调用
func (s *Store) WatchView(cat model.Category, fn func([]model.RankedItem)) (cancel func(), err error) {
	v, ok := s.views[cat]
	if !ok {
		return nil, fmt.Errorf("watch: unknown category %q", cat)
	}
	return v.Subscribe(fn), nil
}

// WatchAll：订阅合并视图
func (s *Store) WatchAll(fn func([]model.RankedItem)) (cancel func()) { return s.all.Subscribe(fn) }

// WatchState：订阅共享标记
func (s *Store) WatchState(fn func(State)) (cancel func()) { return s.state.Subscribe(fn) }

// ViewWatchers：类别视图当前订阅数
func (s *Store) ViewWatchers(cat model.Category) int {
	if v, ok := s.views[cat]; ok {
		return v.Subscribers()
	}
	return 0
}
