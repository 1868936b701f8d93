// 包 reactive：命名状态单元与派生视图；订阅返回取消函数，随消费者生命周期释放
package reactive

import (
	"sync"
	"sync/atomic"
)

// Dep：可被派生视图依赖的源
type Dep interface {
	onChange(fn func()) (cancel func())
}

type subscription struct {
	fn     func()
	active atomic.Bool
}

// subscribers：线程安全的回调集合；通知在锁外执行
type subscribers struct {
	// hookMu 串行化订阅增删与钩子执行，保证挂接与释放成对出现
	hookMu sync.Mutex
	mu     sync.Mutex
	next   int
	m      map[int]*subscription
	// 首个订阅者加入与最后一个离开时的钩子（派生视图用于挂接/释放上游）
	onFirst func()
	onLast  func()
}

func (s *subscribers) add(fn func()) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.mu.Lock()
	if s.m == nil {
		s.m = make(map[int]*subscription)
	}
	id := s.next
	s.next++
	s.m[id] = sub
	first := len(s.m) == 1
	hook := s.onFirst
	s.mu.Unlock()
	if first && hook != nil {
		hook()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.hookMu.Lock()
			defer s.hookMu.Unlock()
			s.mu.Lock()
			delete(s.m, id)
			last := len(s.m) == 0
			hook := s.onLast
			s.mu.Unlock()
			if last && hook != nil {
				hook()
			}
		})
	}
}

func (s *subscribers) notify() {
	s.mu.Lock()
	list := make([]*subscription, 0, len(s.m))
	for _, sub := range s.m {
		list = append(list, sub)
	}
	s.mu.Unlock()
	for _, sub := range list {
		if sub.active.Load() {
			sub.fn()
		}
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Cell：可读写的状态单元
type Cell[T any] struct {
	mu   sync.RWMutex
	v    T
	subs subscribers
}

func NewCell[T any](v T) *Cell[T] { return &Cell[T]{v: v} }

func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Set：覆盖写并通知订阅者（后写者生效）
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
	c.subs.notify()
}

// Update：原子地读-改-写并通知，返回新值
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	v := fn(c.v)
	c.v = v
	c.mu.Unlock()
	c.subs.notify()
	return v
}

// Subscribe：值变化时以新值回调；取消后不再回调
func (c *Cell[T]) Subscribe(fn func(T)) (cancel func()) {
	return c.subs.add(func() { fn(c.Get()) })
}

func (c *Cell[T]) onChange(fn func()) func() { return c.subs.add(fn) }

// Subscribers：当前订阅数
func (c *Cell[T]) Subscribers() int { return c.subs.count() }

// 文档注释：派生视图
// 约束：只读；无订阅者时每次读取都重新计算且不持有上游订阅；
// 有订阅者时缓存结果，任一依赖变化即失效并以新值通知订阅者；最后一个订阅者离开后释放上游订阅。
type Derived[T any] struct {
	compute func() T
	deps    []Dep

	mu       sync.Mutex
	cached   T
	valid    bool
	upstream []func()

	subs subscribers
}

func Derive[T any](compute func() T, deps ...Dep) *Derived[T] {
	d := &Derived[T]{compute: compute, deps: deps}
	d.subs.onFirst = d.attach
	d.subs.onLast = d.detach
	return d
}

func (d *Derived[T]) attach() {
	cancels := make([]func(), 0, len(d.deps))
	for _, dep := range d.deps {
		cancels = append(cancels, dep.onChange(d.invalidate))
	}
	d.mu.Lock()
	d.upstream = cancels
	d.valid = false
	d.mu.Unlock()
}

func (d *Derived[T]) detach() {
	d.mu.Lock()
	cancels := d.upstream
	d.upstream = nil
	d.valid = false
	var zero T
	d.cached = zero
	d.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

func (d *Derived[T]) invalidate() {
	d.mu.Lock()
	d.valid = false
	d.mu.Unlock()
	d.subs.notify()
}

// Get：读取当前派生值
func (d *Derived[T]) Get() T {
	if d.subs.count() == 0 {
		return d.compute()
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.valid {
		d.cached = d.compute()
		d.valid = true
	}
	return d.cached
}

// Subscribe：依赖变化时以重新计算的值回调
func (d *Derived[T]) Subscribe(fn func(T)) (cancel func()) {
	return d.subs.add(func() { fn(d.Get()) })
}

func (d *Derived[T]) onChange(fn func()) func() { return d.subs.add(fn) }

// Subscribers：当前订阅数
func (d *Derived[T]) Subscribers() int { return d.subs.count() }
