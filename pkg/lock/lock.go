// Package lock 提供按 key 互斥的锁。
// 单实例部署时使用 MutexMap；多实例部署时由 pkg/redis 提供分布式实现。
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout 在等待期限内未能拿到锁
var ErrLockTimeout = errors.New("获取锁超时，请稍后重试")

// Locker 按 key 获取互斥锁，返回的 unlock 必须调用且只调用一次
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// MutexMap 进程内按 key 的互斥锁表
// 每个 key 对应一个容量为 1 的信号量，等待可被 ctx 取消
type MutexMap struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewMutexMap 创建空锁表
func NewMutexMap() *MutexMap {
	return &MutexMap{slots: make(map[string]*slot)}
}

// Lock 获取 key 对应的锁，ctx 结束时返回 ErrLockTimeout
func (m *MutexMap) Lock(ctx context.Context, key string) (func(), error) {
	s := m.acquireSlot(key)

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.releaseSlot(key, s)
		return nil, ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.releaseSlot(key, s)
		})
	}, nil
}

// Len 当前仍被持有或等待的 key 数量
func (m *MutexMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *MutexMap) acquireSlot(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

// releaseSlot 引用归零时回收，避免 key 无限增长
func (m *MutexMap) releaseSlot(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// Fallback 优先使用 primary，primary 出错（非超时）时降级到 secondary
type Fallback struct {
	Primary    Locker
	Secondary  Locker
	OnFallback func(key string, err error)
}

// Lock 实现 Locker
func (f *Fallback) Lock(ctx context.Context, key string) (func(), error) {
	if f.Primary != nil {
		unlock, err := f.Primary.Lock(ctx, key)
		if err == nil {
			return unlock, nil
		}
		if errors.Is(err, ErrLockTimeout) {
			return nil, err
		}
		if f.OnFallback != nil {
			f.OnFallback(key, err)
		}
	}
	return f.Secondary.Lock(ctx, key)
}
