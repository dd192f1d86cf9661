package session

import (
	"sort"
	"sync"
)

// Store 会话存储抽象。Update 对单个 id 原子执行 fn，
// 协议层只依赖这个接口，以后可以换成真正的存储。
type Store interface {
	Create(s Session) error
	Get(id string) (Session, error)
	// Update 在该 id 的锁内执行 fn；fn 返回 error 时不写回
	Update(id string, fn func(s *Session) error) (Session, error)
	Delete(id string) error
	List() []Session
}

// MemoryStore 进程内实现：全局 map 只保护增删，每个会话一把锁
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	s       Session
	deleted bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

func (m *MemoryStore) Create(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[s.ID]; ok {
		return ErrExists
	}
	m.entries[s.ID] = &entry{s: s.clone()}
	return nil
}

func (m *MemoryStore) lookup(id string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

func (m *MemoryStore) Get(id string) (Session, error) {
	e, ok := m.lookup(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return Session{}, ErrSessionNotFound
	}
	return e.s.clone(), nil
}

func (m *MemoryStore) Update(id string, fn func(s *Session) error) (Session, error) {
	e, ok := m.lookup(id)
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// 拿到锁之前可能已被 Delete
	if e.deleted {
		return Session{}, ErrSessionNotFound
	}
	work := e.s.clone()
	if err := fn(&work); err != nil {
		return e.s.clone(), err
	}
	e.s = work
	return e.s.clone(), nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	e, ok := m.entries[id]
	if ok {
		delete(m.entries, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	// 标记删除：正在等锁的 Update 会看到 deleted
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

// List 按创建时间排序的副本
func (m *MemoryStore) List() []Session {
	m.mu.RLock()
	snapshot := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		snapshot = append(snapshot, e)
	}
	m.mu.RUnlock()

	out := make([]Session, 0, len(snapshot))
	for _, e := range snapshot {
		e.mu.Lock()
		if !e.deleted {
			out = append(out, e.s.clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
