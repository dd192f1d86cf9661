package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"astroarena/protocol"
)

// Memory 进程内实现，STORE=memory 或测试时使用
type Memory struct {
	mu     sync.RWMutex
	ships  map[string]Ship
	byPass map[string]string
	scores []HighScore
	now    func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		ships:  make(map[string]Ship),
		byPass: make(map[string]string),
		now:    time.Now,
	}
}

func (m *Memory) FindShip(_ context.Context, passphrase string) (Ship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byPass[passphrase]
	if !ok {
		return Ship{}, ErrNotFound
	}
	return copyShip(m.ships[id]), nil
}

func (m *Memory) GetShip(_ context.Context, id string) (Ship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.ships[id]
	if !ok {
		return Ship{}, ErrNotFound
	}
	return copyShip(s), nil
}

func (m *Memory) ListShips(_ context.Context) ([]Ship, error) {
	m.mu.RLock()
	out := make([]Ship, 0, len(m.ships))
	for _, s := range m.ships {
		c := copyShip(s)
		c.Passphrase = ""
		out = append(out, c)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateShip(_ context.Context, s Ship) (Ship, error) {
	if err := validateShip(s); err != nil {
		return Ship{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byPass[s.Passphrase]; ok {
		return Ship{}, ErrConflict
	}
	s.ID = uuid.NewString()
	s.CreatedAt = m.now()
	s.UpdatedAt = s.CreatedAt
	s = copyShip(s)
	m.ships[s.ID] = s
	m.byPass[s.Passphrase] = s.ID
	return copyShip(s), nil
}

// UpdateShip 按 id 覆盖名字和外观；口令变更时检查唯一性
func (m *Memory) UpdateShip(_ context.Context, s Ship) (Ship, error) {
	if err := validateShip(s); err != nil {
		return Ship{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.ships[s.ID]
	if !ok {
		return Ship{}, ErrNotFound
	}
	if s.Passphrase != cur.Passphrase {
		if _, taken := m.byPass[s.Passphrase]; taken {
			return Ship{}, ErrConflict
		}
		delete(m.byPass, cur.Passphrase)
		m.byPass[s.Passphrase] = s.ID
	}
	s.CreatedAt = cur.CreatedAt
	s.UpdatedAt = m.now()
	s = copyShip(s)
	m.ships[s.ID] = s
	return copyShip(s), nil
}

func (m *Memory) TopScores(_ context.Context, limit int) ([]HighScore, error) {
	limit = clampLimit(limit)
	m.mu.RLock()
	out := append([]HighScore(nil), m.scores...)
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) AddScore(_ context.Context, h HighScore) (HighScore, error) {
	if err := validateScore(h); err != nil {
		return HighScore{}, err
	}
	h.ID = uuid.NewString()
	h.CreatedAt = m.now()
	m.mu.Lock()
	m.scores = append(m.scores, h)
	m.mu.Unlock()
	return h, nil
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func copyShip(s Ship) Ship {
	c := s
	c.Cosmetics = protocol.Cosmetics{}
	c.Cosmetics.Merge(s.Cosmetics)
	return c
}
