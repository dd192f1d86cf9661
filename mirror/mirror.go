package mirror

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"astroarena/protocol"
)

// LerpFactor 敌人位置每次快照向目标靠近的比例
const LerpFactor = 0.2

// Mirror 一个 peer 对共享实体和远端飞船的本地镜像。
// I/O goroutine 写入，游戏循环通过副本读取。
type Mirror struct {
	mu sync.RWMutex

	asteroids []Entity
	bullets   []Entity
	enemies   map[string]*Entity
	ships     map[string]*Ship

	level, score, lives, round int

	log *zap.Logger
}

func New(log *zap.Logger) *Mirror {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{
		enemies: make(map[string]*Entity),
		ships:   make(map[string]*Ship),
		log:     log,
	}
}

// Result 一次快照应用的统计
type Result struct {
	Asteroids int
	Enemies   int
	Bullets   int
	Skipped   int
}

// ApplyObjects 应用 host 的权威快照：小行星/子弹整体替换，敌人按 id 平滑合并
func (m *Mirror) ApplyObjects(raw protocol.RawGameObjects) Result {
	asteroids, skipA := m.parseList(KindAsteroid, raw.Asteroids, false)
	bullets, skipB := m.parseList(KindBullet, raw.Bullets, false)
	enemies, skipE := m.parseList(KindEnemy, raw.Enemies, true)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.asteroids = asteroids
	m.bullets = bullets
	m.mergeEnemies(enemies)

	m.level, m.score, m.lives = raw.Level, raw.Score, raw.Lives
	if raw.Round > 0 {
		m.round = raw.Round
	}

	return Result{
		Asteroids: len(m.asteroids),
		Enemies:   len(m.enemies),
		Bullets:   len(m.bullets),
		Skipped:   skipA + skipB + skipE,
	}
}

// parseList 宽松解析：非数组得到空集合，坏元素跳过并记录
func (m *Mirror) parseList(kind string, v any, needID bool) ([]Entity, int) {
	items, ok := v.([]any)
	if !ok {
		if v != nil {
			m.log.Warn("snapshot field is not an array", zap.String("kind", kind))
		}
		return []Entity{}, 0
	}
	out := make([]Entity, 0, len(items))
	skipped := 0
	for i, it := range items {
		e, ok := parseEntity(it)
		if ok && needID && e.ID == "" {
			ok = false
		}
		if !ok {
			skipped++
			m.log.Warn("malformed entity skipped", zap.String("kind", kind), zap.Int("index", i))
			continue
		}
		out = append(out, e)
	}
	return out, skipped
}

func (m *Mirror) mergeEnemies(next []Entity) {
	seen := make(map[string]struct{}, len(next))
	for _, n := range next {
		seen[n.ID] = struct{}{}
		cur, ok := m.enemies[n.ID]
		if !ok {
			e := n
			m.enemies[n.ID] = &e
			continue
		}
		cur.X += (n.X - cur.X) * LerpFactor
		cur.Y += (n.Y - cur.Y) * LerpFactor
		cur.Angle = n.Angle
		cur.Active = n.Active
		cur.Thrusting = n.Thrusting
		cur.Health = n.Health
		cur.Velocity = n.Velocity
		cur.Rotation = n.Rotation
		cur.Type = n.Type
	}
	for id := range m.enemies {
		if _, ok := seen[id]; !ok {
			delete(m.enemies, id)
		}
	}
}

// Destroy 按 kind 删除；kind 为空或未知时在所有集合里找。不存在的 id 为空操作。
func (m *Mirror) Destroy(kind, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch kind {
	case KindAsteroid:
		return removeByID(&m.asteroids, id)
	case KindBullet:
		return removeByID(&m.bullets, id)
	case KindEnemy:
		return m.removeEnemy(id)
	}
	return removeByID(&m.asteroids, id) || removeByID(&m.bullets, id) || m.removeEnemy(id)
}

func (m *Mirror) removeEnemy(id string) bool {
	if _, ok := m.enemies[id]; !ok {
		return false
	}
	delete(m.enemies, id)
	return true
}

func removeByID(list *[]Entity, id string) bool {
	if id == "" {
		return false
	}
	for i, e := range *list {
		if e.ID == id {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}

// Asteroids 副本
func (m *Mirror) Asteroids() []Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entity(nil), m.asteroids...)
}

func (m *Mirror) Bullets() []Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entity(nil), m.bullets...)
}

// Enemies 按 id 排序的副本
func (m *Mirror) Enemies() []Entity {
	m.mu.RLock()
	out := make([]Entity, 0, len(m.enemies))
	for _, e := range m.enemies {
		out = append(out, *e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Mirror) Enemy(id string) (Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.enemies[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Scalars 最近一次快照里的 level/score/lives/round
func (m *Mirror) Scalars() (level, score, lives, round int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.level, m.score, m.lives, m.round
}

// SetLives lives-update 事件
func (m *Mirror) SetLives(lives int) {
	m.mu.Lock()
	m.lives = lives
	m.mu.Unlock()
}

// Reset 离开会话或新游戏开始时清空共享实体；远端飞船保留
func (m *Mirror) Reset() {
	m.mu.Lock()
	m.asteroids = nil
	m.bullets = nil
	m.enemies = make(map[string]*Entity)
	m.level, m.score, m.lives, m.round = 0, 0, 0, 0
	m.mu.Unlock()
}
