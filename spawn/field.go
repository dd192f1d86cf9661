package spawn

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"astroarena/protocol"
)

// Field 本 peer 持有的确定性实体集合。同一 id 只会被构造一次。
type Field struct {
	mu     sync.RWMutex
	worldW float64
	worldH float64
	items  map[string]*MathAsteroid
	log    *zap.Logger
}

func NewField(worldW, worldH float64, log *zap.Logger) *Field {
	if log == nil {
		log = zap.NewNop()
	}
	return &Field{worldW: worldW, worldH: worldH, items: make(map[string]*MathAsteroid), log: log}
}

// Add 构造并加入；id 已存在时忽略（重复投递或 host 自己的回显），返回已有实体与 false
func (f *Field) Add(rec protocol.SpawnRecord) (*MathAsteroid, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.items[rec.ID]; ok {
		f.log.Debug("duplicate spawn ignored", zap.String("id", rec.ID))
		return a, false
	}
	a := Build(rec, f.worldW, f.worldH)
	f.items[rec.ID] = a
	return a, true
}

// Destroy 幂等：不存在的 id 视为成功，返回是否真的删除了
func (f *Field) Destroy(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return false
	}
	delete(f.items, id)
	return true
}

func (f *Field) Get(id string) (*MathAsteroid, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.items[id]
	return a, ok
}

func (f *Field) Has(id string) bool {
	_, ok := f.Get(id)
	return ok
}

func (f *Field) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// Clear 新游戏开始时清空
func (f *Field) Clear() {
	f.mu.Lock()
	f.items = make(map[string]*MathAsteroid)
	f.mu.Unlock()
}

// IDs 排序后的 id 列表
func (f *Field) IDs() []string {
	f.mu.RLock()
	ids := make([]string, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	f.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Snapshots 所有实体在 now 时刻的快照，按 id 排序
func (f *Field) Snapshots(nowMs int64) []protocol.EntitySnapshot {
	f.mu.RLock()
	out := make([]protocol.EntitySnapshot, 0, len(f.items))
	for _, a := range f.items {
		out = append(out, a.Snapshot(nowMs))
	}
	f.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
