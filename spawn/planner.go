package spawn

import (
	"fmt"
	"math"
	"sync"
	"time"

	"astroarena/protocol"
)

const (
	// KindMath 轮次生成的数学小行星
	KindMath = "math-asteroid"
	// KindLarge 固定大尺寸（asteroid-spawn 事件）
	KindLarge = "asteroid-large"

	MinBaseSpeed = 40.0
	MaxBaseSpeed = 90.0
)

// Planner host 侧的生成参数规划器。seed 来自规划器自身的 LCG，
// 其余参数全部由 seed 派生，所以同一 seed 总是得到同一条记录。
type Planner struct {
	mu     sync.Mutex
	rng    *LCG
	worldW float64
	worldH float64
	now    func() time.Time
}

func NewPlanner(seed uint32, worldW, worldH float64) *Planner {
	return &Planner{rng: NewLCG(seed), worldW: worldW, worldH: worldH, now: time.Now}
}

// SetClock 测试用
func (p *Planner) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// Plan 为第 round 轮第 index 个实体生成记录
func (p *Planner) Plan(round, index int) protocol.SpawnRecord {
	p.mu.Lock()
	seed := p.rng.Next()
	now := p.now()
	p.mu.Unlock()
	return p.PlanSeed(seed, round, index, now.UnixMilli())
}

// PlanSeed 用指定 seed 生成记录：从随机一条边出发，朝世界中心 ±45° 飞行
func (p *Planner) PlanSeed(seed uint32, round, index int, spawnTime int64) protocol.SpawnRecord {
	g := NewLCG(seed)
	w, h := p.worldW, p.worldH

	var x, y float64
	switch g.Intn(4) {
	case 0: // 上
		x, y = g.Float64()*w, 0
	case 1: // 下
		x, y = g.Float64()*w, h-1
	case 2: // 左
		x, y = 0, g.Float64()*h
	default: // 右
		x, y = w-1, g.Float64()*h
	}
	angle := math.Atan2(h/2-y, w/2-x)
	angle += (g.Float64() - 0.5) * math.Pi / 2

	return protocol.SpawnRecord{
		ID:        fmt.Sprintf("r%d-%d-%08x", round, index, seed),
		Kind:      KindMath,
		StartX:    x,
		StartY:    y,
		SpawnTime: spawnTime,
		BaseSpeed: g.Range(MinBaseSpeed, MaxBaseSpeed),
		Angle:     angle,
		Seed:      seed,
		Round:     round,
		Index:     index,
	}
}

// Spawn 规划并立即在本地 field 中构造，返回本地实体与待广播的记录
func (p *Planner) Spawn(f *Field, round, index int) (*MathAsteroid, protocol.SpawnRecord) {
	rec := p.Plan(round, index)
	a, _ := f.Add(rec)
	return a, rec
}
