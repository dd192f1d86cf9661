package spawn

import (
	"math"

	"astroarena/protocol"
)

// Size 小行星尺寸档位
type Size int

const (
	Small  Size = 1
	Medium Size = 2
	Large  Size = 3
)

var radii = map[Size]float64{
	Small:  15,
	Medium: 30,
	Large:  50,
}

// 形状派生用的盐，和 Planner 的参数序列错开
const shapeSalt uint32 = 0x9e3779b9

// MathAsteroid 由 SpawnRecord 确定性构造的小行星。构造后只读，
// 任意时刻的位置由 Position(now) 闭式计算，不逐帧积分。
type MathAsteroid struct {
	ID        string
	Kind      string
	Round     int
	Index     int
	Seed      uint32
	StartX    float64
	StartY    float64
	SpawnTime int64 // ms
	BaseSpeed float64
	Angle     float64

	Size          Size
	Radius        float64
	Vertices      []float64 // 各顶点到中心的距离
	InitialRot    float64
	RotationSpeed float64 // rad/s
	WobbleAmp     float64
	WobbleFreq    float64 // rad/s
	WobblePhase   float64

	worldW, worldH float64
}

// Build 用记录重建小行星。外观随机性只来自 rec.Seed。
func Build(rec protocol.SpawnRecord, worldW, worldH float64) *MathAsteroid {
	g := NewLCG(rec.Seed ^ shapeSalt)

	size := Size(1 + g.Intn(3))
	if rec.Kind == KindLarge {
		size = Large
	}
	radius := radii[size]

	// 8~12 个顶点，半径 ±30%
	n := 8 + g.Intn(5)
	verts := make([]float64, n)
	for i := range verts {
		verts[i] = radius * (0.7 + g.Float64()*0.6)
	}

	return &MathAsteroid{
		ID:            rec.ID,
		Kind:          rec.Kind,
		Round:         rec.Round,
		Index:         rec.Index,
		Seed:          rec.Seed,
		StartX:        rec.StartX,
		StartY:        rec.StartY,
		SpawnTime:     rec.SpawnTime,
		BaseSpeed:     rec.BaseSpeed,
		Angle:         rec.Angle,
		Size:          size,
		Radius:        radius,
		Vertices:      verts,
		InitialRot:    g.Float64() * 2 * math.Pi,
		RotationSpeed: (g.Float64() - 0.5) * 2,
		WobbleAmp:     g.Range(5, 25),
		WobbleFreq:    g.Range(0.5, 2),
		WobblePhase:   g.Float64() * 2 * math.Pi,
		worldW:        worldW,
		worldH:        worldH,
	}
}

// Elapsed 距生成的秒数，时钟回拨时取 0
func (a *MathAsteroid) Elapsed(nowMs int64) float64 {
	t := float64(nowMs-a.SpawnTime) / 1000
	if t < 0 {
		return 0
	}
	return t
}

// Position pos(t) = start + dir*baseSpeed*t + perp*A*sin(ωt+φ)，再按世界尺寸回绕
func (a *MathAsteroid) Position(nowMs int64) (x, y float64) {
	t := a.Elapsed(nowMs)
	dx, dy := math.Cos(a.Angle), math.Sin(a.Angle)
	px, py := -dy, dx
	w := a.WobbleAmp * math.Sin(a.WobbleFreq*t+a.WobblePhase)
	x = a.StartX + dx*a.BaseSpeed*t + px*w
	y = a.StartY + dy*a.BaseSpeed*t + py*w
	return wrap(x, a.worldW), wrap(y, a.worldH)
}

// Rotation 当前朝向
func (a *MathAsteroid) Rotation(nowMs int64) float64 {
	return math.Mod(a.InitialRot+a.RotationSpeed*a.Elapsed(nowMs), 2*math.Pi)
}

// Velocity 当前瞬时速度（位置对 t 的导数）
func (a *MathAsteroid) Velocity(nowMs int64) protocol.Vec {
	t := a.Elapsed(nowMs)
	dx, dy := math.Cos(a.Angle), math.Sin(a.Angle)
	dw := a.WobbleAmp * a.WobbleFreq * math.Cos(a.WobbleFreq*t+a.WobblePhase)
	return protocol.Vec{X: dx*a.BaseSpeed - dy*dw, Y: dy*a.BaseSpeed + dx*dw}
}

// Snapshot 转成共享实体快照
func (a *MathAsteroid) Snapshot(nowMs int64) protocol.EntitySnapshot {
	x, y := a.Position(nowMs)
	return protocol.EntitySnapshot{
		ID:       a.ID,
		X:        x,
		Y:        y,
		Velocity: a.Velocity(nowMs),
		Rotation: a.Rotation(nowMs),
		Size:     int(a.Size),
		Type:     KindMath,
	}
}

// Record 还原出广播用的记录
func (a *MathAsteroid) Record() protocol.SpawnRecord {
	return protocol.SpawnRecord{
		ID:        a.ID,
		Kind:      a.Kind,
		StartX:    a.StartX,
		StartY:    a.StartY,
		SpawnTime: a.SpawnTime,
		BaseSpeed: a.BaseSpeed,
		Angle:     a.Angle,
		Seed:      a.Seed,
		Round:     a.Round,
		Index:     a.Index,
	}
}

func wrap(v, size float64) float64 {
	if size <= 0 {
		return v
	}
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	return v
}
