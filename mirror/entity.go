package mirror

import (
	"strconv"

	"astroarena/protocol"
)

const (
	KindAsteroid = "asteroid"
	KindEnemy    = "enemy"
	KindBullet   = "bullet"
)

// Entity 本地镜像中的共享实体
type Entity struct {
	ID        string
	X, Y      float64
	Velocity  protocol.Vec
	Rotation  float64
	Angle     float64
	Size      int
	Health    int
	Type      string
	Active    bool
	Thrusting bool
	Owner     string
}

// Snapshot 转回线上格式（host 广播时用）
func (e Entity) Snapshot() protocol.EntitySnapshot {
	return protocol.EntitySnapshot{
		ID:        e.ID,
		X:         e.X,
		Y:         e.Y,
		Velocity:  e.Velocity,
		Rotation:  e.Rotation,
		Angle:     e.Angle,
		Size:      e.Size,
		Health:    e.Health,
		Type:      e.Type,
		Active:    e.Active,
		Thrusting: e.Thrusting,
		Owner:     e.Owner,
	}
}

// parseEntity 从通用解码结果构造实体。不是对象或缺少数值 x/y 时返回 false。
func parseEntity(v any) (Entity, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Entity{}, false
	}
	x, okX := protocol.Number(m["x"])
	y, okY := protocol.Number(m["y"])
	if !okX || !okY {
		return Entity{}, false
	}
	return Entity{
		ID:        idOf(m["id"]),
		X:         x,
		Y:         y,
		Velocity:  protocol.VecOr(m, "velocity"),
		Rotation:  protocol.NumberOr(m, "rotation", 0),
		Angle:     protocol.NumberOr(m, "angle", 0),
		Size:      int(protocol.NumberOr(m, "size", 0)),
		Health:    int(protocol.NumberOr(m, "health", 0)),
		Type:      protocol.StringOr(m, "type", ""),
		Active:    protocol.BoolOr(m, "active", false),
		Thrusting: protocol.BoolOr(m, "thrusting", false),
		Owner:     protocol.StringOr(m, "owner", ""),
	}, true
}

// id 通常是字符串，老客户端可能发数字
func idOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := protocol.Number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}
