package mirror

import (
	"sort"

	"go.uber.org/zap"

	"astroarena/protocol"
)

// Ship 远端玩家飞船的本地缓存
type Ship struct {
	PlayerID   string
	Seq        uint64
	X, Y       float64
	Angle      float64
	Rotation   float64
	Velocity   protocol.Vec
	Thrusting  bool
	Alive      bool
	PlayerName string
	Cosmetics  protocol.Cosmetics
}

// ApplyShip 用 player-update 整体替换运动学字段；外观字段缺省时保留旧值。
// 双方都带 seq 且入站 seq 不大于已存 seq 时视为乱序旧包，返回 false。
func (m *Mirror) ApplyShip(up protocol.PlayerUpdate) bool {
	if up.PlayerID == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.ships[up.PlayerID]
	if !ok {
		cur = &Ship{PlayerID: up.PlayerID}
		m.ships[up.PlayerID] = cur
	} else if cur.Seq != 0 && up.Seq != 0 && up.Seq <= cur.Seq {
		m.log.Debug("stale player update dropped", zap.String("player", up.PlayerID),
			zap.Uint64("seq", up.Seq), zap.Uint64("have", cur.Seq))
		return false
	}

	cur.Seq = up.Seq
	cur.X, cur.Y = up.X, up.Y
	cur.Angle = up.Angle
	cur.Rotation = up.Rotation
	cur.Velocity = up.Velocity
	cur.Thrusting = up.Thrusting
	cur.Alive = up.Alive
	if up.PlayerName != "" {
		cur.PlayerName = up.PlayerName
	}
	cur.Cosmetics.Merge(up.Cosmetics)
	return true
}

// ApplyShipData player-ship-data：只更新外观与名字，飞船不存在时先建占位
func (m *Mirror) ApplyShipData(d protocol.PlayerShipData) {
	if d.PlayerID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.ships[d.PlayerID]
	if !ok {
		cur = &Ship{PlayerID: d.PlayerID, Alive: true}
		m.ships[d.PlayerID] = cur
	}
	if d.PlayerName != "" {
		cur.PlayerName = d.PlayerName
	}
	cur.Cosmetics.Merge(d.Cosmetics)
}

// RemoveShip 玩家离开或断线
func (m *Mirror) RemoveShip(playerID string) {
	m.mu.Lock()
	delete(m.ships, playerID)
	m.mu.Unlock()
}

// Ship 单个远端飞船的副本
func (m *Mirror) Ship(playerID string) (Ship, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.ships[playerID]
	if !ok {
		return Ship{}, false
	}
	return s.copy(), true
}

// Ships 按 playerId 排序的副本
func (m *Mirror) Ships() []Ship {
	m.mu.RLock()
	out := make([]Ship, 0, len(m.ships))
	for _, s := range m.ships {
		out = append(out, s.copy())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

func (s *Ship) copy() Ship {
	c := *s
	c.Cosmetics = protocol.Cosmetics{}
	c.Cosmetics.Merge(s.Cosmetics)
	return c
}
