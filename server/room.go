package server

import "time"

// Room 以会话 id 为名的传输层分组。只记录成员，不持有游戏状态。
type Room struct {
	ID        string
	CreatedAt time.Time

	members map[string]*Peer
}

// NewRoom 创建房间，初始化数据结构
func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		members:   make(map[string]*Peer),
	}
}

// EmitOptions 房间广播选项
type EmitOptions struct {
	// IncludeSender 为 false 时跳过 SenderID
	IncludeSender bool
	SenderID      string
}

// Broadcast 把消息投递给 targets。每种编码只序列化一次。
// 返回成功入队的数量。
func Broadcast(targets []*Peer, event string, payload any, opts EmitOptions, m *Metrics) int {
	encoded := make(map[string][]byte, 2)
	sent := 0
	for _, p := range targets {
		if !opts.IncludeSender && p.ID == opts.SenderID {
			continue
		}
		b, ok := encoded[p.Codec.Name()]
		if !ok {
			var err error
			b, err = p.Codec.Encode(event, payload)
			if err != nil {
				Log.Errorf("encode %s for codec %s: %v", event, p.Codec.Name(), err)
				return sent
			}
			encoded[p.Codec.Name()] = b
		}
		if p.conn.Enqueue(frame{binary: p.Codec.Binary(), data: b}) {
			sent++
		}
	}
	if m != nil {
		m.AddMessagesOut(int64(sent))
	}
	return sent
}

// snapshot 成员副本，调用方持有 Hub 锁
func (r *Room) snapshot() []*Peer {
	out := make([]*Peer, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, p)
	}
	return out
}

