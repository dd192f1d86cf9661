package server

import (
	"sync"
	"time"

	"astroarena/protocol"
)

// Peer 一条 websocket 连接对应的玩家身份。每次连接分配新的 uuid，断线重连不恢复旧身份。
type Peer struct {
	ID          string
	Name        string
	Codec       protocol.Codec
	ConnectedAt time.Time

	conn *ClientConn

	mu        sync.Mutex
	sessionID string
}

func newPeer(id, name string, codec protocol.Codec, conn *ClientConn) *Peer {
	return &Peer{ID: id, Name: name, Codec: codec, conn: conn, ConnectedAt: time.Now()}
}

// Session 当前所在会话，不在会话中为空
func (p *Peer) Session() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

func (p *Peer) setSession(id string) {
	p.mu.Lock()
	p.sessionID = id
	p.mu.Unlock()
}

// clearSession 只有仍在 id 会话中时才清除，返回是否清除
func (p *Peer) clearSession(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionID != id {
		return false
	}
	p.sessionID = ""
	return true
}

// Send 按该连接的编码发送一条消息；队列满时丢弃并返回 false
func (p *Peer) Send(event string, payload any) (bool, error) {
	b, err := p.Codec.Encode(event, payload)
	if err != nil {
		return false, err
	}
	return p.conn.Enqueue(frame{binary: p.Codec.Binary(), data: b}), nil
}
