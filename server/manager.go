package server

import (
	"errors"
	"sync"
	"sync/atomic"

	"astroarena/protocol"
)

// HandlerFunc 入站事件处理函数，在该连接的读协程中执行
type HandlerFunc func(p *Peer, env protocol.Envelope)

var ErrPeerNotFound = errors.New("peer not found")

// Hub 管理所有连接与房间的生命周期（传输层）
type Hub struct {
	mu    sync.RWMutex
	peers map[string]*Peer
	rooms map[string]*Room

	hmu          sync.RWMutex
	handlers     map[string]HandlerFunc
	fallback     HandlerFunc
	onDisconnect func(p *Peer)

	sendQueue atomic.Int64
	metrics   *Metrics
}

func NewHub(metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = &Metrics{}
	}
	h := &Hub{
		peers:    make(map[string]*Peer),
		rooms:    make(map[string]*Room),
		handlers: make(map[string]HandlerFunc),
		metrics:  metrics,
	}
	h.sendQueue.Store(64)
	return h
}

func (h *Hub) Metrics() *Metrics { return h.metrics }

// SendQueueSize 新连接的发送队列容量
func (h *Hub) SendQueueSize() int { return int(h.sendQueue.Load()) }

func (h *Hub) SetSendQueueSize(n int) {
	if n > 0 {
		h.sendQueue.Store(int64(n))
	}
}

// On 注册事件处理函数
func (h *Hub) On(event string, fn HandlerFunc) {
	h.hmu.Lock()
	h.handlers[event] = fn
	h.hmu.Unlock()
}

// OnFallback 没有专门处理函数的事件交给 fn
func (h *Hub) OnFallback(fn HandlerFunc) {
	h.hmu.Lock()
	h.fallback = fn
	h.hmu.Unlock()
}

// OnDisconnect 连接断开（读协程退出）时回调，在移出房间之前执行
func (h *Hub) OnDisconnect(fn func(p *Peer)) {
	h.hmu.Lock()
	h.onDisconnect = fn
	h.hmu.Unlock()
}

func (h *Hub) dispatch(p *Peer, env protocol.Envelope) {
	h.hmu.RLock()
	fn, ok := h.handlers[env.Type]
	if !ok {
		fn = h.fallback
	}
	h.hmu.RUnlock()
	if fn == nil {
		h.metrics.IncUnknownEvents()
		Log.Debugf("no handler for event %q from peer=%s", env.Type, p.ID)
		return
	}
	fn(p, env)
}

func (h *Hub) register(p *Peer) {
	h.mu.Lock()
	h.peers[p.ID] = p
	h.mu.Unlock()
	h.metrics.IncConnections()
	Log.Infof("peer connected: id=%s name=%q codec=%s", p.ID, p.Name, p.Codec.Name())
}

func (h *Hub) disconnect(p *Peer) {
	h.hmu.RLock()
	fn := h.onDisconnect
	h.hmu.RUnlock()
	if fn != nil {
		fn(p)
	}

	h.mu.Lock()
	delete(h.peers, p.ID)
	for id, r := range h.rooms {
		if _, ok := r.members[p.ID]; ok {
			delete(r.members, p.ID)
			if len(r.members) == 0 {
				delete(h.rooms, id)
			}
		}
	}
	h.mu.Unlock()
	h.metrics.DecConnections()
	Log.Infof("peer disconnected: id=%s", p.ID)
}

// Peer 按 id 查找连接
func (h *Hub) Peer(id string) (*Peer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.peers[id]
	return p, ok
}

// JoinRoom 把连接加入房间，房间不存在时创建
func (h *Hub) JoinRoom(peerID, roomID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.peers[peerID]
	if !ok {
		return ErrPeerNotFound
	}
	r, ok := h.rooms[roomID]
	if !ok {
		r = NewRoom(roomID)
		h.rooms[roomID] = r
	}
	r.members[peerID] = p
	return nil
}

// LeaveRoom 移出房间，空房间随即删除
func (h *Hub) LeaveRoom(peerID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(r.members, peerID)
	if len(r.members) == 0 {
		delete(h.rooms, roomID)
	}
}

// RoomSize 房间内的连接数，注册表用它校正人数
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[roomID]; ok {
		return len(r.members)
	}
	return 0
}

// InRoom 连接是否在房间内
func (h *Hub) InRoom(roomID, peerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = r.members[peerID]
	return ok
}

// RoomMembers 房间成员副本
func (h *Hub) RoomMembers(roomID string) []*Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[roomID]; ok {
		return r.snapshot()
	}
	return nil
}

// RoomCount 当前房间数
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// EmitToRoom 向房间广播；默认不发给 SenderID
func (h *Hub) EmitToRoom(roomID, event string, payload any, opts EmitOptions) int {
	return Broadcast(h.RoomMembers(roomID), event, payload, opts, h.metrics)
}

// EmitToPeer 只发给一个连接
func (h *Hub) EmitToPeer(peerID, event string, payload any) error {
	p, ok := h.Peer(peerID)
	if !ok {
		return ErrPeerNotFound
	}
	ok, err := p.Send(event, payload)
	if err != nil {
		return err
	}
	if ok {
		h.metrics.AddMessagesOut(1)
	}
	return nil
}

// CloseAll 关闭所有连接（进程退出时）
func (h *Hub) CloseAll() {
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()
	for _, p := range peers {
		p.conn.Close()
	}
}
