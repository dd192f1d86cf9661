package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"astroarena/protocol"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20 // 1MB
)

// frame 待写出的一帧；binary 决定 websocket 帧类型
type frame struct {
	binary bool
	data   []byte
}

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	ws        *websocket.Conn
	send      chan frame
	done      chan struct{}
	closeOnce sync.Once
	onDrop    func()
}

func NewClientConn(ws *websocket.Conn, queueSize int) *ClientConn {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &ClientConn{
		ws:   ws,
		send: make(chan frame, queueSize),
		done: make(chan struct{}),
	}
}

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(f frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	case <-c.done:
		return false
	default:
		// 为了实时性直接丢弃，下一次快照会覆盖
		if c.onDrop != nil {
			c.onDrop()
		}
		return false
	}
}

// Close 关闭底层连接并结束写协程；可重复调用
func (c *ClientConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case f := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			mt := websocket.TextMessage
			if f.binary {
				mt = websocket.BinaryMessage
			}
			if err := c.ws.WriteMessage(mt, f.data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump 读取客户端消息，解码后交给 Hub 分发。退出即视为断线。
func (c *ClientConn) readPump(h *Hub, p *Peer) {
	defer func() {
		c.Close()
		h.disconnect(p)
	}()
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugf("read error: peer=%s err=%v", p.ID, err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		env, err := p.Codec.Decode(payload)
		if err != nil || env.Type == "" {
			h.metrics.IncDecodeErrors()
			Log.Debugf("bad frame from peer=%s: %v", p.ID, err)
			continue
		}
		h.metrics.IncMessagesIn()
		h.dispatch(p, env)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入：/ws?codec=json|msgpack&name=alice
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	codec := protocol.CodecByName(r.URL.Query().Get("codec"))
	name := r.URL.Query().Get("name")

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	conn := NewClientConn(ws, h.SendQueueSize())
	conn.onDrop = h.metrics.IncQueueFullDropped
	p := newPeer(uuid.NewString(), name, codec, conn)
	h.register(p)

	go conn.writePump()
	if _, err := p.Send(protocol.EvConnected, protocol.Connected{PlayerID: p.ID, Codec: codec.Name()}); err != nil {
		Log.Errorf("encode connected: %v", err)
	}
	go conn.readPump(h, p)
}
