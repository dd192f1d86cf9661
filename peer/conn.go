package peer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"astroarena/mirror"
	"astroarena/protocol"
	"astroarena/round"
	"astroarena/spawn"
)

const (
	writeWait   = 5 * time.Second
	outQueue    = 256
	maxReadSize = 1 << 20

	DefaultHostTimeout = 5 * time.Second
)

var (
	ErrClosed     = errors.New("peer: connection closed")
	ErrNotHost    = errors.New("peer: not the session host")
	ErrNoSession  = errors.New("peer: not in a session")
	ErrBusy       = errors.New("peer: another session request is pending")
	errNoIdentity = errors.New("peer: server did not send connected")
)

// Options 客户端参数，零值字段使用默认值
type Options struct {
	Name   string
	Codec  protocol.Codec
	Logger *zap.Logger

	ShipInterval    time.Duration
	ObjectsInterval time.Duration
	// HostTimeout 非 host 在这段时间内收不到 host 流量即触发 OnHostLost
	HostTimeout time.Duration
	Rounds      round.Config
	// Seed 规划器种子，0 时取当前时间
	Seed uint32
	// ManualRounds 为 true 时 game-started 后 host 不自动推进轮次
	ManualRounds bool

	// OnEvent 每条入站事件应用到本地状态之后回调（在读协程中执行）
	OnEvent    func(env protocol.Envelope)
	OnHostLost func()
}

func (o Options) withDefaults() Options {
	if o.Codec == nil {
		o.Codec = protocol.JSON
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ShipInterval <= 0 {
		o.ShipInterval = protocol.ShipUpdateInterval
	}
	if o.ObjectsInterval <= 0 {
		o.ObjectsInterval = protocol.ObjectsUpdateInterval
	}
	if o.HostTimeout <= 0 {
		o.HostTimeout = DefaultHostTimeout
	}
	if o.Seed == 0 {
		o.Seed = uint32(time.Now().UnixNano())
	}
	return o
}

// Client 一个 peer 的连接与本地游戏状态
type Client struct {
	opts  Options
	codec protocol.Codec
	log   *zap.Logger

	ws        *websocket.Conn
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	connected chan struct{}
	replies   chan reply
	reqMu     sync.Mutex

	id     string
	mirror *mirror.Mirror
	rounds *round.Machine
	seq    atomic.Uint64

	mu        sync.Mutex
	sess      *sessionInfo
	field     *spawn.Field
	planner   *spawn.Planner
	sched     *Scheduler
	dog       *watchdog
	host      hostState
	ship      protocol.PlayerUpdate
	hasShip   bool
	shipDirty bool
}

// Dial 连接服务端并等待 connected 分配身份。rawURL 形如 ws://host:port/ws
func Dial(ctx context.Context, rawURL string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("codec", opts.Codec.Name())
	if opts.Name != "" {
		q.Set("name", opts.Name)
	}
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	c := &Client{
		opts:      opts,
		codec:     opts.Codec,
		log:       opts.Logger,
		ws:        ws,
		out:       make(chan []byte, outQueue),
		done:      make(chan struct{}),
		connected: make(chan struct{}, 1),
		replies:   make(chan reply, 1),
		mirror:    mirror.New(opts.Logger.Named("mirror")),
		rounds:    round.New(opts.Rounds),
	}
	go c.writeLoop()
	go c.readLoop()

	select {
	case <-c.connected:
		return c, nil
	case <-c.done:
		return nil, errNoIdentity
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

// ID 服务端分配的玩家 id
func (c *Client) ID() string { return c.id }

func (c *Client) Codec() protocol.Codec { return c.codec }

// Mirror 远端实体与飞船的本地镜像
func (c *Client) Mirror() *mirror.Mirror { return c.mirror }

// Rounds 本地轮次状态机
func (c *Client) Rounds() *round.Machine { return c.rounds }

// Done 连接关闭时关闭
func (c *Client) Done() <-chan struct{} { return c.done }

// Close 停止会话内的定时任务并断开连接；可重复调用
func (c *Client) Close() error {
	c.exitSession()
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

// send 编码并排队；连接关闭后返回 ErrClosed
func (c *Client) send(event string, payload any) error {
	b, err := c.codec.Encode(event, payload)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.out <- b:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Client) writeLoop() {
	mt := websocket.TextMessage
	if c.codec.Binary() {
		mt = websocket.BinaryMessage
	}
	for {
		select {
		case b := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(mt, b); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				go c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Client) readLoop() {
	defer func() { go c.Close() }()
	c.ws.SetReadLimit(maxReadSize)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.log.Debug("read loop ended", zap.Error(err))
			}
			return
		}
		env, err := c.codec.Decode(data)
		if err != nil || env.Type == "" {
			c.log.Warn("undecodable frame", zap.Error(err))
			continue
		}
		c.handle(env)
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(env)
		}
	}
}
