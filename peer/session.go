package peer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"astroarena/protocol"
	"astroarena/session"
	"astroarena/spawn"
)

type sessionInfo struct {
	ID          string
	HostID      string
	MaxPlayers  int
	WorldWidth  float64
	WorldHeight float64
	Started     bool
}

// reply 会话请求的应答：session-joined 或 session-error 二选一
type reply struct {
	joined protocol.SessionJoined
	err    error
}

// CreateOptions create-session 参数
type CreateOptions struct {
	MaxPlayers     int
	WorldWidth     float64
	WorldHeight    float64
	ShipPassphrase string
}

// CreateSession 创建会话并以 host 身份加入
func (c *Client) CreateSession(ctx context.Context, o CreateOptions) (protocol.SessionJoined, error) {
	return c.request(ctx, protocol.EvCreateSession, protocol.CreateSessionRequest{
		MaxPlayers:     o.MaxPlayers,
		WorldWidth:     o.WorldWidth,
		WorldHeight:    o.WorldHeight,
		PlayerName:     c.opts.Name,
		ShipPassphrase: o.ShipPassphrase,
	})
}

// JoinSession 加入已有会话。失败时返回的错误可以用 errors.Is 与
// session.ErrSessionFull 等哨兵比较。
func (c *Client) JoinSession(ctx context.Context, sessionID, passphrase string) (protocol.SessionJoined, error) {
	return c.request(ctx, protocol.EvJoinSession, protocol.JoinSessionRequest{
		SessionID:      sessionID,
		PlayerName:     c.opts.Name,
		ShipPassphrase: passphrase,
	})
}

func (c *Client) request(ctx context.Context, event string, payload any) (protocol.SessionJoined, error) {
	if !c.reqMu.TryLock() {
		return protocol.SessionJoined{}, ErrBusy
	}
	defer c.reqMu.Unlock()

	// 丢掉上一次请求之后迟到的应答
	select {
	case <-c.replies:
	default:
	}
	if err := c.send(event, payload); err != nil {
		return protocol.SessionJoined{}, err
	}
	select {
	case r := <-c.replies:
		return r.joined, r.err
	case <-c.done:
		return protocol.SessionJoined{}, ErrClosed
	case <-ctx.Done():
		return protocol.SessionJoined{}, ctx.Err()
	}
}

func (c *Client) deliver(r reply) {
	select {
	case c.replies <- r:
	default:
	}
}

// StartGame 请求开始对局；game-started 会发给包括自己在内的所有成员
func (c *Client) StartGame() error {
	if c.SessionID() == "" {
		return ErrNoSession
	}
	return c.send(protocol.EvStartGame, protocol.StartGame{})
}

// Leave 离开当前会话，会话内的定时任务在返回前全部停止
func (c *Client) Leave() error {
	if c.SessionID() == "" {
		return ErrNoSession
	}
	err := c.send(protocol.EvLeaveSession, struct{}{})
	c.exitSession()
	return err
}

// SessionID 当前会话，不在会话中为空
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.ID
}

// HostID 当前会话的 host
func (c *Client) HostID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.HostID
}

// IsHost 自己是否是当前会话的 host
func (c *Client) IsHost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isHostLocked()
}

func (c *Client) isHostLocked() bool {
	return c.sess != nil && c.sess.HostID == c.id
}

// Started 是否已收到 game-started
func (c *Client) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil && c.sess.Started
}

// Field 本地数学小行星集合，不在会话中为 nil
func (c *Client) Field() *spawn.Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.field
}

// enterSession 收到 session-joined 后建立会话内的本地状态与定时任务
func (c *Client) enterSession(j protocol.SessionJoined) {
	c.exitSession()

	log := c.log.With(zap.String("session", j.SessionID))
	sched := newScheduler(context.Background())
	dog := newWatchdog(c.opts.HostTimeout)

	c.mu.Lock()
	c.sess = &sessionInfo{
		ID:          j.SessionID,
		HostID:      j.HostPlayerID,
		MaxPlayers:  j.MaxPlayers,
		WorldWidth:  j.WorldWidth,
		WorldHeight: j.WorldHeight,
		Started:     j.GameState == string(session.StatePlaying),
	}
	c.field = spawn.NewField(j.WorldWidth, j.WorldHeight, log.Named("spawn"))
	c.planner = spawn.NewPlanner(c.opts.Seed, j.WorldWidth, j.WorldHeight)
	c.sched = sched
	c.dog = dog
	c.host = hostState{}
	c.mu.Unlock()

	c.mirror.Reset()
	c.rounds.Reset()

	sched.Every(c.opts.ShipInterval, c.broadcastShip)
	sched.Every(c.opts.ObjectsInterval, c.broadcastObjects)
	sched.Every(c.opts.HostTimeout/5, c.heartbeat)
	sched.Every(c.opts.HostTimeout/10, c.checkHost)

	log.Info("joined session", zap.Bool("host", j.IsHost), zap.Int("players", j.PlayerCount))

	// 向已有成员索取外观
	if !j.IsHost {
		_ = c.send(protocol.EvRequestShipData, protocol.RequestShipData{})
	}
}

// exitSession 停止会话内的定时任务并清空本地状态
func (c *Client) exitSession() {
	c.mu.Lock()
	sched := c.sched
	c.sched = nil
	c.sess = nil
	c.field = nil
	c.planner = nil
	c.dog = nil
	c.mu.Unlock()

	if sched == nil {
		return
	}
	sched.Stop()
	c.rounds.Reset()
	c.mirror.Reset()
	for _, sh := range c.mirror.Ships() {
		c.mirror.RemoveShip(sh.PlayerID)
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("peer(%s)", c.id)
}
