package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// HostPolicy host 断线后的处理方式
type HostPolicy string

const (
	// HostPromote 最早加入的剩余玩家成为新 host
	HostPromote HostPolicy = "promote"
	// HostTeardown host 离开即关闭会话
	HostTeardown HostPolicy = "teardown"
)

// stateClosed 只在删除前的瞬间存在，保证 Leave→Delete 之间插入的 Join 失败
const stateClosed GameState = "closed"

const (
	DefaultMaxPlayers  = 4
	MaxPlayersLimit    = 16
	DefaultWorldWidth  = 2000
	DefaultWorldHeight = 1500
	idLength           = 6
	maxIDAttempts      = 32
)

// Options 注册表参数，零值字段使用默认值
type Options struct {
	DefaultMaxPlayers int
	WorldWidth        float64
	WorldHeight       float64
	HostPolicy        HostPolicy
	Now               func() time.Time
	NewID             func() string
	Logger            *zap.Logger
}

// RoomCounter 传输层的房间成员视图
type RoomCounter interface {
	RoomSize(roomID string) int
	InRoom(roomID, peerID string) bool
}

// Registry 会话注册表：所有多字段修改都通过 Store.Update 原子完成
type Registry struct {
	store  Store
	opts   Options
	log    *zap.Logger
	policy atomic.Value // HostPolicy
}

func NewRegistry(store Store, opts Options) *Registry {
	if opts.DefaultMaxPlayers <= 0 {
		opts.DefaultMaxPlayers = DefaultMaxPlayers
	}
	if opts.WorldWidth <= 0 {
		opts.WorldWidth = DefaultWorldWidth
	}
	if opts.WorldHeight <= 0 {
		opts.WorldHeight = DefaultWorldHeight
	}
	if opts.HostPolicy == "" {
		opts.HostPolicy = HostPromote
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return generateCode(idLength) }
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{store: store, opts: opts, log: log}
	r.policy.Store(opts.HostPolicy)
	return r
}

// HostPolicy 当前 host 策略
func (r *Registry) HostPolicy() HostPolicy {
	return r.policy.Load().(HostPolicy)
}

// SetHostPolicy 运行时调整（admin 接口）
func (r *Registry) SetHostPolicy(p HostPolicy) {
	if p == HostPromote || p == HostTeardown {
		r.policy.Store(p)
	}
}

// CreateSession 分配新 id 并插入记录：currentPlayers=0, waiting
func (r *Registry) CreateSession(hostID string, maxPlayers int, worldWidth, worldHeight float64) (Session, error) {
	if hostID == "" {
		return Session{}, errors.New("host player id is required")
	}
	if maxPlayers <= 0 {
		maxPlayers = r.opts.DefaultMaxPlayers
	}
	if maxPlayers > MaxPlayersLimit {
		maxPlayers = MaxPlayersLimit
	}
	if worldWidth <= 0 {
		worldWidth = r.opts.WorldWidth
	}
	if worldHeight <= 0 {
		worldHeight = r.opts.WorldHeight
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		s := Session{
			ID:           r.opts.NewID(),
			HostPlayerID: hostID,
			MaxPlayers:   maxPlayers,
			GameState:    StateWaiting,
			WorldWidth:   worldWidth,
			WorldHeight:  worldHeight,
			CreatedAt:    r.opts.Now(),
			Players:      []Player{},
		}
		err := r.store.Create(s)
		if errors.Is(err, ErrExists) {
			// 随机 id 冲突：重新生成
			continue
		}
		if err != nil {
			return Session{}, err
		}
		r.log.Debug("session created", zap.String("session", s.ID), zap.String("host", hostID), zap.Int("max", maxPlayers))
		return s, nil
	}
	return Session{}, fmt.Errorf("could not allocate session id after %d attempts", maxIDAttempts)
}

// Get 读取会话副本
func (r *Registry) Get(id string) (Session, error) {
	s, err := r.store.Get(id)
	if err != nil {
		return Session{}, err
	}
	if s.GameState == stateClosed {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

// ListAvailable 返回可加入的会话。房间人数少于名单时先校正名单，
// 把已不在房间里的玩家移出，人数始终等于名单长度。
func (r *Registry) ListAvailable(counter RoomCounter) []Session {
	var out []Session
	for _, s := range r.store.List() {
		if counter != nil && counter.RoomSize(s.ID) < len(s.Players) {
			cur, ok := r.reconcile(s.ID, counter)
			if !ok {
				continue
			}
			s = cur
		}
		if s.Joinable() {
			out = append(out, s)
		}
	}
	return out
}

// reconcile 移除不在房间里的名单项；名单清空则删除会话，host 被移除则由最早加入者接任
func (r *Registry) reconcile(id string, counter RoomCounter) (Session, bool) {
	var dropped []string
	deleted := false
	s, err := r.store.Update(id, func(cur *Session) error {
		if cur.GameState == stateClosed {
			return ErrSessionNotFound
		}
		kept := make([]Player, 0, len(cur.Players))
		for _, p := range cur.Players {
			if counter.InRoom(id, p.PlayerID) {
				kept = append(kept, p)
			} else {
				dropped = append(dropped, p.PlayerID)
			}
		}
		if len(dropped) == 0 {
			return nil
		}
		cur.Players = kept
		cur.CurrentPlayers = len(kept)
		switch {
		case len(kept) == 0:
			cur.GameState = stateClosed
			deleted = true
		case !cur.Has(cur.HostPlayerID):
			cur.HostPlayerID = kept[0].PlayerID
		}
		return nil
	})
	if err != nil {
		return Session{}, false
	}
	if len(dropped) > 0 {
		r.log.Warn("stale roster entries dropped", zap.String("session", id), zap.Strings("players", dropped))
	}
	if deleted {
		_ = r.store.Delete(id)
		return Session{}, false
	}
	return s, true
}

// Join 原子的检查并自增。满员、不存在、重复加入分别返回对应错误。
func (r *Registry) Join(sessionID string, p Player) (Session, error) {
	if p.PlayerID == "" {
		return Session{}, errors.New("player id is required")
	}
	p.SessionID = sessionID
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.opts.Now()
	}
	return r.store.Update(sessionID, func(s *Session) error {
		if s.GameState == stateClosed {
			return ErrSessionNotFound
		}
		if s.Has(p.PlayerID) {
			return ErrAlreadyJoined
		}
		if len(s.Players) >= s.MaxPlayers {
			return ErrSessionFull
		}
		s.Players = append(s.Players, p)
		s.CurrentPlayers = len(s.Players)
		return nil
	})
}

// LeaveResult Leave 的结果
type LeaveResult struct {
	Session Session
	// Deleted 最后一个玩家离开，会话已删除
	Deleted bool
	// Closed host 离开且策略为 teardown，会话已关闭，Session.Players 为被清退的剩余玩家
	Closed bool
	// NewHostID 发生了 host 迁移
	NewHostID string
}

// Leave 自减；为零时删除。host 离开时按 HostPolicy 迁移或关闭。
func (r *Registry) Leave(sessionID, playerID string) (LeaveResult, error) {
	var res LeaveResult
	policy := r.HostPolicy()
	s, err := r.store.Update(sessionID, func(s *Session) error {
		if s.GameState == stateClosed {
			return ErrSessionNotFound
		}
		i := s.index(playerID)
		if i < 0 {
			return ErrNotInSession
		}
		s.Players = append(s.Players[:i], s.Players[i+1:]...)
		s.CurrentPlayers = len(s.Players)
		wasHost := s.HostPlayerID == playerID
		switch {
		case len(s.Players) == 0:
			s.GameState = stateClosed
			res.Deleted = true
		case wasHost && policy == HostTeardown:
			s.GameState = stateClosed
			res.Closed = true
		case wasHost:
			s.HostPlayerID = s.Players[0].PlayerID
			res.NewHostID = s.HostPlayerID
		}
		return nil
	})
	if err != nil {
		return LeaveResult{}, err
	}
	res.Session = s
	if res.Deleted || res.Closed {
		if err := r.store.Delete(sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return res, err
		}
		r.log.Debug("session removed", zap.String("session", sessionID), zap.Bool("teardown", res.Closed))
	}
	if res.NewHostID != "" {
		r.log.Info("host promoted", zap.String("session", sessionID), zap.String("host", res.NewHostID))
	}
	return res, nil
}

// SetGameState 修改粗粒度状态
func (r *Registry) SetGameState(sessionID string, st GameState) (Session, error) {
	return r.store.Update(sessionID, func(s *Session) error {
		if s.GameState == stateClosed {
			return ErrSessionNotFound
		}
		s.GameState = st
		return nil
	})
}

// StartGame waiting → playing；已在进行中返回 ErrGameInProgress
func (r *Registry) StartGame(sessionID string) (Session, error) {
	return r.store.Update(sessionID, func(s *Session) error {
		switch s.GameState {
		case stateClosed:
			return ErrSessionNotFound
		case StatePlaying:
			return ErrGameInProgress
		}
		s.GameState = StatePlaying
		return nil
	})
}

// Sweep 删除创建后一直无人加入且超过 ttl 的会话，返回被删除的 id
func (r *Registry) Sweep(ttl time.Duration, counter RoomCounter) []string {
	now := r.opts.Now()
	var removed []string
	for _, s := range r.store.List() {
		if now.Sub(s.CreatedAt) < ttl {
			continue
		}
		if counter != nil && counter.RoomSize(s.ID) > 0 {
			continue
		}
		_, err := r.store.Update(s.ID, func(cur *Session) error {
			if cur.CurrentPlayers > 0 {
				return errBusy
			}
			cur.GameState = stateClosed
			return nil
		})
		if err != nil {
			continue
		}
		if err := r.store.Delete(s.ID); err == nil {
			removed = append(removed, s.ID)
		}
	}
	if len(removed) > 0 {
		r.log.Info("stale sessions swept", zap.Strings("sessions", removed))
	}
	return removed
}

// Count 当前会话数
func (r *Registry) Count() int {
	return len(r.store.List())
}

var errBusy = errors.New("session has players")

const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateCode(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeChars[idx.Int64()]
	}
	return string(b)
}
