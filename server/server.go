package server

import (
	"sync/atomic"
	"time"

	"astroarena/protocol"
	"astroarena/session"
	"astroarena/store"
)

const (
	DefaultShipLookupTimeout = 2 * time.Second
	DefaultEmptySessionTTL   = 10 * time.Minute
	DefaultSweepInterval     = time.Minute
)

// Options 服务端依赖与可调参数
type Options struct {
	Registry          *session.Registry
	Store             store.Store
	Metrics           *Metrics
	SendQueueSize     int
	EmptySessionTTL   time.Duration
	SweepInterval     time.Duration
	ShipLookupTimeout time.Duration
}

// Server 把传输层（Hub）、会话注册表和持久化连接在一起，处理实时事件与 REST 请求
type Server struct {
	hub      *Hub
	registry *session.Registry
	store    store.Store
	metrics  *Metrics

	emptyTTL      atomic.Int64 // ns
	sweepInterval time.Duration
	lookupTimeout time.Duration
}

func New(opts Options) *Server {
	if opts.Registry == nil {
		opts.Registry = session.NewRegistry(session.NewMemoryStore(), session.Options{Logger: L()})
	}
	if opts.Store == nil {
		opts.Store = store.Unavailable{}
	}
	if opts.Metrics == nil {
		opts.Metrics = &Metrics{}
	}
	if opts.EmptySessionTTL <= 0 {
		opts.EmptySessionTTL = DefaultEmptySessionTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.ShipLookupTimeout <= 0 {
		opts.ShipLookupTimeout = DefaultShipLookupTimeout
	}

	s := &Server{
		hub:           NewHub(opts.Metrics),
		registry:      opts.Registry,
		store:         opts.Store,
		metrics:       opts.Metrics,
		sweepInterval: opts.SweepInterval,
		lookupTimeout: opts.ShipLookupTimeout,
	}
	s.hub.SetSendQueueSize(opts.SendQueueSize)
	s.emptyTTL.Store(int64(opts.EmptySessionTTL))

	s.hub.On(protocol.EvCreateSession, s.handleCreate)
	s.hub.On(protocol.EvJoinSession, s.handleJoin)
	s.hub.On(protocol.EvLeaveSession, s.handleLeave)
	s.hub.On(protocol.EvStartGame, s.handleStart)
	s.hub.OnFallback(s.handleRelay)
	s.hub.OnDisconnect(s.handleDisconnect)
	return s
}

func (s *Server) Hub() *Hub                    { return s.hub }
func (s *Server) Registry() *session.Registry { return s.registry }
func (s *Server) Metrics() *Metrics           { return s.metrics }

// EmptySessionTTL 无人会话的保留时长
func (s *Server) EmptySessionTTL() time.Duration {
	return time.Duration(s.emptyTTL.Load())
}

func (s *Server) SetEmptySessionTTL(d time.Duration) {
	if d > 0 {
		s.emptyTTL.Store(int64(d))
	}
}

// Close 断开所有连接
func (s *Server) Close() {
	s.hub.CloseAll()
}
