package server

import (
	"context"
	"errors"

	"astroarena/protocol"
	"astroarena/session"
	"astroarena/store"
)

// leave 的原因，决定广播 player-left 还是 player-disconnected
type leaveReason int

const (
	leaveExplicit leaveReason = iota
	leaveDisconnect
)

func (s *Server) sendError(p *Peer, sessionID string, err error) {
	_ = s.hub.EmitToPeer(p.ID, protocol.EvSessionError, protocol.SessionError{
		Code:      session.Code(err),
		Message:   err.Error(),
		SessionID: sessionID,
	})
}

// handleCreate create-session：创建会话，创建者作为 host 立即加入
func (s *Server) handleCreate(p *Peer, env protocol.Envelope) {
	req, err := protocol.DecodePayload[protocol.CreateSessionRequest](p.Codec, env)
	if err != nil && len(env.Data) > 0 {
		s.sendError(p, "", errors.New("invalid create-session payload"))
		return
	}
	sess, err := s.registry.CreateSession(p.ID, req.MaxPlayers, req.WorldWidth, req.WorldHeight)
	if err != nil {
		s.sendError(p, "", err)
		return
	}
	s.metrics.IncSessionsCreated()
	Log.Infof("session created: id=%s host=%s max=%d", sess.ID, p.ID, sess.MaxPlayers)
	s.join(p, sess.ID, req.PlayerName, req.ShipPassphrase)
}

// handleJoin join-session：原子检查容量后加入房间
func (s *Server) handleJoin(p *Peer, env protocol.Envelope) {
	req, err := protocol.DecodePayload[protocol.JoinSessionRequest](p.Codec, env)
	if err != nil || req.SessionID == "" {
		s.sendError(p, "", errors.New("sessionId is required"))
		return
	}
	s.join(p, req.SessionID, req.PlayerName, req.ShipPassphrase)
}

func (s *Server) join(p *Peer, sessionID, name, passphrase string) {
	if name == "" {
		name = p.Name
	}
	// 同一连接只能在一个会话里：切换会话前先离开旧的
	if cur := p.Session(); cur != "" && cur != sessionID {
		s.leave(p, leaveExplicit)
	}

	// 先进房间再进名单：名单中的玩家总在房间里，大厅校正不会误删
	member := p.Session() == sessionID
	if err := s.hub.JoinRoom(p.ID, sessionID); err != nil {
		// 连接在加入过程中断开
		return
	}
	sess, err := s.registry.Join(sessionID, session.Player{
		PlayerID:       p.ID,
		PlayerName:     name,
		ShipPassphrase: passphrase,
	})
	if err != nil {
		if !member {
			s.hub.LeaveRoom(p.ID, sessionID)
		}
		s.metrics.IncJoinsRejected()
		Log.Debugf("join rejected: session=%s peer=%s err=%v", sessionID, p.ID, err)
		s.sendError(p, sessionID, err)
		return
	}
	p.setSession(sessionID)

	roster := make([]protocol.RosterEntry, 0, len(sess.Players))
	for _, pl := range sess.Players {
		roster = append(roster, protocol.RosterEntry{PlayerID: pl.PlayerID, PlayerName: pl.PlayerName})
	}
	_ = s.hub.EmitToPeer(p.ID, protocol.EvSessionJoined, protocol.SessionJoined{
		SessionID:    sess.ID,
		PlayerID:     p.ID,
		PlayerCount:  sess.CurrentPlayers,
		MaxPlayers:   sess.MaxPlayers,
		HostPlayerID: sess.HostPlayerID,
		IsHost:       sess.HostPlayerID == p.ID,
		GameState:    string(sess.GameState),
		WorldWidth:   sess.WorldWidth,
		WorldHeight:  sess.WorldHeight,
		Players:      roster,
	})
	s.hub.EmitToRoom(sessionID, protocol.EvPlayerJoined, protocol.PlayerNotice{
		PlayerID:   p.ID,
		PlayerName: name,
		Timestamp:  protocol.Now(),
	}, EmitOptions{SenderID: p.ID})
	Log.Infof("player joined: session=%s peer=%s count=%d/%d", sessionID, p.ID, sess.CurrentPlayers, sess.MaxPlayers)

	if passphrase != "" {
		go s.forwardShip(p.ID, sessionID, name, passphrase)
	}
}

// forwardShip 按口令查找飞船外观，找到后原样转发给房间
func (s *Server) forwardShip(playerID, sessionID, name, passphrase string) {
	s.metrics.IncShipLookups()
	ctx, cancel := context.WithTimeout(context.Background(), s.lookupTimeout)
	defer cancel()
	ship, err := s.store.FindShip(ctx, passphrase)
	if err != nil {
		s.metrics.IncShipLookupMisses()
		if !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrUnavailable) {
			Log.Warnf("ship lookup failed: peer=%s err=%v", playerID, err)
		}
		return
	}
	s.hub.EmitToRoom(sessionID, protocol.EvPlayerShipData, protocol.PlayerShipData{
		PlayerID:   playerID,
		PlayerName: name,
		Cosmetics:  ship.Cosmetics,
	}, EmitOptions{SenderID: playerID})
}

func (s *Server) handleLeave(p *Peer, _ protocol.Envelope) {
	if p.Session() == "" {
		s.sendError(p, "", session.ErrNotInSession)
		return
	}
	s.leave(p, leaveExplicit)
}

func (s *Server) handleDisconnect(p *Peer) {
	if p.Session() != "" {
		s.leave(p, leaveDisconnect)
	}
}

// leave 主动离开与断线走同一路径：注册表自减，移出房间，通知其余玩家，
// host 离开时按策略迁移或关闭会话
func (s *Server) leave(p *Peer, reason leaveReason) {
	sessionID := p.Session()
	if sessionID == "" || !p.clearSession(sessionID) {
		return
	}
	// 先出名单再出房间，与 join 的顺序相反
	res, err := s.registry.Leave(sessionID, p.ID)
	s.hub.LeaveRoom(p.ID, sessionID)
	if err != nil {
		Log.Debugf("leave: session=%s peer=%s err=%v", sessionID, p.ID, err)
		return
	}

	ev := protocol.EvPlayerLeft
	if reason == leaveDisconnect {
		ev = protocol.EvPlayerDisconnected
	}
	now := protocol.Now()
	s.hub.EmitToRoom(sessionID, ev, protocol.PlayerNotice{PlayerID: p.ID, Timestamp: now}, EmitOptions{IncludeSender: true})

	switch {
	case res.NewHostID != "":
		s.metrics.IncHostPromotions()
		Log.Infof("host promoted: session=%s from=%s to=%s", sessionID, p.ID, res.NewHostID)
		s.hub.EmitToRoom(sessionID, protocol.EvHostChanged, protocol.HostChanged{
			SessionID:      sessionID,
			HostPlayerID:   res.NewHostID,
			PreviousHostID: p.ID,
			Timestamp:      now,
		}, EmitOptions{IncludeSender: true})
	case res.Closed:
		s.metrics.IncSessionsClosed()
		Log.Infof("session closed: id=%s reason=host-left", sessionID)
		s.closeRoom(sessionID, "host-left")
	case res.Deleted:
		Log.Infof("session removed: id=%s (last player left)", sessionID)
	}
}

// closeRoom 通知并清退房间内剩余连接
func (s *Server) closeRoom(sessionID, reason string) {
	s.hub.EmitToRoom(sessionID, protocol.EvSessionClosed, protocol.SessionClosed{
		SessionID: sessionID,
		Reason:    reason,
		Timestamp: protocol.Now(),
	}, EmitOptions{IncludeSender: true})
	for _, m := range s.hub.RoomMembers(sessionID) {
		m.clearSession(sessionID)
		s.hub.LeaveRoom(m.ID, sessionID)
	}
}

// handleStart start-multiplayer-game：任何成员都可以开始，进行中的对局不能重开
func (s *Server) handleStart(p *Peer, _ protocol.Envelope) {
	sessionID := p.Session()
	if sessionID == "" {
		s.sendError(p, "", session.ErrNotInSession)
		return
	}
	sess, err := s.registry.StartGame(sessionID)
	if err != nil {
		Log.Debugf("start rejected: session=%s peer=%s err=%v", sessionID, p.ID, err)
		s.sendError(p, sessionID, err)
		return
	}
	s.hub.EmitToRoom(sessionID, protocol.EvGameStarted, protocol.GameStarted{
		SessionID:   sessionID,
		WorldWidth:  sess.WorldWidth,
		WorldHeight: sess.WorldHeight,
		StartedBy:   p.ID,
		Timestamp:   protocol.Now(),
	}, EmitOptions{IncludeSender: true})
	Log.Infof("game started: session=%s by=%s", sessionID, p.ID)
}

// handleRelay 房间内转发事件：校验 host 权限，写入发送者身份，按接收方编码重新编码后转发
func (s *Server) handleRelay(p *Peer, env protocol.Envelope) {
	if !protocol.Relayed(env.Type) {
		s.metrics.IncUnknownEvents()
		Log.Debugf("unknown event %q from peer=%s", env.Type, p.ID)
		return
	}
	sessionID := p.Session()
	if sessionID == "" {
		s.metrics.IncNotInSession()
		return
	}
	if protocol.HostOnly(env.Type) {
		sess, err := s.registry.Get(sessionID)
		if err != nil || sess.HostPlayerID != p.ID {
			s.metrics.IncHostOnlyRejected()
			Log.Debugf("host-only event %s dropped from non-host peer=%s", env.Type, p.ID)
			return
		}
	}
	payload, err := protocol.DecodeGeneric(p.Codec, env)
	if err != nil {
		s.metrics.IncDecodeErrors()
		Log.Debugf("bad %s payload from peer=%s: %v", env.Type, p.ID, err)
		return
	}
	if protocol.StampsSender(env.Type) {
		payload["playerId"] = p.ID
	}
	s.hub.EmitToRoom(sessionID, env.Type, payload, EmitOptions{SenderID: p.ID})

	switch env.Type {
	case protocol.EvGameComplete, protocol.EvGameOver:
		// 一局结束，会话回到等待状态，可以再次开始
		if _, err := s.registry.SetGameState(sessionID, session.StateWaiting); err != nil {
			Log.Debugf("reset game state: session=%s err=%v", sessionID, err)
		}
	}
}
