package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"astroarena/protocol"
	"astroarena/session"
	"astroarena/store"
)

const readTimeout = 2 * time.Second

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	s := New(opts)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

// wsClient 测试用的原始 websocket 客户端，后台协程持续读取
type wsClient struct {
	t     *testing.T
	conn  *websocket.Conn
	codec protocol.Codec
	id    string
	in    chan protocol.Envelope
}

func dial(t *testing.T, ts *httptest.Server, codec string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?codec=" + codec + "&name=tester"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	c := &wsClient{t: t, conn: conn, codec: protocol.CodecByName(codec), in: make(chan protocol.Envelope, 256)}
	go func() {
		defer close(c.in)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := c.codec.Decode(data)
			if err != nil {
				continue
			}
			c.in <- env
		}
	}()
	t.Cleanup(func() { conn.Close() })

	connected := decodeAs[protocol.Connected](t, c, c.expect(protocol.EvConnected))
	if connected.PlayerID == "" {
		t.Fatalf("connected without player id")
	}
	if connected.Codec != c.codec.Name() {
		t.Fatalf("codec = %q, want %q", connected.Codec, c.codec.Name())
	}
	c.id = connected.PlayerID
	return c
}

func (c *wsClient) send(event string, payload any) {
	c.t.Helper()
	b, err := c.codec.Encode(event, payload)
	if err != nil {
		c.t.Fatalf("encode %s: %v", event, err)
	}
	mt := websocket.TextMessage
	if c.codec.Binary() {
		mt = websocket.BinaryMessage
	}
	if err := c.conn.WriteMessage(mt, b); err != nil {
		c.t.Fatalf("write %s: %v", event, err)
	}
}

// until 读到 event 为止，返回之前跳过的消息与目标消息
func (c *wsClient) until(event string) ([]protocol.Envelope, protocol.Envelope) {
	c.t.Helper()
	var skipped []protocol.Envelope
	timer := time.NewTimer(readTimeout)
	defer timer.Stop()
	for {
		select {
		case env, ok := <-c.in:
			if !ok {
				c.t.Fatalf("connection closed while waiting for %s", event)
			}
			if env.Type == event {
				return skipped, env
			}
			skipped = append(skipped, env)
		case <-timer.C:
			c.t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func (c *wsClient) expect(event string) protocol.Envelope {
	c.t.Helper()
	_, env := c.until(event)
	return env
}

// firstOf 读到任一 events 为止
func (c *wsClient) firstOf(events ...string) protocol.Envelope {
	c.t.Helper()
	timer := time.NewTimer(readTimeout)
	defer timer.Stop()
	for {
		select {
		case env, ok := <-c.in:
			if !ok {
				c.t.Fatalf("connection closed while waiting for %v", events)
			}
			for _, e := range events {
				if env.Type == e {
					return env
				}
			}
		case <-timer.C:
			c.t.Fatalf("timed out waiting for %v", events)
		}
	}
}

func (c *wsClient) close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.conn.Close()
}

func decodeAs[T any](t *testing.T, c *wsClient, env protocol.Envelope) T {
	t.Helper()
	v, err := protocol.DecodePayload[T](c.codec, env)
	if err != nil {
		t.Fatalf("decode %s: %v", env.Type, err)
	}
	return v
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(readTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func createSession(t *testing.T, host *wsClient, maxPlayers int) protocol.SessionJoined {
	t.Helper()
	host.send(protocol.EvCreateSession, protocol.CreateSessionRequest{
		MaxPlayers: maxPlayers, WorldWidth: 2000, WorldHeight: 1500, PlayerName: "host",
	})
	joined := decodeAs[protocol.SessionJoined](t, host, host.expect(protocol.EvSessionJoined))
	if !joined.IsHost || joined.HostPlayerID != host.id {
		t.Fatalf("creator is not host: %+v", joined)
	}
	return joined
}

func joinSession(t *testing.T, c *wsClient, sessionID string) protocol.SessionJoined {
	t.Helper()
	c.send(protocol.EvJoinSession, protocol.JoinSessionRequest{SessionID: sessionID, PlayerName: "guest"})
	return decodeAs[protocol.SessionJoined](t, c, c.expect(protocol.EvSessionJoined))
}

func TestEveryConnectionGetsFreshIdentity(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	a := dial(t, ts, "json")
	b := dial(t, ts, "msgpack")
	if a.id == b.id {
		t.Fatalf("two connections share id %s", a.id)
	}
}

func TestCreateAndJoinSession(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	guest := dial(t, ts, "json")

	created := createSession(t, host, 2)
	if created.PlayerCount != 1 || created.MaxPlayers != 2 {
		t.Fatalf("created = %+v", created)
	}
	if created.WorldWidth != 2000 || created.WorldHeight != 1500 {
		t.Fatalf("world = %vx%v", created.WorldWidth, created.WorldHeight)
	}

	joined := joinSession(t, guest, created.SessionID)
	if joined.PlayerCount != 2 {
		t.Fatalf("playerCount = %d, want 2", joined.PlayerCount)
	}
	if joined.IsHost || joined.HostPlayerID != host.id {
		t.Fatalf("guest joined as %+v", joined)
	}
	if len(joined.Players) != 2 || joined.Players[0].PlayerID != host.id {
		t.Fatalf("roster = %+v", joined.Players)
	}

	notice := decodeAs[protocol.PlayerNotice](t, host, host.expect(protocol.EvPlayerJoined))
	if notice.PlayerID != guest.id {
		t.Fatalf("player-joined for %s, want %s", notice.PlayerID, guest.id)
	}

	sess, err := s.Registry().Get(created.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.CurrentPlayers != 2 || s.Hub().RoomSize(created.SessionID) != 2 {
		t.Fatalf("currentPlayers=%d room=%d", sess.CurrentPlayers, s.Hub().RoomSize(created.SessionID))
	}
}

func TestJoinRejections(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	guest := dial(t, ts, "json")
	late := dial(t, ts, "msgpack")
	created := createSession(t, host, 2)
	joinSession(t, guest, created.SessionID)

	tests := []struct {
		name      string
		client    *wsClient
		sessionID string
		code      string
	}{
		{"full", late, created.SessionID, protocol.CodeSessionFull},
		{"already joined", guest, created.SessionID, protocol.CodeAlreadyJoined},
		{"unknown", late, "NOPE42", protocol.CodeSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.client.send(protocol.EvJoinSession, protocol.JoinSessionRequest{SessionID: tt.sessionID})
			e := decodeAs[protocol.SessionError](t, tt.client, tt.client.expect(protocol.EvSessionError))
			if e.Code != tt.code {
				t.Fatalf("code = %q, want %q", e.Code, tt.code)
			}
			if !errors.Is(session.FromCode(e.Code), sessionErrFor(tt.code)) {
				t.Fatalf("code %q does not map back to its sentinel", e.Code)
			}
		})
	}

	sess, _ := s.Registry().Get(created.SessionID)
	if sess.CurrentPlayers != 2 {
		t.Fatalf("currentPlayers = %d after rejected joins, want 2", sess.CurrentPlayers)
	}
	if n := s.Hub().RoomSize(created.SessionID); n != 2 || s.Hub().InRoom(created.SessionID, late.id) {
		t.Fatalf("room size = %d after rejected joins, rejected peer kept: %v", n, s.Hub().InRoom(created.SessionID, late.id))
	}
	if got := atomic.LoadInt64(&s.Metrics().JoinsRejected); got != 3 {
		t.Fatalf("joins rejected = %d, want 3", got)
	}
}

func TestLobbyListingDuringJoinsKeepsCapacity(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	created := createSession(t, host, 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listed := make(chan struct{})
	go func() {
		defer close(listed)
		for ctx.Err() == nil {
			s.Registry().ListAvailable(s.Hub())
		}
	}()

	guests := make([]*wsClient, 6)
	for i := range guests {
		guests[i] = dial(t, ts, "msgpack")
	}
	for _, g := range guests {
		g.send(protocol.EvJoinSession, protocol.JoinSessionRequest{SessionID: created.SessionID})
	}
	joined := 0
	for _, g := range guests {
		if g.firstOf(protocol.EvSessionJoined, protocol.EvSessionError).Type == protocol.EvSessionJoined {
			joined++
		}
	}
	cancel()
	<-listed

	if joined != 2 {
		t.Fatalf("%d guests joined a 3-slot session that already had its host", joined)
	}
	sess, err := s.Registry().Get(created.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.CurrentPlayers != 3 || len(sess.Players) != 3 || s.Hub().RoomSize(created.SessionID) != 3 {
		t.Fatalf("currentPlayers=%d roster=%d room=%d", sess.CurrentPlayers, len(sess.Players), s.Hub().RoomSize(created.SessionID))
	}
}

func sessionErrFor(code string) error {
	switch code {
	case protocol.CodeSessionFull:
		return session.ErrSessionFull
	case protocol.CodeAlreadyJoined:
		return session.ErrAlreadyJoined
	}
	return session.ErrSessionNotFound
}

func TestHostOnlyEventsFromGuestAreDropped(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	guest := dial(t, ts, "json")
	created := createSession(t, host, 4)
	joinSession(t, guest, created.SessionID)
	host.expect(protocol.EvPlayerJoined)

	guest.send(protocol.EvGameObjectsUpdate, protocol.GameObjectsUpdate{Asteroids: []protocol.EntitySnapshot{{ID: "fake"}}})
	guest.send(protocol.EvRoundTransition, protocol.RoundTransition{Round: 9})
	guest.send(protocol.EvPlayerUpdate, protocol.PlayerUpdate{X: 1, Y: 2, Alive: true})

	// 同一连接的消息按序处理：收到 player-update 时前两条已被处理
	skipped, _ := host.until(protocol.EvPlayerUpdate)
	for _, env := range skipped {
		if protocol.HostOnly(env.Type) {
			t.Fatalf("host received %s from a guest", env.Type)
		}
	}
	if got := atomic.LoadInt64(&s.Metrics().HostOnlyRejected); got != 2 {
		t.Fatalf("host-only rejected = %d, want 2", got)
	}

	// host 自己发出的同类事件正常转发
	host.send(protocol.EvRoundTransition, protocol.RoundTransition{Round: 1, IsInitial: true})
	rt := decodeAs[protocol.RoundTransition](t, guest, guest.expect(protocol.EvRoundTransition))
	if rt.Round != 1 || !rt.IsInitial {
		t.Fatalf("round-transition = %+v", rt)
	}
}

func TestRelayStampsSenderIdentityAcrossCodecs(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	guest := dial(t, ts, "msgpack")
	created := createSession(t, host, 4)
	joinSession(t, guest, created.SessionID)

	color := "#ff8800"
	guest.send(protocol.EvPlayerUpdate, protocol.PlayerUpdate{
		PlayerID: "forged", Seq: 7, X: 120.5, Y: 80, Angle: 1.25, Alive: true, Thrusting: true,
		Velocity:  protocol.Vec{X: 3, Y: -4},
		Cosmetics: protocol.Cosmetics{ShipColor: &color},
	})
	up := decodeAs[protocol.PlayerUpdate](t, host, host.expect(protocol.EvPlayerUpdate))
	if up.PlayerID != guest.id {
		t.Fatalf("playerId = %q, want stamped %q", up.PlayerID, guest.id)
	}
	if up.Seq != 7 || up.X != 120.5 || up.Y != 80 || up.Angle != 1.25 || !up.Alive || !up.Thrusting {
		t.Fatalf("update = %+v", up)
	}
	if up.Velocity != (protocol.Vec{X: 3, Y: -4}) {
		t.Fatalf("velocity = %+v", up.Velocity)
	}
	if up.ShipColor == nil || *up.ShipColor != color {
		t.Fatalf("shipColor lost in relay: %v", up.ShipColor)
	}
	if up.ThrusterColor != nil {
		t.Fatalf("absent cosmetic field materialized: %v", *up.ThrusterColor)
	}

	host.send(protocol.EvGameObjectsUpdate, protocol.GameObjectsUpdate{
		Level: 2, Score: 150, Lives: 3,
		Asteroids: []protocol.EntitySnapshot{{ID: "a1", X: 10, Y: 20, Size: 3}},
		Enemies:   []protocol.EntitySnapshot{},
		Bullets:   []protocol.EntitySnapshot{},
	})
	raw := decodeAs[protocol.RawGameObjects](t, guest, guest.expect(protocol.EvGameObjectsUpdate))
	if raw.Score != 150 || raw.Lives != 3 || raw.Level != 2 {
		t.Fatalf("scalars = %+v", raw)
	}
	list, ok := raw.Asteroids.([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("asteroids = %#v", raw.Asteroids)
	}
	a, ok := list[0].(map[string]any)
	if !ok || a["id"] != "a1" {
		t.Fatalf("asteroid = %#v", list[0])
	}
	if x, _ := protocol.Number(a["x"]); x != 10 {
		t.Fatalf("x = %v", a["x"])
	}
}

func TestLeaveAndDisconnectNotifyRoom(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	a := dial(t, ts, "json")
	b := dial(t, ts, "msgpack")
	created := createSession(t, host, 4)
	joinSession(t, a, created.SessionID)
	joinSession(t, b, created.SessionID)

	a.send(protocol.EvLeaveSession, nil)
	left := decodeAs[protocol.PlayerNotice](t, host, host.expect(protocol.EvPlayerLeft))
	if left.PlayerID != a.id {
		t.Fatalf("player-left for %s, want %s", left.PlayerID, a.id)
	}

	b.close()
	gone := decodeAs[protocol.PlayerNotice](t, host, host.expect(protocol.EvPlayerDisconnected))
	if gone.PlayerID != b.id {
		t.Fatalf("player-disconnected for %s, want %s", gone.PlayerID, b.id)
	}

	sess, err := s.Registry().Get(created.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.CurrentPlayers != 1 || sess.HostPlayerID != host.id {
		t.Fatalf("session after leaves = %+v", sess)
	}

	// 不在会话中再离开
	a.send(protocol.EvLeaveSession, nil)
	e := decodeAs[protocol.SessionError](t, a, a.expect(protocol.EvSessionError))
	if e.Code != protocol.CodeNotInSession {
		t.Fatalf("code = %q", e.Code)
	}
}

func TestLastPlayerLeavingDeletesSession(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	created := createSession(t, host, 2)
	host.close()
	waitFor(t, "session deletion", func() bool {
		_, err := s.Registry().Get(created.SessionID)
		return errors.Is(err, session.ErrSessionNotFound)
	})
	if s.Hub().RoomCount() != 0 {
		t.Fatalf("rooms left behind: %d", s.Hub().RoomCount())
	}
}

func TestHostDisconnectPromotesEarliestJoined(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	first := dial(t, ts, "json")
	second := dial(t, ts, "msgpack")
	created := createSession(t, host, 4)
	joinSession(t, first, created.SessionID)
	joinSession(t, second, created.SessionID)

	host.close()
	for _, c := range []*wsClient{first, second} {
		hc := decodeAs[protocol.HostChanged](t, c, c.expect(protocol.EvHostChanged))
		if hc.HostPlayerID != first.id || hc.PreviousHostID != host.id {
			t.Fatalf("host-changed = %+v", hc)
		}
	}
	sess, _ := s.Registry().Get(created.SessionID)
	if sess.HostPlayerID != first.id || sess.CurrentPlayers != 2 {
		t.Fatalf("session = %+v", sess)
	}

	// 新 host 的 host 专属事件被放行
	first.send(protocol.EvLivesUpdate, protocol.LivesUpdate{Lives: 2})
	lu := decodeAs[protocol.LivesUpdate](t, second, second.expect(protocol.EvLivesUpdate))
	if lu.Lives != 2 {
		t.Fatalf("lives = %d", lu.Lives)
	}
	if got := atomic.LoadInt64(&s.Metrics().HostPromotions); got != 1 {
		t.Fatalf("promotions = %d", got)
	}
}

func TestHostDisconnectTeardownClosesSession(t *testing.T) {
	reg := session.NewRegistry(session.NewMemoryStore(), session.Options{HostPolicy: session.HostTeardown})
	s, ts := newTestServer(t, Options{Registry: reg})
	host := dial(t, ts, "json")
	guest := dial(t, ts, "json")
	created := createSession(t, host, 4)
	joinSession(t, guest, created.SessionID)

	host.close()
	closed := decodeAs[protocol.SessionClosed](t, guest, guest.expect(protocol.EvSessionClosed))
	if closed.SessionID != created.SessionID || closed.Reason != "host-left" {
		t.Fatalf("session-closed = %+v", closed)
	}
	if _, err := s.Registry().Get(created.SessionID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("get after teardown: %v", err)
	}

	// 被清退的连接可以加入新的会话
	next := createSession(t, guest, 2)
	if next.SessionID == created.SessionID {
		t.Fatalf("session id reused")
	}
}

func TestStartGameAndCompletionResetState(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	host := dial(t, ts, "json")
	guest := dial(t, ts, "json")
	created := createSession(t, host, 2)
	joinSession(t, guest, created.SessionID)

	guest.send(protocol.EvStartGame, protocol.StartGame{})
	for _, c := range []*wsClient{host, guest} {
		gs := decodeAs[protocol.GameStarted](t, c, c.expect(protocol.EvGameStarted))
		if gs.StartedBy != guest.id || gs.WorldWidth != 2000 {
			t.Fatalf("game-started = %+v", gs)
		}
	}
	sess, _ := s.Registry().Get(created.SessionID)
	if sess.GameState != session.StatePlaying {
		t.Fatalf("state = %s", sess.GameState)
	}

	// 进行中的对局不能重开
	host.send(protocol.EvStartGame, protocol.StartGame{})
	if e := decodeAs[protocol.SessionError](t, host, host.expect(protocol.EvSessionError)); e.Code != protocol.CodeGameInProgress {
		t.Fatalf("restart during play: code = %q", e.Code)
	}

	host.send(protocol.EvGameComplete, protocol.GameComplete{FinalRound: 10})
	skipped, _ := guest.until(protocol.EvGameComplete)
	for _, env := range skipped {
		if env.Type == protocol.EvGameStarted {
			t.Fatalf("rejected restart reached the room")
		}
	}
	waitFor(t, "state reset", func() bool {
		sess, _ := s.Registry().Get(created.SessionID)
		return sess.GameState == session.StateWaiting
	})

	guest.send(protocol.EvStartGame, protocol.StartGame{})
	host.expect(protocol.EvGameStarted)
}

func TestShipDataForwardedOnJoin(t *testing.T) {
	mem := store.NewMemory()
	color := "#00ffaa"
	if _, err := mem.CreateShip(context.Background(), store.Ship{
		Name: "comet", Passphrase: "red-comet",
		Cosmetics: protocol.Cosmetics{ShipColor: &color, WeaponPoints: []protocol.Point{{X: 1, Y: 2}}},
	}); err != nil {
		t.Fatalf("create ship: %v", err)
	}
	s, ts := newTestServer(t, Options{Store: mem})
	host := dial(t, ts, "json")
	guest := dial(t, ts, "msgpack")
	created := createSession(t, host, 2)

	guest.send(protocol.EvJoinSession, protocol.JoinSessionRequest{
		SessionID: created.SessionID, PlayerName: "guest", ShipPassphrase: "red-comet",
	})
	guest.expect(protocol.EvSessionJoined)

	d := decodeAs[protocol.PlayerShipData](t, host, host.expect(protocol.EvPlayerShipData))
	if d.PlayerID != guest.id || d.PlayerName != "guest" {
		t.Fatalf("ship data = %+v", d)
	}
	if d.ShipColor == nil || *d.ShipColor != color || len(d.WeaponPoints) != 1 {
		t.Fatalf("cosmetics = %+v", d.Cosmetics)
	}
	if got := atomic.LoadInt64(&s.Metrics().ShipLookups); got != 1 {
		t.Fatalf("lookups = %d", got)
	}
}

func TestRelayOutsideSessionIsIgnored(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	lone := dial(t, ts, "json")
	lone.send(protocol.EvPlayerUpdate, protocol.PlayerUpdate{X: 1})
	lone.send("no-such-event", map[string]any{"x": 1})
	waitFor(t, "counters", func() bool {
		m := s.Metrics()
		return atomic.LoadInt64(&m.NotInSession) == 1 && atomic.LoadInt64(&m.UnknownEvents) == 1
	})
}

func TestSweepRemovesAbandonedSessions(t *testing.T) {
	now := time.Now()
	var offset atomic.Int64
	reg := session.NewRegistry(session.NewMemoryStore(), session.Options{
		Now: func() time.Time { return now.Add(time.Duration(offset.Load())) },
	})
	s, ts := newTestServer(t, Options{Registry: reg, EmptySessionTTL: time.Minute})

	abandoned, err := reg.CreateSession("nobody", 2, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	host := dial(t, ts, "json")
	live := createSession(t, host, 2)

	if removed := s.Sweep(); len(removed) != 0 {
		t.Fatalf("swept fresh sessions: %v", removed)
	}
	offset.Store(int64(2 * time.Minute))
	removed := s.Sweep()
	if len(removed) != 1 || removed[0] != abandoned.ID {
		t.Fatalf("removed = %v, want [%s]", removed, abandoned.ID)
	}
	if _, err := reg.Get(live.SessionID); err != nil {
		t.Fatalf("occupied session swept: %v", err)
	}
	if got := atomic.LoadInt64(&s.Metrics().SessionsSwept); got != 1 {
		t.Fatalf("swept metric = %d", got)
	}
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	s := New(Options{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunSweeper(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(readTimeout):
		t.Fatalf("sweeper did not stop")
	}
}
