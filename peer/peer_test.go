package peer

import (
	"context"
	"errors"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"astroarena/mirror"
	"astroarena/protocol"
	"astroarena/round"
	"astroarena/server"
	"astroarena/session"
	"astroarena/spawn"
)

const waitTimeout = 3 * time.Second

func startServer(t *testing.T) (*server.Server, string) {
	t.Helper()
	s := server.New(server.Options{})
	ts := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dialPeer(t *testing.T, url string, opts Options) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	c, err := Dial(ctx, url, opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recorder 统计收到的事件
type recorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newRecorder() *recorder { return &recorder{counts: make(map[string]int)} }

func (r *recorder) record(env protocol.Envelope) {
	r.mu.Lock()
	r.counts[env.Type]++
	r.mu.Unlock()
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[event]
}

func ctxT(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	t.Cleanup(cancel)
	return ctx
}

// startedPair host 建会话、guest 加入、开始对局
func startedPair(t *testing.T, url string, hostOpts, guestOpts Options) (*Client, *Client, protocol.SessionJoined) {
	t.Helper()
	hostRec, guestRec := newRecorder(), newRecorder()
	hostOpts.OnEvent, guestOpts.OnEvent = hostRec.record, guestRec.record
	host := dialPeer(t, url, hostOpts)
	guest := dialPeer(t, url, guestOpts)

	created, err := host.CreateSession(ctxT(t), CreateOptions{MaxPlayers: 2, WorldWidth: 2000, WorldHeight: 1500})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	joined, err := guest.JoinSession(ctxT(t), created.SessionID, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := host.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "game-started on both peers", func() bool {
		return hostRec.count(protocol.EvGameStarted) == 1 && guestRec.count(protocol.EvGameStarted) == 1
	})
	return host, guest, joined
}

func TestScenarioSpawnReplicatesAcrossPeers(t *testing.T) {
	_, url := startServer(t)
	host, guest, joined := startedPair(t, url,
		Options{Name: "host", ManualRounds: true},
		Options{Name: "guest", Codec: protocol.MsgPack, ManualRounds: true})

	if joined.PlayerCount != 2 || joined.IsHost {
		t.Fatalf("session-joined = %+v", joined)
	}
	if !host.IsHost() || guest.IsHost() || guest.HostID() != host.ID() {
		t.Fatalf("host roles: host=%v guest=%v", host.IsHost(), guest.IsHost())
	}

	local, err := host.SpawnSeed(42, 1, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	var remote *spawn.MathAsteroid
	waitFor(t, "asteroid on guest", func() bool {
		f := guest.Field()
		if f == nil {
			return false
		}
		a, ok := f.Get(local.ID)
		remote = a
		return ok
	})
	if remote.StartX != local.StartX || remote.StartY != local.StartY {
		t.Fatalf("start = (%v,%v), host has (%v,%v)", remote.StartX, remote.StartY, local.StartX, local.StartY)
	}
	if !reflect.DeepEqual(remote.Vertices, local.Vertices) {
		t.Fatalf("shapes differ")
	}
	now := time.Now().UnixMilli()
	hx, hy := local.Position(now)
	gx, gy := remote.Position(now)
	if hx != gx || hy != gy {
		t.Fatalf("positions diverge: host (%v,%v) guest (%v,%v)", hx, hy, gx, gy)
	}

	// 非 host 不能生成
	if _, err := guest.SpawnSeed(7, 1, 1); !errors.Is(err, ErrNotHost) {
		t.Fatalf("guest spawn err = %v", err)
	}

	// 销毁在两端都生效，重复销毁是空操作
	if ok, err := guest.Destroy(spawn.KindMath, local.ID); !ok || err != nil {
		t.Fatalf("destroy = %v, %v", ok, err)
	}
	waitFor(t, "destroy on host", func() bool { return !host.Field().Has(local.ID) })
	if ok, _ := host.Destroy(spawn.KindMath, local.ID); ok {
		t.Fatalf("second destroy reported a removal")
	}
}

func TestScenarioSnapshotReplacesAsteroids(t *testing.T) {
	_, url := startServer(t)
	host, guest, _ := startedPair(t, url,
		Options{ManualRounds: true, Codec: protocol.MsgPack},
		Options{ManualRounds: true})

	host.SetScore(1, 250, 3)
	host.SetHostEntities(
		[]protocol.EntitySnapshot{{ID: "a1", X: 10, Y: 20, Size: 3}},
		[]protocol.EntitySnapshot{{ID: "e1", X: 300, Y: 300, Health: 2, Active: true}},
		nil)
	if err := host.BroadcastObjects(); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	waitFor(t, "first snapshot", func() bool {
		as := guest.Mirror().Asteroids()
		return len(as) == 1 && as[0].ID == "a1"
	})
	a := guest.Mirror().Asteroids()[0]
	if a.X != 10 || a.Y != 20 {
		t.Fatalf("asteroid at (%v,%v)", a.X, a.Y)
	}
	if e, ok := guest.Mirror().Enemy("e1"); !ok || e.Health != 2 {
		t.Fatalf("enemy = %+v, %v", e, ok)
	}
	if _, score, lives, _ := guest.Mirror().Scalars(); score != 250 || lives != 3 {
		t.Fatalf("score=%d lives=%d", score, lives)
	}

	host.SetHostEntities(nil, nil, nil)
	if err := host.BroadcastObjects(); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	waitFor(t, "empty snapshot", func() bool {
		_, ok := guest.Mirror().Enemy("e1")
		return len(guest.Mirror().Asteroids()) == 0 && !ok
	})

	if err := guest.BroadcastObjects(); !errors.Is(err, ErrNotHost) {
		t.Fatalf("guest broadcast err = %v", err)
	}
}

func TestScenarioDuplicateJoinCountsOnce(t *testing.T) {
	srv, url := startServer(t)
	host := dialPeer(t, url, Options{})
	guest := dialPeer(t, url, Options{})
	late := dialPeer(t, url, Options{Codec: protocol.MsgPack})

	created, err := host.CreateSession(ctxT(t), CreateOptions{MaxPlayers: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := guest.JoinSession(ctxT(t), created.SessionID, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := guest.JoinSession(ctxT(t), created.SessionID, ""); !errors.Is(err, session.ErrAlreadyJoined) {
		t.Fatalf("second join err = %v, want ErrAlreadyJoined", err)
	}
	sess, err := srv.Registry().Get(created.SessionID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.CurrentPlayers != 2 {
		t.Fatalf("currentPlayers = %d, want 2", sess.CurrentPlayers)
	}

	if _, err := late.JoinSession(ctxT(t), created.SessionID, ""); !errors.Is(err, session.ErrSessionFull) {
		t.Fatalf("late join err = %v, want ErrSessionFull", err)
	}
	if _, err := late.JoinSession(ctxT(t), "NOSUCH", ""); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("unknown join err = %v", err)
	}
	if guest.SessionID() != created.SessionID {
		t.Fatalf("rejected join disturbed local session: %q", guest.SessionID())
	}
}

func TestShipBroadcastStopsOnLeave(t *testing.T) {
	_, url := startServer(t)
	host, guest, _ := startedPair(t, url,
		Options{ManualRounds: true, ShipInterval: 10 * time.Millisecond},
		Options{ManualRounds: true, ShipInterval: 10 * time.Millisecond})

	color := "#abcdef"
	guest.SetShip(protocol.PlayerUpdate{X: 50, Y: 60, Alive: true,
		Cosmetics: protocol.Cosmetics{ShipColor: &color}})

	waitFor(t, "several ship updates", func() bool {
		s, ok := host.Mirror().Ship(guest.ID())
		return ok && s.Seq > 3
	})
	// 外观只随第一条更新发出，之后的更新不带外观也不能把它抹掉
	s, _ := host.Mirror().Ship(guest.ID())
	if s.Cosmetics.ShipColor == nil || *s.Cosmetics.ShipColor != color {
		t.Fatalf("cosmetics lost: %+v", s.Cosmetics)
	}
	if s.X != 50 || s.Y != 60 || !s.Alive {
		t.Fatalf("ship = %+v", s)
	}

	if err := guest.Leave(); err != nil {
		t.Fatalf("leave: %v", err)
	}
	waitFor(t, "ship removed on leave", func() bool {
		_, ok := host.Mirror().Ship(guest.ID())
		return !ok
	})
	time.Sleep(50 * time.Millisecond)
	if _, ok := host.Mirror().Ship(guest.ID()); ok {
		t.Fatalf("guest kept broadcasting after leave")
	}
	if err := guest.Leave(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second leave err = %v", err)
	}
	if guest.Field() != nil {
		t.Fatalf("field kept after leave")
	}
}

func TestShipDataAnsweredOnRequest(t *testing.T) {
	_, url := startServer(t)
	host := dialPeer(t, url, Options{Name: "host", ShipInterval: 10 * time.Millisecond})
	guest := dialPeer(t, url, Options{Name: "guest"})

	color := "#ff0000"
	host.SetShip(protocol.PlayerUpdate{X: 1, Y: 1, Alive: true, Cosmetics: protocol.Cosmetics{
		ShipColor:      &color,
		ThrusterPoints: []protocol.Point{{X: -5, Y: 0}},
	}})
	created, err := host.CreateSession(ctxT(t), CreateOptions{MaxPlayers: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// 让 host 先发出带外观的第一条更新，guest 只能通过 request-ship-data 拿到外观
	time.Sleep(50 * time.Millisecond)
	if _, err := guest.JoinSession(ctxT(t), created.SessionID, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, "host cosmetics on guest", func() bool {
		s, ok := guest.Mirror().Ship(host.ID())
		return ok && s.Cosmetics.ShipColor != nil && *s.Cosmetics.ShipColor == color &&
			len(s.Cosmetics.ThrusterPoints) == 1 && s.PlayerName == "host"
	})
}

func TestPromotedHostResumesRounds(t *testing.T) {
	_, url := startServer(t)
	rounds := round.Config{MaxRounds: 3, Stagger: time.Millisecond, Pause: 20 * time.Millisecond}
	host, guest, _ := startedPair(t, url,
		Options{Rounds: rounds, ObjectsInterval: 10 * time.Millisecond},
		Options{Rounds: rounds, ObjectsInterval: 10 * time.Millisecond})

	waitFor(t, "round 1 on guest", func() bool {
		f := guest.Field()
		return f != nil && f.Len() == 1 && guest.Rounds().State().CurrentRound == 1
	})

	hostID := host.ID()
	host.Close()
	waitFor(t, "promotion", func() bool { return guest.IsHost() })
	if guest.HostID() == hostID {
		t.Fatalf("host id not updated")
	}
	st := guest.Rounds().State()
	if st.Phase != round.RoundActive || st.CurrentRound != 1 || !st.RoundStarted {
		t.Fatalf("resumed state = %+v", st)
	}

	for _, id := range guest.Field().IDs() {
		if _, err := guest.Destroy(spawn.KindMath, id); err != nil {
			t.Fatalf("destroy: %v", err)
		}
	}
	waitFor(t, "round 2 driven by new host", func() bool {
		f := guest.Field()
		return guest.Rounds().State().CurrentRound == 2 && f != nil && f.Len() == 2
	})
}

func TestRoundsRunToCompletion(t *testing.T) {
	_, url := startServer(t)
	rounds := round.Config{MaxRounds: 2, Stagger: time.Millisecond, Pause: 10 * time.Millisecond}
	host, guest, _ := startedPair(t, url,
		Options{Rounds: rounds, ObjectsInterval: 10 * time.Millisecond},
		Options{Rounds: rounds, Codec: protocol.MsgPack})

	var seen []int
	waitFor(t, "game complete on guest", func() bool {
		if n := guest.Rounds().State().CurrentRound; len(seen) == 0 || seen[len(seen)-1] != n {
			seen = append(seen, n)
		}
		if f := host.Field(); f != nil {
			for _, id := range f.IDs() {
				_, _ = host.Destroy(spawn.KindMath, id)
			}
		}
		return guest.Rounds().State().Phase == round.GameComplete
	})
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("guest round went backwards: %v", seen)
		}
	}
	if st := guest.Rounds().State(); st.CurrentRound != 2 {
		t.Fatalf("final round = %d", st.CurrentRound)
	}
	waitFor(t, "game complete on host", func() bool {
		return host.Rounds().State().Phase == round.GameComplete
	})
	if guest.Started() {
		t.Fatalf("guest still marked started after completion")
	}
}

func TestHostWatchdog(t *testing.T) {
	t.Run("silent host", func(t *testing.T) {
		_, url := startServer(t)
		// host 的心跳周期远大于 guest 的超时
		host := dialPeer(t, url, Options{HostTimeout: time.Minute})
		lost := make(chan struct{}, 4)
		core, logs := observer.New(zap.WarnLevel)
		guest := dialPeer(t, url, Options{
			Logger:      zap.New(core),
			HostTimeout: 100 * time.Millisecond,
			OnHostLost:  func() { lost <- struct{}{} },
		})
		created, err := host.CreateSession(ctxT(t), CreateOptions{})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := guest.JoinSession(ctxT(t), created.SessionID, ""); err != nil {
			t.Fatalf("join: %v", err)
		}
		select {
		case <-lost:
		case <-time.After(waitTimeout):
			t.Fatalf("OnHostLost not called")
		}
		// 同一次失联只报告一次
		select {
		case <-lost:
			t.Fatalf("OnHostLost fired twice")
		case <-time.After(300 * time.Millisecond):
		}
		if n := logs.FilterMessage("host silent").Len(); n != 1 {
			t.Fatalf("host silent logged %d times", n)
		}
	})

	t.Run("heartbeating host", func(t *testing.T) {
		_, url := startServer(t)
		host := dialPeer(t, url, Options{HostTimeout: 100 * time.Millisecond})
		lost := make(chan struct{}, 1)
		guest := dialPeer(t, url, Options{
			HostTimeout: 100 * time.Millisecond,
			OnHostLost:  func() { lost <- struct{}{} },
		})
		created, err := host.CreateSession(ctxT(t), CreateOptions{})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := guest.JoinSession(ctxT(t), created.SessionID, ""); err != nil {
			t.Fatalf("join: %v", err)
		}
		select {
		case <-lost:
			t.Fatalf("host lost while heartbeating")
		case <-time.After(500 * time.Millisecond):
		}
	})
}

func TestSchedulerStopWaitsForTasks(t *testing.T) {
	s := newScheduler(context.Background())
	var mu sync.Mutex
	ticks := 0
	s.Every(time.Millisecond, func() {
		mu.Lock()
		ticks++
		mu.Unlock()
	})
	time.Sleep(20 * time.Millisecond)
	s.Stop()
	mu.Lock()
	after := ticks
	mu.Unlock()
	if after == 0 {
		t.Fatalf("task never ran")
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if ticks != after {
		t.Fatalf("task ran after Stop: %d -> %d", after, ticks)
	}
	// Stop 之后提交的任务不会执行
	s.Go(func(context.Context) { t.Errorf("task started after Stop") })
	if s.Start(func(context.Context) {}) != nil {
		t.Fatalf("Start after Stop returned a task")
	}
}

func TestTaskCancelLeavesSchedulerRunning(t *testing.T) {
	s := newScheduler(context.Background())
	defer s.Stop()

	exited := make(chan struct{})
	task := s.Start(func(ctx context.Context) {
		<-ctx.Done()
		close(exited)
	})
	var ticks atomic.Int32
	s.Every(time.Millisecond, func() { ticks.Add(1) })

	task.Cancel()
	select {
	case <-exited:
	default:
		t.Fatalf("Cancel returned before the task exited")
	}
	before := ticks.Load()
	waitFor(t, "sibling task still ticking", func() bool { return ticks.Load() > before })
}

func TestDestroyLocalAcrossKinds(t *testing.T) {
	c := &Client{mirror: mirror.New(nil), rounds: round.New(round.Config{})}
	c.field = spawn.NewField(100, 100, nil)
	c.host.asteroids = []protocol.EntitySnapshot{{ID: "h1"}}
	rec := spawn.NewPlanner(1, 100, 100).PlanSeed(9, 1, 0, 0)
	c.field.Add(rec)

	if !c.destroyLocal(spawn.KindMath, rec.ID) || c.field.Has(rec.ID) {
		t.Fatalf("math asteroid not destroyed")
	}
	if !c.destroyLocal(mirror.KindAsteroid, "h1") || len(c.host.asteroids) != 0 {
		t.Fatalf("host asteroid not destroyed")
	}
	if c.destroyLocal("", "missing") {
		t.Fatalf("absent id reported as removed")
	}

	// 以通用的 asteroid 类型引用数学小行星
	rec2 := spawn.NewPlanner(1, 100, 100).PlanSeed(11, 1, 1, 0)
	c.field.Add(rec2)
	if !c.destroyLocal(mirror.KindAsteroid, rec2.ID) || c.field.Has(rec2.ID) {
		t.Fatalf("math asteroid referenced as %q survived", mirror.KindAsteroid)
	}
	if c.sharedAsteroids() != 0 {
		t.Fatalf("shared asteroids = %d", c.sharedAsteroids())
	}
}

func TestAsteroidTypedDestroyReplicates(t *testing.T) {
	_, url := startServer(t)
	host, guest, _ := startedPair(t, url,
		Options{ManualRounds: true},
		Options{ManualRounds: true, Codec: protocol.MsgPack})

	a, err := host.Spawn(1, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	waitFor(t, "asteroid on guest", func() bool {
		f := guest.Field()
		return f != nil && f.Has(a.ID)
	})
	if ok, err := guest.Destroy(mirror.KindAsteroid, a.ID); !ok || err != nil {
		t.Fatalf("destroy = %v, %v", ok, err)
	}
	waitFor(t, "destroy on host", func() bool { return host.sharedAsteroids() == 0 })

	b, _ := host.Spawn(1, 1)
	waitFor(t, "second asteroid on guest", func() bool { return guest.Field().Has(b.ID) })
	if err := guest.ReportCollision(mirror.KindAsteroid, b.ID); err != nil {
		t.Fatalf("collision: %v", err)
	}
	waitFor(t, "collision on host", func() bool { return !host.Field().Has(b.ID) })
}

func TestRestartDuringPlayKeepsRoundsRunning(t *testing.T) {
	_, url := startServer(t)
	rounds := round.Config{MaxRounds: 3, Stagger: time.Millisecond, Pause: 20 * time.Millisecond}
	host, guest, _ := startedPair(t, url,
		Options{Rounds: rounds, ObjectsInterval: 10 * time.Millisecond},
		Options{Rounds: rounds, ManualRounds: true})

	waitFor(t, "round 1 on host", func() bool { return host.Field().Len() == 1 })
	if err := guest.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	// 服务端拒绝重开，host 的轮次不受影响
	time.Sleep(100 * time.Millisecond)
	if st := host.Rounds().State(); st.Phase != round.RoundActive || st.CurrentRound != 1 {
		t.Fatalf("host rounds after rejected restart = %+v", st)
	}
	for _, id := range host.Field().IDs() {
		_, _ = host.Destroy(spawn.KindMath, id)
	}
	waitFor(t, "round 2", func() bool { return host.Rounds().State().CurrentRound == 2 })
}

func TestGameStartedRestartsRoundDriver(t *testing.T) {
	_, url := startServer(t)
	rounds := round.Config{MaxRounds: 3, Stagger: time.Millisecond, Pause: 20 * time.Millisecond}
	host, _, _ := startedPair(t, url,
		Options{Rounds: rounds, ObjectsInterval: 10 * time.Millisecond},
		Options{Rounds: rounds, ManualRounds: true})

	waitFor(t, "round 1 on host", func() bool { return host.Field().Len() == 1 })
	first := host.Field().IDs()[0]

	// 新的 game-started 到达：旧驱动退出，新的一局从第 1 轮开始
	host.onGameStarted()
	waitFor(t, "fresh round 1", func() bool {
		ids := host.Field().IDs()
		st := host.Rounds().State()
		return len(ids) == 1 && ids[0] != first && st.CurrentRound == 1 && st.RoundStarted
	})
	for _, id := range host.Field().IDs() {
		_, _ = host.Destroy(spawn.KindMath, id)
	}
	waitFor(t, "round 2 after restart", func() bool {
		return host.Rounds().State().CurrentRound == 2 && host.Field().Len() == 2
	})
}

func TestLateJoinerReceivesLiveAsteroids(t *testing.T) {
	_, url := startServer(t)
	host := dialPeer(t, url, Options{ManualRounds: true})
	guest := dialPeer(t, url, Options{ManualRounds: true})
	late := dialPeer(t, url, Options{ManualRounds: true, Codec: protocol.MsgPack})

	created, err := host.CreateSession(ctxT(t), CreateOptions{MaxPlayers: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := guest.JoinSession(ctxT(t), created.SessionID, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := host.StartGame(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "game started", func() bool { return host.Started() && guest.Started() })

	small, err := host.Spawn(1, 0)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	large, err := host.SpawnLarge(1, 1)
	if err != nil {
		t.Fatalf("spawn large: %v", err)
	}
	waitFor(t, "spawns on guest", func() bool { return guest.Field().Len() == 2 })

	if _, err := late.JoinSession(ctxT(t), created.SessionID, ""); err != nil {
		t.Fatalf("late join: %v", err)
	}
	waitFor(t, "replayed spawns on late joiner", func() bool {
		f := late.Field()
		return f != nil && f.Has(small.ID) && f.Has(large.ID)
	})
	got, _ := late.Field().Get(large.ID)
	if got.Kind != spawn.KindLarge || got.StartX != large.StartX || got.SpawnTime != large.SpawnTime {
		t.Fatalf("replayed asteroid = %+v", got)
	}
	if n := guest.Field().Len(); n != 2 {
		t.Fatalf("replay duplicated asteroids on existing peer: %d", n)
	}

	now := protocol.Now()
	want, have := host.Asteroids(now), late.Asteroids(now)
	if len(want) != 2 || !reflect.DeepEqual(want, have) {
		t.Fatalf("asteroid views differ:\nhost %+v\nlate %+v", want, have)
	}
}
