package peer

import (
	"context"

	"go.uber.org/zap"

	"astroarena/mirror"
	"astroarena/protocol"
	"astroarena/round"
	"astroarena/spawn"
)

// hostState host 本地维护、通过 game-objects-update 广播的共享状态
type hostState struct {
	asteroids []protocol.EntitySnapshot
	enemies   []protocol.EntitySnapshot
	bullets   []protocol.EntitySnapshot
	level     int
	score     int
	lives     int
	// driver 当前的轮次驱动任务
	driver    *Task
}

// SetShip 更新本地飞船，下一次 player-update 广播时发出。
// 外观字段只在变化后的第一条广播里携带。
func (c *Client) SetShip(up protocol.PlayerUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cos := c.ship.Cosmetics
	if !up.Cosmetics.Empty() {
		cos.Merge(up.Cosmetics)
		c.shipDirty = true
	}
	up.Cosmetics = cos
	up.PlayerID = ""
	if up.PlayerName == "" {
		up.PlayerName = c.opts.Name
	}
	if !c.hasShip {
		c.shipDirty = true
	}
	c.ship = up
	c.hasShip = true
}

func (c *Client) broadcastShip() {
	c.mu.Lock()
	if c.sess == nil || !c.hasShip {
		c.mu.Unlock()
		return
	}
	up := c.ship
	if c.shipDirty {
		c.shipDirty = false
	} else {
		up.Cosmetics = protocol.Cosmetics{}
	}
	c.mu.Unlock()
	up.Seq = c.seq.Add(1)
	_ = c.send(protocol.EvPlayerUpdate, up)
}

// sendShipData 回应 request-ship-data
func (c *Client) sendShipData() {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	d := protocol.PlayerShipData{PlayerName: c.opts.Name, Cosmetics: c.ship.Cosmetics}
	c.mu.Unlock()
	_ = c.send(protocol.EvPlayerShipData, d)
}

// SetHostEntities host 设置要广播的小行星、敌人与子弹
func (c *Client) SetHostEntities(asteroids, enemies, bullets []protocol.EntitySnapshot) {
	c.mu.Lock()
	c.host.asteroids = append([]protocol.EntitySnapshot{}, asteroids...)
	c.host.enemies = append([]protocol.EntitySnapshot{}, enemies...)
	c.host.bullets = append([]protocol.EntitySnapshot{}, bullets...)
	c.mu.Unlock()
}

// SetScore host 设置关卡、分数与共享生命数
func (c *Client) SetScore(level, score, lives int) {
	c.mu.Lock()
	c.host.level, c.host.score, c.host.lives = level, score, lives
	c.mu.Unlock()
}

// objectsUpdate 当前 host 快照；不是 host 或对局未开始时 ok 为 false
func (c *Client) objectsUpdate() (protocol.GameObjectsUpdate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isHostLocked() || !c.sess.Started {
		return protocol.GameObjectsUpdate{}, false
	}
	return protocol.GameObjectsUpdate{
		Level:     c.host.level,
		Score:     c.host.score,
		Lives:     c.host.lives,
		Asteroids: append([]protocol.EntitySnapshot{}, c.host.asteroids...),
		Enemies:   append([]protocol.EntitySnapshot{}, c.host.enemies...),
		Bullets:   append([]protocol.EntitySnapshot{}, c.host.bullets...),
		Round:     c.rounds.State().CurrentRound,
		Timestamp: protocol.Now(),
	}, true
}

func (c *Client) broadcastObjects() {
	if u, ok := c.objectsUpdate(); ok {
		_ = c.send(protocol.EvGameObjectsUpdate, u)
	}
}

// BroadcastObjects 立即发出一次 game-objects-update（不等下一个周期）
func (c *Client) BroadcastObjects() error {
	u, ok := c.objectsUpdate()
	if !ok {
		return ErrNotHost
	}
	return c.send(protocol.EvGameObjectsUpdate, u)
}

func (c *Client) heartbeat() {
	if !c.IsHost() {
		return
	}
	_ = c.send(protocol.EvHostHeartbeat, protocol.HostHeartbeat{
		Round:     c.rounds.State().CurrentRound,
		Timestamp: protocol.Now(),
	})
}

// hostSpawn 取得 host 的 field 与 planner
func (c *Client) hostSpawn() (*spawn.Field, *spawn.Planner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return nil, nil, ErrNoSession
	}
	if !c.isHostLocked() {
		return nil, nil, ErrNotHost
	}
	return c.field, c.planner, nil
}

// Spawn host 生成第 round 轮第 index 个小行星并广播生成记录
func (c *Client) Spawn(round, index int) (*spawn.MathAsteroid, error) {
	f, p, err := c.hostSpawn()
	if err != nil {
		return nil, err
	}
	a, rec := p.Spawn(f, round, index)
	return a, c.send(protocol.EvMathObjectsSpawn, rec)
}

// SpawnSeed 与 Spawn 相同，但使用指定 seed
func (c *Client) SpawnSeed(seed uint32, round, index int) (*spawn.MathAsteroid, error) {
	f, p, err := c.hostSpawn()
	if err != nil {
		return nil, err
	}
	rec := p.PlanSeed(seed, round, index, protocol.Now())
	a, _ := f.Add(rec)
	return a, c.send(protocol.EvMathObjectsSpawn, rec)
}

// SpawnLarge host 生成固定大尺寸小行星（asteroid-spawn）
func (c *Client) SpawnLarge(round, index int) (*spawn.MathAsteroid, error) {
	f, p, err := c.hostSpawn()
	if err != nil {
		return nil, err
	}
	rec := p.Plan(round, index)
	rec.Kind = spawn.KindLarge
	a, _ := f.Add(rec)
	return a, c.send(protocol.EvAsteroidSpawn, rec)
}

// Destroy 本地销毁并通知房间。kind 为 spawn.KindMath 或 mirror 的实体类型；
// 本地没有该实体时什么也不做。
func (c *Client) Destroy(kind, id string) (bool, error) {
	if !c.destroyLocal(kind, id) {
		return false, nil
	}
	return true, c.send(protocol.EvObjectsDestroyed, protocol.ObjectDestroyed{
		Type:      kind,
		ID:        id,
		Timestamp: protocol.Now(),
	})
}

// ReportCollision 自己的飞船撞上了实体
func (c *Client) ReportCollision(kind, id string) error {
	c.destroyLocal(kind, id)
	return c.send(protocol.EvShipCollision, protocol.ShipCollision{
		ObjectType: kind,
		ObjectID:   id,
		Timestamp:  protocol.Now(),
	})
}

// destroyLocal 按 id 在所有本地集合中删除；重复删除是无害的空操作
func (c *Client) destroyLocal(kind, id string) bool {
	c.mu.Lock()
	f := c.field
	removed := false
	for _, list := range []*[]protocol.EntitySnapshot{&c.host.asteroids, &c.host.enemies, &c.host.bullets} {
		for i, e := range *list {
			if e.ID == id {
				*list = append((*list)[:i], (*list)[i+1:]...)
				removed = true
				break
			}
		}
	}
	c.mu.Unlock()

	if f != nil && isAsteroidKind(kind) && f.Destroy(id) {
		removed = true
	}
	mk := kind
	if mk == spawn.KindMath || mk == spawn.KindLarge {
		mk = ""
	}
	if c.mirror.Destroy(mk, id) {
		removed = true
	}
	return removed
}

// isAsteroidKind 数学小行星可能以任一小行星类型被引用；空类型按 id 查找所有集合
func isAsteroidKind(kind string) bool {
	switch kind {
	case "", spawn.KindMath, spawn.KindLarge, mirror.KindAsteroid:
		return true
	}
	return false
}

// Asteroids 当前可见的全部小行星：host 维护的或镜像里的共享小行星，
// 加上本地按公式推算到 nowMs 的数学小行星
func (c *Client) Asteroids(nowMs int64) []protocol.EntitySnapshot {
	c.mu.Lock()
	f := c.field
	isHost := c.isHostLocked()
	out := append([]protocol.EntitySnapshot{}, c.host.asteroids...)
	c.mu.Unlock()

	if !isHost {
		out = out[:0]
		for _, e := range c.mirror.Asteroids() {
			out = append(out, e.Snapshot())
		}
	}
	if f != nil {
		out = append(out, f.Snapshots(nowMs)...)
	}
	return out
}

// sharedAsteroids 本轮尚存的小行星数量，决定轮次是否结束
func (c *Client) sharedAsteroids() int {
	return len(c.Asteroids(protocol.Now()))
}

// replaySpawns host 把场上数学小行星的生成记录重发给房间，中途加入的玩家据此补齐；
// 已有的 peer 按 id 去重
func (c *Client) replaySpawns() {
	c.mu.Lock()
	f := c.field
	ok := c.isHostLocked() && c.sess.Started
	c.mu.Unlock()
	if !ok || f == nil {
		return
	}
	for _, id := range f.IDs() {
		a, found := f.Get(id)
		if !found {
			continue
		}
		ev := protocol.EvMathObjectsSpawn
		if a.Kind == spawn.KindLarge {
			ev = protocol.EvAsteroidSpawn
		}
		_ = c.send(ev, a.Record())
	}
}

// startRounds host 启动轮次驱动；resumed 为 true 时从当前轮次的等待清场阶段接管。
// 已有的驱动任务先被取消。
func (c *Client) startRounds(resumed bool) {
	c.stopRounds()
	if c.opts.ManualRounds {
		return
	}
	c.mu.Lock()
	sched := c.sched
	c.mu.Unlock()
	if sched == nil {
		return
	}
	t := sched.Start(func(ctx context.Context) { c.driveRounds(ctx, resumed) })
	c.mu.Lock()
	c.host.driver = t
	c.mu.Unlock()
}

// stopRounds 取消轮次驱动并等待它退出
func (c *Client) stopRounds() {
	c.mu.Lock()
	t := c.host.driver
	c.host.driver = nil
	c.mu.Unlock()
	if t != nil {
		t.Cancel()
	}
}

func (c *Client) driveRounds(ctx context.Context, resumed bool) {
	cfg := c.rounds.Config()
	var (
		n  int
		ok bool
	)
	if resumed {
		n, ok = c.rounds.State().CurrentRound, true
	} else {
		n, ok = c.rounds.Begin()
	}
	for ok {
		if !resumed {
			_ = c.send(protocol.EvRoundTransition, protocol.RoundTransition{
				Round:     n,
				Timestamp: protocol.Now(),
				IsInitial: n == 1,
			})
			for i := 0; i < round.Spawns(n); i++ {
				if i > 0 && !sleep(ctx, cfg.Stagger) {
					return
				}
				if _, err := c.Spawn(n, i); err != nil {
					c.log.Debug("round driver stopped", zap.Int("round", n), zap.Error(err))
					return
				}
			}
			c.rounds.MarkStarted()
		}
		resumed = false

		switch c.awaitClear(ctx) {
		case round.Transition:
			c.log.Info("round complete", zap.Int("round", n))
			if !sleep(ctx, cfg.Pause) {
				return
			}
			n, ok = c.rounds.Advance()
		case round.Finished:
			c.log.Info("game complete", zap.Int("rounds", n))
			_ = c.send(protocol.EvGameComplete, protocol.GameComplete{FinalRound: n, Timestamp: protocol.Now()})
			return
		default:
			return
		}
	}
}

// awaitClear 每个快照周期观察一次剩余数量，直到本轮结束或 ctx 取消
func (c *Client) awaitClear(ctx context.Context) round.Outcome {
	for {
		if out := c.rounds.Observe(c.sharedAsteroids()); out != round.None {
			return out
		}
		if !c.IsHost() || !sleep(ctx, c.opts.ObjectsInterval) {
			return round.None
		}
	}
}

// promote 自己被提升为 host：从最后已知轮次恢复，开始广播快照并接管轮次驱动
func (c *Client) promote() {
	c.log.Info("promoted to host", zap.Int("round", c.rounds.State().CurrentRound))

	// 把镜像里的共享实体接过来，继续由自己广播
	var asteroids, enemies, bullets []protocol.EntitySnapshot
	for _, e := range c.mirror.Asteroids() {
		asteroids = append(asteroids, e.Snapshot())
	}
	for _, e := range c.mirror.Enemies() {
		enemies = append(enemies, e.Snapshot())
	}
	for _, e := range c.mirror.Bullets() {
		bullets = append(bullets, e.Snapshot())
	}
	level, score, lives, _ := c.mirror.Scalars()
	c.SetHostEntities(asteroids, enemies, bullets)
	c.SetScore(level, score, lives)

	if !c.Started() {
		return
	}
	if st := c.rounds.Resume(c.rounds.State().CurrentRound); st.Phase == round.RoundActive {
		c.startRounds(true)
	}
}
