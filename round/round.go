package round

import (
	"sync"
	"time"
)

type Phase int

const (
	Idle Phase = iota
	RoundActive
	RoundComplete
	Transitioning
	GameComplete
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case RoundActive:
		return "round-active"
	case RoundComplete:
		return "round-complete"
	case Transitioning:
		return "transitioning"
	case GameComplete:
		return "game-complete"
	}
	return "unknown"
}

const (
	DefaultMaxRounds = 10
	DefaultStagger   = 250 * time.Millisecond
	DefaultPause     = 3 * time.Second
)

type Config struct {
	MaxRounds int
	// Stagger 同一轮内相邻两次生成的间隔
	Stagger time.Duration
	// Pause 轮次结束到下一轮开始的停顿
	Pause time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRounds <= 0 {
		c.MaxRounds = DefaultMaxRounds
	}
	if c.Stagger <= 0 {
		c.Stagger = DefaultStagger
	}
	if c.Pause <= 0 {
		c.Pause = DefaultPause
	}
	return c
}

// State 对外暴露的轮次状态
type State struct {
	Phase         Phase
	CurrentRound  int
	RoundStarted  bool
	Transitioning bool
}

// Outcome Observe 的结果
type Outcome int

const (
	// None 没有状态变化
	None Outcome = iota
	// Transition 本轮结束，进入停顿，之后调用 Advance
	Transition
	// Finished 最后一轮结束，进入 GameComplete
	Finished
)

// Machine 轮次状态机。只有 host 调用 Begin/Observe/Advance，
// 其他 peer 只通过 Follow/FollowComplete 跟随 host 的广播。
type Machine struct {
	mu  sync.Mutex
	cfg Config
	st  State
}

func New(cfg Config) *Machine {
	return &Machine{cfg: cfg.withDefaults()}
}

func (m *Machine) Config() Config {
	return m.cfg
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Spawns 第 n 轮生成的小行星数量
func Spawns(n int) int {
	return n
}

// Begin Idle → RoundActive(1)。已经开始过时返回 false。
func (m *Machine) Begin() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Phase != Idle {
		return m.st.CurrentRound, false
	}
	m.st = State{Phase: RoundActive, CurrentRound: 1}
	return 1, true
}

// MarkStarted 本轮第一个实体已生成，此后数量归零才算完成
func (m *Machine) MarkStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Phase == RoundActive {
		m.st.RoundStarted = true
	}
}

// Observe 报告 host 本地共享小行星数量。只有本轮已标记开始且数量为零时才完成，
// 防止第一个实体生成前误判。
func (m *Machine) Observe(count int) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Phase != RoundActive || !m.st.RoundStarted || count > 0 {
		return None
	}
	m.st.Phase = RoundComplete
	if m.st.CurrentRound >= m.cfg.MaxRounds {
		m.st.Phase = GameComplete
		m.st.RoundStarted = false
		return Finished
	}
	m.st.Phase = Transitioning
	m.st.Transitioning = true
	return Transition
}

// Advance Transitioning → RoundActive(n+1)，返回新轮次
func (m *Machine) Advance() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Phase != Transitioning {
		return m.st.CurrentRound, false
	}
	m.st = State{Phase: RoundActive, CurrentRound: m.st.CurrentRound + 1}
	return m.st.CurrentRound, true
}

// Follow 非 host 收到 round-transition。轮次只增不减，旧消息忽略。
func (m *Machine) Follow(round int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Phase == GameComplete || round < 1 || round < m.st.CurrentRound {
		return false
	}
	if round == m.st.CurrentRound && m.st.Phase == RoundActive {
		return false
	}
	m.st = State{Phase: RoundActive, CurrentRound: round, RoundStarted: true}
	return true
}

// FollowComplete 收到 multiplayer-game-complete；只有第一次返回 true
func (m *Machine) FollowComplete(final int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Phase == GameComplete {
		return false
	}
	if final > m.st.CurrentRound {
		m.st.CurrentRound = final
	}
	m.st.Phase = GameComplete
	m.st.RoundStarted = false
	m.st.Transitioning = false
	return true
}

// Resume host 迁移后新 host 从最后已知轮次接管。
// 本地镜像里的实体视为本轮已开始，数量归零即推进。
func (m *Machine) Resume(round int) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.st.Phase == GameComplete {
		return m.st
	}
	if round < m.st.CurrentRound {
		round = m.st.CurrentRound
	}
	if round < 1 {
		round = 1
	}
	m.st = State{Phase: RoundActive, CurrentRound: round, RoundStarted: true}
	return m.st
}

// Reset 回到 Idle（离开会话）
func (m *Machine) Reset() {
	m.mu.Lock()
	m.st = State{}
	m.mu.Unlock()
}
