package protocol

// Vec 二维向量（速度等）
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point 飞船外观上的点（推进器、武器挂点）
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Line 自定义飞船的一条线段
type Line struct {
	From  Point  `json:"from"`
	To    Point  `json:"to"`
	Color string `json:"color,omitempty"`
}

// Cosmetics 飞船外观字段。发送频率低，每条消息中都是可选的：
// nil 表示“本条消息未携带”，接收方必须保留旧值。
type Cosmetics struct {
	CustomLines    []Line  `json:"customLines,omitempty"`
	ShipColor      *string `json:"shipColor,omitempty"`
	ThrusterColor  *string `json:"thrusterColor,omitempty"`
	ThrusterPoints []Point `json:"thrusterPoints,omitempty"`
	WeaponPoints   []Point `json:"weaponPoints,omitempty"`
}

// Empty 是否一个外观字段都没有携带
func (c Cosmetics) Empty() bool {
	return c.CustomLines == nil && c.ShipColor == nil && c.ThrusterColor == nil &&
		c.ThrusterPoints == nil && c.WeaponPoints == nil
}

// Merge 用 n 中携带的字段覆盖 c，未携带的保留
func (c *Cosmetics) Merge(n Cosmetics) {
	if n.CustomLines != nil {
		c.CustomLines = append([]Line(nil), n.CustomLines...)
	}
	if n.ShipColor != nil {
		v := *n.ShipColor
		c.ShipColor = &v
	}
	if n.ThrusterColor != nil {
		v := *n.ThrusterColor
		c.ThrusterColor = &v
	}
	if n.ThrusterPoints != nil {
		c.ThrusterPoints = append([]Point(nil), n.ThrusterPoints...)
	}
	if n.WeaponPoints != nil {
		c.WeaponPoints = append([]Point(nil), n.WeaponPoints...)
	}
}

type Connected struct {
	PlayerID string `json:"playerId"`
	Codec    string `json:"codec"`
}

type CreateSessionRequest struct {
	MaxPlayers     int     `json:"maxPlayers"`
	WorldWidth     float64 `json:"worldWidth"`
	WorldHeight    float64 `json:"worldHeight"`
	PlayerName     string  `json:"playerName,omitempty"`
	ShipPassphrase string  `json:"shipPassphrase,omitempty"`
}

type JoinSessionRequest struct {
	SessionID      string `json:"sessionId"`
	PlayerName     string `json:"playerName,omitempty"`
	ShipPassphrase string `json:"shipPassphrase,omitempty"`
}

type RosterEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName,omitempty"`
}

// SessionJoined 加入确认，只发给加入者
type SessionJoined struct {
	SessionID    string        `json:"sessionId"`
	PlayerID     string        `json:"playerId"`
	PlayerCount  int           `json:"playerCount"`
	MaxPlayers   int           `json:"maxPlayers"`
	HostPlayerID string        `json:"hostPlayerId"`
	IsHost       bool          `json:"isHost"`
	GameState    string        `json:"gameState"`
	WorldWidth   float64       `json:"worldWidth"`
	WorldHeight  float64       `json:"worldHeight"`
	Players      []RosterEntry `json:"players,omitempty"`
}

// SessionError 会话类错误（满员、不存在、重复加入等），只发给请求者
type SessionError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// PlayerNotice player-joined / player-left / player-disconnected
type PlayerNotice struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type StartGame struct{}

type GameStarted struct {
	SessionID   string  `json:"sessionId"`
	WorldWidth  float64 `json:"worldWidth"`
	WorldHeight float64 `json:"worldHeight"`
	StartedBy   string  `json:"startedBy"`
	Timestamp   int64   `json:"timestamp"`
}

// PlayerUpdate 飞船位置广播（约 20Hz）。Seq 为发送方单调递增序号，0 表示未编号。
type PlayerUpdate struct {
	PlayerID   string  `json:"playerId,omitempty"`
	Seq        uint64  `json:"seq,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Angle      float64 `json:"angle"`
	Rotation   float64 `json:"rotation"`
	Velocity   Vec     `json:"velocity"`
	Thrusting  bool    `json:"thrusting"`
	Alive      bool    `json:"alive"`
	PlayerName string  `json:"playerName,omitempty"`
	Cosmetics
}

// EntitySnapshot 共享实体（小行星 / 敌人 / 子弹）快照
type EntitySnapshot struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Velocity  Vec     `json:"velocity"`
	Rotation  float64 `json:"rotation"`
	Angle     float64 `json:"angle,omitempty"`
	Size      int     `json:"size,omitempty"`
	Health    int     `json:"health,omitempty"`
	Type      string  `json:"type,omitempty"`
	Active    bool    `json:"active,omitempty"`
	Thrusting bool    `json:"thrusting,omitempty"`
	Owner     string  `json:"owner,omitempty"`
}

// GameObjectsUpdate host 发出的权威快照（约 10Hz）
type GameObjectsUpdate struct {
	Level     int              `json:"level"`
	Score     int              `json:"score"`
	Lives     int              `json:"lives"`
	Asteroids []EntitySnapshot `json:"asteroids"`
	Enemies   []EntitySnapshot `json:"enemies"`
	Bullets   []EntitySnapshot `json:"bullets"`
	Round     int              `json:"round,omitempty"`
	Timestamp int64            `json:"timestamp"`
}

// RawGameObjects 接收侧的宽松形式：数组字段不做强类型解码，
// 由 mirror 逐元素校验，坏元素跳过而不是整包失败。
type RawGameObjects struct {
	Level     int   `json:"level"`
	Score     int   `json:"score"`
	Lives     int   `json:"lives"`
	Asteroids any   `json:"asteroids"`
	Enemies   any   `json:"enemies"`
	Bullets   any   `json:"bullets"`
	Round     int   `json:"round,omitempty"`
	Timestamp int64 `json:"timestamp"`
}

// SpawnRecord 确定性生成记录：接收方用同一 seed 重建完全一致的实体
type SpawnRecord struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind,omitempty"`
	StartX    float64 `json:"startX"`
	StartY    float64 `json:"startY"`
	SpawnTime int64   `json:"spawnTime"` // 毫秒
	BaseSpeed float64 `json:"baseSpeed"`
	Angle     float64 `json:"angle"`
	Seed      uint32  `json:"seed"`
	Round     int     `json:"round,omitempty"`
	Index     int     `json:"index,omitempty"`
}

type ObjectDestroyed struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
}

type ShipCollision struct {
	ObjectType string `json:"objectType"`
	ObjectID   string `json:"objectId"`
	PlayerID   string `json:"playerId"`
	Timestamp  int64  `json:"timestamp"`
}

type RoundTransition struct {
	Round     int   `json:"round"`
	Timestamp int64 `json:"timestamp"`
	IsInitial bool  `json:"isInitial,omitempty"`
}

type GameComplete struct {
	FinalRound int   `json:"finalRound"`
	Timestamp  int64 `json:"timestamp"`
}

type LivesUpdate struct {
	Lives     int    `json:"lives"`
	PlayerID  string `json:"playerId,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type GameOver struct {
	FinalScore int   `json:"finalScore"`
	Round      int   `json:"round"`
	Timestamp  int64 `json:"timestamp"`
}

type LevelComplete struct {
	Level     int   `json:"level"`
	Timestamp int64 `json:"timestamp"`
}

// PlayerShipData 晚加入者的外观同步
type PlayerShipData struct {
	PlayerID   string `json:"playerId,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
	Cosmetics
}

type RequestShipData struct {
	PlayerID string `json:"playerId,omitempty"`
}

type HostChanged struct {
	SessionID      string `json:"sessionId"`
	HostPlayerID   string `json:"hostPlayerId"`
	PreviousHostID string `json:"previousHostId"`
	Timestamp      int64  `json:"timestamp"`
}

type SessionClosed struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

type HostHeartbeat struct {
	Round     int   `json:"round"`
	Timestamp int64 `json:"timestamp"`
}
