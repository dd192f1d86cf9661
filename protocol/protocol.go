package protocol

import "time"

// 入站（客户端 → 服务端）事件
const (
	EvCreateSession = "create-session"
	EvJoinSession   = "join-session"
	EvLeaveSession  = "leave-session"
	EvStartGame     = "start-multiplayer-game"
)

// 出站（服务端 → 客户端）事件
const (
	EvConnected          = "connected"
	EvSessionJoined      = "session-joined"
	EvSessionError       = "session-error"
	EvPlayerJoined       = "player-joined"
	EvPlayerLeft         = "player-left"
	EvPlayerDisconnected = "player-disconnected"
	EvGameStarted        = "game-started"
	EvHostChanged        = "host-changed"
	EvSessionClosed      = "session-closed"
)

// 房间内转发事件（peer → room，服务端只做校验与转发）
const (
	EvPlayerUpdate      = "player-update"
	EvGameObjectsUpdate = "game-objects-update"
	EvAsteroidSpawn     = "asteroid-spawn"
	EvMathObjectsSpawn  = "math-objects-spawn"
	EvObjectsDestroyed  = "math-objects-destroyed"
	EvShipCollision     = "ship-collision"
	EvRoundTransition   = "round-transition"
	EvGameComplete      = "multiplayer-game-complete"
	EvLivesUpdate       = "lives-update"
	EvGameOver          = "game-over"
	EvLevelComplete     = "level-complete"
	EvPlayerShipData    = "player-ship-data"
	EvRequestShipData   = "request-ship-data"
	EvHostHeartbeat     = "host-heartbeat"
)

// 错误码（session-error.code 与 REST error 共用）
const (
	CodeSessionNotFound = "session_not_found"
	CodeSessionFull     = "session_full"
	CodeAlreadyJoined   = "already_joined"
	CodeNotInSession    = "not_in_session"
	CodeGameInProgress  = "game_in_progress"
	CodeBadRequest      = "bad_request"
)

const (
	ShipUpdateHz    = 20 // 每个 peer 广播自身飞船
	ObjectsUpdateHz = 10 // host 广播共享实体快照
)

var (
	ShipUpdateInterval    = time.Second / ShipUpdateHz
	ObjectsUpdateInterval = time.Second / ObjectsUpdateHz
)

// HostOnly 仅允许 host 发出的事件；非 host 发出时服务端直接丢弃
func HostOnly(event string) bool {
	switch event {
	case EvGameObjectsUpdate, EvAsteroidSpawn, EvMathObjectsSpawn,
		EvRoundTransition, EvGameComplete, EvLivesUpdate,
		EvGameOver, EvLevelComplete, EvHostHeartbeat:
		return true
	}
	return false
}

// Relayed 服务端原样转发给房间（不含发送者）的事件
func Relayed(event string) bool {
	switch event {
	case EvPlayerUpdate, EvObjectsDestroyed, EvShipCollision,
		EvPlayerShipData, EvRequestShipData:
		return true
	}
	return HostOnly(event)
}

// StampsSender 转发前需要由服务端写入 playerId 的事件（客户端不可伪造身份）
func StampsSender(event string) bool {
	switch event {
	case EvPlayerUpdate, EvPlayerShipData, EvShipCollision, EvRequestShipData:
		return true
	}
	return false
}

// Now 协议时间戳（毫秒）
func Now() int64 {
	return time.Now().UnixMilli()
}
