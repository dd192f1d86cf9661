package session

import (
	"errors"
	"net/http"
	"time"

	"astroarena/protocol"
)

// GameState 会话粗粒度状态
type GameState string

const (
	StateWaiting GameState = "waiting"
	StatePlaying GameState = "playing"
)

// Player 会话中的一个已连接玩家
type Player struct {
	SessionID      string    `json:"sessionId"`
	PlayerID       string    `json:"playerId"`
	PlayerName     string    `json:"playerName,omitempty"`
	ShipPassphrase string    `json:"-"`
	JoinedAt       time.Time `json:"joinedAt"`
}

// Session 会话记录。Players 按加入顺序排列，host 迁移时取第一个。
type Session struct {
	ID             string    `json:"id"`
	HostPlayerID   string    `json:"hostPlayerId"`
	MaxPlayers     int       `json:"maxPlayers"`
	CurrentPlayers int       `json:"currentPlayers"`
	GameState      GameState `json:"gameState"`
	WorldWidth     float64   `json:"worldWidth"`
	WorldHeight    float64   `json:"worldHeight"`
	CreatedAt      time.Time `json:"createdAt"`
	Players        []Player  `json:"players"`
}

// Has 玩家是否在名单中
func (s *Session) Has(playerID string) bool {
	return s.index(playerID) >= 0
}

func (s *Session) index(playerID string) int {
	for i, p := range s.Players {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// Joinable 可出现在大厅列表中
func (s *Session) Joinable() bool {
	return (s.GameState == StateWaiting || s.GameState == StatePlaying) && s.CurrentPlayers < s.MaxPlayers
}

func (s Session) clone() Session {
	s.Players = append([]Player(nil), s.Players...)
	return s
}

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrAlreadyJoined   = errors.New("player already joined this session")
	ErrNotInSession    = errors.New("player is not in this session")
	ErrExists          = errors.New("session id already exists")
	ErrGameInProgress  = errors.New("game already in progress")
)

// Code 错误对应的协议错误码
func Code(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return protocol.CodeSessionNotFound
	case errors.Is(err, ErrSessionFull):
		return protocol.CodeSessionFull
	case errors.Is(err, ErrAlreadyJoined):
		return protocol.CodeAlreadyJoined
	case errors.Is(err, ErrNotInSession):
		return protocol.CodeNotInSession
	case errors.Is(err, ErrGameInProgress):
		return protocol.CodeGameInProgress
	default:
		return protocol.CodeBadRequest
	}
}

// StatusCode 错误对应的 HTTP 状态码
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrNotInSession):
		return http.StatusNotFound
	case errors.Is(err, ErrSessionFull), errors.Is(err, ErrAlreadyJoined), errors.Is(err, ErrExists),
		errors.Is(err, ErrGameInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// FromCode 把对端收到的错误码还原成哨兵错误，便于 errors.Is
func FromCode(code string) error {
	switch code {
	case protocol.CodeSessionNotFound:
		return ErrSessionNotFound
	case protocol.CodeSessionFull:
		return ErrSessionFull
	case protocol.CodeAlreadyJoined:
		return ErrAlreadyJoined
	case protocol.CodeNotInSession:
		return ErrNotInSession
	case protocol.CodeGameInProgress:
		return ErrGameInProgress
	default:
		return errors.New(code)
	}
}
