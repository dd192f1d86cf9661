package store

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"astroarena/protocol"
)

// Ship 玩家自定义飞船。外观字段在同步时原样转发，不做解释。
type Ship struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Passphrase string    `json:"passphrase,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	protocol.Cosmetics
}

// HighScore 排行榜记录
type HighScore struct {
	ID         string    `json:"id"`
	PlayerName string    `json:"playerName"`
	Score      int       `json:"score"`
	Round      int       `json:"round"`
	CreatedAt  time.Time `json:"createdAt"`
}

var (
	ErrNotFound    = errors.New("store: not found")
	ErrConflict    = errors.New("store: already exists")
	ErrInvalid     = errors.New("store: invalid record")
	ErrUnavailable = errors.New("store: persistence unavailable")
)

const (
	DefaultScoreLimit = 10
	MaxScoreLimit     = 100
)

// Store 飞船与分数的持久化。实时同步只依赖 FindShip。
type Store interface {
	FindShip(ctx context.Context, passphrase string) (Ship, error)
	GetShip(ctx context.Context, id string) (Ship, error)
	ListShips(ctx context.Context) ([]Ship, error)
	CreateShip(ctx context.Context, s Ship) (Ship, error)
	UpdateShip(ctx context.Context, s Ship) (Ship, error)
	TopScores(ctx context.Context, limit int) ([]HighScore, error)
	AddScore(ctx context.Context, h HighScore) (HighScore, error)
	Ping(ctx context.Context) error
	Close() error
}

// StatusCode 错误对应的 HTTP 状态码
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validateShip(s Ship) error {
	if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Passphrase) == "" {
		return ErrInvalid
	}
	return nil
}

func validateScore(h HighScore) error {
	if strings.TrimSpace(h.PlayerName) == "" || h.Score < 0 || h.Round < 0 {
		return ErrInvalid
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultScoreLimit
	}
	if limit > MaxScoreLimit {
		return MaxScoreLimit
	}
	return limit
}
