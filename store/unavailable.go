package store

import (
	"context"
	"fmt"
)

// Unavailable 降级模式：持久化层启动失败时使用，会话同步照常，
// 所有持久化调用返回 ErrUnavailable
type Unavailable struct {
	Cause error
}

var _ Store = Unavailable{}

func (u Unavailable) err() error {
	if u.Cause == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.Cause)
}

func (u Unavailable) FindShip(context.Context, string) (Ship, error) { return Ship{}, u.err() }
func (u Unavailable) GetShip(context.Context, string) (Ship, error)  { return Ship{}, u.err() }
func (u Unavailable) ListShips(context.Context) ([]Ship, error)      { return nil, u.err() }
func (u Unavailable) CreateShip(context.Context, Ship) (Ship, error) { return Ship{}, u.err() }
func (u Unavailable) UpdateShip(context.Context, Ship) (Ship, error) { return Ship{}, u.err() }
func (u Unavailable) TopScores(context.Context, int) ([]HighScore, error) {
	return nil, u.err()
}
func (u Unavailable) AddScore(context.Context, HighScore) (HighScore, error) {
	return HighScore{}, u.err()
}
func (u Unavailable) Ping(context.Context) error { return u.err() }
func (u Unavailable) Close() error               { return nil }
