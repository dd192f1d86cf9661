package store

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Open 按类型打开存储。postgres 连接失败时不退出，返回 Unavailable 进入降级模式。
func Open(ctx context.Context, kind, dsn string, log *zap.Logger) Store {
	if log == nil {
		log = zap.NewNop()
	}
	switch kind {
	case "memory":
		return NewMemory()
	case "none":
		log.Warn("persistence disabled, ship and score endpoints will return 503")
		return Unavailable{Cause: errors.New("persistence disabled")}
	}
	pg, err := OpenPostgres(ctx, dsn, log)
	if err != nil {
		log.Error("persistence unavailable, running in degraded mode", zap.Error(err))
		return Unavailable{Cause: err}
	}
	return pg
}

// Degraded 当前是否处于降级模式
func Degraded(s Store) bool {
	_, ok := s.(Unavailable)
	return ok
}
