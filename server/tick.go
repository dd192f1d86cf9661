package server

import (
	"context"
	"time"
)

// RunSweeper 定期清理创建后一直无人加入的会话，直到 ctx 结束
func (s *Server) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Sweep 执行一次清理，返回删除的会话 id
func (s *Server) Sweep() []string {
	removed := s.registry.Sweep(s.EmptySessionTTL(), s.hub)
	if len(removed) > 0 {
		s.metrics.AddSessionsSwept(int64(len(removed)))
		Log.Infof("swept %d empty sessions", len(removed))
	}
	return removed
}
