package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"astroarena/session"
	"astroarena/store"
)

// adminConfig 运行时可调参数；指针字段表示 POST 时只更新携带的字段
type adminConfig struct {
	HostPolicy        *string `json:"hostPolicy,omitempty"`
	EmptySessionTTLMs *int64  `json:"emptySessionTtlMs,omitempty"`
	SendQueueSize     *int    `json:"sendQueueSize,omitempty"`
}

// HandleAdminConfig 运行时配置的读取与更新
// GET /admin/config  返回当前配置
// POST /admin/config 以 JSON 载荷更新部分字段
func (s *Server) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		policy := string(s.registry.HostPolicy())
		ttl := s.EmptySessionTTL().Milliseconds()
		queue := s.hub.SendQueueSize()
		writeJSON(w, http.StatusOK, adminConfig{
			HostPolicy:        &policy,
			EmptySessionTTLMs: &ttl,
			SendQueueSize:     &queue,
		})
	case http.MethodPost:
		var body adminConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			HandleError(w, BadRequestError{Msg: "invalid json"})
			return
		}
		if body.HostPolicy != nil {
			p := session.HostPolicy(*body.HostPolicy)
			if p != session.HostPromote && p != session.HostTeardown {
				HandleError(w, BadRequestError{Msg: "hostPolicy must be promote or teardown"})
				return
			}
			s.registry.SetHostPolicy(p)
		}
		if body.EmptySessionTTLMs != nil {
			s.SetEmptySessionTTL(time.Duration(*body.EmptySessionTTLMs) * time.Millisecond)
		}
		if body.SendQueueSize != nil {
			s.hub.SetSendQueueSize(*body.SendQueueSize)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		Log.Infof("config updated: hostPolicy=%s emptySessionTTL=%s sendQueue=%d",
			s.registry.HostPolicy(), s.EmptySessionTTL(), s.hub.SendQueueSize())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.registry.Count(),
		"rooms":    s.hub.RoomCount(),
		"metrics":  s.metrics.Snapshot(),
	})
}

// HandleHealth 进程存活即 ok；持久化不可用时标记 degraded
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	status := "ok"
	if store.Degraded(s.store) || s.store.Ping(ctx) != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}
