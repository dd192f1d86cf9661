package server

import (
	"sync/atomic"
)

// Metrics 记录运行期的关键指标（用于监控与调试）
type Metrics struct {
	Connections      int64 // 当前连接数
	ConnectionsTotal int64 // 累计连接数
	MessagesIn       int64 // 解码成功的入站消息
	MessagesOut      int64 // 成功入队的出站消息
	QueueFullDropped int64 // 因发送队列满被丢弃的消息
	DecodeErrors     int64 // 无法解码的帧
	UnknownEvents    int64 // 没有处理函数的事件
	HostOnlyRejected int64 // 非 host 发出的 host 专属事件
	NotInSession     int64 // 未加入会话时发出的房间事件
	SessionsCreated  int64
	JoinsRejected    int64 // 满员/不存在/重复加入
	HostPromotions   int64
	SessionsClosed   int64 // teardown 关闭
	SessionsSwept    int64
	ShipLookups      int64
	ShipLookupMisses int64
}

func (m *Metrics) IncConnections() {
	atomic.AddInt64(&m.Connections, 1)
	atomic.AddInt64(&m.ConnectionsTotal, 1)
}
func (m *Metrics) DecConnections()          { atomic.AddInt64(&m.Connections, -1) }
func (m *Metrics) IncMessagesIn()           { atomic.AddInt64(&m.MessagesIn, 1) }
func (m *Metrics) AddMessagesOut(n int64)   { atomic.AddInt64(&m.MessagesOut, n) }
func (m *Metrics) IncQueueFullDropped()     { atomic.AddInt64(&m.QueueFullDropped, 1) }
func (m *Metrics) IncDecodeErrors()         { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *Metrics) IncUnknownEvents()        { atomic.AddInt64(&m.UnknownEvents, 1) }
func (m *Metrics) IncHostOnlyRejected()     { atomic.AddInt64(&m.HostOnlyRejected, 1) }
func (m *Metrics) IncNotInSession()         { atomic.AddInt64(&m.NotInSession, 1) }
func (m *Metrics) IncSessionsCreated()      { atomic.AddInt64(&m.SessionsCreated, 1) }
func (m *Metrics) IncJoinsRejected()        { atomic.AddInt64(&m.JoinsRejected, 1) }
func (m *Metrics) IncHostPromotions()       { atomic.AddInt64(&m.HostPromotions, 1) }
func (m *Metrics) IncSessionsClosed()       { atomic.AddInt64(&m.SessionsClosed, 1) }
func (m *Metrics) AddSessionsSwept(n int64) { atomic.AddInt64(&m.SessionsSwept, n) }
func (m *Metrics) IncShipLookups()          { atomic.AddInt64(&m.ShipLookups, 1) }
func (m *Metrics) IncShipLookupMisses()     { atomic.AddInt64(&m.ShipLookupMisses, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"connections":        atomic.LoadInt64(&m.Connections),
		"connections_total":  atomic.LoadInt64(&m.ConnectionsTotal),
		"messages_in":        atomic.LoadInt64(&m.MessagesIn),
		"messages_out":       atomic.LoadInt64(&m.MessagesOut),
		"queue_full_dropped": atomic.LoadInt64(&m.QueueFullDropped),
		"decode_errors":      atomic.LoadInt64(&m.DecodeErrors),
		"unknown_events":     atomic.LoadInt64(&m.UnknownEvents),
		"host_only_rejected": atomic.LoadInt64(&m.HostOnlyRejected),
		"not_in_session":     atomic.LoadInt64(&m.NotInSession),
		"sessions_created":   atomic.LoadInt64(&m.SessionsCreated),
		"joins_rejected":     atomic.LoadInt64(&m.JoinsRejected),
		"host_promotions":    atomic.LoadInt64(&m.HostPromotions),
		"sessions_closed":    atomic.LoadInt64(&m.SessionsClosed),
		"sessions_swept":     atomic.LoadInt64(&m.SessionsSwept),
		"ship_lookups":       atomic.LoadInt64(&m.ShipLookups),
		"ship_lookup_misses": atomic.LoadInt64(&m.ShipLookupMisses),
	}
}
