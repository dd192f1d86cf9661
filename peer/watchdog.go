package peer

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// watchdog 记录最近一次 host 流量；超时后只报告一次，直到再次收到 host 流量
type watchdog struct {
	timeout  time.Duration
	lastSeen atomic.Int64 // UnixNano
	fired    atomic.Bool
}

func newWatchdog(timeout time.Duration) *watchdog {
	w := &watchdog{timeout: timeout}
	w.lastSeen.Store(time.Now().UnixNano())
	return w
}

func (w *watchdog) feed() {
	w.lastSeen.Store(time.Now().UnixNano())
	w.fired.Store(false)
}

// expired 超时且本轮尚未报告时返回 true
func (w *watchdog) expired(now time.Time) bool {
	if now.UnixNano()-w.lastSeen.Load() < int64(w.timeout) {
		return false
	}
	return w.fired.CompareAndSwap(false, true)
}

// feedHost 收到 host 的流量
func (c *Client) feedHost(from string) {
	c.mu.Lock()
	dog := c.dog
	isHost := c.sess != nil && from != "" && from == c.sess.HostID
	c.mu.Unlock()
	if dog != nil && (from == "" || isHost) {
		dog.feed()
	}
}

// checkHost 定时检查 host 是否失联；自己是 host 时不检查
func (c *Client) checkHost() {
	c.mu.Lock()
	dog := c.dog
	host := ""
	if c.sess != nil {
		host = c.sess.HostID
	}
	self := c.isHostLocked()
	c.mu.Unlock()
	if dog == nil || self || !dog.expired(time.Now()) {
		return
	}
	c.log.Warn("host silent", zap.String("host", host), zap.Duration("timeout", dog.timeout))
	if c.opts.OnHostLost != nil {
		// 回调里可能调用 Leave，不能占用调度协程
		go c.opts.OnHostLost()
	}
}
