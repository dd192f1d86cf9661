package peer

import (
	"context"
	"sync"
	"time"
)

// Scheduler 绑定到一次会话的定时任务。Stop 取消所有任务并等待它们退出，
// 返回后不会再有任何回调执行。
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func newScheduler(parent context.Context) *Scheduler {
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Every 每隔 d 调用一次 fn
func (s *Scheduler) Every(d time.Duration, fn func()) {
	if d <= 0 {
		return
	}
	s.Go(func(ctx context.Context) {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	})
}

// Task 可单独取消的任务
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel 取消任务并等待其退出；不能在任务内部调用
func (t *Task) Cancel() {
	t.cancel()
	<-t.done
}

// Go 启动一个随会话结束而取消的任务
func (s *Scheduler) Go(fn func(ctx context.Context)) {
	s.Start(fn)
}

// Start 与 Go 相同，另外返回可单独取消的句柄。调度器已停止时返回 nil。
func (s *Scheduler) Start(fn func(ctx context.Context)) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	ctx, cancel := context.WithCancel(s.ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer cancel()
		fn(ctx)
	}()
	return t
}

// Stop 不能在任务内部调用
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// sleep 可被取消的等待，返回 false 表示 ctx 已结束
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
