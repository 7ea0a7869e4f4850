// Package session 实现编辑会话的自动保存状态机。
//
// 会话有三个状态：Clean（无未保存修改）、Dirty（有修改、未在保存）、
// Saving（保存进行中）。防抖定时器只会从 Dirty 触发；保存进行中的新
// 修改只置 pending 标记，保存成功后立刻重新起表，保证修改不丢也绝不
// 并行保存。保存失败回到 Dirty 并通知调用方，不自动重试。
//
// 源场景是单线程事件循环，这里用互斥锁承担同样的串行化职责，
// 让控制器可以安全地被 WebSocket 读循环与定时器回调同时触达。
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raon-c/re-me-sub000/internal/canvas"
)

// State 是会话状态。
type State string

const (
	StateClean  State = "clean"
	StateDirty  State = "dirty"
	StateSaving State = "saving"
)

// DefaultDebounce 是修改静默多久之后触发保存。
const DefaultDebounce = 3 * time.Second

// ErrClosed 表示会话已结束。
var ErrClosed = errors.New("session closed")

// Saver 是注入的持久化协作方。
type Saver interface {
	Save(ctx context.Context, state canvas.State) error
}

// SaverFunc 让函数直接充当 Saver。
type SaverFunc func(ctx context.Context, state canvas.State) error

func (f SaverFunc) Save(ctx context.Context, state canvas.State) error { return f(ctx, state) }

// Option 配置 Controller。
type Option func(*Controller)

// WithDebounce 覆盖防抖间隔（测试用短间隔）。
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) { c.debounce = d }
}

// WithResultHandler 注册保存结果回调；err 为 nil 表示保存成功。
// 回调在锁外执行。
func WithResultHandler(fn func(err error)) Option {
	return func(c *Controller) { c.onResult = fn }
}

// Controller 为单个编辑会话协调自动保存。
type Controller struct {
	mu       sync.Mutex
	state    State
	pending  bool
	closed   bool
	timer    *time.Timer
	debounce time.Duration
	inflight chan struct{} // 在途保存完成时关闭

	snapshot func() canvas.State
	saver    Saver
	onResult func(error)

	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建会话控制器。snapshot 在防抖触发的瞬间取一次文档快照，
// 之后的修改不进入该次保存，但保证触发后续保存。
func New(saver Saver, snapshot func() canvas.State, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		state:    StateClean,
		debounce: DefaultDebounce,
		snapshot: snapshot,
		saver:    saver,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 返回当前状态。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending 报告保存期间是否有新的修改在排队。
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// NoteChange 在每次文档修改后调用。Clean→Dirty 并起表；Dirty 重置
// 防抖计时；Saving 期间只置 pending。
func (c *Controller) NoteChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch c.state {
	case StateSaving:
		c.pending = true
	case StateClean:
		c.state = StateDirty
		c.armLocked()
	case StateDirty:
		c.armLocked()
	}
}

// Flush 立即执行一次保存（若有未保存修改），同步等待结果。
// 这是保存失败后由调用方发起重试的入口。保存进行中时等待在途保存
// 完成后重新检查：保存期间排队的修改在这里接着落盘，会话收尾时
// 不会丢下 pending 的内容。
func (c *Controller) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		switch c.state {
		case StateClean:
			c.mu.Unlock()
			return nil
		case StateSaving:
			done := c.inflight
			c.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		c.stopTimerLocked()
		c.state = StateSaving
		c.inflight = make(chan struct{})
		snap := c.snapshot()
		c.mu.Unlock()

		err := c.saver.Save(ctx, snap)
		c.finishSave(err)
		return err
	}
}

// Close 结束会话并停掉定时器。已排程的保存不再触发；
// 在途保存照常完成但不再续表。
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()
	c.cancel()
}

// armLocked 重置防抖定时器，到点从 Dirty 进入 Saving。
func (c *Controller) armLocked() {
	c.stopTimerLocked()
	c.timer = time.AfterFunc(c.debounce, c.fire)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// fire 在定时器协程里执行真正的保存。
func (c *Controller) fire() {
	c.mu.Lock()
	if c.closed || c.state != StateDirty {
		c.mu.Unlock()
		return
	}
	c.state = StateSaving
	c.inflight = make(chan struct{})
	snap := c.snapshot()
	c.mu.Unlock()

	err := c.saver.Save(c.ctx, snap)
	c.finishSave(err)
}

// finishSave 按保存结果推进状态机：
// 成功且无 pending → Clean；成功且有 pending → 清 pending、回 Dirty
// 并立即重新起表；失败 → 回 Dirty，等调用方决定重试。
func (c *Controller) finishSave(err error) {
	c.mu.Lock()
	if c.inflight != nil {
		close(c.inflight)
		c.inflight = nil
	}
	switch {
	case err != nil:
		c.state = StateDirty
	case c.pending:
		c.pending = false
		c.state = StateDirty
		if !c.closed {
			c.armLocked()
		}
	default:
		c.state = StateClean
	}
	onResult := c.onResult
	c.mu.Unlock()

	if onResult != nil {
		onResult(err)
	}
}
