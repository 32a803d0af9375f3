package manager

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	defaultSendQueueSize = 64
	defaultReadLimit     = 64 * 1024
	wsWriteTimeout       = 5 * time.Second
)

// MessageHandler 上行帧回调，raw 为客户端原始载荷
type MessageHandler func(raw []byte)

// CloseHandler 读写循环退出后的清理回调
type CloseHandler func()

// Options 单连接参数
type Options struct {
	SendQueueSize int
	ReadLimit     int64
	InboundRate   float64 // 每秒上行帧数，<=0 不限
	InboundBurst  int
}

// Client 封装单条 WebSocket 连接。
// send 队列串行化所有下行写入，同一连接上的事件顺序与入队顺序一致。
// 定时器（位置共享到期通知）归连接所有，连接关闭时全部取消。
type Client struct {
	conn    *websocket.Conn
	id      string
	userID  string
	name    string
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
	readMax int64

	timerMu sync.Mutex
	timers  map[string]*time.Timer
}

// NewClient 创建连接包装对象，id 为本次连接的唯一 id（写入 users.socket_id）
func NewClient(conn *websocket.Conn, id, userID, name string, opts Options) *Client {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = defaultSendQueueSize
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	limit := rate.Inf
	if opts.InboundRate > 0 {
		limit = rate.Limit(opts.InboundRate)
	}
	return &Client{
		conn:    conn,
		id:      id,
		userID:  userID,
		name:    name,
		send:    make(chan []byte, opts.SendQueueSize),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(limit, opts.InboundBurst),
		readMax: opts.ReadLimit,
		timers:  make(map[string]*time.Timer),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() string {
	return c.userID
}

// Name 握手时的用户昵称
func (c *Client) Name() string {
	return c.name
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Allow 上行帧限速
func (c *Client) Allow() bool {
	return c.limiter.Allow()
}

// Enqueue 投递到写队列。
// 返回 false 表示连接已关闭或队列已满，调用方决定丢弃或断开。
func (c *Client) Enqueue(msg []byte) bool {
	if len(msg) == 0 {
		return true
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case <-c.done:
		return false
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Schedule 在 d 后执行 fn，同一 key 的旧定时器会被替换。连接关闭后 fn 不会再执行
func (c *Client) Schedule(key string, d time.Duration, fn func()) {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	if old, ok := c.timers[key]; ok {
		old.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		c.timerMu.Lock()
		current, ok := c.timers[key]
		if ok && current == t {
			delete(c.timers, key)
		}
		c.timerMu.Unlock()
		if !ok || current != t {
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
		fn()
	})
	c.timers[key] = t
}

// pendingTimers 未触发的定时器数量
func (c *Client) pendingTimers() int {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	return len(c.timers)
}

// Run 启动读写循环并阻塞到 readLoop 结束，退出时保证 Close 与 onClose 都被调用
func (c *Client) Run(ctx context.Context, onMessage MessageHandler, onClose CloseHandler) {
	defer func() {
		c.Close()
		if onClose != nil {
			onClose()
		}
	}()

	c.conn.SetReadLimit(c.readMax)
	go c.writeLoop(ctx)
	c.readLoop(ctx, onMessage)
}

// Close 幂等关闭：先发关闭信号并取消定时器，再关闭底层连接
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)

		c.timerMu.Lock()
		for key, t := range c.timers {
			t.Stop()
			delete(c.timers, key)
		}
		c.timerMu.Unlock()

		_ = c.conn.Close()
	})
}

// readLoop 读错误（含对端异常断开、超过读上限）即退出
func (c *Client) readLoop(ctx context.Context, onMessage MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if onMessage != nil {
			onMessage(raw)
		}
	}
}

// writeLoop 每次写设置超时，慢连接写失败后直接关闭
func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		}
	}
}
