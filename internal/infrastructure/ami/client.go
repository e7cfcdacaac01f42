package ami

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotConnected 当前没有可用的 AMI 连接
	ErrNotConnected = errors.New("ami: not connected")
	// ErrClosed 连接已关闭
	ErrClosed = errors.New("ami: connection closed")
	// ErrAuthentication 登录被拒绝，重试无意义
	ErrAuthentication = errors.New("ami: authentication failed")
)

// ActionError AMI 返回 Response: Error
type ActionError struct {
	Action  string
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("ami: action %s failed: %s", e.Action, e.Message)
}

// Client 单条 AMI 连接：一个读协程，动作响应按 ActionID 关联
type Client struct {
	conn   net.Conn
	reader *textproto.Reader
	writer *bufio.Writer
	banner string

	writeMu sync.Mutex

	mu      sync.Mutex
	waiters map[string]chan Message

	onEvent func(Event)

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial 建立 TCP 连接、读取欢迎语并登录
func Dial(ctx context.Context, addr, username, secret string, timeout time.Duration, onEvent func(Event)) (*Client, error) {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	// 欢迎语和登录共用一个超时，服务端只接受连接不说话时不会卡住
	hsCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		hsCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	c, err := OpenContext(hsCtx, conn, onEvent)
	if err != nil {
		return nil, err
	}

	if err := c.Login(hsCtx, username, secret); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Open 在已有连接上读取欢迎语并启动读循环
func Open(conn net.Conn, onEvent func(Event)) (*Client, error) {
	return OpenContext(context.Background(), conn, onEvent)
}

// OpenContext 同 Open，欢迎语的读取受 ctx 的截止时间和取消约束
func OpenContext(ctx context.Context, conn net.Conn, onEvent func(Event)) (*Client, error) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	c := &Client{
		conn:    conn,
		reader:  textproto.NewReader(bufio.NewReader(conn)),
		writer:  bufio.NewWriter(conn),
		waiters: make(map[string]chan Message),
		onEvent: onEvent,
		done:    make(chan struct{}),
	}

	// ctx 结束时把读截止时间设到过去，打断阻塞中的读取
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Unix(1, 0))
	})

	banner, err := c.reader.ReadLine()
	if !stop() || ctx.Err() != nil {
		conn.Close()
		return nil, fmt.Errorf("read banner: %w", context.Cause(ctx))
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read banner: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if !strings.HasPrefix(banner, "Asterisk Call Manager") {
		conn.Close()
		return nil, fmt.Errorf("unexpected banner %q", banner)
	}
	c.banner = banner

	go c.readLoop()
	return c, nil
}

// Banner 返回服务端欢迎语
func (c *Client) Banner() string {
	return c.banner
}

// Login 使用用户名和密码登录，拒绝时返回 ErrAuthentication
func (c *Client) Login(ctx context.Context, username, secret string) error {
	_, err := c.Action(ctx, "Login", map[string]string{
		"Username": username,
		"Secret":   secret,
		"Events":   "on",
	})
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return fmt.Errorf("%w: %s", ErrAuthentication, actionErr.Message)
	}
	return err
}

// Action 发送动作并等待同一 ActionID 的响应
// params 中带 ActionID 时沿用调用方的值，否则生成一个
func (c *Client) Action(ctx context.Context, name string, params map[string]string) (Message, error) {
	actionID := ""
	for k, v := range params {
		if strings.EqualFold(k, "ActionID") {
			actionID = v
		}
	}
	if actionID == "" {
		actionID = uuid.NewString()
	}

	ch := make(chan Message, 1)
	c.mu.Lock()
	if c.isDone() {
		c.mu.Unlock()
		return nil, c.Err()
	}
	c.waiters[actionID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.waiters, actionID)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
	}
	err := writeAction(c.writer, name, actionID, params)
	c.conn.SetWriteDeadline(time.Time{})
	c.writeMu.Unlock()
	if err != nil {
		c.shutdown(fmt.Errorf("write %s: %w", name, err))
		return nil, c.Err()
	}

	select {
	case resp := <-ch:
		if !resp.IsSuccess() {
			return resp, &ActionError{Action: name, Message: resp.Get("Message")}
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.Err()
	}
}

// Done 连接断开时关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 返回断开原因
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil && c.isDone() {
		return ErrClosed
	}
	return c.err
}

// Close 主动关闭连接
func (c *Client) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

func (c *Client) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		close(c.done)
		c.mu.Unlock()
		c.conn.Close()
	})
}

func (c *Client) readLoop() {
	for {
		msg, err := readMessage(c.reader)
		if err != nil {
			c.shutdown(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}

		if msg.IsResponse() {
			c.mu.Lock()
			ch, ok := c.waiters[msg.ActionID()]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- msg:
				default:
				}
			}
			continue
		}

		if msg.IsEvent() {
			c.onEvent(DecodeEvent(msg))
		}
	}
}
