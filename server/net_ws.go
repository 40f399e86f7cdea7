package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"idlearena/store"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 16
	sendQueueSize  = 64
	stateQueueSize = 64
)

// ClientConn 负责发送（写）数据到客户端的轻量包装。
// 定向消息与状态广播分两个队列：状态可丢，定向消息不可丢。
type ClientConn struct {
	ws     *websocket.Conn
	send   chan []byte
	state  chan []byte
	closed chan struct{}
	once   sync.Once
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:     ws,
		send:   make(chan []byte, sendQueueSize),
		state:  make(chan []byte, stateQueueSize),
		closed: make(chan struct{}),
	}
}

// Enqueue 压入定向消息（非阻塞）；队列满说明客户端读得太慢，直接断开
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- b:
	default:
		Log.Warnw("send queue full, closing slow client", "queue", sendQueueSize)
		c.Close()
	}
}

// EnqueueState 压入状态广播（非阻塞，满则丢弃，下一次广播携带完整状态）
func (c *ClientConn) EnqueueState(b []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.state <- b:
	default:
	}
}

// Close 通知写协程退出并关闭连接；可重复调用
func (c *ClientConn) Close() {
	c.once.Do(func() { close(c.closed) })
}

// writePump 独立协程，唯一的写者：发送队列、心跳 ping 与关闭帧
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	write := func(msg []byte) bool {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		return c.ws.WriteMessage(websocket.TextMessage, msg) == nil
	}
	for {
		// 定向消息优先于状态广播
		select {
		case msg := <-c.send:
			if !write(msg) {
				return
			}
			continue
		default:
		}
		select {
		case msg := <-c.send:
			if !write(msg) {
				return
			}
		case msg := <-c.state:
			if !write(msg) {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			// 尽量送出已排队的消息（如 AlreadyOnline 错误）
			for {
				select {
				case msg := <-c.send:
					if !write(msg) {
						return
					}
				default:
					_ = c.ws.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
					return
				}
			}
		}
	}
}

// readPump 读取客户端消息：限速、解码校验，再交给网关或房间
func (c *ClientConn) readPump(m *Manager, s *Session) {
	defer c.Close()
	// 读泵退出时，通知房间在事件循环中移除该会话
	defer m.room.Leave(s)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	limiter := rate.NewLimiter(rate.Limit(m.cfg.RateLimit), m.cfg.RateBurst)
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugw("websocket closed", "session", s.ID, "error", err)
			}
			return
		}
		if !limiter.Allow() {
			m.metrics.IncRateLimited()
			continue
		}
		in, err := DecodeIntent(payload)
		if err != nil {
			m.metrics.IncMalformed()
			s.send(newErrorMessage(err))
			continue
		}
		m.handleIntent(s, in)
	}
}

// handleIntent 注册/登录在连接协程中完成（bcrypt 与存储 I/O 不进入事件循环），其余投递给房间
func (m *Manager) handleIntent(s *Session, in Intent) {
	switch v := in.(type) {
	case RegisterIntent:
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SaveTimeout)
		defer cancel()
		if err := m.accounts.Register(ctx, v.Username, v.Password); err != nil {
			s.send(newErrorMessage(err))
			return
		}
		s.send(simpleMessage{Type: typeRegistered})
	case LoginIntent:
		m.login(s, v)
	default:
		if !m.room.Submit(s, in) {
			Log.Debugw("intent dropped, room queue full", "session", s.ID, "type", in.Kind())
		}
	}
}

// login 校验账号密码或恢复 token，签发新 token 后交给事件循环创建玩家
func (m *Manager) login(s *Session, in LoginIntent) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SaveTimeout)
	defer cancel()

	var (
		acc *store.Account
		err error
	)
	if in.Token != "" {
		acc, err = m.accounts.Resume(ctx, in.Token)
	} else {
		acc, err = m.accounts.Authenticate(ctx, in.Username, in.Password)
	}
	if err != nil {
		Log.Infow("login failed", "session", s.ID, "username", in.Username, "error", err)
		s.send(newErrorMessage(err))
		return
	}
	token, err := m.accounts.IssueToken(acc.Username)
	if err != nil {
		Log.Errorw("issue token failed", "username", acc.Username, "error", err)
		s.send(newErrorMessage(err))
		return
	}
	m.room.Join(s, acc, token)
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// 演示环境：允许所有来源（生产环境需严格限制）
			return true
		},
	}
}

// HandleWS WebSocket 接入：一个连接 = 一个会话，先收到 askLogin
func (m *Manager) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClientConn(ws)
	s := NewSession(newID("s"), client)
	go client.writePump()

	s.send(simpleMessage{Type: typeAskLogin})
	m.room.Connect(s)
	Log.Debugw("websocket connected", "session", s.ID, "remote", r.RemoteAddr)

	go client.readPump(m, s)
}
