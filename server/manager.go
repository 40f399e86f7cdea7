package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"idlearena/game"
	"idlearena/store"
)

// Manager 组装存储、写协程、账号服务与房间，并提供 HTTP 入口
type Manager struct {
	cfg      Config
	store    store.Store
	persist  *persister
	accounts *Accounts
	room     *Room
	metrics  *GameMetrics
	upgrader websocket.Upgrader
}

// ManagerOption 用于测试注入随机源
type ManagerOption func(*managerOptions)

type managerOptions struct {
	rng game.Rand
}

// WithRand 固定随机源
func WithRand(rng game.Rand) ManagerOption {
	return func(o *managerOptions) { o.rng = rng }
}

// NewManager 创建服务；st 的生命周期由调用方负责
func NewManager(cfg Config, st store.Store, opts ...ManagerOption) *Manager {
	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = DefaultConfig().SaveTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultConfig().RateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultConfig().RateBurst
	}

	metrics := &GameMetrics{}
	p := newPersister(st, cfg.SaveTimeout, metrics)
	return &Manager{
		cfg:      cfg,
		store:    st,
		persist:  p,
		accounts: NewAccounts(st, p, cfg, time.Now),
		room: NewRoom(RoomConfigFrom(cfg), RoomDeps{
			Saver:   p,
			Metrics: metrics,
			Rand:    o.rng,
			Now:     time.Now,
		}),
		metrics:  metrics,
		upgrader: newUpgrader(),
	}
}

// Room 世界房间
func (m *Manager) Room() *Room { return m.room }

// Run 启动写协程与房间事件循环，阻塞到 ctx 结束。
// 房间先退出并提交最后一批快照，写协程随后完成最终落盘。
func (m *Manager) Run(ctx context.Context) {
	pctx, cancel := context.WithCancel(context.Background())
	pdone := make(chan struct{})
	go func() {
		defer close(pdone)
		m.persist.Run(pctx)
	}()

	Log.Infow("room started", "tick_interval", m.room.cfg.TickInterval, "save_interval", m.room.cfg.SaveInterval)
	m.room.Run(ctx)

	cancel()
	<-pdone
	Log.Infow("persister stopped", "pending", m.persist.Pending())
}

// Routes HTTP 路由：WebSocket、管理与监控接口、静态资源
func (m *Manager) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.HandleWS)
	mux.HandleFunc("/admin/config", m.HandleAdminConfig)
	mux.HandleFunc("/metrics", m.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	if m.cfg.StaticDir != "" {
		// 前后端分离：将 / 映射到静态资源目录
		mux.Handle("/", http.FileServer(http.Dir(m.cfg.StaticDir)))
	}
	return mux
}
