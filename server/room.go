package server

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"idlearena/game"
	"idlearena/store"
)

// Sender 连接的发送端（写协程）；两个方法都不得阻塞。
// Enqueue 用于定向消息，EnqueueState 用于可丢弃的状态广播。
type Sender interface {
	Enqueue(b []byte)
	EnqueueState(b []byte)
}

// Session 一个连接 = 一个会话。Unauthenticated -> Authenticated 不可逆；
// 登录后只保存玩家 id，实体本身只在 World 中。
type Session struct {
	ID   string
	conn Sender

	// 以下字段只在事件循环中读写
	playerID PlayerID
	account  *store.Account
}

// NewSession 创建未登录会话
func NewSession(id string, conn Sender) *Session {
	return &Session{ID: id, conn: conn}
}

func (s *Session) authenticated() bool { return s.playerID != "" }

func (s *Session) send(v any) {
	if s.conn == nil {
		return
	}
	if b := encode(v); b != nil {
		s.conn.Enqueue(b)
	}
}

// accountSink 接收账号快照（persister）
type accountSink interface {
	Enqueue(acc *store.Account)
	Wake()
	Latest(username string) (*store.Account, bool)
}

// Tunables 可在运行时通过 /admin/config 调整的规则参数
type Tunables struct {
	MonsterSpeedFactor float64 `json:"monsterSpeedFactor"`
	PvPGoldLossPercent int     `json:"pvpGoldLossPercent"`
	BossRespawnDelayMs int64   `json:"bossRespawnDelayMs"`
}

// RoomConfig 房间配置
type RoomConfig struct {
	TickInterval       time.Duration
	SaveInterval       time.Duration
	BossRespawnDelay   time.Duration
	PvPGoldLossPercent int
	QueueSize          int
	// 开局刷怪：forest 区域的普通怪数量与 Boss 数量
	InitialMonsters int
	InitialBosses   int
}

// RoomConfigFrom 从服务配置派生
func RoomConfigFrom(cfg Config) RoomConfig {
	return RoomConfig{
		TickInterval:       cfg.TickInterval,
		SaveInterval:       cfg.SaveInterval,
		BossRespawnDelay:   cfg.BossRespawnDelay,
		PvPGoldLossPercent: cfg.PvPGoldLossPercent,
		QueueSize:          256,
		InitialMonsters:    6,
		InitialBosses:      1,
	}
}

// RoomDeps 外部依赖（可注入以便测试）
type RoomDeps struct {
	Saver   accountSink
	Metrics *GameMetrics
	Rand    game.Rand
	Now     func() time.Time
}

// 固定的复活点
const (
	respawnX    = 50.0
	respawnY    = 50.0
	pvpRespawnX = 20.0
	pvpRespawnY = 20.0
	// 登录出生区域的右边界（安全区）
	safeAreaWidth = 380.0
	// 掉落/溢出物品相对位置偏移
	dropOffset = 8.0
)

type pendingSpawn struct {
	zone game.Zone
	boss bool
	due  time.Time
}

// Room 世界的唯一执行上下文：所有意图、Tick、保存都在 Run 协程中串行处理
type Room struct {
	world  *World
	trades *TradeBook

	sessions map[string]*Session   // 按会话 id
	online   map[string]*Session   // 按用户名
	byPlayer map[PlayerID]*Session // 按玩家 id

	pendingSpawns []pendingSpawn
	tickSeq       uint64
	tun           Tunables
	cfg           RoomConfig

	saver   accountSink
	metrics *GameMetrics
	rng     game.Rand
	now     func() time.Time

	events chan event
	done   chan struct{}
}

// NewRoom 创建房间并刷出初始怪物
func NewRoom(cfg RoomConfig, deps RoomDeps) *Room {
	if deps.Metrics == nil {
		deps.Metrics = &GameMetrics{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		deps.Rand = rand.New(rand.NewPCG(seed, seed>>17))
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = defaultSaveInterval
	}
	r := &Room{
		world:    NewWorld(),
		trades:   NewTradeBook(),
		sessions: make(map[string]*Session),
		online:   make(map[string]*Session),
		byPlayer: make(map[PlayerID]*Session),
		tun: Tunables{
			MonsterSpeedFactor: 1,
			PvPGoldLossPercent: cfg.PvPGoldLossPercent,
			BossRespawnDelayMs: cfg.BossRespawnDelay.Milliseconds(),
		},
		cfg:     cfg,
		saver:   deps.Saver,
		metrics: deps.Metrics,
		rng:     deps.Rand,
		now:     deps.Now,
		events:  make(chan event, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	for i := 0; i < cfg.InitialMonsters; i++ {
		r.spawnMonster(game.ZoneForest, false)
	}
	for i := 0; i < cfg.InitialBosses; i++ {
		r.spawnMonster(game.ZoneForest, true)
	}
	return r
}

// event 投递给事件循环的工作单元，apply 在循环协程中完整执行
type event interface {
	apply(r *Room)
}

type connectEvent struct{ s *Session }
type leaveEvent struct{ s *Session }
type intentEvent struct {
	s  *Session
	in Intent
}
type joinEvent struct {
	s     *Session
	acc   *store.Account
	token string
}
type callEvent struct {
	fn   func(r *Room)
	done chan struct{}
}

func (e connectEvent) apply(r *Room) { r.connect(e.s) }
func (e leaveEvent) apply(r *Room)   { r.leave(e.s) }
func (e intentEvent) apply(r *Room)  { r.dispatch(e.s, e.in) }
func (e joinEvent) apply(r *Room)    { r.join(e.s, e.acc, e.token) }
func (e callEvent) apply(r *Room) {
	e.fn(r)
	close(e.done)
}

var errRoomClosed = errors.New("room closed")

// post 阻塞投递；房间已停止时返回 false
func (r *Room) post(ev event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

// Connect 注册新连接，使其开始接收广播（askLogin 由连接侧先行发送）
func (r *Room) Connect(s *Session) { r.post(connectEvent{s: s}) }

// Leave 连接断开；保证送达（除非房间已停止）
func (r *Room) Leave(s *Session) { r.post(leaveEvent{s: s}) }

// Join 认证成功后在事件循环中创建玩家
func (r *Room) Join(s *Session, acc *store.Account, token string) {
	r.post(joinEvent{s: s, acc: acc, token: token})
}

// Submit 投递玩法意图（非阻塞）：队列满时丢弃，避免背压影响世界推进
func (r *Room) Submit(s *Session, in Intent) bool {
	select {
	case r.events <- intentEvent{s: s, in: in}:
		return true
	default:
		r.metrics.IncChanFullDiscarded()
		return false
	}
}

// Call 在事件循环中执行 fn 并等待完成（管理接口与测试使用）
func (r *Room) Call(ctx context.Context, fn func(r *Room)) error {
	ev := callEvent{fn: fn, done: make(chan struct{})}
	select {
	case r.events <- ev:
	case <-r.done:
		return errRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ev.done:
		return nil
	case <-r.done:
		return errRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Room) connect(s *Session) {
	r.sessions[s.ID] = s
}

// join 由账号快照实例化玩家并结算离线收益
func (r *Room) join(s *Session, acc *store.Account, token string) {
	if _, ok := r.sessions[s.ID]; !ok {
		// 连接已断开
		return
	}
	if s.authenticated() {
		s.send(newErrorMessage(errors.Join(ErrProtocol, errors.New("already logged in"))))
		return
	}
	if _, ok := r.online[acc.Username]; ok {
		s.send(newErrorMessage(ErrAlreadyOnline))
		return
	}
	// 认证期间上一个会话可能刚下线，以其未落盘的快照为准
	if r.saver != nil {
		if latest, ok := r.saver.Latest(acc.Username); ok && latest.LastOnline.After(acc.LastOnline) {
			acc = latest
		}
	}

	x := r.rng.Float64()*(safeAreaWidth-60) + 20
	y := r.rng.Float64()*(game.MapHeight-60) + 20
	p := newPlayer(PlayerID(newID("p")), acc, x, y)

	var offline *game.OfflineGain
	if !acc.LastOnline.IsZero() {
		if gain, ok := game.ComputeOfflineGain(p.Stats, r.now().Sub(acc.LastOnline)); ok {
			p.Gold += gain.Gold
			game.GrantXP(&p.Progress, &p.Stats, gain.XP)
			offline = &gain
		}
	}

	r.world.AddPlayer(p)
	s.playerID = p.ID
	s.account = acc
	r.online[acc.Username] = s
	r.byPlayer[p.ID] = s
	r.metrics.IncLogins()
	Log.Infow("player joined", "username", acc.Username, "player", p.ID, "session", s.ID)

	s.send(initMessage{Type: typeInit, ID: p.ID, Token: token, Offline: offline, Snapshot: r.world.Snapshot()})
	r.broadcast()
}

// leave 最后保存一次，丢弃其交易，移出注册表
func (r *Room) leave(s *Session) {
	if _, ok := r.sessions[s.ID]; !ok {
		return
	}
	delete(r.sessions, s.ID)
	if s.authenticated() {
		if p := r.world.Player(s.playerID); p != nil {
			r.save(s, p)
			for _, t := range r.trades.Abandon(p.ID) {
				other := t.FromID
				if other == p.ID {
					other = t.ToID
				}
				r.sendTo(other, tradeDoneMessage{Type: typeTradeDeclined, TradeID: t.ID})
			}
			r.world.RemovePlayer(p.ID)
			Log.Infow("player left", "username", p.Username, "player", p.ID)
		}
		delete(r.online, s.account.Username)
		delete(r.byPlayer, s.playerID)
		r.broadcast()
	}
	if c, ok := s.conn.(interface{ Close() }); ok {
		c.Close()
	}
}

// sendTo 定向发送给某个在线玩家
func (r *Room) sendTo(pid PlayerID, v any) {
	if s, ok := r.byPlayer[pid]; ok {
		s.send(v)
	}
}

// Broadcast 将当前世界状态广播给所有连接（文本 JSON，全量快照）
func (r *Room) broadcast() {
	b := encode(stateMessage{Type: typeState, Tick: r.tickSeq, Snapshot: r.world.Snapshot()})
	if b == nil {
		return
	}
	for _, s := range r.sessions {
		if s.conn != nil {
			s.conn.EnqueueState(b)
		}
	}
}

// snapshotAccount 基于登录时的账号记录生成最新快照（深拷贝，可安全交给写协程）
func (r *Room) snapshotAccount(s *Session, p *Player) *store.Account {
	acc := s.account.Clone()
	p.snapshotInto(acc)
	acc.LastOnline = r.now()
	return acc
}

func (r *Room) save(s *Session, p *Player) {
	if r.saver == nil {
		return
	}
	r.saver.Enqueue(r.snapshotAccount(s, p))
}

// saveAll 定时保存全部在线玩家，同时唤醒写协程重试失败的快照
func (r *Room) saveAll() {
	for _, s := range r.online {
		if p := r.world.Player(s.playerID); p != nil {
			r.save(s, p)
		}
	}
	if r.saver != nil {
		r.saver.Wake()
	}
}

// Tunables 当前规则参数（仅限事件循环内调用）
func (r *Room) Tunables() Tunables { return r.tun }

// SetTunables 更新规则参数（仅限事件循环内调用）
func (r *Room) SetTunables(t Tunables) { r.tun = t }

// Stats 当前 tick 序号与实体数量（仅限事件循环内调用）
func (r *Room) Stats() map[string]any {
	players, monsters, ground := r.world.Counts()
	return map[string]any{
		"tick":         r.tickSeq,
		"players":      players,
		"monsters":     monsters,
		"ground_items": ground,
		"trades":       r.trades.Len(),
		"connections":  len(r.sessions),
	}
}
