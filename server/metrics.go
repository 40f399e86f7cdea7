package server

import (
	"sync/atomic"
)

// GameMetrics 记录服务运行期的关键指标（用于监控与调试）
type GameMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
	IntentsAccepted   int64 // 已执行的玩法意图数
	RateLimited       int64 // 因超出连接速率被丢弃的消息数
	Malformed         int64 // 因格式错误被丢弃的消息数
	ChanFullDiscarded int64 // 因事件队列满被丢弃的意图数
	Logins            int64 // 成功登录次数
	MonsterKills      int64 // 怪物被击杀次数
	PlayerDeaths      int64 // 玩家死亡次数
	SavesOK           int64 // 成功写入的账号快照
	SavesFailed       int64 // 写入失败（稍后重试）的账号快照
}

func (m *GameMetrics) IncAccepted()          { atomic.AddInt64(&m.IntentsAccepted, 1) }
func (m *GameMetrics) IncRateLimited()       { atomic.AddInt64(&m.RateLimited, 1) }
func (m *GameMetrics) IncMalformed()         { atomic.AddInt64(&m.Malformed, 1) }
func (m *GameMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *GameMetrics) IncLogins()            { atomic.AddInt64(&m.Logins, 1) }
func (m *GameMetrics) IncMonsterKills()      { atomic.AddInt64(&m.MonsterKills, 1) }
func (m *GameMetrics) IncPlayerDeaths()      { atomic.AddInt64(&m.PlayerDeaths, 1) }
func (m *GameMetrics) IncSaved()             { atomic.AddInt64(&m.SavesOK, 1) }
func (m *GameMetrics) IncSaveFailed()        { atomic.AddInt64(&m.SavesFailed, 1) }
func (m *GameMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *GameMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"avg_tick_ms":         avgMs,
		"intents_accepted":    atomic.LoadInt64(&m.IntentsAccepted),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"malformed":           atomic.LoadInt64(&m.Malformed),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"logins":              atomic.LoadInt64(&m.Logins),
		"monster_kills":       atomic.LoadInt64(&m.MonsterKills),
		"player_deaths":       atomic.LoadInt64(&m.PlayerDeaths),
		"saves_ok":            atomic.LoadInt64(&m.SavesOK),
		"saves_failed":        atomic.LoadInt64(&m.SavesFailed),
	}
}
