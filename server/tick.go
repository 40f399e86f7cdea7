package server

import (
	"context"
	"math"
	"time"

	"idlearena/game"
)

const (
	// 默认 Tick 间隔（约 7 TPS）与定时保存间隔
	defaultTickInterval = 140 * time.Millisecond
	defaultSaveInterval = 8 * time.Second
)

// Run 房间事件循环：意图、Tick、定时保存串行执行；ctx 结束时保存全部在线玩家后返回
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	autosave := time.NewTicker(r.cfg.SaveInterval)
	defer autosave.Stop()

	for {
		select {
		case <-ctx.Done():
			r.saveAll()
			Log.Infow("room stopped", "tick", r.tickSeq, "online", len(r.online))
			return
		case ev := <-r.events:
			ev.apply(r)
		case <-ticker.C:
			// 核心循环：刷新待复活怪物 → 怪物 AI → 广播结果
			start := time.Now()
			r.step()
			r.metrics.AddTick(time.Since(start).Nanoseconds())
		case <-autosave.C:
			r.saveAll()
		}
	}
}

// step 推进一个 Tick
func (r *Room) step() {
	r.tickSeq++
	r.spawnDue(r.now())
	players := r.world.Players()
	for _, m := range r.world.Monsters() {
		r.stepMonster(m, players)
	}
	r.broadcast()
}

// spawnDue 刷出到期的延迟复活怪物
func (r *Room) spawnDue(now time.Time) {
	kept := r.pendingSpawns[:0]
	for _, ps := range r.pendingSpawns {
		if now.Before(ps.due) {
			kept = append(kept, ps)
			continue
		}
		r.spawnMonster(ps.zone, ps.boss)
	}
	r.pendingSpawns = kept
}

// spawnMonster 在区域起点右侧 200 以内随机位置刷怪
func (r *Room) spawnMonster(zone game.Zone, boss bool) *Monster {
	x := zone.Origin() + r.rng.Float64()*200
	y := 20 + r.rng.Float64()*(game.MapHeight-40)
	m := newMonster(newID("m"), zone, boss, x, y)
	r.world.AddMonster(m)
	return m
}

// nearestTarget 同区域内最近的玩家；安全区的玩家不会被追击
func nearestTarget(m *Monster, players []*Player) *Player {
	var best *Player
	bestD := math.Inf(1)
	for _, p := range players {
		if p.Zone != m.Zone || p.Zone.Safe() {
			continue
		}
		if d := game.Distance(m.X, m.Y, p.X, p.Y); d < bestD {
			best, bestD = p, d
		}
	}
	return best
}

// stepMonster 接触范围内先攻击，再向目标移动一步
func (r *Room) stepMonster(m *Monster, players []*Player) {
	p := nearestTarget(m, players)
	if p == nil {
		return
	}
	if game.Distance(m.X, m.Y, p.X, p.Y) < game.ContactRange {
		if p.Stats.Hurt(game.Damage(m.Attack, p.defense())) {
			r.monsterKill(p, m)
			return
		}
	}
	m.X, m.Y = game.StepToward(m.X, m.Y, p.X, p.Y, m.Speed*r.tun.MonsterSpeedFactor)
}

// monsterKill 被怪物击杀：安全点满血复活，有一定概率把最后一件背包物品掉在复活点旁
func (r *Room) monsterKill(p *Player, m *Monster) {
	p.respawn(respawnX, respawnY)
	r.metrics.IncPlayerDeaths()
	if n := len(p.Inventory); n > 0 && r.rng.Float64() < game.DeathSpillChance {
		r.dropItem(respawnX+dropOffset, respawnY+dropOffset, p.removeItemAt(n-1))
	}
	Log.Infow("player killed by monster", "player", p.ID, "monster", m.ID)
}
