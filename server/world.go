package server

import (
	"math"
	"slices"
	"strings"

	"idlearena/game"
)

// World 实体注册表：玩家、怪物、地面物品的唯一权威副本。
// 只由房间事件循环访问，其余组件只持有 id。
type World struct {
	players  map[PlayerID]*Player
	monsters map[string]*Monster
	ground   map[string]*game.GroundItem
}

// NewWorld 创建空世界
func NewWorld() *World {
	return &World{
		players:  make(map[PlayerID]*Player),
		monsters: make(map[string]*Monster),
		ground:   make(map[string]*game.GroundItem),
	}
}

func (w *World) AddPlayer(p *Player)             { w.players[p.ID] = p }
func (w *World) RemovePlayer(id PlayerID)         { delete(w.players, id) }
func (w *World) Player(id PlayerID) *Player       { return w.players[id] }
func (w *World) AddMonster(m *Monster)            { w.monsters[m.ID] = m }
func (w *World) RemoveMonster(id string)          { delete(w.monsters, id) }
func (w *World) Monster(id string) *Monster       { return w.monsters[id] }
func (w *World) AddGroundItem(g *game.GroundItem) { w.ground[g.ID] = g }
func (w *World) RemoveGroundItem(id string)       { delete(w.ground, id) }
func (w *World) GroundItem(id string) *game.GroundItem {
	return w.ground[id]
}

// Players 按 id 排序，保证遍历与广播顺序稳定
func (w *World) Players() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Player) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// Monsters 按 id 排序（ULID 即创建顺序）
func (w *World) Monsters() []*Monster {
	out := make([]*Monster, 0, len(w.monsters))
	for _, m := range w.monsters {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Monster) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// GroundItems 按 id 排序
func (w *World) GroundItems() []*game.GroundItem {
	out := make([]*game.GroundItem, 0, len(w.ground))
	for _, g := range w.ground {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *game.GroundItem) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// NearestGroundItem radius 范围内最近的地面物品
func (w *World) NearestGroundItem(x, y, radius float64) *game.GroundItem {
	var best *game.GroundItem
	bestD := math.Inf(1)
	for _, g := range w.GroundItems() {
		d := game.Distance(x, y, g.X, g.Y)
		if d <= radius && d < bestD {
			best, bestD = g, d
		}
	}
	return best
}

// Counts 在线玩家、怪物、地面物品数量
func (w *World) Counts() (players, monsters, ground int) {
	return len(w.players), len(w.monsters), len(w.ground)
}

// Snapshot 完整世界状态（广播与 init 使用）
type Snapshot struct {
	Players     map[PlayerID]*Player `json:"players"`
	Monsters    []*Monster           `json:"monsters"`
	GroundItems []*game.GroundItem   `json:"groundItems"`
}

// Snapshot 返回当前世界视图；在事件循环内立即序列化，不得跨事件持有
func (w *World) Snapshot() Snapshot {
	return Snapshot{
		Players:     w.players,
		Monsters:    w.Monsters(),
		GroundItems: w.GroundItems(),
	}
}
